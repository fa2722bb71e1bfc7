package middleware

import (
	"mime"
	"net/http"
	"strings"
)

const methodOverrideField = "_method"

// NewMethodOverrideMiddleware はHTMLフォームからのPOSTを、
// クエリまたはフォーム項目 _method で指定されたPUT/PATCH/DELETEに置き換える。
// フォーム項目はURLエンコード形式のときのみ参照する。multipartはクエリで指定する。
func NewMethodOverrideMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			override := r.URL.Query().Get(methodOverrideField)
			if override == "" && isURLEncodedForm(r) {
				override = r.PostFormValue(methodOverrideField)
			}

			switch m := strings.ToUpper(strings.TrimSpace(override)); m {
			case http.MethodPut, http.MethodPatch, http.MethodDelete:
				r.Method = m
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isURLEncodedForm(r *http.Request) bool {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && ct == "application/x-www-form-urlencoded"
}
