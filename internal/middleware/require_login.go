package middleware

import (
	"net/http"
	"strings"
)

const returnToCookieName = "return_to"

// MsgLoginRequired は未ログインで保護されたページにアクセスしたときの通知。
const MsgLoginRequired = "Access restricted - Sign up for an account to unlock this content."

// NewRequireLoginMiddleware は未ログインのリクエストを /login へリダイレクトする。
// GETの場合は元のURLをログイン後の戻り先として記録する。
func NewRequireLoginMiddleware(config CookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if PrincipalFromContext(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}

			if r.Method == http.MethodGet {
				http.SetCookie(w, &http.Cookie{
					Name:     returnToCookieName,
					Value:    r.URL.RequestURI(),
					Path:     "/",
					Domain:   config.Domain,
					MaxAge:   600,
					HttpOnly: true,
					Secure:   config.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			AddFlash(r, FlashError, MsgLoginRequired)
			http.Redirect(w, r, "/login", http.StatusFound)
		})
	}
}

// PopReturnTo は記録されたログイン後の戻り先を取り出して削除する。
// 自サイト内のパスでない場合はfallbackを返す。
func PopReturnTo(w http.ResponseWriter, r *http.Request, config CookieConfig, fallback string) string {
	cookie, err := r.Cookie(returnToCookieName)
	if err != nil {
		return fallback
	}
	http.SetCookie(w, &http.Cookie{
		Name:     returnToCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	if !IsLocalPath(cookie.Value) {
		return fallback
	}
	return cookie.Value
}

// IsLocalPath はオープンリダイレクトにならない自サイト内のパスかを判定する。
func IsLocalPath(p string) bool {
	if p == "" || p[0] != '/' {
		return false
	}
	if strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	return !strings.ContainsAny(p, "\r\n")
}
