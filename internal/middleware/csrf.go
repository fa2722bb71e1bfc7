package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
)

const (
	// csrfCookieName はCSRFトークンを保持するCookieの名前。
	csrfCookieName = "csrf_token"

	// csrfHeaderName はリクエストヘッダーからCSRFトークンを読み取る際のヘッダー名。
	csrfHeaderName = "X-CSRF-Token"

	// CSRFFormField はフォームに埋め込むCSRFトークンの項目名。
	CSRFFormField = "_csrf"

	// multipartMemory はmultipartフォームをメモリに保持する上限。超過分は一時ファイルになる。
	multipartMemory = 8 << 20

	// maxURLEncodedBody はURLエンコード形式の本文の上限。net/httpの既定値に合わせる。
	maxURLEncodedBody = 10 << 20
)

var csrfContextKey = contextKey("csrf_token")

// CSRFConfig はCSRFミドルウェアの設定。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
	ErrorPage    ErrorPage
}

// NewCSRFMiddleware はCSRFトークンの生成・検証ミドルウェアを返す。
// トークンはCookieに保持し、テンプレートから参照できるようコンテキストにも格納する。
// 状態変更メソッド（POST, PUT, PATCH, DELETE）は、フォーム項目 _csrf または
// X-CSRF-Token ヘッダーの値がCookieと一致することを必須とする。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	page := config.ErrorPage
	if page == nil {
		page = PlainErrorPage
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				token := ensureCSRFCookie(w, r, config)
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfContextKey, token)))
				return
			}

			cookieToken, err := r.Cookie(csrfCookieName)
			if err != nil || cookieToken.Value == "" {
				slog.Warn("CSRF validation failed: missing cookie token",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				page(w, r, http.StatusForbidden, "Your form has expired. Please go back and try again.")
				return
			}

			submitted, err := submittedCSRFToken(r)
			if err != nil {
				var mbe *http.MaxBytesError
				if errors.As(err, &mbe) {
					page(w, r, http.StatusRequestEntityTooLarge, PublicMessage(err))
					return
				}
				slog.Warn("CSRF validation failed: unreadable form",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				page(w, r, http.StatusBadRequest, "The submitted form could not be read.")
				return
			}

			if submitted == "" || subtle.ConstantTimeCompare([]byte(cookieToken.Value), []byte(submitted)) != 1 {
				slog.Warn("CSRF validation failed: token mismatch",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				page(w, r, http.StatusForbidden, "Your form has expired. Please go back and try again.")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfContextKey, cookieToken.Value)))
		})
	}
}

// CSRFToken はフォームに埋め込むトークンを返す。
func CSRFToken(ctx context.Context) string {
	token, _ := ctx.Value(csrfContextKey).(string)
	return token
}

// submittedCSRFToken はヘッダーまたはフォーム項目からトークンを読み取る。
// フォームの解析結果はハンドラーでもそのまま使われる。
func submittedCSRFToken(r *http.Request) (string, error) {
	if token := r.Header.Get(csrfHeaderName); token != "" {
		return token, nil
	}

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return "", err
		}
	case "application/x-www-form-urlencoded":
		if err := parseURLEncodedBody(r); err != nil {
			return "", err
		}
	default:
		return "", nil
	}
	return r.PostFormValue(CSRFFormField), nil
}

// parseURLEncodedBody はフォームを解析する。
// net/httpはPOST・PUT・PATCH以外の本文を読まないため、
// _methodでDELETEに置き換えられたフォームはここで本文を読む。
func parseURLEncodedBody(r *http.Request) error {
	if r.PostForm == nil && r.Body != nil {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			b, err := io.ReadAll(io.LimitReader(r.Body, maxURLEncodedBody+1))
			if err != nil {
				return err
			}
			if int64(len(b)) > maxURLEncodedBody {
				return errors.New("url-encoded form too large")
			}
			vs, err := url.ParseQuery(string(b))
			if err != nil {
				return err
			}
			r.PostForm = vs
		}
	}
	return r.ParseForm()
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// ensureCSRFCookie はCSRFトークンCookieが未設定の場合に設定し、トークンを返す。
func ensureCSRFCookie(w http.ResponseWriter, r *http.Request, config CSRFConfig) string {
	if cookie, err := r.Cookie(csrfCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	token, err := generateCSRFToken()
	if err != nil {
		slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
		return ""
	}

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   86400, // 24時間
		HttpOnly: true,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return token
}

// generateCSRFToken は暗号的に安全なCSRFトークンを生成する。
func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
