// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/wanderlust/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	principalContextKey = contextKey("principal")
	requestContextKey   = contextKey("request_state")
)

// requestState はミドルウェア間で共有するリクエスト単位の状態。
// ロギングミドルウェアが生成し、内側のミドルウェアが書き込む。
type requestState struct {
	userID string
}

// PrincipalResolver はセッションIDから現在のユーザーを解決する。
// auth.Serviceが実装する。
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, sessionID string) (*model.Principal, error)
}

// CookieConfig はアプリケーションが発行するCookieの共通設定。
type CookieConfig struct {
	Secure bool
	Domain string
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 有効なセッションであれば現在のユーザーをリクエストコンテキストに注入する。
// セッションが無い・無効な場合は匿名リクエストとしてそのまま通す。
func NewSessionMiddleware(resolver PrincipalResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			p, err := resolver.ResolvePrincipal(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to resolve session",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if p == nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
		})
	}
}

// PrincipalFromContext はリクエストコンテキストから現在のユーザーを取得する。
// 未ログインの場合はnilを返す。
func PrincipalFromContext(ctx context.Context) *model.Principal {
	p, _ := ctx.Value(principalContextKey).(*model.Principal)
	return p
}

// ContextWithPrincipal はコンテキストに現在のユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成でも使用する。
func ContextWithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	if st, ok := ctx.Value(requestContextKey).(*requestState); ok && p != nil {
		st.userID = p.ID
	}
	return context.WithValue(ctx, principalContextKey, p)
}

// SessionIDFromRequest はリクエストのセッションCookieの値を返す。
func SessionIDFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// SetSessionCookie はセッションCookieを設定する。
func SetSessionCookie(w http.ResponseWriter, cfg CookieConfig, session *model.Session) {
	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie はセッションCookieを削除する。
func ClearSessionCookie(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
