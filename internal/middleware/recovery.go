package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// NewRecoveryMiddleware はpanic発生時にプロセスクラッシュを防ぎ、
// 500のエラー画面を返すミドルウェアを生成する。
func NewRecoveryMiddleware(page ErrorPage) func(next http.Handler) http.Handler {
	if page == nil {
		page = PlainErrorPage
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					slog.Error("panic recovered",
						slog.Any("panic", rec),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("stack", string(debug.Stack())),
					)
					page(w, r, http.StatusInternalServerError, GenericErrorMessage)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
