package middleware

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
)

const flashCookieName = "flash"

// 通知の種類。
const (
	FlashSuccess = "success"
	FlashInfo    = "info"
	FlashError   = "error"
)

var flashContextKey = contextKey("flash")

// FlashMessage は次の画面で1回だけ表示する通知。
type FlashMessage struct {
	Kind string `json:"k"`
	Text string `json:"t"`
}

// flashState はリクエスト中の通知の受け渡し状態。
type flashState struct {
	incoming []FlashMessage
	present  bool
	consumed bool
	outgoing []FlashMessage
	config   CookieConfig
}

// flashWriter はレスポンスヘッダー送信直前に通知Cookieを書き込む。
type flashWriter struct {
	http.ResponseWriter
	state       *flashState
	wroteHeader bool
}

func (fw *flashWriter) WriteHeader(code int) {
	if !fw.wroteHeader {
		fw.wroteHeader = true
		fw.state.writeCookie(fw.ResponseWriter)
	}
	fw.ResponseWriter.WriteHeader(code)
}

func (fw *flashWriter) Write(b []byte) (int, error) {
	if !fw.wroteHeader {
		fw.WriteHeader(http.StatusOK)
	}
	return fw.ResponseWriter.Write(b)
}

// Unwrap はhttp.ResponseControllerのために元のResponseWriterを返す。
func (fw *flashWriter) Unwrap() http.ResponseWriter {
	return fw.ResponseWriter
}

// NewFlashMiddleware は1回限りの通知をCookieで受け渡すミドルウェアを返す。
// 通知は読み出された時点で消費され、読み出されなかった通知は次のリクエストへ持ち越す。
func NewFlashMiddleware(config CookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := &flashState{config: config}
			if cookie, err := r.Cookie(flashCookieName); err == nil && cookie.Value != "" {
				st.present = true
				st.incoming = decodeFlash(cookie.Value)
			}

			ctx := context.WithValue(r.Context(), flashContextKey, st)
			next.ServeHTTP(&flashWriter{ResponseWriter: w, state: st}, r.WithContext(ctx))
		})
	}
}

// AddFlash は次の画面に表示する通知を追加する。
func AddFlash(r *http.Request, kind, text string) {
	st, ok := r.Context().Value(flashContextKey).(*flashState)
	if !ok {
		return
	}
	st.outgoing = append(st.outgoing, FlashMessage{Kind: kind, Text: text})
}

// Flashes は受け取った通知を取り出して消費する。
func Flashes(r *http.Request) []FlashMessage {
	st, ok := r.Context().Value(flashContextKey).(*flashState)
	if !ok || st.consumed {
		return nil
	}
	st.consumed = true
	return st.incoming
}

// writeCookie は未消費の通知と新しい通知を合わせてCookieに書き込む。
// 書き込む通知が無く、受け取った通知がある場合はCookieを削除する。
func (st *flashState) writeCookie(w http.ResponseWriter) {
	var pending []FlashMessage
	if !st.consumed {
		pending = append(pending, st.incoming...)
	}
	pending = append(pending, st.outgoing...)

	if len(pending) == 0 {
		if st.present {
			http.SetCookie(w, st.cookie("", -1))
		}
		return
	}
	if !st.consumed && len(st.outgoing) == 0 && len(st.incoming) > 0 {
		// 受け取った通知がそのまま残っている
		return
	}

	value, err := encodeFlash(pending)
	if err != nil {
		slog.Error("failed to encode flash messages", slog.String("error", err.Error()))
		return
	}
	http.SetCookie(w, st.cookie(value, 0))
}

func (st *flashState) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     flashCookieName,
		Value:    value,
		Path:     "/",
		Domain:   st.config.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   st.config.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func encodeFlash(msgs []FlashMessage) (string, error) {
	b, err := json.Marshal(msgs)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// decodeFlash は壊れたCookieを空として扱う。
func decodeFlash(value string) []FlashMessage {
	b, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil
	}
	var msgs []FlashMessage
	if err := json.Unmarshal(b, &msgs); err != nil {
		return nil
	}
	return msgs
}
