package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/wanderlust/internal/auth"
	"github.com/hitoshi/wanderlust/internal/middleware"
	"github.com/hitoshi/wanderlust/internal/model"
)

const (
	MsgSignedUp  = "Welcome To Wanderlust!!"
	MsgLoggedIn  = "Welcome To Wanderlust !!!"
	MsgLoggedOut = "Logged Out Successfully!"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*model.Session, *model.User, error)
	Login(ctx context.Context, username, password string) (*model.Session, *model.User, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandler はアカウント作成・ログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	render  *Renderer
	cookies middleware.CookieConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, render *Renderer, cookies middleware.CookieConfig) *AuthHandler {
	return &AuthHandler{service: service, render: render, cookies: cookies}
}

type authFormView struct {
	Username string
	Email    string
	Errors   map[string]string
}

// SignupForm は登録フォームを表示する。
// GET /signup
func (h *AuthHandler) SignupForm(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, r, http.StatusOK, pageSignup, authFormView{})
}

// Signup はアカウントを作成してログインする。入力エラーはフォームを再表示する。
// POST /signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		handleServiceError(w, r, h.render.ErrorPage, err, "")
		return
	}
	in := auth.RegisterInput{
		Username: r.PostFormValue("username"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}

	session, user, err := h.service.Register(r.Context(), in)
	if err != nil {
		if isFormError(err) {
			h.render.Render(w, r, middleware.StatusForError(err), pageSignup, authFormView{
				Username: in.Username,
				Email:    in.Email,
				Errors:   fieldErrors(err),
			})
			return
		}
		handleServiceError(w, r, h.render.ErrorPage, err, "")
		return
	}

	middleware.SetSessionCookie(w, h.cookies, session)
	slog.Info("user signed up", slog.String("user_id", user.ID))
	middleware.AddFlash(r, middleware.FlashSuccess, MsgSignedUp)
	http.Redirect(w, r, middleware.PopReturnTo(w, r, h.cookies, "/listings"), http.StatusFound)
}

// LoginForm はログインフォームを表示する。
// GET /login
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, r, http.StatusOK, pageLogin, authFormView{})
}

// Login は認証してセッションを開始する。失敗時は通知を付けてフォームへ戻す。
// ログイン前に要求されたページがあればそこへリダイレクトする。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		handleServiceError(w, r, h.render.ErrorPage, err, "")
		return
	}

	session, _, err := h.service.Login(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if errors.Is(err, model.ErrInvalidCredentials) {
		middleware.AddFlash(r, middleware.FlashError, middleware.PublicMessage(err))
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	if err != nil {
		handleServiceError(w, r, h.render.ErrorPage, err, "")
		return
	}

	middleware.SetSessionCookie(w, h.cookies, session)
	middleware.AddFlash(r, middleware.FlashSuccess, MsgLoggedIn)
	http.Redirect(w, r, middleware.PopReturnTo(w, r, h.cookies, "/listings"), http.StatusFound)
}

// Logout はセッションを破棄する。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sid := middleware.SessionIDFromRequest(r); sid != "" {
		if err := h.service.Logout(r.Context(), sid); err != nil {
			handleServiceError(w, r, h.render.ErrorPage, err, "")
			return
		}
	}
	middleware.ClearSessionCookie(w, h.cookies)
	middleware.AddFlash(r, middleware.FlashSuccess, MsgLoggedOut)
	http.Redirect(w, r, "/listings", http.StatusFound)
}
