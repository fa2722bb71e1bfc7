package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/wanderlust/internal/middleware"
	"github.com/hitoshi/wanderlust/internal/model"
	"github.com/hitoshi/wanderlust/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Profile はログイン中ユーザーの物件とレビューを返す。
	Profile(ctx context.Context, p *model.Principal) (*user.Profile, error)
}

// UserHandler はプロフィール画面のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	render  *Renderer
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, render *Renderer) *UserHandler {
	return &UserHandler{service: service, render: render}
}

// Profile は自分の物件とレビューを表示する。
// GET /profile
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.Profile(r.Context(), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.render.ErrorPage, err, "")
		return
	}
	h.render.Render(w, r, http.StatusOK, pageProfile, profile)
}
