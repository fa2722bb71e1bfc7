package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/wanderlust/internal/middleware"
	"github.com/hitoshi/wanderlust/internal/model"
)

const (
	MsgReviewCreated = "New Review Created!"
	MsgReviewDeleted = "Review Deleted!"
)

// ReviewServiceInterface はレビューハンドラーが必要とするサービスインターフェース。
type ReviewServiceInterface interface {
	Create(ctx context.Context, p *model.Principal, listingID string, in model.ReviewInput) (*model.Review, error)
	Delete(ctx context.Context, p *model.Principal, listingID, reviewID string) error
	RatingReport(ctx context.Context, p *model.Principal, listingID string) (*model.Listing, model.RatingReport, error)
}

// ReviewHandler はレビューと評価集計のHTTPハンドラー。
type ReviewHandler struct {
	service ReviewServiceInterface
	render  *Renderer
}

// NewReviewHandler はReviewHandlerを生成する。
func NewReviewHandler(service ReviewServiceInterface, render *Renderer) *ReviewHandler {
	return &ReviewHandler{service: service, render: render}
}

type reportView struct {
	Listing *model.Listing
	Report  model.RatingReport
}

// Create はレビューを投稿する。入力エラーは通知にして物件画面へ戻す。
// POST /listings/{id}/reviews
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "id")
	if err := parseForm(r); err != nil {
		handleServiceError(w, r, h.render.ErrorPage, err, listingID)
		return
	}
	in := model.ReviewInput{
		Rating:  r.PostFormValue("rating"),
		Comment: r.PostFormValue("comment"),
	}

	_, err := h.service.Create(r.Context(), middleware.PrincipalFromContext(r.Context()), listingID, in)
	var appErr *model.AppError
	switch {
	case err == nil:
		middleware.AddFlash(r, middleware.FlashSuccess, MsgReviewCreated)
	case errors.Is(err, model.ErrValidation) && errors.As(err, &appErr):
		middleware.AddFlash(r, middleware.FlashError, joinFieldMessages(appErr))
	default:
		handleServiceError(w, r, h.render.ErrorPage, err, listingID)
		return
	}
	http.Redirect(w, r, "/listings/"+listingID, http.StatusFound)
}

// Delete はレビューを削除する。作成者のみ。
// DELETE /listings/{id}/reviews/{reviewId}
func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "id")
	reviewID := chi.URLParam(r, "reviewId")
	if err := h.service.Delete(r.Context(), middleware.PrincipalFromContext(r.Context()), listingID, reviewID); err != nil {
		handleServiceError(w, r, h.render.ErrorPage, err, listingID)
		return
	}
	middleware.AddFlash(r, middleware.FlashSuccess, MsgReviewDeleted)
	http.Redirect(w, r, "/listings/"+listingID, http.StatusFound)
}

// Report は評価集計を表示する。所有者のみ。
// GET /listings/{id}/report
func (h *ReviewHandler) Report(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "id")
	l, report, err := h.service.RatingReport(r.Context(), middleware.PrincipalFromContext(r.Context()), listingID)
	if err != nil {
		handleServiceError(w, r, h.render.ErrorPage, err, listingID)
		return
	}
	h.render.Render(w, r, http.StatusOK, pageReport, reportView{Listing: l, Report: report})
}

func joinFieldMessages(e *model.AppError) string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, " ")
}
