package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/wanderlust/internal/middleware"
	"github.com/hitoshi/wanderlust/internal/model"
)

// handleServiceError はサービス層のエラーを画面遷移に変換する。
//
//   - Forbidden: 通知を付けて対象の物件（listingIDが空なら一覧）へリダイレクト
//   - NotFound / InvalidID: 通知を付けて物件一覧へリダイレクト
//   - それ以外: ログに詳細を記録し、エラー画面を表示
func handleServiceError(w http.ResponseWriter, r *http.Request, page middleware.ErrorPage, err error, listingID string) {
	var appErr *model.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case model.ErrCodeForbidden:
			middleware.AddFlash(r, middleware.FlashError, appErr.Message)
			http.Redirect(w, r, listingPath(listingID), http.StatusFound)
			return
		case model.ErrCodeNotFound, model.ErrCodeInvalidID:
			middleware.AddFlash(r, middleware.FlashError, appErr.Message)
			http.Redirect(w, r, "/listings", http.StatusFound)
			return
		}
	}

	status := middleware.StatusForError(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	page(w, r, status, middleware.PublicMessage(err))
}

// fieldErrors はValidationエラーの項目別メッセージを返す。
func fieldErrors(err error) map[string]string {
	var appErr *model.AppError
	if !errors.As(err, &appErr) {
		return nil
	}
	out := make(map[string]string, len(appErr.Fields))
	for _, f := range appErr.Fields {
		if _, ok := out[f.Field]; !ok {
			out[f.Field] = f.Message
		}
	}
	return out
}

// isFormError はフォームを再表示すべき入力エラーかを返す。
func isFormError(err error) bool {
	return errors.Is(err, model.ErrValidation) ||
		errors.Is(err, model.ErrMissingImage) ||
		errors.Is(err, model.ErrDuplicateKey)
}

func listingPath(id string) string {
	if id == "" {
		return "/listings"
	}
	return "/listings/" + id
}
