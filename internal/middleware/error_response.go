package middleware

import (
	"errors"
	"net/http"

	"github.com/hitoshi/wanderlust/internal/model"
)

// GenericErrorMessage は想定外のエラーでユーザーに表示するメッセージ。
// 詳細はログのみに記録する。
const GenericErrorMessage = "Something went wrong. Please try again later."

// ErrorPage はエラー画面を描画する関数。handlerパッケージのテンプレート描画を注入する。
type ErrorPage func(w http.ResponseWriter, r *http.Request, status int, message string)

// PlainErrorPage はテキストでエラーを返すErrorPage。
func PlainErrorPage(w http.ResponseWriter, r *http.Request, status int, message string) {
	http.Error(w, message, status)
}

// StatusForError はエラーの種類に対応するHTTPステータスを返す。
// AppError以外はすべてストアのエラーとして500とする。
func StatusForError(err error) int {
	var appErr *model.AppError
	if !errors.As(err, &appErr) {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusInternalServerError
	}
	switch appErr.Code {
	case model.ErrCodeValidation, model.ErrCodeInvalidID, model.ErrCodeMissingImage:
		return http.StatusBadRequest
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateKey:
		return http.StatusConflict
	case model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage はユーザーに表示してよいエラーメッセージを返す。
func PublicMessage(err error) string {
	var appErr *model.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return "The uploaded file is too large."
	}
	return GenericErrorMessage
}
