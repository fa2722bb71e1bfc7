// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// AppError は統一エラーフォーマットを表す。
// 画面に表示するメッセージと原因カテゴリを含む。
// errors.Is はCodeが一致するかで判定するため、下の番兵値と比較できる。
type AppError struct {
	Code     string       // エラーコード
	Message  string       // ユーザー向けメッセージ
	Category string       // カテゴリ: auth, validation, listing, review, system
	Fields   []FieldError // バリデーションエラーのみ
}

// FieldError は入力項目ごとのバリデーションエラーを表す。
type FieldError struct {
	Field   string
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *AppError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, strings.Join(parts, "; "))
}

// Is はエラーコードの一致で比較する。
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// FieldMessage は指定項目の最初のエラーメッセージを返す。無ければ空文字。
func (e *AppError) FieldMessage(field string) string {
	for _, f := range e.Fields {
		if f.Field == field {
			return f.Message
		}
	}
	return ""
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInvalidID          = "INVALID_ID"
	ErrCodeMissingImage       = "MISSING_IMAGE"
	ErrCodeDuplicateKey       = "DUPLICATE_KEY"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
)

// errors.Is 用の番兵値。
var (
	ErrValidation         = &AppError{Code: ErrCodeValidation}
	ErrForbidden          = &AppError{Code: ErrCodeForbidden}
	ErrNotFound           = &AppError{Code: ErrCodeNotFound}
	ErrInvalidID          = &AppError{Code: ErrCodeInvalidID}
	ErrMissingImage       = &AppError{Code: ErrCodeMissingImage}
	ErrDuplicateKey       = &AppError{Code: ErrCodeDuplicateKey}
	ErrInvalidCredentials = &AppError{Code: ErrCodeInvalidCredentials}
)

// NewValidationError は入力値エラーを生成する。
func NewValidationError(fields ...FieldError) *AppError {
	return &AppError{
		Code:     ErrCodeValidation,
		Message:  "Please correct the highlighted fields.",
		Category: "validation",
		Fields:   fields,
	}
}

// NewForbiddenError は権限エラーを生成する。messageは画面にそのまま表示される。
func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeForbidden,
		Message:  message,
		Category: "auth",
	}
}

// NewListingNotFoundError はリスティング未検出エラーを生成する。
func NewListingNotFoundError() *AppError {
	return &AppError{
		Code:     ErrCodeNotFound,
		Message:  "Listing You Requested For Does Not Exist!",
		Category: "listing",
	}
}

// NewReviewNotFoundError はレビュー未検出エラーを生成する。
func NewReviewNotFoundError() *AppError {
	return &AppError{
		Code:     ErrCodeNotFound,
		Message:  "Review You Requested For Does Not Exist!",
		Category: "review",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *AppError {
	return &AppError{
		Code:     ErrCodeNotFound,
		Message:  "User not found. Please log in again.",
		Category: "auth",
	}
}

// NewInvalidIDError はIDの形式が不正な場合のエラーを生成する。
func NewInvalidIDError(id string) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidID,
		Message:  fmt.Sprintf("Invalid id: %q", id),
		Category: "validation",
	}
}

// NewMissingImageError は画像が添付されていない場合のエラーを生成する。
func NewMissingImageError() *AppError {
	return &AppError{
		Code:     ErrCodeMissingImage,
		Message:  "An image is required for a new listing.",
		Category: "validation",
		Fields:   []FieldError{{Field: "image", Message: "An image is required."}},
	}
}

// NewDuplicateKeyError は一意制約違反エラーを生成する。fieldは重複した項目名。
func NewDuplicateKeyError(field string) *AppError {
	msg := "This value is already registered"
	switch field {
	case "email":
		msg = "This email is already registered"
	case "username":
		msg = "This username is already taken"
	}
	return &AppError{
		Code:     ErrCodeDuplicateKey,
		Message:  msg,
		Category: "auth",
		Fields:   []FieldError{{Field: field, Message: msg}},
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
func NewInvalidCredentialsError() *AppError {
	return &AppError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Password or username is incorrect",
		Category: "auth",
	}
}
