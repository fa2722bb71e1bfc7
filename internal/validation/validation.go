// Package validation は物件・レビュー・アカウント入力の検証を行う。
// 検証は純粋関数で、ストアには触れない。
package validation

import (
	"math"
	"net/mail"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/wanderlust/internal/model"
)

// 価格と評価の許容範囲。
const (
	MinPrice  = 0
	MaxPrice  = 100000
	MinRating = 1
	MaxRating = 5

	maxTitleLen       = 200
	maxLocationLen    = 200
	maxCountryLen     = 100
	maxEmailLen       = 320
	minUsernameLen    = 3
	maxUsernameLen    = 30
	minPasswordLen    = 6
	maxPasswordBytes  = 72
	maxDescriptionLen = 5000
)

// Listing は物件入力を検証し、正規化した項目を返す。
// 失敗時は全項目分のFieldErrorを持つValidationエラーを返す。
func Listing(in model.ListingInput) (model.ListingFields, error) {
	var errs []model.FieldError
	out := model.ListingFields{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Location:    strings.TrimSpace(in.Location),
		Country:     strings.TrimSpace(in.Country),
	}

	if out.Title == "" {
		errs = append(errs, model.FieldError{Field: "title", Message: "Title is required."})
	} else if utf8.RuneCountInString(out.Title) > maxTitleLen {
		errs = append(errs, model.FieldError{Field: "title", Message: "Title must be at most 200 characters."})
	}
	if out.Description == "" {
		errs = append(errs, model.FieldError{Field: "description", Message: "Description is required."})
	} else if utf8.RuneCountInString(out.Description) > maxDescriptionLen {
		errs = append(errs, model.FieldError{Field: "description", Message: "Description must be at most 5000 characters."})
	}
	if out.Location == "" {
		errs = append(errs, model.FieldError{Field: "location", Message: "Location is required."})
	} else if utf8.RuneCountInString(out.Location) > maxLocationLen {
		errs = append(errs, model.FieldError{Field: "location", Message: "Location must be at most 200 characters."})
	}
	if out.Country == "" {
		errs = append(errs, model.FieldError{Field: "country", Message: "Country is required."})
	} else if utf8.RuneCountInString(out.Country) > maxCountryLen {
		errs = append(errs, model.FieldError{Field: "country", Message: "Country must be at most 100 characters."})
	}

	price, msg := parsePrice(in.Price)
	if msg != "" {
		errs = append(errs, model.FieldError{Field: "price", Message: msg})
	}
	out.Price = price

	if len(errs) > 0 {
		return model.ListingFields{}, model.NewValidationError(errs...)
	}
	return out, nil
}

func parsePrice(raw string) (float64, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, "Price is required."
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, "Price must be a number."
	}
	if v < MinPrice {
		return 0, "Price must be at least 0."
	}
	if v > MaxPrice {
		return 0, "Price must be at most 100000."
	}
	return v, ""
}

// Review はレビュー入力を検証する。評価は1〜5の整数のみ受け付ける。
func Review(in model.ReviewInput) (model.ReviewFields, error) {
	var errs []model.FieldError
	out := model.ReviewFields{Comment: strings.TrimSpace(in.Comment)}

	raw := strings.TrimSpace(in.Rating)
	switch rating, err := strconv.Atoi(raw); {
	case raw == "":
		errs = append(errs, model.FieldError{Field: "rating", Message: "Rating is required."})
	case err != nil:
		errs = append(errs, model.FieldError{Field: "rating", Message: "Rating must be a whole number."})
	case rating < MinRating || rating > MaxRating:
		errs = append(errs, model.FieldError{Field: "rating", Message: "Rating must be between 1 and 5."})
	default:
		out.Rating = rating
	}

	if out.Comment == "" {
		errs = append(errs, model.FieldError{Field: "comment", Message: "Comment is required."})
	}

	if len(errs) > 0 {
		return model.ReviewFields{}, model.NewValidationError(errs...)
	}
	return out, nil
}

// Signup は新規登録の入力を検証する。emailは小文字に正規化する。
func Signup(username, email, password string) (string, string, error) {
	var errs []model.FieldError
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if n := utf8.RuneCountInString(username); n < minUsernameLen || n > maxUsernameLen {
		errs = append(errs, model.FieldError{Field: "username", Message: "Username must be 3 to 30 characters."})
	} else if strings.ContainsAny(username, " \t\r\n") {
		errs = append(errs, model.FieldError{Field: "username", Message: "Username must not contain spaces."})
	}

	if utf8.RuneCountInString(email) > maxEmailLen {
		errs = append(errs, model.FieldError{Field: "email", Message: "Email must be at most 320 characters."})
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		errs = append(errs, model.FieldError{Field: "email", Message: "Please enter a valid email address."})
	}

	if utf8.RuneCountInString(password) < minPasswordLen {
		errs = append(errs, model.FieldError{Field: "password", Message: "Password must be at least 6 characters."})
	} else if len(password) > maxPasswordBytes {
		// bcryptは72バイトを超える入力を扱えない
		errs = append(errs, model.FieldError{Field: "password", Message: "Password is too long."})
	}

	if len(errs) > 0 {
		return "", "", model.NewValidationError(errs...)
	}
	return username, email, nil
}
