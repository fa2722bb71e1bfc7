package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"

	"github.com/hitoshi/wanderlust/internal/model"
)

func TestTranslateUniqueViolation(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantField string
		wantNil   bool
	}{
		{
			name:      "email index",
			err:       &pq.Error{Code: "23505", Constraint: "users_email_key"},
			wantField: "email",
		},
		{
			name:      "username index wrapped",
			err:       fmt.Errorf("exec: %w", &pq.Error{Code: "23505", Constraint: "users_username_key"}),
			wantField: "username",
		},
		{
			name:      "unknown constraint",
			err:       &pq.Error{Code: "23505", Constraint: "other_key"},
			wantField: "value",
		},
		{
			name:    "check violation is not a duplicate",
			err:     &pq.Error{Code: "23514"},
			wantNil: true,
		},
		{
			name:    "plain error",
			err:     errors.New("connection refused"),
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateUniqueViolation(tt.err)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if !errors.Is(got, model.ErrDuplicateKey) {
				t.Fatalf("expected DuplicateKey, got %v", got)
			}
			var appErr *model.AppError
			errors.As(got, &appErr)
			if appErr.Fields[0].Field != tt.wantField {
				t.Errorf("field = %q, want %q", appErr.Fields[0].Field, tt.wantField)
			}
		})
	}
}
