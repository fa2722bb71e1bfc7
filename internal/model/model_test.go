package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewRatingReport(t *testing.T) {
	tests := []struct {
		name    string
		ratings []int
		total   int
		average float64
		dist    map[int]int
	}{
		{
			name:    "mixed ratings",
			ratings: []int{5, 5, 4, 3},
			total:   4,
			average: 4.3,
			dist:    map[int]int{5: 2, 4: 1, 3: 1, 2: 0, 1: 0},
		},
		{
			name:    "no reviews",
			ratings: nil,
			total:   0,
			average: 0,
			dist:    map[int]int{5: 0, 4: 0, 3: 0, 2: 0, 1: 0},
		},
		{
			name:    "unresolved ratings are skipped",
			ratings: []int{0, 2, 9, 4},
			total:   2,
			average: 3,
			dist:    map[int]int{5: 0, 4: 1, 3: 0, 2: 1, 1: 0},
		},
		{
			name:    "rounds to one decimal",
			ratings: []int{1, 2, 2},
			total:   3,
			average: 1.7,
			dist:    map[int]int{5: 0, 4: 0, 3: 0, 2: 2, 1: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reviews := make([]*Review, 0, len(tt.ratings)+1)
			for _, r := range tt.ratings {
				reviews = append(reviews, &Review{Rating: r})
			}
			reviews = append(reviews, nil)

			got := NewRatingReport("l-1", reviews)
			if got.Total != tt.total {
				t.Errorf("Total = %d, want %d", got.Total, tt.total)
			}
			if got.Average != tt.average {
				t.Errorf("Average = %v, want %v", got.Average, tt.average)
			}
			for star, want := range tt.dist {
				if got.Distribution[star] != want {
					t.Errorf("Distribution[%d] = %d, want %d", star, got.Distribution[star], want)
				}
			}
		})
	}
}

func TestRatingReport_Stars_DescendingOrder(t *testing.T) {
	report := NewRatingReport("l-1", []*Review{{Rating: 5}, {Rating: 1}})
	stars := report.Stars()
	if len(stars) != 5 {
		t.Fatalf("len(stars) = %d, want 5", len(stars))
	}
	if stars[0].Stars != 5 || stars[0].Count != 1 {
		t.Errorf("stars[0] = %+v, want {5 1}", stars[0])
	}
	if stars[4].Stars != 1 || stars[4].Count != 1 {
		t.Errorf("stars[4] = %+v, want {1 1}", stars[4])
	}
}

func TestAppError_IsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("listing.Delete: %w", NewListingNotFoundError())

	if !errors.Is(wrapped, ErrNotFound) {
		t.Error("expected wrapped not-found error to match ErrNotFound")
	}
	if errors.Is(wrapped, ErrForbidden) {
		t.Error("not-found error must not match ErrForbidden")
	}

	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatal("expected errors.As to find *AppError")
	}
	if appErr.Message != "Listing You Requested For Does Not Exist!" {
		t.Errorf("Message = %q", appErr.Message)
	}
}

func TestAppError_FieldMessage(t *testing.T) {
	err := NewValidationError(
		FieldError{Field: "title", Message: "Title is required."},
		FieldError{Field: "price", Message: "Price must be at least 0."},
	)

	if got := err.FieldMessage("price"); got != "Price must be at least 0." {
		t.Errorf("FieldMessage(price) = %q", got)
	}
	if got := err.FieldMessage("country"); got != "" {
		t.Errorf("FieldMessage(country) = %q, want empty", got)
	}
	if err.Error() != "[VALIDATION_ERROR] title: Title is required.; price: Price must be at least 0." {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestNewDuplicateKeyError_Messages(t *testing.T) {
	if got := NewDuplicateKeyError("email").Message; got != "This email is already registered" {
		t.Errorf("email message = %q", got)
	}
	if got := NewDuplicateKeyError("username").Message; got != "This username is already taken" {
		t.Errorf("username message = %q", got)
	}
	if !errors.Is(NewDuplicateKeyError("email"), ErrDuplicateKey) {
		t.Error("expected ErrDuplicateKey match")
	}
}

func TestListing_WithDisplayDefaults(t *testing.T) {
	l := &Listing{ID: "l-1", Price: 120}
	got := l.WithDisplayDefaults()

	if got.Title != PlaceholderTitle || got.Location != PlaceholderLocation ||
		got.Country != PlaceholderCountry || got.Description != PlaceholderDescription {
		t.Errorf("placeholders not applied: %+v", got)
	}
	if l.Title != "" {
		t.Error("original listing must not be modified")
	}
	if got.Price != 120 {
		t.Errorf("Price = %v, want 120", got.Price)
	}
}

func TestOwnerListings_OwnerName(t *testing.T) {
	if got := (&OwnerListings{}).OwnerName(); got != PlaceholderHost {
		t.Errorf("OwnerName() = %q, want %q", got, PlaceholderHost)
	}
	o := &OwnerListings{Owner: &User{Username: "alice"}}
	if got := o.OwnerName(); got != "alice" {
		t.Errorf("OwnerName() = %q, want alice", got)
	}
}
