package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/hitoshi/wanderlust/internal/guard"
	"github.com/hitoshi/wanderlust/internal/middleware"
	"github.com/hitoshi/wanderlust/internal/model"
)

const testListingID = "8a3c1e56-2f0b-4d7e-9a55-0c6b7f1d2e34"

func newTestListingHandler(t *testing.T, svc *mockListingService) *ListingHandler {
	t.Helper()
	return NewListingHandler(svc, newTestRenderer(t), "https://wanderlust.example")
}

func sampleDetail() *model.ListingDetail {
	return &model.ListingDetail{
		Listing: (&model.Listing{
			ID:      testListingID,
			Title:   "Cosy Loft",
			Price:   1200,
			OwnerID: "owner-1",
			Image:   model.Image{URL: "/images/abc", Filename: "abc"},
		}).WithDisplayDefaults(),
		OwnerName: "host",
		Reviews: []model.ReviewDetail{
			{Review: &model.Review{ID: "r-1", Rating: 5, Comment: "Great", AuthorID: "guest-1"}, AuthorName: "guest"},
			{Review: &model.Review{ID: "r-2", Comment: model.PlaceholderComment}, AuthorName: model.PlaceholderAuthor},
		},
	}
}

// --- GET /listings ---

func TestListingHandler_Index_ParsesFilter(t *testing.T) {
	var got model.ListingFilter
	svc := &mockListingService{
		browseFn: func(ctx context.Context, filter model.ListingFilter) (*model.SearchResult, error) {
			got = filter
			return &model.SearchResult{
				Listings: []*model.Listing{
					{ID: "a", Title: "Beach House", Price: 150, Country: "Portugal"},
					{ID: "b", Title: "Cabin", Price: 250, Country: "Norway"},
				},
				Facets: model.Facets{Countries: []string{"Norway", "Portugal"}, PriceRange: model.PriceRange{Min: 150, Max: 250}},
			}, nil
		},
	}
	h := newTestListingHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/listings?minPrice=100&maxPrice=300&country=all", nil)
	w := serve(h.Index, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got.MinPrice == nil || *got.MinPrice != 100 || got.MaxPrice == nil || *got.MaxPrice != 300 {
		t.Errorf("price bounds = %v %v", got.MinPrice, got.MaxPrice)
	}
	if got.Country != "" {
		t.Errorf("country = %q, want empty for \"all\"", got.Country)
	}

	doc := parseHTML(t, w.Body)
	if cards := findAll(doc, hasClass("listing-card")); len(cards) != 2 {
		t.Errorf("listing cards = %d, want 2", len(cards))
	}
	if opts := findAll(doc, element("option")); len(opts) != 3 {
		t.Errorf("country options = %d, want 3 (all + 2)", len(opts))
	}
}

func TestParseFilter_IgnoresInvalidBounds(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"not a number", "minPrice=abc&maxPrice=1e"},
		{"negative", "minPrice=-5&maxPrice=-1"},
		{"empty", "minPrice=&maxPrice="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, _ := parseFilter(httptest.NewRequest(http.MethodGet, "/listings?"+tt.query, nil))
			if filter.MinPrice != nil || filter.MaxPrice != nil {
				t.Errorf("bounds = %v %v, want nil", filter.MinPrice, filter.MaxPrice)
			}
		})
	}
}

func TestListingHandler_Index_StoreErrorRendersGenericPage(t *testing.T) {
	svc := &mockListingService{
		browseFn: func(ctx context.Context, filter model.ListingFilter) (*model.SearchResult, error) {
			return nil, errors.New("pq: connection refused")
		},
	}
	h := newTestListingHandler(t, svc)

	w := serve(h.Index, httptest.NewRequest(http.MethodGet, "/listings", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, middleware.GenericErrorMessage) {
		t.Error("expected generic error message")
	}
	if strings.Contains(body, "connection refused") {
		t.Error("store error details must not be shown to the user")
	}
}

// --- GET /listings/search ---

func TestListingHandler_Search(t *testing.T) {
	var got string
	svc := &mockListingService{
		searchFn: func(ctx context.Context, filter model.ListingFilter) (*model.SearchResult, error) {
			got = filter.Text
			return &model.SearchResult{
				Listings: []*model.Listing{{ID: "a", Title: "Paris Flat", Location: "Paris", Country: "France"}},
			}, nil
		},
	}
	h := newTestListingHandler(t, svc)

	w := serve(h.Search, httptest.NewRequest(http.MethodGet, "/listings/search?q=+Paris+", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got != "Paris" {
		t.Errorf("search text = %q, want %q", got, "Paris")
	}
	doc := parseHTML(t, w.Body)
	if cards := findAll(doc, hasClass("listing-card")); len(cards) != 1 {
		t.Errorf("listing cards = %d, want 1", len(cards))
	}
}

// --- GET /listings/{id} ---

func TestListingHandler_Show_Visibility(t *testing.T) {
	tests := []struct {
		name          string
		principal     *model.Principal
		wantOwnerUI   bool
		wantReviewUI  bool
		wantDeleteFor int // 表示されるレビュー削除ボタンの数
	}{
		{"anonymous", nil, false, false, 0},
		{"owner", &model.Principal{ID: "owner-1", Username: "host"}, true, false, 0},
		{"review author", &model.Principal{ID: "guest-1", Username: "guest"}, false, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockListingService{
				getFn: func(ctx context.Context, id string) (*model.ListingDetail, error) {
					return sampleDetail(), nil
				},
			}
			h := newTestListingHandler(t, svc)

			req := withURLParams(httptest.NewRequest(http.MethodGet, "/listings/"+testListingID, nil), map[string]string{"id": testListingID})
			if tt.principal != nil {
				req = withPrincipal(req, tt.principal.ID, tt.principal.Username)
			}
			w := serve(h.Show, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			doc := parseHTML(t, w.Body)
			actions := formActions(doc)

			if got := containsString(actions, "/listings/"+testListingID+"?_method=DELETE"); got != tt.wantOwnerUI {
				t.Errorf("owner delete form present = %v, want %v", got, tt.wantOwnerUI)
			}
			if got := containsString(actions, "/listings/"+testListingID+"/reviews"); got != tt.wantReviewUI {
				t.Errorf("review form present = %v, want %v", got, tt.wantReviewUI)
			}
			n := 0
			for _, a := range actions {
				if strings.Contains(a, "/reviews/") {
					n++
				}
			}
			if n != tt.wantDeleteFor {
				t.Errorf("review delete forms = %d, want %d", n, tt.wantDeleteFor)
			}

			text := textOf(doc)
			if !strings.Contains(text, model.PlaceholderAuthor) || !strings.Contains(text, model.PlaceholderComment) {
				t.Error("dangling review should show placeholders")
			}
			if !strings.Contains(text, "1,200") {
				t.Errorf("formatted price missing: %s", text)
			}
		})
	}
}

func TestListingHandler_Show_MissingRedirectsToIndex(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"not found", model.NewListingNotFoundError()},
		{"invalid id", guard.ValidateID("not-a-uuid")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockListingService{
				getFn: func(ctx context.Context, id string) (*model.ListingDetail, error) {
					return nil, tt.err
				},
			}
			h := newTestListingHandler(t, svc)

			w := serve(h.Show, withURLParams(httptest.NewRequest(http.MethodGet, "/listings/x", nil), map[string]string{"id": "x"}))

			assertRedirect(t, w, "/listings")
			assertFlash(t, w, middleware.FlashError, middleware.PublicMessage(tt.err))
		})
	}
}

// --- POST /listings ---

func validListingFields() map[string]string {
	return map[string]string{
		"title":       "Cosy Loft",
		"description": "Near the river",
		"price":       "1200",
		"location":    "Paris",
		"country":     "France",
	}
}

func TestListingHandler_Create_Success(t *testing.T) {
	var gotInput model.ListingInput
	var gotImage []byte
	var gotOwner string
	svc := &mockListingService{
		createFn: func(ctx context.Context, p *model.Principal, in model.ListingInput, img *model.ImageUpload) (*model.Listing, error) {
			gotInput, gotOwner = in, p.ID
			if img == nil {
				t.Fatal("expected image upload")
			}
			gotImage, _ = io.ReadAll(img.Body)
			return &model.Listing{ID: testListingID}, nil
		},
	}
	h := newTestListingHandler(t, svc)

	req := multipartRequest(t, http.MethodPost, "/listings", validListingFields(), "loft.png", []byte("\x89PNG\r\n\x1a\nfake"))
	req = withPrincipal(req, "owner-1", "host")
	w := serve(h.Create, req)

	assertRedirect(t, w, "/listings")
	assertFlash(t, w, middleware.FlashSuccess, MsgListingCreated)
	if gotInput.Title != "Cosy Loft" || gotInput.Price != "1200" || gotInput.Country != "France" {
		t.Errorf("input = %+v", gotInput)
	}
	if gotOwner != "owner-1" {
		t.Errorf("owner = %q", gotOwner)
	}
	if !strings.HasPrefix(string(gotImage), "\x89PNG") {
		t.Errorf("image body = %q", gotImage)
	}
}

func TestListingHandler_Create_NoFilePassesNilImage(t *testing.T) {
	svc := &mockListingService{
		createFn: func(ctx context.Context, p *model.Principal, in model.ListingInput, img *model.ImageUpload) (*model.Listing, error) {
			if img != nil {
				t.Errorf("img = %+v, want nil", img)
			}
			return nil, model.NewMissingImageError()
		},
	}
	h := newTestListingHandler(t, svc)

	req := withPrincipal(multipartRequest(t, http.MethodPost, "/listings", validListingFields(), "", nil), "owner-1", "host")
	w := serve(h.Create, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "An image is required.") {
		t.Error("missing image message not shown on the form")
	}
}

func TestListingHandler_Create_ValidationRerendersForm(t *testing.T) {
	svc := &mockListingService{
		createFn: func(ctx context.Context, p *model.Principal, in model.ListingInput, img *model.ImageUpload) (*model.Listing, error) {
			return nil, model.NewValidationError(
				model.FieldError{Field: "title", Message: "Title is required."},
				model.FieldError{Field: "price", Message: "Price must be at most 100000."},
			)
		},
	}
	h := newTestListingHandler(t, svc)

	fields := validListingFields()
	fields["title"] = ""
	fields["price"] = "200000"
	req := withPrincipal(multipartRequest(t, http.MethodPost, "/listings", fields, "loft.png", []byte("x")), "owner-1", "host")
	w := serve(h.Create, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	doc := parseHTML(t, w.Body)
	msgs := findAll(doc, hasClass("invalid-feedback"))
	if len(msgs) != 2 {
		t.Fatalf("field errors = %d, want 2", len(msgs))
	}
	for _, in := range findAll(doc, element("input")) {
		if attr(in, "name") == "location" && attr(in, "value") != "Paris" {
			t.Errorf("location should be kept, got %q", attr(in, "value"))
		}
	}
}

func TestListingHandler_Create_BodyTooLarge(t *testing.T) {
	h := newTestListingHandler(t, &mockListingService{
		createFn: func(ctx context.Context, p *model.Principal, in model.ListingInput, img *model.ImageUpload) (*model.Listing, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	})

	req := withPrincipal(multipartRequest(t, http.MethodPost, "/listings", validListingFields(), "big.png", make([]byte, 4096)), "owner-1", "host")
	w := httptest.NewRecorder()
	middleware.NewBodyLimitMiddleware(1024)(middleware.NewFlashMiddleware(middleware.CookieConfig{})(http.HandlerFunc(h.Create))).ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

// --- GET /listings/{id}/edit ---

func TestListingHandler_Edit_PrefillsForm(t *testing.T) {
	svc := &mockListingService{
		getForEditFn: func(ctx context.Context, p *model.Principal, id string) (*model.Listing, error) {
			return &model.Listing{ID: id, Title: "Cosy Loft", Price: 99.5, Image: model.Image{URL: "/images/abc"}}, nil
		},
	}
	h := newTestListingHandler(t, svc)

	req := withURLParams(httptest.NewRequest(http.MethodGet, "/listings/"+testListingID+"/edit", nil), map[string]string{"id": testListingID})
	w := serve(h.Edit, withPrincipal(req, "owner-1", "host"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	doc := parseHTML(t, w.Body)
	if !containsString(formActions(doc), "/listings/"+testListingID+"?_method=PUT") {
		t.Errorf("form actions = %v", formActions(doc))
	}
	for _, in := range findAll(doc, element("input")) {
		if attr(in, "name") == "price" && attr(in, "value") != "99.5" {
			t.Errorf("price value = %q", attr(in, "value"))
		}
	}
}

func TestListingHandler_Edit_NotOwnerRedirectsToListing(t *testing.T) {
	svc := &mockListingService{
		getForEditFn: func(ctx context.Context, p *model.Principal, id string) (*model.Listing, error) {
			return nil, model.NewForbiddenError(guard.MsgNotOwner)
		},
	}
	h := newTestListingHandler(t, svc)

	req := withURLParams(httptest.NewRequest(http.MethodGet, "/listings/"+testListingID+"/edit", nil), map[string]string{"id": testListingID})
	w := serve(h.Edit, withPrincipal(req, "someone", "else"))

	assertRedirect(t, w, "/listings/"+testListingID)
	assertFlash(t, w, middleware.FlashError, guard.MsgNotOwner)
}

// --- PUT /listings/{id} ---

func TestListingHandler_Update(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLoc   string
		wantKind  string
		wantFlash string
	}{
		{"success", nil, "/listings/" + testListingID, middleware.FlashSuccess, MsgListingUpdated},
		{"not owner", model.NewForbiddenError(guard.MsgNotOwner), "/listings/" + testListingID, middleware.FlashError, guard.MsgNotOwner},
		{"missing listing", model.NewListingNotFoundError(), "/listings", middleware.FlashError, model.NewListingNotFoundError().Message},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockListingService{
				updateFn: func(ctx context.Context, p *model.Principal, id string, in model.ListingInput, img *model.ImageUpload) (*model.Listing, error) {
					if img != nil {
						t.Error("no image was attached")
					}
					if tt.err != nil {
						return nil, tt.err
					}
					return &model.Listing{ID: id}, nil
				},
			}
			h := newTestListingHandler(t, svc)

			req := multipartRequest(t, http.MethodPut, "/listings/"+testListingID, validListingFields(), "", nil)
			req = withPrincipal(withURLParams(req, map[string]string{"id": testListingID}), "owner-1", "host")
			w := serve(h.Update, req)

			assertRedirect(t, w, tt.wantLoc)
			assertFlash(t, w, tt.wantKind, tt.wantFlash)
		})
	}
}

func TestListingHandler_Update_InvalidKeepsCurrentImage(t *testing.T) {
	svc := &mockListingService{
		getForEditFn: func(ctx context.Context, p *model.Principal, id string) (*model.Listing, error) {
			return &model.Listing{ID: id, Image: model.Image{URL: "/images/abc"}}, nil
		},
		updateFn: func(ctx context.Context, p *model.Principal, id string, in model.ListingInput, img *model.ImageUpload) (*model.Listing, error) {
			return nil, model.NewValidationError(model.FieldError{Field: "title", Message: "Title is required."})
		},
	}
	h := newTestListingHandler(t, svc)

	fields := validListingFields()
	fields["title"] = ""
	req := multipartRequest(t, http.MethodPut, "/listings/"+testListingID, fields, "", nil)
	req = withPrincipal(withURLParams(req, map[string]string{"id": testListingID}), "owner-1", "host")
	w := serve(h.Update, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	doc := parseHTML(t, w.Body)
	if !strings.Contains(textOf(doc), "Title is required.") {
		t.Error("field error should be shown")
	}
	imgs := findAll(doc, func(n *html.Node) bool { return element("img")(n) && attr(n, "src") == "/images/abc" })
	if len(imgs) != 1 {
		t.Errorf("current image preview should be kept, found %d", len(imgs))
	}
}

// --- DELETE /listings/{id} ---

func TestListingHandler_Delete(t *testing.T) {
	var deleted string
	svc := &mockListingService{
		deleteFn: func(ctx context.Context, p *model.Principal, id string) error {
			deleted = id
			return nil
		},
	}
	h := newTestListingHandler(t, svc)

	req := withURLParams(httptest.NewRequest(http.MethodDelete, "/listings/"+testListingID, nil), map[string]string{"id": testListingID})
	w := serve(h.Delete, withPrincipal(req, "owner-1", "host"))

	assertRedirect(t, w, "/listings")
	assertFlash(t, w, middleware.FlashSuccess, MsgListingDeleted)
	if deleted != testListingID {
		t.Errorf("deleted = %q", deleted)
	}
}

func TestListingHandler_Delete_NonexistentRedirects(t *testing.T) {
	svc := &mockListingService{
		deleteFn: func(ctx context.Context, p *model.Principal, id string) error {
			return model.NewListingNotFoundError()
		},
	}
	h := newTestListingHandler(t, svc)

	req := withURLParams(httptest.NewRequest(http.MethodDelete, "/listings/"+testListingID, nil), map[string]string{"id": testListingID})
	w := serve(h.Delete, withPrincipal(req, "owner-1", "host"))

	assertRedirect(t, w, "/listings")
}

// --- GET /listings/owner/{id} ---

func TestListingHandler_Owner(t *testing.T) {
	t.Run("no listings", func(t *testing.T) {
		h := newTestListingHandler(t, &mockListingService{})
		req := withURLParams(httptest.NewRequest(http.MethodGet, "/listings/owner/u1", nil), map[string]string{"id": "u1"})
		w := serve(h.Owner, req)

		assertRedirect(t, w, "/listings")
		assertFlash(t, w, middleware.FlashInfo, MsgOwnerNoListing)
	})

	t.Run("with listings", func(t *testing.T) {
		svc := &mockListingService{
			listByOwnerFn: func(ctx context.Context, ownerID string) (*model.OwnerListings, error) {
				return &model.OwnerListings{
					OwnerID:  ownerID,
					Listings: []*model.Listing{{ID: "a", Title: "Cabin"}},
				}, nil
			},
		}
		h := newTestListingHandler(t, svc)
		req := withURLParams(httptest.NewRequest(http.MethodGet, "/listings/owner/u1", nil), map[string]string{"id": "u1"})
		w := serve(h.Owner, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "Listings by "+model.PlaceholderHost) {
			t.Error("unresolved owner should use placeholder name")
		}
	})
}

// --- GET /listings/feed.xml ---

func TestListingHandler_Feed(t *testing.T) {
	svc := &mockListingService{
		latestFn: func(ctx context.Context) ([]*model.Listing, error) {
			return []*model.Listing{{ID: "a", Title: "Cabin"}}, nil
		},
	}
	h := newTestListingHandler(t, svc)

	w := serve(h.Feed, httptest.NewRequest(http.MethodGet, "/listings/feed.xml", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/rss+xml") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "https://wanderlust.example/listings/a") {
		t.Error("item link should use the base URL")
	}
}
