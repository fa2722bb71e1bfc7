package handler

import (
	"context"

	"github.com/hitoshi/wanderlust/internal/auth"
	"github.com/hitoshi/wanderlust/internal/imagestore"
	"github.com/hitoshi/wanderlust/internal/model"
	"github.com/hitoshi/wanderlust/internal/user"
)

// --- モック定義 ---

// mockListingService はListingServiceInterfaceのモック実装。
type mockListingService struct {
	browseFn      func(ctx context.Context, filter model.ListingFilter) (*model.SearchResult, error)
	searchFn      func(ctx context.Context, filter model.ListingFilter) (*model.SearchResult, error)
	getFn         func(ctx context.Context, id string) (*model.ListingDetail, error)
	getForEditFn  func(ctx context.Context, p *model.Principal, id string) (*model.Listing, error)
	createFn      func(ctx context.Context, p *model.Principal, in model.ListingInput, img *model.ImageUpload) (*model.Listing, error)
	updateFn      func(ctx context.Context, p *model.Principal, id string, in model.ListingInput, img *model.ImageUpload) (*model.Listing, error)
	deleteFn      func(ctx context.Context, p *model.Principal, id string) error
	listByOwnerFn func(ctx context.Context, ownerID string) (*model.OwnerListings, error)
	latestFn      func(ctx context.Context) ([]*model.Listing, error)
}

func (m *mockListingService) Browse(ctx context.Context, filter model.ListingFilter) (*model.SearchResult, error) {
	if m.browseFn != nil {
		return m.browseFn(ctx, filter)
	}
	return &model.SearchResult{Facets: model.Facets{PriceRange: model.DefaultPriceRange}}, nil
}

func (m *mockListingService) Search(ctx context.Context, filter model.ListingFilter) (*model.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, filter)
	}
	return &model.SearchResult{Facets: model.Facets{PriceRange: model.DefaultPriceRange}}, nil
}

func (m *mockListingService) Get(ctx context.Context, id string) (*model.ListingDetail, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewListingNotFoundError()
}

func (m *mockListingService) GetForEdit(ctx context.Context, p *model.Principal, id string) (*model.Listing, error) {
	if m.getForEditFn != nil {
		return m.getForEditFn(ctx, p, id)
	}
	return nil, model.NewListingNotFoundError()
}

func (m *mockListingService) Create(ctx context.Context, p *model.Principal, in model.ListingInput, img *model.ImageUpload) (*model.Listing, error) {
	if m.createFn != nil {
		return m.createFn(ctx, p, in, img)
	}
	return &model.Listing{ID: "new-id"}, nil
}

func (m *mockListingService) Update(ctx context.Context, p *model.Principal, id string, in model.ListingInput, img *model.ImageUpload) (*model.Listing, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, p, id, in, img)
	}
	return &model.Listing{ID: id}, nil
}

func (m *mockListingService) Delete(ctx context.Context, p *model.Principal, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, p, id)
	}
	return nil
}

func (m *mockListingService) ListByOwner(ctx context.Context, ownerID string) (*model.OwnerListings, error) {
	if m.listByOwnerFn != nil {
		return m.listByOwnerFn(ctx, ownerID)
	}
	return &model.OwnerListings{OwnerID: ownerID}, nil
}

func (m *mockListingService) Latest(ctx context.Context) ([]*model.Listing, error) {
	if m.latestFn != nil {
		return m.latestFn(ctx)
	}
	return nil, nil
}

// mockReviewService はReviewServiceInterfaceのモック実装。
type mockReviewService struct {
	createFn       func(ctx context.Context, p *model.Principal, listingID string, in model.ReviewInput) (*model.Review, error)
	deleteFn       func(ctx context.Context, p *model.Principal, listingID, reviewID string) error
	ratingReportFn func(ctx context.Context, p *model.Principal, listingID string) (*model.Listing, model.RatingReport, error)
}

func (m *mockReviewService) Create(ctx context.Context, p *model.Principal, listingID string, in model.ReviewInput) (*model.Review, error) {
	if m.createFn != nil {
		return m.createFn(ctx, p, listingID, in)
	}
	return &model.Review{ID: "review-1", ListingID: listingID}, nil
}

func (m *mockReviewService) Delete(ctx context.Context, p *model.Principal, listingID, reviewID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, p, listingID, reviewID)
	}
	return nil
}

func (m *mockReviewService) RatingReport(ctx context.Context, p *model.Principal, listingID string) (*model.Listing, model.RatingReport, error) {
	if m.ratingReportFn != nil {
		return m.ratingReportFn(ctx, p, listingID)
	}
	return &model.Listing{ID: listingID}, model.NewRatingReport(listingID, nil), nil
}

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	registerFn func(ctx context.Context, in auth.RegisterInput) (*model.Session, *model.User, error)
	loginFn    func(ctx context.Context, username, password string) (*model.Session, *model.User, error)
	logoutFn   func(ctx context.Context, sessionID string) error
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*model.Session, *model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return nil, nil, model.NewValidationError()
}

func (m *mockAuthService) Login(ctx context.Context, username, password string) (*model.Session, *model.User, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, username, password)
	}
	return nil, nil, model.NewInvalidCredentialsError()
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	profileFn func(ctx context.Context, p *model.Principal) (*user.Profile, error)
}

func (m *mockUserService) Profile(ctx context.Context, p *model.Principal) (*user.Profile, error) {
	if m.profileFn != nil {
		return m.profileFn(ctx, p)
	}
	return nil, model.NewUserNotFoundError()
}

// mockImageOpener はImageOpenerのモック実装。
type mockImageOpener struct {
	openFn func(ctx context.Context, id string) (*imagestore.Object, error)
}

func (m *mockImageOpener) Open(ctx context.Context, id string) (*imagestore.Object, error) {
	if m.openFn != nil {
		return m.openFn(ctx, id)
	}
	return nil, model.ErrNotFound
}
