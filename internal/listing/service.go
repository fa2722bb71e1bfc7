// Package listing は物件の作成・閲覧・更新・削除と検索のドメインロジックを提供する。
package listing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/wanderlust/internal/cache"
	"github.com/hitoshi/wanderlust/internal/events"
	"github.com/hitoshi/wanderlust/internal/guard"
	"github.com/hitoshi/wanderlust/internal/metrics"
	"github.com/hitoshi/wanderlust/internal/model"
	"github.com/hitoshi/wanderlust/internal/repository"
	"github.com/hitoshi/wanderlust/internal/validation"
)

// FeedSize はRSSフィードに載せる件数。
const FeedSize = 20

// ImageStore は画像ホストのインターフェース。imagestore.GridFSStoreが実装する。
type ImageStore interface {
	Upload(ctx context.Context, up model.ImageUpload) (model.Image, error)
	Delete(ctx context.Context, id string) error
}

// Sanitizer は入力テキストからマークアップを取り除く。
type Sanitizer interface {
	Sanitize(raw string) string
}

// Deps はServiceの依存関係。
type Deps struct {
	Listings  repository.ListingRepository
	Reviews   repository.ReviewRepository
	Users     repository.UserRepository
	Guard     *guard.Guard
	Images    ImageStore
	Facets    cache.FacetCache
	Publisher events.Publisher
	Sanitizer Sanitizer
	Metrics   metrics.MetricsCollector
	Logger    *slog.Logger
}

// Service は物件ワークフローのサービス層。
type Service struct {
	listings  repository.ListingRepository
	reviews   repository.ReviewRepository
	users     repository.UserRepository
	guard     *guard.Guard
	images    ImageStore
	facets    cache.FacetCache
	publisher events.Publisher
	sanitizer Sanitizer
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceを生成する。Facets・Publisher・Metricsが未指定ならNop実装を使う。
func NewService(d Deps) *Service {
	s := &Service{
		listings:  d.Listings,
		reviews:   d.Reviews,
		users:     d.Users,
		guard:     d.Guard,
		images:    d.Images,
		facets:    d.Facets,
		publisher: d.Publisher,
		sanitizer: d.Sanitizer,
		metrics:   d.Metrics,
		logger:    d.Logger,
		now:       time.Now,
	}
	if s.facets == nil {
		s.facets = cache.Nop{}
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.guard == nil {
		s.guard = guard.New(d.Listings, d.Reviews)
	}
	return s
}

func (s *Service) sanitize(in model.ListingInput) model.ListingInput {
	if s.sanitizer == nil {
		return in
	}
	in.Title = s.sanitizer.Sanitize(in.Title)
	in.Description = s.sanitizer.Sanitize(in.Description)
	in.Location = s.sanitizer.Sanitize(in.Location)
	in.Country = s.sanitizer.Sanitize(in.Country)
	return in
}

// Create は物件を作成する。画像は必須。
func (s *Service) Create(ctx context.Context, p *model.Principal, in model.ListingInput, img *model.ImageUpload) (*model.Listing, error) {
	if p == nil {
		return nil, model.NewForbiddenError("You must be logged in to create a listing.")
	}
	fields, err := validation.Listing(s.sanitize(in))
	if err != nil {
		return nil, err
	}
	if img == nil || img.Body == nil {
		return nil, model.NewMissingImageError()
	}

	image, err := s.images.Upload(ctx, *img)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	l := &model.Listing{
		ID:          uuid.NewString(),
		Title:       fields.Title,
		Description: fields.Description,
		Price:       fields.Price,
		Location:    fields.Location,
		Country:     fields.Country,
		Image:       image,
		OwnerID:     p.ID,
		ReviewIDs:   []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.listings.Create(ctx, l); err != nil {
		s.discardImage(ctx, image.Filename)
		return nil, fmt.Errorf("物件の作成に失敗しました: %w", err)
	}

	s.metrics.RecordListingCreated()
	s.invalidateFacets(ctx)
	s.logger.Info("listing created", slog.String("listing_id", l.ID), slog.String("owner_id", p.ID))
	return l, nil
}

// Get は物件を取得し、レビュー・作成者・所有者を解決する。
// 参照先が無いレビューや所有者はプレースホルダーで埋める。
func (s *Service) Get(ctx context.Context, id string) (*model.ListingDetail, error) {
	l, err := s.guard.LoadListing(ctx, id)
	if err != nil {
		return nil, err
	}

	reviews, err := s.reviews.FindByIDs(ctx, l.ReviewIDs)
	if err != nil {
		return nil, fmt.Errorf("レビューの取得に失敗しました: %w", err)
	}

	userIDs := []string{l.OwnerID}
	for _, rv := range reviews {
		userIDs = append(userIDs, rv.AuthorID)
	}
	users, err := s.users.FindByIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}

	detail := &model.ListingDetail{
		Listing:   l.WithDisplayDefaults(),
		OwnerName: model.PlaceholderHost,
		Reviews:   make([]model.ReviewDetail, 0, len(l.ReviewIDs)),
	}
	if owner, ok := users[l.OwnerID]; ok && owner.Username != "" {
		detail.OwnerName = owner.Username
	}

	for _, rid := range l.ReviewIDs {
		rv, ok := reviews[rid]
		if !ok {
			detail.Reviews = append(detail.Reviews, model.ReviewDetail{
				Review:     &model.Review{ID: rid, ListingID: l.ID, Comment: model.PlaceholderComment},
				AuthorName: model.PlaceholderAuthor,
			})
			continue
		}
		d := model.ReviewDetail{Review: rv, AuthorName: model.PlaceholderAuthor}
		if author, ok := users[rv.AuthorID]; ok && author.Username != "" {
			d.AuthorName = author.Username
		}
		if rv.Comment == "" {
			c := *rv
			c.Comment = model.PlaceholderComment
			d.Review = &c
		}
		detail.Reviews = append(detail.Reviews, d)
	}
	return detail, nil
}

// GetForEdit は所有者のみに物件を返す。編集フォームの表示に使う。
func (s *Service) GetForEdit(ctx context.Context, p *model.Principal, id string) (*model.Listing, error) {
	return s.guard.IsOwner(ctx, p, id)
}

// Update は物件を更新する。画像が指定された場合は同じ書き込みで差し替え、旧画像を削除する。
func (s *Service) Update(ctx context.Context, p *model.Principal, id string, in model.ListingInput, img *model.ImageUpload) (*model.Listing, error) {
	l, err := s.guard.IsOwner(ctx, p, id)
	if err != nil {
		return nil, err
	}
	fields, err := validation.Listing(s.sanitize(in))
	if err != nil {
		return nil, err
	}

	var uploaded, oldImage string
	if img != nil && img.Body != nil {
		image, err := s.images.Upload(ctx, *img)
		if err != nil {
			return nil, err
		}
		uploaded, oldImage = image.Filename, l.Image.Filename
		l.Image = image
	}

	l.Title = fields.Title
	l.Description = fields.Description
	l.Price = fields.Price
	l.Location = fields.Location
	l.Country = fields.Country
	l.UpdatedAt = s.now().UTC()

	if err := s.listings.Update(ctx, l); err != nil {
		s.discardImage(ctx, uploaded)
		return nil, wrapStoreErr("物件の更新に失敗しました", err)
	}
	if uploaded != "" && oldImage != uploaded {
		s.discardImage(ctx, oldImage)
	}

	s.metrics.RecordListingUpdated()
	s.invalidateFacets(ctx)
	return l, nil
}

// Delete は物件を削除し、続けて紐づくレビューを削除する。
// 連鎖削除に失敗した場合は物件削除を成功として扱い、回復処理へイベントを渡す。
func (s *Service) Delete(ctx context.Context, p *model.Principal, id string) error {
	l, err := s.guard.IsOwner(ctx, p, id)
	if err != nil {
		return err
	}
	if err := s.listings.Delete(ctx, id); err != nil {
		return wrapStoreErr("物件の削除に失敗しました", err)
	}

	n, err := s.reviews.DeleteByListing(ctx, id)
	if err != nil {
		s.metrics.RecordCascadeFailure()
		s.logger.Error("review cascade failed after listing delete",
			slog.String("listing_id", id),
			slog.String("error", err.Error()),
		)
		if perr := s.publisher.PublishCascadePending(ctx, events.NewCascadePending(id, s.now())); perr != nil {
			s.logger.Error("failed to publish cascade event",
				slog.String("listing_id", id),
				slog.String("error", perr.Error()),
			)
		}
	} else {
		s.logger.Info("listing deleted",
			slog.String("listing_id", id),
			slog.Int64("reviews_deleted", n),
		)
	}

	s.discardImage(ctx, l.Image.Filename)
	s.metrics.RecordListingDeleted()
	s.invalidateFacets(ctx)
	return nil
}

// RetryCascade は削除済み物件に残ったレビューを削除する。連鎖削除イベントの処理に使う。
func (s *Service) RetryCascade(ctx context.Context, listingID string) error {
	l, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		return fmt.Errorf("物件の確認に失敗しました: %w", err)
	}
	if l != nil {
		s.logger.Warn("cascade skipped: listing still exists", slog.String("listing_id", listingID))
		return nil
	}
	n, err := s.reviews.DeleteByListing(ctx, listingID)
	if err != nil {
		return fmt.Errorf("レビューの連鎖削除に失敗しました: %w", err)
	}
	s.logger.Info("review cascade retried",
		slog.String("listing_id", listingID),
		slog.Int64("reviews_deleted", n),
	)
	return nil
}

// Browse は一覧画面用に絞り込んだ全件と選択肢を返す。件数の上限は無い。
func (s *Service) Browse(ctx context.Context, filter model.ListingFilter) (*model.SearchResult, error) {
	filter.Text = ""
	filter.Limit = 0
	return s.find(ctx, filter)
}

// Search はキーワード検索を行う。キーワードが空の場合は結果なしで選択肢のみ返す。
func (s *Service) Search(ctx context.Context, filter model.ListingFilter) (*model.SearchResult, error) {
	filter.Text = strings.TrimSpace(filter.Text)
	if filter.Text == "" {
		facets, err := s.Facets(ctx)
		if err != nil {
			return nil, err
		}
		return &model.SearchResult{Listings: []*model.Listing{}, Facets: facets}, nil
	}
	filter.Limit = model.SearchResultLimit
	return s.find(ctx, filter)
}

func (s *Service) find(ctx context.Context, filter model.ListingFilter) (*model.SearchResult, error) {
	listings, err := s.listings.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("物件の検索に失敗しました: %w", err)
	}
	facets, err := s.Facets(ctx)
	if err != nil {
		return nil, err
	}
	return &model.SearchResult{Listings: listings, Facets: facets}, nil
}

// Facets は全件から計算した国一覧と価格帯を返す。キャッシュがあればそれを使う。
func (s *Service) Facets(ctx context.Context) (model.Facets, error) {
	cached, gen, err := s.facets.Get(ctx)
	if err != nil {
		s.logger.Warn("facet cache read failed", slog.String("error", err.Error()))
	}
	if cached != nil {
		return *cached, nil
	}

	countries, err := s.listings.Countries(ctx)
	if err != nil {
		return model.Facets{}, fmt.Errorf("国一覧の取得に失敗しました: %w", err)
	}
	bounds, err := s.listings.PriceBounds(ctx)
	if err != nil {
		return model.Facets{}, fmt.Errorf("価格帯の取得に失敗しました: %w", err)
	}
	f := model.Facets{Countries: countries, PriceRange: model.DefaultPriceRange}
	if bounds != nil {
		f.PriceRange = *bounds
	}

	if err := s.facets.Set(ctx, gen, f); err != nil {
		s.logger.Warn("facet cache write failed", slog.String("error", err.Error()))
	}
	return f, nil
}

// ListByOwner は所有者の物件一覧を返す。物件が無いことはエラーではない。
func (s *Service) ListByOwner(ctx context.Context, ownerID string) (*model.OwnerListings, error) {
	if err := guard.ValidateID(ownerID); err != nil {
		return nil, err
	}
	listings, err := s.listings.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("所有者の物件の取得に失敗しました: %w", err)
	}
	owner, err := s.users.FindByID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("所有者の取得に失敗しました: %w", err)
	}
	return &model.OwnerListings{OwnerID: ownerID, Owner: owner, Listings: listings}, nil
}

// Latest はRSSフィード用に新しい物件を返す。
func (s *Service) Latest(ctx context.Context) ([]*model.Listing, error) {
	listings, err := s.listings.Latest(ctx, FeedSize)
	if err != nil {
		return nil, fmt.Errorf("新着物件の取得に失敗しました: %w", err)
	}
	return listings, nil
}

func (s *Service) invalidateFacets(ctx context.Context) {
	if err := s.facets.Invalidate(ctx); err != nil {
		s.logger.Warn("facet cache invalidation failed", slog.String("error", err.Error()))
	}
}

func (s *Service) discardImage(ctx context.Context, filename string) {
	if filename == "" {
		return
	}
	if err := s.images.Delete(ctx, filename); err != nil {
		s.logger.Warn("failed to delete image",
			slog.String("filename", filename),
			slog.String("error", err.Error()),
		)
	}
}

// wrapStoreErr はAppErrorをそのまま返し、それ以外をストアエラーとして包む。
func wrapStoreErr(msg string, err error) error {
	if _, ok := err.(*model.AppError); ok {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}
