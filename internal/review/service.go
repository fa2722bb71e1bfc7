// Package review は物件へのレビューの作成・削除と評価集計のドメインロジックを提供する。
package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/wanderlust/internal/guard"
	"github.com/hitoshi/wanderlust/internal/metrics"
	"github.com/hitoshi/wanderlust/internal/model"
	"github.com/hitoshi/wanderlust/internal/repository"
	"github.com/hitoshi/wanderlust/internal/validation"
)

// Sanitizer は入力テキストからマークアップを取り除く。
type Sanitizer interface {
	Sanitize(raw string) string
}

// Service はレビューワークフローのサービス層。
type Service struct {
	listings  repository.ListingRepository
	reviews   repository.ReviewRepository
	guard     *guard.Guard
	sanitizer Sanitizer
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	listings repository.ListingRepository,
	reviews repository.ReviewRepository,
	sanitizer Sanitizer,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		listings:  listings,
		reviews:   reviews,
		guard:     guard.New(listings, reviews),
		sanitizer: sanitizer,
		metrics:   collector,
		logger:    logger,
		now:       time.Now,
	}
}

// Create はレビューを作成し、物件のレビュー一覧に追加する。
// 物件への追加に失敗した場合は作成したレビューを削除して元に戻す。
func (s *Service) Create(ctx context.Context, p *model.Principal, listingID string, in model.ReviewInput) (*model.Review, error) {
	if p == nil {
		return nil, model.NewForbiddenError("You must be logged in to leave a review.")
	}
	if _, err := s.guard.IsNotOwner(ctx, p, listingID); err != nil {
		return nil, err
	}
	if s.sanitizer != nil {
		in.Comment = s.sanitizer.Sanitize(in.Comment)
	}
	fields, err := validation.Review(in)
	if err != nil {
		return nil, err
	}

	rv := &model.Review{
		ID:        uuid.NewString(),
		Comment:   fields.Comment,
		Rating:    fields.Rating,
		AuthorID:  p.ID,
		ListingID: listingID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.reviews.Create(ctx, rv); err != nil {
		return nil, fmt.Errorf("レビューの作成に失敗しました: %w", err)
	}

	if err := s.listings.AppendReview(ctx, listingID, rv.ID); err != nil {
		if derr := s.reviews.Delete(ctx, rv.ID); derr != nil {
			s.logger.Error("failed to roll back review after append failure",
				slog.String("review_id", rv.ID),
				slog.String("listing_id", listingID),
				slog.String("error", derr.Error()),
			)
		}
		if _, ok := err.(*model.AppError); ok {
			return nil, err
		}
		return nil, fmt.Errorf("物件へのレビュー追加に失敗しました: %w", err)
	}

	s.metrics.RecordReviewCreated()
	return rv, nil
}

// Delete はレビューを削除する。作成者のみ実行できる。
// 物件のレビュー一覧から先に外し、その後レビュー本体を削除する。
func (s *Service) Delete(ctx context.Context, p *model.Principal, listingID, reviewID string) error {
	rv, err := s.guard.IsReviewAuthor(ctx, p, reviewID)
	if err != nil {
		return err
	}
	if listingID != "" && rv.ListingID != listingID {
		return model.NewReviewNotFoundError()
	}

	if err := s.listings.RemoveReview(ctx, rv.ListingID, rv.ID); err != nil {
		return fmt.Errorf("物件からのレビュー除去に失敗しました: %w", err)
	}
	if err := s.reviews.Delete(ctx, rv.ID); err != nil {
		if _, ok := err.(*model.AppError); ok {
			return err
		}
		return fmt.Errorf("レビューの削除に失敗しました: %w", err)
	}

	s.metrics.RecordReviewDeleted()
	return nil
}

// RatingReport は物件の評価集計を返す。所有者のみ参照できる。
// 参照先が無いレビューは集計に含めない。
func (s *Service) RatingReport(ctx context.Context, p *model.Principal, listingID string) (*model.Listing, model.RatingReport, error) {
	l, err := s.guard.IsOwner(ctx, p, listingID)
	if err != nil {
		return nil, model.RatingReport{}, err
	}

	found, err := s.reviews.FindByIDs(ctx, l.ReviewIDs)
	if err != nil {
		return nil, model.RatingReport{}, fmt.Errorf("レビューの取得に失敗しました: %w", err)
	}
	resolved := make([]*model.Review, 0, len(found))
	for _, id := range l.ReviewIDs {
		if rv, ok := found[id]; ok {
			resolved = append(resolved, rv)
		}
	}
	return l, model.NewRatingReport(l.ID, resolved), nil
}
