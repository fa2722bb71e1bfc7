// Package user はプロフィール画面のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"

	"github.com/hitoshi/wanderlust/internal/model"
	"github.com/hitoshi/wanderlust/internal/repository"
)

// Profile はログイン中ユーザー自身の物件とレビュー。
type Profile struct {
	User     *model.User
	Listings []*model.Listing
	Reviews  []model.AuthoredReview
}

// Service はプロフィールのサービス層。
type Service struct {
	userRepo    repository.UserRepository
	listingRepo repository.ListingRepository
	reviewRepo  repository.ReviewRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	listingRepo repository.ListingRepository,
	reviewRepo repository.ReviewRepository,
) *Service {
	return &Service{
		userRepo:    userRepo,
		listingRepo: listingRepo,
		reviewRepo:  reviewRepo,
	}
}

// Profile は自分の物件と、自分が書いたレビューを物件タイトル付きで返す。
// 物件が削除済みのレビューは PlaceholderListing を表示名にする。
func (s *Service) Profile(ctx context.Context, p *model.Principal) (*Profile, error) {
	if p == nil {
		return nil, model.NewForbiddenError("You must be logged in to view your profile.")
	}

	u, err := s.userRepo.FindByID(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}

	listings, err := s.listingRepo.ListByOwner(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("物件一覧の取得に失敗しました: %w", err)
	}

	reviews, err := s.reviewRepo.ListByAuthor(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("レビュー一覧の取得に失敗しました: %w", err)
	}

	ids := make([]string, 0, len(reviews))
	seen := make(map[string]bool, len(reviews))
	for _, rv := range reviews {
		if !seen[rv.ListingID] {
			seen[rv.ListingID] = true
			ids = append(ids, rv.ListingID)
		}
	}
	titles := map[string]*model.Listing{}
	if len(ids) > 0 {
		titles, err = s.listingRepo.FindByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("レビュー対象物件の取得に失敗しました: %w", err)
		}
	}

	authored := make([]model.AuthoredReview, 0, len(reviews))
	for _, rv := range reviews {
		title := model.PlaceholderListing
		if l, ok := titles[rv.ListingID]; ok && l != nil {
			title = l.WithDisplayDefaults().Title
		}
		authored = append(authored, model.AuthoredReview{Review: rv, ListingTitle: title})
	}

	return &Profile{User: u, Listings: listings, Reviews: authored}, nil
}
