// Package guard は物件とレビューに対する操作権限を判定する。
//
// 判定は呼び出しごとにストアを読み直す。判定と後続の更新の間に
// 所有者が変わる競合は許容しており、更新側では再検証しない。
// 対象が存在しない場合はForbiddenではなくNotFoundを返す
// （物件は公開情報のため、存在を隠す必要がない）。
package guard

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/wanderlust/internal/model"
)

// 権限エラー時に表示するメッセージ。
const (
	MsgNotOwner        = "You are not the owner of this listings !"
	MsgOwnListing      = "You cannot review your own listing!"
	MsgNotReviewAuthor = "You are not the Author of this review !"
)

// ListingFinder は物件の取得インターフェース。
type ListingFinder interface {
	FindByID(ctx context.Context, id string) (*model.Listing, error)
}

// ReviewFinder はレビューの取得インターフェース。
type ReviewFinder interface {
	FindByID(ctx context.Context, id string) (*model.Review, error)
}

// Guard は所有者・作成者チェックを行う。
type Guard struct {
	listings ListingFinder
	reviews  ReviewFinder
}

// New はGuardを生成する。
func New(listings ListingFinder, reviews ReviewFinder) *Guard {
	return &Guard{listings: listings, reviews: reviews}
}

// ValidateID はIDがUUID形式かを検証する。ストアへの問い合わせ前に使う。
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewInvalidIDError(id)
	}
	return nil
}

// LoadListing はIDを検証して物件を読み込む。存在しない場合はNotFound。
func (g *Guard) LoadListing(ctx context.Context, listingID string) (*model.Listing, error) {
	if err := ValidateID(listingID); err != nil {
		return nil, err
	}
	l, err := g.listings.FindByID(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("guard: load listing: %w", err)
	}
	if l == nil {
		return nil, model.NewListingNotFoundError()
	}
	return l, nil
}

// IsOwner は操作者が物件の所有者であることを確認し、読み込んだ物件を返す。
func (g *Guard) IsOwner(ctx context.Context, p *model.Principal, listingID string) (*model.Listing, error) {
	l, err := g.LoadListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if p == nil || l.OwnerID != p.ID {
		return nil, model.NewForbiddenError(MsgNotOwner)
	}
	return l, nil
}

// IsNotOwner は操作者が物件の所有者でないことを確認する。自分の物件へのレビューを防ぐ。
func (g *Guard) IsNotOwner(ctx context.Context, p *model.Principal, listingID string) (*model.Listing, error) {
	l, err := g.LoadListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if p != nil && l.OwnerID == p.ID {
		return nil, model.NewForbiddenError(MsgOwnListing)
	}
	return l, nil
}

// IsReviewAuthor は操作者がレビューの作成者であることを確認し、読み込んだレビューを返す。
func (g *Guard) IsReviewAuthor(ctx context.Context, p *model.Principal, reviewID string) (*model.Review, error) {
	if err := ValidateID(reviewID); err != nil {
		return nil, err
	}
	rv, err := g.reviews.FindByID(ctx, reviewID)
	if err != nil {
		return nil, fmt.Errorf("guard: load review: %w", err)
	}
	if rv == nil {
		return nil, model.NewReviewNotFoundError()
	}
	if p == nil || rv.AuthorID != p.ID {
		return nil, model.NewForbiddenError(MsgNotReviewAuthor)
	}
	return rv, nil
}
