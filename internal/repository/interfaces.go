// Package repository はデータ永続化のインターフェースとPostgreSQL実装を定義する。
package repository

import (
	"context"

	"github.com/hitoshi/wanderlust/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。email/usernameの重複時はDuplicateKeyエラーを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindByIDs は複数IDのユーザーをID→ユーザーのマップで返す。存在しないIDは含まれない。
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// ListingRepository は物件データの永続化インターフェース。
type ListingRepository interface {
	// Create は物件を作成する。
	Create(ctx context.Context, listing *model.Listing) error

	// FindByID は指定IDの物件を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Listing, error)

	// FindByIDs は複数IDの物件をID→物件のマップで返す。
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.Listing, error)

	// Find は検索条件に一致する物件を作成日時の降順で返す。
	Find(ctx context.Context, filter model.ListingFilter) ([]*model.Listing, error)

	// Latest は新しい順に最大limit件の物件を返す。
	Latest(ctx context.Context, limit int) ([]*model.Listing, error)

	// ListByOwner は所有者の物件を作成日時の降順で返す。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Listing, error)

	// Countries は登録済みの国名を重複なしで昇順に返す。
	Countries(ctx context.Context) ([]string, error)

	// PriceBounds は全物件の価格の最小値と最大値を返す。物件が無い場合はnilを返す。
	PriceBounds(ctx context.Context) (*model.PriceRange, error)

	// Update は物件の項目と画像を1回の書き込みで更新する。
	Update(ctx context.Context, listing *model.Listing) error

	// Delete は物件を削除する。存在しない場合はNotFoundエラーを返す。
	Delete(ctx context.Context, id string) error

	// AppendReview はreview_idsの末尾にレビューIDを追加する。
	AppendReview(ctx context.Context, listingID, reviewID string) error

	// RemoveReview はreview_idsからレビューIDを取り除く。
	RemoveReview(ctx context.Context, listingID, reviewID string) error

	// Count は全物件数を返す。
	Count(ctx context.Context) (int, error)
}

// ReviewRepository はレビューデータの永続化インターフェース。
type ReviewRepository interface {
	// Create はレビューを作成する。
	Create(ctx context.Context, review *model.Review) error

	// FindByID は指定IDのレビューを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Review, error)

	// FindByIDs は複数IDのレビューをID→レビューのマップで返す。
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.Review, error)

	// ListByAuthor は作成者のレビューを新しい順に返す。
	ListByAuthor(ctx context.Context, authorID string) ([]*model.Review, error)

	// Delete はレビューを削除する。存在しない場合はNotFoundエラーを返す。
	Delete(ctx context.Context, id string) error

	// DeleteByListing は指定物件に紐づく全レビューを削除し、削除件数を返す。
	DeleteByListing(ctx context.Context, listingID string) (int64, error)
}
