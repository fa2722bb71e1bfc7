// Package seed は空のデータベースにサンプル物件を投入する。
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/wanderlust/internal/auth"
	"github.com/hitoshi/wanderlust/internal/model"
)

// UserFinder は既存の投入用ユーザーを探すインターフェース。
type UserFinder interface {
	FindByUsername(ctx context.Context, username string) (*model.User, error)
}

// Registrar はユーザー登録のインターフェース。auth.Serviceが実装する。
type Registrar interface {
	Register(ctx context.Context, in auth.RegisterInput) (*model.Session, *model.User, error)
	Logout(ctx context.Context, sessionID string) error
}

// ListingStore は物件の保存インターフェース。
type ListingStore interface {
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, listing *model.Listing) error
}

// ImageImporter は外部画像を画像ホストへ取り込むインターフェース。
type ImageImporter interface {
	Import(ctx context.Context, rawURL string) (model.Image, error)
}

// FacetInvalidator は絞り込み選択肢のキャッシュを破棄するインターフェース。
type FacetInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Owner は投入する物件の所有者アカウント。
type Owner struct {
	Username string
	Email    string
	Password string
}

// Seeder はサンプル物件を投入する。
type Seeder struct {
	users     UserFinder
	registrar Registrar
	listings  ListingStore
	images    ImageImporter
	facets    FacetInvalidator
	owner     Owner
	samples   []SampleListing
	logger    *slog.Logger
	now       func() time.Time
}

// Deps はSeederの依存関係。
type Deps struct {
	Users     UserFinder
	Registrar Registrar
	Listings  ListingStore
	Images    ImageImporter
	Facets    FacetInvalidator
	Owner     Owner
	Logger    *slog.Logger
}

// NewSeeder はSampleListingsを投入するSeederを生成する。
func NewSeeder(d Deps) *Seeder {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		users:     d.Users,
		registrar: d.Registrar,
		listings:  d.Listings,
		images:    d.Images,
		facets:    d.Facets,
		owner:     d.Owner,
		samples:   SampleListings,
		logger:    logger,
		now:       time.Now,
	}
}

// Run は物件が1件も無い場合のみサンプル物件を投入し、投入した件数を返す。
// 画像の取り込みに失敗した物件は外部URLをそのまま画像として使う。
func (s *Seeder) Run(ctx context.Context) (int, error) {
	count, err := s.listings.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("物件数の取得に失敗しました: %w", err)
	}
	if count > 0 {
		s.logger.Info("listings already present, skipping seed", slog.Int("count", count))
		return 0, nil
	}

	owner, err := s.ensureOwner(ctx)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, sample := range s.samples {
		listing := &model.Listing{
			ID:          uuid.New().String(),
			Title:       sample.Title,
			Description: sample.Description,
			Price:       sample.Price,
			Location:    sample.Location,
			Country:     sample.Country,
			Image:       s.importImage(ctx, sample.ImageURL),
			OwnerID:     owner.ID,
			CreatedAt:   s.now().UTC(),
		}
		listing.UpdatedAt = listing.CreatedAt
		if err := s.listings.Create(ctx, listing); err != nil {
			return created, fmt.Errorf("物件「%s」の作成に失敗しました: %w", sample.Title, err)
		}
		created++
	}

	if s.facets != nil {
		if err := s.facets.Invalidate(ctx); err != nil {
			s.logger.Warn("failed to invalidate facet cache", slog.String("error", err.Error()))
		}
	}

	s.logger.Info("seed completed",
		slog.Int("listings", created),
		slog.String("owner_id", owner.ID),
	)
	return created, nil
}

// ensureOwner は所有者アカウントを取得し、無ければ登録する。
// 登録時に発行されるセッションは使わないため破棄する。
func (s *Seeder) ensureOwner(ctx context.Context) (*model.User, error) {
	u, err := s.users.FindByUsername(ctx, s.owner.Username)
	if err != nil {
		return nil, fmt.Errorf("投入用ユーザーの取得に失敗しました: %w", err)
	}
	if u != nil {
		return u, nil
	}

	session, u, err := s.registrar.Register(ctx, auth.RegisterInput{
		Username: s.owner.Username,
		Email:    s.owner.Email,
		Password: s.owner.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("投入用ユーザーの登録に失敗しました: %w", err)
	}
	if session != nil {
		if err := s.registrar.Logout(ctx, session.ID); err != nil {
			s.logger.Warn("failed to discard seed owner session", slog.String("error", err.Error()))
		}
	}
	return u, nil
}

func (s *Seeder) importImage(ctx context.Context, rawURL string) model.Image {
	if s.images == nil {
		return model.Image{URL: rawURL}
	}
	img, err := s.images.Import(ctx, rawURL)
	if err != nil {
		s.logger.Warn("failed to import seed image, keeping remote url",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return model.Image{URL: rawURL}
	}
	return img
}
