package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/wanderlust/internal/model"
)

// PostgresListingRepo はPostgreSQLを使用した物件リポジトリ。
// review_ids はuuid[]で保持し、追加と削除は配列関数で1文ずつ行う。
type PostgresListingRepo struct {
	db *sql.DB
}

// NewPostgresListingRepo はPostgresListingRepoを生成する。
func NewPostgresListingRepo(db *sql.DB) *PostgresListingRepo {
	return &PostgresListingRepo{db: db}
}

func scanListing(row interface{ Scan(...any) error }) (*model.Listing, error) {
	l := &model.Listing{}
	var reviewIDs []string
	err := row.Scan(
		&l.ID, &l.Title, &l.Description, &l.Price, &l.Location, &l.Country,
		&l.Image.URL, &l.Image.Filename, &l.Image.ContentType, &l.Image.Size, &l.OwnerID, pq.Array(&reviewIDs),
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if reviewIDs == nil {
		reviewIDs = []string{}
	}
	l.ReviewIDs = reviewIDs
	return l, nil
}

func (r *PostgresListingRepo) queryListings(ctx context.Context, query string, args ...any) ([]*model.Listing, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := []*model.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return listings, nil
}

// Create は物件を作成する。
func (r *PostgresListingRepo) Create(ctx context.Context, l *model.Listing) error {
	reviewIDs := l.ReviewIDs
	if reviewIDs == nil {
		reviewIDs = []string{}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO listings (id, title, description, price, location, country,
			image_url, image_filename, image_type, image_size, owner_id, review_ids, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::uuid[], $13, $14)`,
		l.ID, l.Title, l.Description, l.Price, l.Location, l.Country,
		l.Image.URL, l.Image.Filename, l.Image.ContentType, l.Image.Size,
		l.OwnerID, pq.Array(reviewIDs), l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert listing: %w", err)
	}
	return nil
}

// FindByID は指定IDの物件を取得する。見つからない場合はnilを返す。
func (r *PostgresListingRepo) FindByID(ctx context.Context, id string) (*model.Listing, error) {
	l, err := scanListing(r.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find listing by ID: %w", err)
	}
	return l, nil
}

// FindByIDs は複数IDの物件をマップで返す。
func (r *PostgresListingRepo) FindByIDs(ctx context.Context, ids []string) (map[string]*model.Listing, error) {
	out := make(map[string]*model.Listing, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	listings, err := r.queryListings(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = ANY($1::uuid[])`, pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find listings: %w", err)
	}
	for _, l := range listings {
		out[l.ID] = l
	}
	return out, nil
}

// Find は検索条件に一致する物件を返す。
func (r *PostgresListingRepo) Find(ctx context.Context, filter model.ListingFilter) ([]*model.Listing, error) {
	query, args := buildListingQuery(filter)
	listings, err := r.queryListings(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search listings: %w", err)
	}
	return listings, nil
}

// Latest は新しい順に最大limit件の物件を返す。
func (r *PostgresListingRepo) Latest(ctx context.Context, limit int) ([]*model.Listing, error) {
	return r.Find(ctx, model.ListingFilter{Limit: limit})
}

// ListByOwner は所有者の物件を返す。
func (r *PostgresListingRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Listing, error) {
	listings, err := r.queryListings(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE owner_id = $1 ORDER BY created_at DESC, id`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings by owner: %w", err)
	}
	return listings, nil
}

// Countries は国名を重複なしで返す。空文字は除く。
func (r *PostgresListingRepo) Countries(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT country FROM listings WHERE country <> '' ORDER BY country`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list countries: %w", err)
	}
	defer rows.Close()

	countries := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan country: %w", err)
		}
		countries = append(countries, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate countries: %w", err)
	}
	return countries, nil
}

// PriceBounds は価格の最小値と最大値を返す。物件が無い場合はnil。
func (r *PostgresListingRepo) PriceBounds(ctx context.Context) (*model.PriceRange, error) {
	var min, max sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `SELECT MIN(price), MAX(price) FROM listings`).Scan(&min, &max)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate price bounds: %w", err)
	}
	if !min.Valid || !max.Valid {
		return nil, nil
	}
	return &model.PriceRange{Min: min.Float64, Max: max.Float64}, nil
}

// Update は物件の項目と画像を更新する。review_ids と owner_id は変更しない。
func (r *PostgresListingRepo) Update(ctx context.Context, l *model.Listing) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE listings
		 SET title = $2, description = $3, price = $4, location = $5, country = $6,
		     image_url = $7, image_filename = $8, image_type = $9, image_size = $10, updated_at = $11
		 WHERE id = $1`,
		l.ID, l.Title, l.Description, l.Price, l.Location, l.Country,
		l.Image.URL, l.Image.Filename, l.Image.ContentType, l.Image.Size, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update listing: %w", err)
	}
	return requireAffected(result, model.NewListingNotFoundError())
}

// Delete は物件を削除する。
func (r *PostgresListingRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	return requireAffected(result, model.NewListingNotFoundError())
}

// AppendReview はreview_idsにレビューIDを追加する。既に含まれる場合は何もしない。
func (r *PostgresListingRepo) AppendReview(ctx context.Context, listingID, reviewID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE listings
		 SET review_ids = CASE WHEN $2::uuid = ANY(review_ids) THEN review_ids
		                       ELSE array_append(review_ids, $2::uuid) END
		 WHERE id = $1`,
		listingID, reviewID,
	)
	if err != nil {
		return fmt.Errorf("failed to append review to listing: %w", err)
	}
	return requireAffected(result, model.NewListingNotFoundError())
}

// RemoveReview はreview_idsからレビューIDを取り除く。
func (r *PostgresListingRepo) RemoveReview(ctx context.Context, listingID, reviewID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE listings SET review_ids = array_remove(review_ids, $2::uuid) WHERE id = $1`,
		listingID, reviewID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove review from listing: %w", err)
	}
	return nil
}

// Count は全物件数を返す。
func (r *PostgresListingRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM listings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count listings: %w", err)
	}
	return n, nil
}

// requireAffected は更新件数が0の場合にnotFoundを返す。
func requireAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// compile-time interface check
var _ ListingRepository = (*PostgresListingRepo)(nil)
