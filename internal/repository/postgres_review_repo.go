package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/wanderlust/internal/model"
)

// PostgresReviewRepo はPostgreSQLを使用したレビューリポジトリ。
type PostgresReviewRepo struct {
	db *sql.DB
}

// NewPostgresReviewRepo はPostgresReviewRepoを生成する。
func NewPostgresReviewRepo(db *sql.DB) *PostgresReviewRepo {
	return &PostgresReviewRepo{db: db}
}

const reviewColumns = `id, comment, rating, author_id, listing_id, created_at`

func scanReview(row interface{ Scan(...any) error }) (*model.Review, error) {
	rv := &model.Review{}
	if err := row.Scan(&rv.ID, &rv.Comment, &rv.Rating, &rv.AuthorID, &rv.ListingID, &rv.CreatedAt); err != nil {
		return nil, err
	}
	return rv, nil
}

// Create はレビューを作成する。
func (r *PostgresReviewRepo) Create(ctx context.Context, rv *model.Review) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reviews (id, comment, rating, author_id, listing_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rv.ID, rv.Comment, rv.Rating, rv.AuthorID, rv.ListingID, rv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

// FindByID は指定IDのレビューを取得する。見つからない場合はnilを返す。
func (r *PostgresReviewRepo) FindByID(ctx context.Context, id string) (*model.Review, error) {
	rv, err := scanReview(r.db.QueryRowContext(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find review by ID: %w", err)
	}
	return rv, nil
}

// FindByIDs は複数IDのレビューをマップで返す。
func (r *PostgresReviewRepo) FindByIDs(ctx context.Context, ids []string) (map[string]*model.Review, error) {
	out := make(map[string]*model.Review, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	reviews, err := r.query(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE id = ANY($1::uuid[])`, pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find reviews: %w", err)
	}
	for _, rv := range reviews {
		out[rv.ID] = rv
	}
	return out, nil
}

// ListByAuthor は作成者のレビューを新しい順に返す。
func (r *PostgresReviewRepo) ListByAuthor(ctx context.Context, authorID string) ([]*model.Review, error) {
	reviews, err := r.query(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE author_id = $1 ORDER BY created_at DESC, id`, authorID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews by author: %w", err)
	}
	return reviews, nil
}

// Delete はレビューを削除する。
func (r *PostgresReviewRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	return requireAffected(result, model.NewReviewNotFoundError())
}

// DeleteByListing は物件に紐づく全レビューを削除する。
// review_ids に登録されていないレビューも listing_id で対象になる。
func (r *PostgresReviewRepo) DeleteByListing(ctx context.Context, listingID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE listing_id = $1`, listingID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete reviews of listing: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func (r *PostgresReviewRepo) query(ctx context.Context, query string, args ...any) ([]*model.Review, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := []*model.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reviews, nil
}

// compile-time interface check
var _ ReviewRepository = (*PostgresReviewRepo)(nil)
