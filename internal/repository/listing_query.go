package repository

import (
	"fmt"
	"strings"

	"github.com/hitoshi/wanderlust/internal/model"
)

const listingColumns = `id, title, description, price, location, country,
	image_url, image_filename, image_type, image_size, owner_id, review_ids, created_at, updated_at`

// likeEscaper はILIKEのワイルドカードをリテラルとして扱うためのエスケープ。
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// buildListingQuery は検索条件からSELECT文とプレースホルダー引数を組み立てる。
// テキストはtitle/location/countryの部分一致（大文字小文字無視）、
// 価格は指定された境界のみ、国は""と"all"以外で完全一致。
func buildListingQuery(f model.ListingFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if text := strings.TrimSpace(f.Text); text != "" {
		p := next("%" + likeEscaper.Replace(text) + "%")
		conds = append(conds, fmt.Sprintf("(title ILIKE %[1]s OR location ILIKE %[1]s OR country ILIKE %[1]s)", p))
	}
	if f.MinPrice != nil {
		conds = append(conds, "price >= "+next(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		conds = append(conds, "price <= "+next(*f.MaxPrice))
	}
	if c := strings.TrimSpace(f.Country); c != "" && !strings.EqualFold(c, "all") {
		conds = append(conds, "country = "+next(c))
	}

	var b strings.Builder
	b.WriteString("SELECT " + listingColumns + " FROM listings")
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, id")
	if f.Limit > 0 {
		b.WriteString(" LIMIT " + next(f.Limit))
	}
	return b.String(), args
}
