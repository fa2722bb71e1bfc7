package model

import (
	"io"
	"time"
)

// 検索結果の上限件数。
const SearchResultLimit = 50

// 画面表示用のプレースホルダー。
const (
	PlaceholderTitle       = "Untitled Listing"
	PlaceholderLocation    = "Location not specified"
	PlaceholderCountry     = "Country not specified"
	PlaceholderDescription = "No description available"
	PlaceholderHost        = "Unknown Host"
	PlaceholderAuthor      = "Anonymous"
	PlaceholderComment     = "No comment provided"
	PlaceholderListing     = "Deleted listing"
)

// Image は画像ホスト上の画像を表す。FilenameはホストのキーでURLと対になる。
type Image struct {
	URL         string
	Filename    string
	ContentType string // 画像ホストに取り込んだ場合のみ設定される
	Size        int64
}

// IsZero は画像が設定されていないかを返す。
func (i Image) IsZero() bool {
	return i.URL == "" && i.Filename == ""
}

// Listing は掲載物件を表す。
// ReviewIDs には listing_id がこの物件を指すレビューのIDのみが入る。
type Listing struct {
	ID          string
	Title       string
	Description string
	Price       float64
	Location    string
	Country     string
	Image       Image
	OwnerID     string
	ReviewIDs   []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ListingInput はフォームから受け取った未検証の物件入力。
// Price は文字列のまま受け取り、バリデーションで数値に変換する。
type ListingInput struct {
	Title       string
	Description string
	Price       string
	Location    string
	Country     string
}

// ListingFields は検証済みの物件項目。
type ListingFields struct {
	Title       string
	Description string
	Price       float64
	Location    string
	Country     string
}

// ImageUpload はアップロードされた画像ファイル。
type ImageUpload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ListingFilter は物件検索条件を表す。ゼロ値の項目は条件に含めない。
type ListingFilter struct {
	Text     string
	MinPrice *float64
	MaxPrice *float64
	Country  string // "" または "all" は全件
	Limit    int    // 0 は無制限
}

// PriceRange は価格の最小値と最大値。
type PriceRange struct {
	Min float64
	Max float64
}

// DefaultPriceRange は物件が1件も無い場合の価格帯。
var DefaultPriceRange = PriceRange{Min: 0, Max: 10000}

// Facets は絞り込みフォーム用の選択肢。常に全件から計算する。
type Facets struct {
	Countries  []string
	PriceRange PriceRange
}

// SearchResult は検索結果と絞り込み用の選択肢。
type SearchResult struct {
	Listings []*Listing
	Facets   Facets
}

// ListingDetail は詳細画面用に参照を解決した物件。
type ListingDetail struct {
	Listing   *Listing
	OwnerName string
	Reviews   []ReviewDetail
}

// OwnerListings は所有者別一覧。Ownerが解決できない場合はnil。
type OwnerListings struct {
	OwnerID  string
	Owner    *User
	Listings []*Listing
}

// OwnerName は表示用の所有者名を返す。
func (o *OwnerListings) OwnerName() string {
	if o.Owner == nil || o.Owner.Username == "" {
		return PlaceholderHost
	}
	return o.Owner.Username
}

// WithDisplayDefaults は空の項目をプレースホルダーで埋めたコピーを返す。
func (l *Listing) WithDisplayDefaults() *Listing {
	c := *l
	if c.Title == "" {
		c.Title = PlaceholderTitle
	}
	if c.Location == "" {
		c.Location = PlaceholderLocation
	}
	if c.Country == "" {
		c.Country = PlaceholderCountry
	}
	if c.Description == "" {
		c.Description = PlaceholderDescription
	}
	return &c
}
