// Package rss は新着物件のRSS 2.0フィードを生成する。
package rss

import (
	"fmt"
	"io"
	"mime"
	"path"
	"strconv"
	"strings"

	"github.com/gorilla/feeds"

	"github.com/hitoshi/wanderlust/internal/model"
)

// Channel はフィード全体の情報。
type Channel struct {
	Title       string
	Link        string // サイトのベースURL
	Description string
}

// Write は物件一覧をRSS 2.0としてwに書き出す。listingsは新しい順で渡す。
func Write(w io.Writer, ch Channel, listings []*model.Listing) error {
	base := strings.TrimRight(ch.Link, "/")
	feed := &feeds.Feed{
		Title:       ch.Title,
		Link:        &feeds.Link{Href: base + "/listings"},
		Description: ch.Description,
		Items:       make([]*feeds.Item, 0, len(listings)),
	}
	if len(listings) > 0 {
		feed.Updated = listings[0].CreatedAt.UTC()
	}

	for _, l := range listings {
		d := l.WithDisplayDefaults()
		link := fmt.Sprintf("%s/listings/%s", base, l.ID)
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          link,
			Title:       d.Title,
			Link:        &feeds.Link{Href: link},
			Description: fmt.Sprintf("%s, %s. %.0f per night. %s", d.Location, d.Country, l.Price, d.Description),
			Created:     l.CreatedAt.UTC(),
			Enclosure:   enclosure(base, l.Image),
		})
	}

	// カテゴリはfeeds.Itemに無いため、変換後のRSS要素に直接設定する
	doc := (&feeds.Rss{Feed: feed}).RssFeed()
	for i, item := range doc.Items {
		item.Category = listings[i].Country
	}
	if err := feeds.WriteXML(doc, w); err != nil {
		return fmt.Errorf("failed to encode rss: %w", err)
	}
	return nil
}

// enclosure は物件画像のenclosureを返す。形式が分からない画像は載せない。
func enclosure(base string, img model.Image) *feeds.Enclosure {
	u := imageURL(base, img.URL)
	if u == "" {
		return nil
	}
	typ := img.ContentType
	if typ == "" {
		typ = mime.TypeByExtension(strings.ToLower(path.Ext(img.URL)))
	}
	if !strings.HasPrefix(typ, "image/") {
		return nil
	}
	return &feeds.Enclosure{Url: u, Type: typ, Length: strconv.FormatInt(img.Size, 10)}
}

// imageURL は画像ホスト上の相対パスを絶対URLにする。
func imageURL(base, u string) string {
	switch {
	case u == "":
		return ""
	case strings.HasPrefix(u, "/"):
		return base + u
	default:
		return u
	}
}
