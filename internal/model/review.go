package model

import (
	"math"
	"time"
)

// Review は物件へのレビューを表す。
type Review struct {
	ID        string
	Comment   string
	Rating    int
	AuthorID  string
	ListingID string
	CreatedAt time.Time
}

// ReviewInput はフォームから受け取った未検証のレビュー入力。
type ReviewInput struct {
	Rating  string
	Comment string
}

// ReviewFields は検証済みのレビュー項目。
type ReviewFields struct {
	Rating  int
	Comment string
}

// ReviewDetail は作成者名を解決したレビュー。
// 参照先が無いレビューは Review.Rating = 0 と PlaceholderComment で埋められる。
type ReviewDetail struct {
	Review     *Review
	AuthorName string
}

// AuthoredReview はプロフィール画面用に物件タイトルを解決したレビュー。
type AuthoredReview struct {
	Review       *Review
	ListingTitle string
}

// RatingReport は物件の評価集計。Distribution のキーは1〜5の星の数。
type RatingReport struct {
	ListingID    string
	Total        int
	Average      float64
	Distribution map[int]int
}

// Stars は5から1の順で集計行を返す。テンプレートでの表示に使う。
func (r RatingReport) Stars() []StarCount {
	out := make([]StarCount, 0, 5)
	for s := 5; s >= 1; s-- {
		out = append(out, StarCount{Stars: s, Count: r.Distribution[s]})
	}
	return out
}

// StarCount は星の数ごとの件数。
type StarCount struct {
	Stars int
	Count int
}

// NewRatingReport はレビュー群から集計を作る。
// 評価が1〜5に収まらないレビューは数えない。平均は小数第1位で四捨五入する。
func NewRatingReport(listingID string, reviews []*Review) RatingReport {
	report := RatingReport{
		ListingID:    listingID,
		Distribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
	}
	sum := 0
	for _, r := range reviews {
		if r == nil || r.Rating < 1 || r.Rating > 5 {
			continue
		}
		report.Total++
		report.Distribution[r.Rating]++
		sum += r.Rating
	}
	if report.Total > 0 {
		report.Average = math.Round(float64(sum)/float64(report.Total)*10) / 10
	}
	return report
}
