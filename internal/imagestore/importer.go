package imagestore

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/hitoshi/wanderlust/internal/model"
	"github.com/hitoshi/wanderlust/internal/security"
)

// Fetcher は外部画像の取得インターフェース。security.ImageFetcherが実装する。
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*security.RemoteImage, error)
}

// Uploader は画像の保存インターフェース。
type Uploader interface {
	Upload(ctx context.Context, up model.ImageUpload) (model.Image, error)
}

// Importer は外部URLの画像を取得して画像ストアへ取り込む。
type Importer struct {
	fetcher Fetcher
	store   Uploader
}

// NewImporter はImporterを生成する。
func NewImporter(fetcher Fetcher, store Uploader) *Importer {
	return &Importer{fetcher: fetcher, store: store}
}

// Import はrawURLの画像を取り込み、ホスト上の画像を返す。
func (i *Importer) Import(ctx context.Context, rawURL string) (model.Image, error) {
	remote, err := i.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return model.Image{}, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	img, err := i.store.Upload(ctx, model.ImageUpload{
		Name:        path.Base(rawURL),
		ContentType: remote.ContentType,
		Size:        int64(len(remote.Data)),
		Body:        bytes.NewReader(remote.Data),
	})
	if err != nil {
		return model.Image{}, fmt.Errorf("failed to store %s: %w", rawURL, err)
	}
	return img, nil
}
