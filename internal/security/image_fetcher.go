package security

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrImageTooLarge は取得した画像がサイズ上限を超えた場合のエラー。
var ErrImageTooLarge = errors.New("remote image exceeds size limit")

// URLValidator は取得前の静的URL検証。SSRFGuardが実装する。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// RemoteImage は外部から取得した画像。
type RemoteImage struct {
	Data        []byte
	ContentType string
}

// ImageFetcher はURL検証とサイズ制限付きで外部画像を取得する。
type ImageFetcher struct {
	validator URLValidator
	client    *http.Client
	maxSize   int64
}

// NewImageFetcher はImageFetcherを生成する。
// 本番ではclientにSSRFGuard.NewSafeClientの戻り値を渡す。
func NewImageFetcher(validator URLValidator, client *http.Client, maxSize int64) *ImageFetcher {
	return &ImageFetcher{validator: validator, client: client, maxSize: maxSize}
}

// Fetch は画像を取得する。Content-Typeがimage/*でない場合はエラー。
func (f *ImageFetcher) Fetch(ctx context.Context, rawURL string) (*RemoteImage, error) {
	if err := f.validator.ValidateURL(rawURL); err != nil {
		return nil, fmt.Errorf("image url rejected: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image request returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, ErrImageTooLarge
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("unexpected content type %q", contentType)
	}

	return &RemoteImage{Data: data, ContentType: contentType}, nil
}
