// Package imagestore は物件画像の保存先（MongoDB GridFS）を提供する。
//
// 画像はバケット listing_images に保存し、ObjectIDの16進表現を
// Image.Filename、/images/<id> をImage.URLとして返す。
package imagestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hitoshi/wanderlust/internal/model"
)

const (
	// BucketName はGridFSのバケット名。
	BucketName = "listing_images"
	// URLPrefix は画像配信パスの接頭辞。
	URLPrefix = "/images/"

	sniffLen = 512
)

// 受け付ける画像形式。
var allowedTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
}

// Object は配信用に開いた画像。呼び出し側でCloseする。
type Object struct {
	io.ReadCloser
	ContentType string
	Length      int64
	UploadedAt  time.Time
}

// Connect はMongoDBに接続し、疎通確認を行う。
func Connect(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return client, nil
}

// GridFSStore はGridFSを使った画像ストア。
type GridFSStore struct {
	db      *mongo.Database
	maxSize int64
}

// NewGridFSStore はGridFSStoreを生成する。maxSizeはアップロード上限（バイト）。
func NewGridFSStore(db *mongo.Database, maxSize int64) *GridFSStore {
	return &GridFSStore{db: db, maxSize: maxSize}
}

// バケットはデッドライン状態を持つため操作ごとに生成する。
func (s *GridFSStore) bucket(ctx context.Context) (*gridfs.Bucket, error) {
	b, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(BucketName))
	if err != nil {
		return nil, fmt.Errorf("failed to open gridfs bucket: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = b.SetReadDeadline(deadline)
		_ = b.SetWriteDeadline(deadline)
	}
	return b, nil
}

// Upload は画像を読み込み、形式を判定してGridFSに保存する。
// png/jpeg以外、または上限サイズ超過はValidationエラー。
func (s *GridFSStore) Upload(ctx context.Context, up model.ImageUpload) (model.Image, error) {
	data, contentType, err := ReadImage(up.Body, s.maxSize)
	if err != nil {
		return model.Image{}, err
	}

	b, err := s.bucket(ctx)
	if err != nil {
		return model.Image{}, err
	}
	opts := options.GridFSUpload().SetMetadata(bson.D{
		{Key: "contentType", Value: contentType},
		{Key: "originalName", Value: up.Name},
	})
	id, err := b.UploadFromStream(up.Name, bytes.NewReader(data), opts)
	if err != nil {
		return model.Image{}, fmt.Errorf("failed to upload image: %w", err)
	}

	hex := id.Hex()
	return model.Image{URL: URLPrefix + hex, Filename: hex, ContentType: contentType, Size: int64(len(data))}, nil
}

// Open は画像を開く。存在しない場合やIDが不正な場合はNotFoundエラーを返す。
func (s *GridFSStore) Open(ctx context.Context, id string) (*Object, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, model.ErrNotFound
	}
	b, err := s.bucket(ctx)
	if err != nil {
		return nil, err
	}
	stream, err := b.OpenDownloadStream(oid)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	file := stream.GetFile()
	obj := &Object{
		ReadCloser:  stream,
		ContentType: "application/octet-stream",
		Length:      file.Length,
		UploadedAt:  file.UploadDate,
	}
	if len(file.Metadata) > 0 {
		if ct, ok := file.Metadata.Lookup("contentType").StringValueOK(); ok {
			obj.ContentType = ct
		}
	}
	return obj, nil
}

// Delete は画像を削除する。ホスト外の画像（IDが不正）や削除済みの画像は無視する。
func (s *GridFSStore) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}
	b, err := s.bucket(ctx)
	if err != nil {
		return err
	}
	if err := b.Delete(oid); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// ReadImage はmaxSizeまで読み込み、先頭バイトから形式を判定する。
func ReadImage(r io.Reader, maxSize int64) ([]byte, string, error) {
	if r == nil {
		return nil, "", model.NewMissingImageError()
	}
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return nil, "", model.NewMissingImageError()
	}
	if int64(len(data)) > maxSize {
		return nil, "", model.NewValidationError(model.FieldError{
			Field:   "image",
			Message: fmt.Sprintf("Image must be at most %d MB.", maxSize>>20),
		})
	}
	contentType := DetectType(data)
	if !allowedTypes[contentType] {
		return nil, "", model.NewValidationError(model.FieldError{
			Field:   "image",
			Message: "Only PNG and JPEG images are accepted.",
		})
	}
	return data, contentType, nil
}

// DetectType は画像の内容からContent-Typeを判定する。
func DetectType(data []byte) string {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return http.DetectContentType(data)
}
