package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/wanderlust/internal/imagestore"
	"github.com/hitoshi/wanderlust/internal/model"
)

// ImageOpener は画像ホストから画像を開くインターフェース。
type ImageOpener interface {
	Open(ctx context.Context, id string) (*imagestore.Object, error)
}

// ImageHandler は物件画像を配信する。
type ImageHandler struct {
	images ImageOpener
}

// NewImageHandler はImageHandlerを生成する。
func NewImageHandler(images ImageOpener) *ImageHandler {
	return &ImageHandler{images: images}
}

// Serve は画像を返す。画像IDごとに内容は変わらないため長期キャッシュを許可する。
// GET /images/{id}
func (h *ImageHandler) Serve(w http.ResponseWriter, r *http.Request) {
	obj, err := h.images.Open(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, model.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("failed to open image",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	if obj.Length > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Length, 10))
	}
	if !obj.UploadedAt.IsZero() {
		w.Header().Set("Last-Modified", obj.UploadedAt.UTC().Format(http.TimeFormat))
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, obj); err != nil {
		slog.Warn("image response interrupted",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}
