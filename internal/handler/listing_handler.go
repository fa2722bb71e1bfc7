package handler

import (
	"bytes"
	"context"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/wanderlust/internal/middleware"
	"github.com/hitoshi/wanderlust/internal/model"
	"github.com/hitoshi/wanderlust/internal/rss"
)

// 画面に表示する通知メッセージ。
const (
	MsgListingCreated = "New Listing Created!"
	MsgListingUpdated = "Listing Is Updated Successfully!"
	MsgListingDeleted = "Listing Is Deleted Successfully!"
	MsgOwnerNoListing = "This user has no listings yet"
)

// multipartMemory はmultipartフォームをメモリに保持する上限。超過分は一時ファイルになる。
const multipartMemory = 8 << 20

// ListingServiceInterface は物件ハンドラーが必要とするサービスインターフェース。
type ListingServiceInterface interface {
	Browse(ctx context.Context, filter model.ListingFilter) (*model.SearchResult, error)
	Search(ctx context.Context, filter model.ListingFilter) (*model.SearchResult, error)
	Get(ctx context.Context, id string) (*model.ListingDetail, error)
	GetForEdit(ctx context.Context, p *model.Principal, id string) (*model.Listing, error)
	Create(ctx context.Context, p *model.Principal, in model.ListingInput, img *model.ImageUpload) (*model.Listing, error)
	Update(ctx context.Context, p *model.Principal, id string, in model.ListingInput, img *model.ImageUpload) (*model.Listing, error)
	Delete(ctx context.Context, p *model.Principal, id string) error
	ListByOwner(ctx context.Context, ownerID string) (*model.OwnerListings, error)
	Latest(ctx context.Context) ([]*model.Listing, error)
}

// ListingHandler は物件画面のHTTPハンドラー。
type ListingHandler struct {
	service ListingServiceInterface
	render  *Renderer
	baseURL string
}

// NewListingHandler はListingHandlerを生成する。baseURLはRSSフィードのリンクに使う。
func NewListingHandler(service ListingServiceInterface, render *Renderer, baseURL string) *ListingHandler {
	return &ListingHandler{service: service, render: render, baseURL: baseURL}
}

// filterView は絞り込みフォームに再表示する入力値。
type filterView struct {
	Query    string
	MinPrice string
	MaxPrice string
	Country  string
}

type filterForm struct {
	Action    string
	ShowQuery bool
	Filter    filterView
	Facets    model.Facets
}

type listingsView struct {
	Listings []*model.Listing
	Filters  filterForm
}

type showView struct {
	Detail        *model.ListingDetail
	IsOwner       bool
	CanReview     bool
	RatingChoices []int
}

type listingFormView struct {
	Heading  string
	Action   string
	Submit   string
	Cancel   string
	Input    model.ListingInput
	Errors   map[string]string
	ImageURL string
}

// parseFilter はクエリ文字列から検索条件を組み立てる。数値にならない価格は無視する。
func parseFilter(r *http.Request) (model.ListingFilter, filterView) {
	q := r.URL.Query()
	view := filterView{
		Query:    strings.TrimSpace(q.Get("q")),
		MinPrice: strings.TrimSpace(q.Get("minPrice")),
		MaxPrice: strings.TrimSpace(q.Get("maxPrice")),
		Country:  strings.TrimSpace(q.Get("country")),
	}
	filter := model.ListingFilter{
		Text:     view.Query,
		MinPrice: parseBound(view.MinPrice),
		MaxPrice: parseBound(view.MaxPrice),
		Country:  view.Country,
	}
	if strings.EqualFold(filter.Country, "all") {
		filter.Country = ""
	}
	return filter, view
}

func parseBound(raw string) *float64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return nil
	}
	return &v
}

// Index は物件一覧を表示する。
// GET /listings
func (h *ListingHandler) Index(w http.ResponseWriter, r *http.Request) {
	filter, view := parseFilter(r)
	result, err := h.service.Browse(r.Context(), filter)
	if err != nil {
		handleServiceError(w, r, h.render.ErrorPage, err, "")
		return
	}
	view.Query = ""
	h.render.Render(w, r, http.StatusOK, pageIndex, listingsView{
		Listings: result.Listings,
		Filters:  filterForm{Action: "/listings", Filter: view, Facets: result.Facets},
	})
}

// Search はキーワード検索の結果を表示する。
// GET /listings/search
func (h *ListingHandler) Search(w http.ResponseWriter, r *http.Request) {
	filter, view := parseFilter(r)
	result, err := h.service.Search(r.Context(), filter)
	if err != nil {
		handleServiceError(w, r, h.render.ErrorPage, err, "")
		return
	}
	h.render.Render(w, r, http.StatusOK, pageSearch, listingsView{
		Listings: result.Listings,
		Filters:  filterForm{Action: "/listings/search", ShowQuery: true, Filter: view, Facets: result.Facets},
	})
}

// Owner は所有者別の物件一覧を表示する。物件が無い場合は一覧へ戻す。
// GET /listings/owner/{id}
func (h *ListingHandler) Owner(w http.ResponseWriter, r *http.Request) {
	owned, err := h.service.ListByOwner(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.render.ErrorPage, err, "")
		return
	}
	if len(owned.Listings) == 0 {
		middleware.AddFlash(r, middleware.FlashInfo, MsgOwnerNoListing)
		http.Redirect(w, r, "/listings", http.StatusFound)
		return
	}
	h.render.Render(w, r, http.StatusOK, pageOwner, owned)
}

// Show は物件の詳細とレビューを表示する。
// GET /listings/{id}
func (h *ListingHandler) Show(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.render.ErrorPage, err, "")
		return
	}
	view := showView{Detail: detail, RatingChoices: []int{1, 2, 3, 4, 5}}
	if p := middleware.PrincipalFromContext(r.Context()); p != nil {
		view.IsOwner = p.ID == detail.Listing.OwnerID
		view.CanReview = !view.IsOwner
	}
	h.render.Render(w, r, http.StatusOK, pageShow, view)
}

// New は作成フォームを表示する。
// GET /listings/new
func (h *ListingHandler) New(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, r, http.StatusOK, pageNew, newListingForm(model.ListingInput{}, nil))
}

func newListingForm(in model.ListingInput, errs map[string]string) listingFormView {
	return listingFormView{
		Heading: "Create a New Listing",
		Action:  "/listings",
		Submit:  "Add",
		Cancel:  "/listings",
		Input:   in,
		Errors:  errs,
	}
}

func editListingForm(id string, in model.ListingInput, imageURL string, errs map[string]string) listingFormView {
	return listingFormView{
		Heading:  "Edit your Listing",
		Action:   "/listings/" + id + "?_method=PUT",
		Submit:   "Edit",
		Cancel:   "/listings/" + id,
		Input:    in,
		Errors:   errs,
		ImageURL: imageURL,
	}
}

// Create は物件を作成する。入力エラーはフォームを再表示する。
// POST /listings
func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, img, err := parseListingForm(r)
	if err != nil {
		handleServiceError(w, r, h.render.ErrorPage, err, "")
		return
	}
	defer closeUpload(img)

	if _, err := h.service.Create(r.Context(), middleware.PrincipalFromContext(r.Context()), in, img); err != nil {
		if isFormError(err) {
			h.render.Render(w, r, middleware.StatusForError(err), pageNew, newListingForm(in, fieldErrors(err)))
			return
		}
		handleServiceError(w, r, h.render.ErrorPage, err, "")
		return
	}

	middleware.AddFlash(r, middleware.FlashSuccess, MsgListingCreated)
	http.Redirect(w, r, "/listings", http.StatusFound)
}

// Edit は編集フォームを表示する。所有者のみ。
// GET /listings/{id}/edit
func (h *ListingHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	l, err := h.service.GetForEdit(r.Context(), middleware.PrincipalFromContext(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, h.render.ErrorPage, err, id)
		return
	}
	in := model.ListingInput{
		Title:       l.Title,
		Description: l.Description,
		Price:       strconv.FormatFloat(l.Price, 'f', -1, 64),
		Location:    l.Location,
		Country:     l.Country,
	}
	h.render.Render(w, r, http.StatusOK, pageEdit, editListingForm(id, in, l.Image.URL, nil))
}

// Update は物件を更新する。画像が添付されていれば差し替える。
// PUT /listings/{id}
func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	in, img, err := parseListingForm(r)
	if err != nil {
		handleServiceError(w, r, h.render.ErrorPage, err, id)
		return
	}
	defer closeUpload(img)

	if _, err := h.service.Update(r.Context(), middleware.PrincipalFromContext(r.Context()), id, in, img); err != nil {
		if isFormError(err) {
			h.render.Render(w, r, middleware.StatusForError(err), pageEdit, editListingForm(id, in, h.currentImageURL(r, id), fieldErrors(err)))
			return
		}
		handleServiceError(w, r, h.render.ErrorPage, err, id)
		return
	}

	middleware.AddFlash(r, middleware.FlashSuccess, MsgListingUpdated)
	http.Redirect(w, r, "/listings/"+id, http.StatusFound)
}

// currentImageURL はフォーム再表示用に保存済みの画像URLを返す。取得できなければ空。
func (h *ListingHandler) currentImageURL(r *http.Request, id string) string {
	l, err := h.service.GetForEdit(r.Context(), middleware.PrincipalFromContext(r.Context()), id)
	if err != nil || l == nil {
		return ""
	}
	return l.Image.URL
}

// Delete は物件と紐づくレビューを削除する。
// DELETE /listings/{id}
func (h *ListingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), middleware.PrincipalFromContext(r.Context()), id); err != nil {
		handleServiceError(w, r, h.render.ErrorPage, err, id)
		return
	}
	middleware.AddFlash(r, middleware.FlashSuccess, MsgListingDeleted)
	http.Redirect(w, r, "/listings", http.StatusFound)
}

// About は紹介ページを表示する。
// GET /listings/about
func (h *ListingHandler) About(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, r, http.StatusOK, pageAbout, nil)
}

// Feed は新着物件のRSSフィードを返す。
// GET /listings/feed.xml
func (h *ListingHandler) Feed(w http.ResponseWriter, r *http.Request) {
	listings, err := h.service.Latest(r.Context())
	if err != nil {
		handleServiceError(w, r, h.render.ErrorPage, err, "")
		return
	}
	var buf bytes.Buffer
	err = rss.Write(&buf, rss.Channel{
		Title:       "Wanderlust",
		Link:        h.baseURL,
		Description: "Newest places to stay on Wanderlust",
	}, listings)
	if err != nil {
		handleServiceError(w, r, h.render.ErrorPage, err, "")
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// parseListingForm はフォームの項目と任意の画像を読み出す。
// 画像が添付されていない場合、imgはnil。
func parseListingForm(r *http.Request) (model.ListingInput, *model.ImageUpload, error) {
	if err := parseForm(r); err != nil {
		return model.ListingInput{}, nil, err
	}
	in := model.ListingInput{
		Title:       r.PostFormValue("title"),
		Description: r.PostFormValue("description"),
		Price:       r.PostFormValue("price"),
		Location:    r.PostFormValue("location"),
		Country:     r.PostFormValue("country"),
	}

	if r.MultipartForm == nil {
		return in, nil, nil
	}
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil, nil
	}
	if err != nil {
		return in, nil, err
	}
	return in, &model.ImageUpload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}, nil
}

// parseForm はmultipartとurlencodedの両方のフォームを解析する。解析済みなら何もしない。
// 本文の上限超過以外の解析エラーは入力エラーとして返す。
func parseForm(r *http.Request) error {
	var err error
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediaType == "multipart/form-data" && r.MultipartForm != nil:
		return nil
	case mediaType == "multipart/form-data":
		err = r.ParseMultipartForm(multipartMemory)
	default:
		err = r.ParseForm()
	}
	if err == nil {
		return nil
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return err
	}
	return &model.AppError{
		Code:     model.ErrCodeValidation,
		Message:  "The submitted form could not be read.",
		Category: "validation",
	}
}

func closeUpload(img *model.ImageUpload) {
	if img == nil {
		return
	}
	if f, ok := img.Body.(multipart.File); ok {
		_ = f.Close()
	}
}
