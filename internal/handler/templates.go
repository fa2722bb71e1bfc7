package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/hitoshi/wanderlust/internal/middleware"
	"github.com/hitoshi/wanderlust/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// 画面テンプレート名。templates/<name>.html に対応する。
const (
	pageIndex   = "index"
	pageSearch  = "search"
	pageShow    = "show"
	pageNew     = "new"
	pageEdit    = "edit"
	pageOwner   = "owner"
	pageReport  = "report"
	pageAbout   = "about"
	pageSignup  = "signup"
	pageLogin   = "login"
	pageProfile = "profile"
	pageError   = "error"
)

var allPages = []string{
	pageIndex, pageSearch, pageShow, pageNew, pageEdit, pageOwner,
	pageReport, pageAbout, pageSignup, pageLogin, pageProfile, pageError,
}

var pricePrinter = message.NewPrinter(language.English)

var templateFuncs = template.FuncMap{
	"formatPrice": formatPrice,
	"formatDate": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("Jan 2, 2006")
	},
	"stars": func(n int) string {
		if n < 0 {
			n = 0
		}
		if n > 5 {
			n = 5
		}
		return strings.Repeat("★", n) + strings.Repeat("☆", 5-n)
	},
}

// formatPrice は価格を桁区切り付きの整数で表示する。
func formatPrice(v float64) string {
	return pricePrinter.Sprintf("%d", int64(math.Round(v)))
}

// viewData はレイアウトと各画面に渡すデータ。
type viewData struct {
	Principal *model.Principal
	Flashes   []middleware.FlashMessage
	CSRFToken string
	CSRFField string
	Data      any
}

// Renderer はレイアウトと画面テンプレートを組み合わせてHTMLを描画する。
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// NewRenderer は埋め込みテンプレートをすべて解析する。
func NewRenderer(logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rd := &Renderer{pages: make(map[string]*template.Template, len(allPages)), logger: logger}
	for _, name := range allPages {
		t, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/partials.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		rd.pages[name] = t
	}
	return rd, nil
}

// Render は画面を描画する。バッファに描画してから書き出すため、失敗時に途中のHTMLは送られない。
// 通知はここで読み出されて消費される。
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	t, ok := rd.pages[page]
	if !ok {
		rd.logger.Error("unknown template", slog.String("page", page))
		http.Error(w, middleware.GenericErrorMessage, http.StatusInternalServerError)
		return
	}

	view := viewData{
		Principal: middleware.PrincipalFromContext(r.Context()),
		Flashes:   middleware.Flashes(r),
		CSRFToken: middleware.CSRFToken(r.Context()),
		CSRFField: middleware.CSRFFormField,
		Data:      data,
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, view); err != nil {
		rd.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, middleware.GenericErrorMessage, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type errorView struct {
	Status  int
	Title   string
	Message string
}

// ErrorPage はエラー画面を描画する。middleware.ErrorPage として使う。
func (rd *Renderer) ErrorPage(w http.ResponseWriter, r *http.Request, status int, message string) {
	rd.Render(w, r, status, pageError, errorView{
		Status:  status,
		Title:   http.StatusText(status),
		Message: message,
	})
}
