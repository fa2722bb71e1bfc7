package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/html"

	"github.com/hitoshi/wanderlust/internal/middleware"
	"github.com/hitoshi/wanderlust/internal/model"
)

// --- テスト用ヘルパー ---

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	rd, err := NewRenderer(nil)
	if err != nil {
		t.Fatalf("NewRenderer returned error: %v", err)
	}
	return rd
}

// withPrincipal はログイン済みのリクエストを作る。
func withPrincipal(req *http.Request, id, username string) *http.Request {
	return req.WithContext(middleware.ContextWithPrincipal(req.Context(), &model.Principal{ID: id, Username: username}))
}

// withURLParams はchiのURLパラメータを設定する。
func withURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// serve はflashミドルウェアを通してハンドラーを実行する。
func serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	middleware.NewFlashMiddleware(middleware.CookieConfig{})(h).ServeHTTP(w, req)
	return w
}

// readFlashes はレスポンスが設定した通知を次のリクエストとして読み出す。
func readFlashes(resp *http.Response) []middleware.FlashMessage {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range resp.Cookies() {
		if c.Name == "flash" && c.MaxAge >= 0 {
			req.AddCookie(c)
		}
	}
	var got []middleware.FlashMessage
	middleware.NewFlashMiddleware(middleware.CookieConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = middleware.Flashes(r)
	})).ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func assertRedirect(t *testing.T, w *httptest.ResponseRecorder, location string) {
	t.Helper()
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, http.StatusFound, w.Body.String())
	}
	if got := w.Header().Get("Location"); got != location {
		t.Errorf("Location = %q, want %q", got, location)
	}
}

func assertFlash(t *testing.T, w *httptest.ResponseRecorder, kind, text string) {
	t.Helper()
	msgs := readFlashes(w.Result())
	if len(msgs) != 1 || msgs[0].Kind != kind || msgs[0].Text != text {
		t.Errorf("flashes = %+v, want [%s %q]", msgs, kind, text)
	}
}

func formRequest(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// multipartRequest はフォーム項目と任意のファイルを持つmultipartリクエストを作る。
func multipartRequest(t *testing.T, method, target string, values map[string]string, fileName string, file []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range values {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("image", fileName)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(file); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// --- HTML検査 ---

func parseHTML(t *testing.T, body io.Reader) *html.Node {
	t.Helper()
	doc, err := html.Parse(body)
	if err != nil {
		t.Fatalf("failed to parse html: %v", err)
	}
	return doc
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, c := range strings.Fields(attr(n, "class")) {
			if c == class {
				return true
			}
		}
		return false
	}
}

func element(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag
	}
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	for _, t := range findAll(n, func(n *html.Node) bool { return n.Type == html.TextNode }) {
		sb.WriteString(t.Data)
		sb.WriteByte(' ')
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// formActions はページ内のフォームのaction属性を返す。
func formActions(doc *html.Node) []string {
	var out []string
	for _, f := range findAll(doc, element("form")) {
		out = append(out, attr(f, "action"))
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
