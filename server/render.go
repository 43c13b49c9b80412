package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/minios-linux/transcan/catalog"
	"github.com/minios-linux/transcan/i18n"
	"github.com/minios-linux/transcan/langmeta"
)

//go:embed templates/*.html
var templateFS embed.FS

func parseTemplates() (*template.Template, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"localeName": localeName,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return tmpl, nil
}

// tab is the listing of one locale.
type tab struct {
	Locale string
	Meta   langmeta.Meta
	Page   catalog.Page
	// PrevURL and NextURL link the neighbouring pages, empty at the ends.
	PrevURL string
	NextURL string
}

// view is the data of the listing templates.
type view struct {
	Prefix  string
	L       *i18n.Translator
	Search  string
	PerPage int
	Locales []string
	Tabs    []tab
	Active  string
	Flash   string
}

// listing builds the tabs of locales for the request's search and page
// parameters.
func (s *Server) listing(r *http.Request, in input, locales []string) view {
	v := view{
		Prefix:  s.opts.Prefix,
		L:       s.translator(r),
		Search:  in.Search,
		PerPage: in.PerPage,
		Locales: locales,
		Active:  in.Tab,
	}

	query := r.URL.Query()
	for _, locale := range locales {
		page, _ := strconv.Atoi(query.Get("page_" + locale))
		entries := catalog.Search(s.entries(locale), in.Search)
		p := catalog.Paginate(entries, page, in.PerPage)
		t := tab{Locale: locale, Meta: langmeta.Resolve(locale), Page: p}
		if p.HasPrev() {
			t.PrevURL = s.pageURL(query, locale, p.CurrentPage-1)
		}
		if p.HasNext() {
			t.NextURL = s.pageURL(query, locale, p.CurrentPage+1)
		}
		v.Tabs = append(v.Tabs, t)
	}

	if v.Active == "" || !contains(locales, v.Active) {
		v.Active = ""
		if len(locales) > 0 {
			v.Active = locales[0]
		}
	}
	return v
}

func (s *Server) pageURL(query url.Values, locale string, page int) string {
	q := url.Values{}
	for k, vs := range query {
		q[k] = append([]string(nil), vs...)
	}
	q.Set("page_"+locale, strconv.Itoa(page))
	return s.opts.Prefix + "/?" + q.Encode() + "#" + locale
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		s.opts.Log.Error().Err(err).Str("template", name).Msg("rendering template")
		writeError(w, http.StatusInternalServerError, "rendering failed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) renderString(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.String(), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeError writes the {"status":"error","message":...} error body.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": message})
}

// ---------------------------------------------------------------------------
// Flash messages
// ---------------------------------------------------------------------------

const flashCookie = "transcan_flash"

func (s *Server) setFlash(w http.ResponseWriter, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(message),
		Path:     s.cookiePath(),
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash returns the pending flash message and clears it.
func (s *Server) popFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: s.cookiePath(), MaxAge: -1})
	msg, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return msg
}

func (s *Server) cookiePath() string {
	return s.opts.Prefix + "/"
}

// redirectBack sends a form post back to the page it came from, or to the
// index, with a flash message and the active locale as fragment.
func (s *Server) redirectBack(w http.ResponseWriter, r *http.Request, message, locale string) {
	s.setFlash(w, message)
	target := s.opts.Prefix + "/"
	if ref, err := url.Parse(r.Referer()); err == nil && ref.Path != "" && (ref.Host == "" || ref.Host == r.Host) {
		target = ref.Path
		if ref.RawQuery != "" {
			target += "?" + ref.RawQuery
		}
	}
	if locale != "" {
		target += "#" + locale
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
