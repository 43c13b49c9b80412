package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/minios-linux/transcan/catalog"
	"github.com/minios-linux/transcan/i18n"
	"github.com/minios-linux/transcan/langmeta"
	"github.com/minios-linux/transcan/scan"
)

const (
	maxPerPage    = 200
	maxFormMemory = 1 << 20

	msgListed = "Translations updated successfully!"
)

// input holds the parameters of a request, from the query, a form
// (urlencoded or multipart) or a JSON body.
type input struct {
	Locale  string   `json:"locale"`
	Key     string   `json:"key"`
	Value   string   `json:"value"`
	File    string   `json:"file"`
	Tab     string   `json:"tab"`
	Search  string   `json:"search"`
	PerPage int      `json:"per_page"`
	Locales []string `json:"locales"`
}

func (s *Server) parseInput(r *http.Request) (input, error) {
	var in input
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		dec := json.NewDecoder(io.LimitReader(r.Body, maxFormMemory))
		if err := dec.Decode(&in); err != nil {
			return in, fmt.Errorf("decoding request body: %w", err)
		}
	}

	if err := r.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return in, fmt.Errorf("parsing form: %w", err)
	}
	form := r.Form
	pick := func(dst *string, name string) {
		if *dst == "" {
			*dst = strings.TrimSpace(form.Get(name))
		}
	}
	pick(&in.Locale, "locale")
	pick(&in.File, "file")
	pick(&in.Tab, "tab")
	pick(&in.Search, "search")
	if in.Key == "" {
		in.Key = form.Get("key")
	}
	if in.Value == "" {
		in.Value = form.Get("value")
	}
	in.Key = strings.TrimSpace(in.Key)

	if in.PerPage == 0 {
		in.PerPage, _ = strconv.Atoi(form.Get("per_page"))
	}
	switch {
	case in.PerPage < 1:
		in.PerPage = s.opts.PerPage
	case in.PerPage > maxPerPage:
		in.PerPage = maxPerPage
	}

	if len(in.Locales) == 0 {
		for _, name := range []string{"locales[]", "locales"} {
			for _, v := range form[name] {
				in.Locales = append(in.Locales, splitLocales(v)...)
			}
		}
	}
	for _, l := range in.Locales {
		if !catalog.ValidLocale(l) {
			return in, fmt.Errorf("%w: %q", catalog.ErrInvalidLocale, l)
		}
	}
	return in, nil
}

func splitLocales(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == ' '
	})
}

// isAJAX reports whether the client expects a JSON reply. A JSON request
// body counts as an API call.
func isAJAX(r *http.Request) bool {
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
		strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// listLocales returns the locales shown as tabs.
func (s *Server) listLocales() ([]string, error) {
	locales, err := s.opts.Catalog.Locales()
	if err != nil {
		return nil, err
	}
	if len(locales) == 0 {
		locales = s.opts.DefaultLocales
	}
	return locales, nil
}

// requestLocales returns the locales named by the request, or the defaults.
func (s *Server) requestLocales(in input) []string {
	if len(in.Locales) > 0 {
		return in.Locales
	}
	return s.opts.DefaultLocales
}

// fail writes the error reply for a failed request: 400 for invalid input
// and 500 for anything else.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrInvalidFile),
		errors.Is(err, catalog.ErrInvalidLocale),
		errors.Is(err, catalog.ErrEmptyKey),
		errors.Is(err, errBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

var errBadRequest = errors.New("bad request")

// listingReply renders the tab partial for locales and writes the AJAX
// {success, html, tab} reply.
func (s *Server) listingReply(w http.ResponseWriter, r *http.Request, in input, locales []string, message string) {
	v := s.listing(r, in, locales)
	html, err := s.renderString("tabs", v)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"success": message,
		"html":    html,
		"tab":     v.Active,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	in, err := s.parseInput(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	locales, err := s.listLocales()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if isAJAX(r) {
		s.listingReply(w, r, in, locales, msgListed)
		return
	}

	v := s.listing(r, in, locales)
	v.Flash = s.popFlash(w, r)
	s.render(w, http.StatusOK, "index", v)
}

// localeListing is one locale of the /list reply.
type localeListing struct {
	Locale string       `json:"locale"`
	Name   string       `json:"name"`
	Flag   string       `json:"flag"`
	Dir    string       `json:"dir"`
	Page   catalog.Page `json:"page"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	in, err := s.parseInput(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	locales := in.Locales
	if len(locales) == 0 {
		if locales, err = s.listLocales(); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	v := s.listing(r, in, locales)
	out := make([]localeListing, 0, len(v.Tabs))
	for _, t := range v.Tabs {
		out = append(out, localeListing{
			Locale: t.Locale,
			Name:   t.Meta.Name,
			Flag:   t.Meta.Flag,
			Dir:    t.Meta.Dir(),
			Page:   t.Page,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"search":   in.Search,
		"per_page": in.PerPage,
		"locales":  out,
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	in, err := s.parseInput(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if in.Locale == "" || in.Key == "" {
		s.fail(w, r, fmt.Errorf("%w: locale and key are required", errBadRequest))
		return
	}

	err = s.locked(func() error {
		return s.opts.Catalog.Update(in.Locale, in.Key, in.Value, in.File)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if isAJAX(r) {
		writeJSON(w, http.StatusOK, map[string]string{"success": "Updated translation for " + in.Key})
		return
	}
	s.redirectBack(w, r, s.translator(r).T("Translation updated successfully."), in.Locale)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	in, err := s.parseInput(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if in.File == "" || in.Key == "" {
		s.fail(w, r, fmt.Errorf("%w: file and key are required", errBadRequest))
		return
	}

	err = s.locked(func() error {
		return s.opts.Catalog.Delete(in.File, in.Key)
	})
	if errors.Is(err, catalog.ErrFileNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("File %s not found", in.File)})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if isAJAX(r) {
		s.listingReply(w, r, in, s.requestLocales(in), "Deleted translation "+in.Key)
		return
	}
	s.redirectBack(w, r, s.translator(r).T("Translation deleted successfully."), in.Tab)
}

func (s *Server) handleScan(translate bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := s.parseInput(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if s.opts.Scan == nil {
			s.fail(w, r, fmt.Errorf("%w: scanning is not enabled", errBadRequest))
			return
		}
		locales := s.requestLocales(in)

		var report *scan.Report
		err = s.locked(func() (err error) {
			report, err = s.opts.Scan(r.Context(), locales, translate)
			return err
		})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if report != nil {
			zerolog.Ctx(r.Context()).Info().
				Strs("locales", locales).
				Bool("translate", translate).
				Int("changed", report.Changed()).
				Msg("scan finished")
		}

		if isAJAX(r) {
			s.listingReply(w, r, in, locales, msgListed)
			return
		}
		t := s.translator(r)
		msg := t.T("Scan completed successfully.")
		if translate {
			msg = t.T("Scan and translation completed successfully.")
		}
		s.redirectBack(w, r, msg, in.Tab)
	}
}

// locked runs fn with the stores locked and drops the listing cache
// afterwards, whether fn succeeded or not.
func (s *Server) locked(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.invalidate()
	return fn()
}

// translator returns the UI translator for the request's Accept-Language.
func (s *Server) translator(r *http.Request) *i18n.Translator {
	return i18n.New(i18n.Negotiate(r.Header.Get("Accept-Language")))
}

// localeName is used by the templates for tab labels.
func localeName(locale string) string {
	m := langmeta.Resolve(locale)
	if m.Flag == "" {
		return m.Name
	}
	return m.Flag + " " + m.Name
}
