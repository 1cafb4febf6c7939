package dashboard

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/banerjixplores/climacrop/pkg/errors"
	"github.com/banerjixplores/climacrop/pkg/log"
)

// View is what the layout renders for one page.
type View struct {
	Name     string
	Title    string
	Intro    string
	Nav      []Page
	Form     *Form
	Sections []Section
}

// Form holds a page's query-string controls.
type Form struct {
	Selects []Select
	Ranges  []Range
	Submit  string
}

// Select is a drop-down control.
type Select struct {
	Name, Label string
	Options     []SelectOption
}

// SelectOption is one drop-down entry.
type SelectOption struct {
	Value, Label string
	Selected     bool
}

// Range is a slider control.
type Range struct {
	Name, Label    string
	Min, Max, Step float64
	Value          float64
}

// Section is one block of page content. Empty fields are not rendered.
type Section struct {
	Heading string
	Text    string
	Warning string
	Zone    string
	Chart   template.HTML
	Table   *Table
}

// Table is a header row plus formatted cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// statusError carries the HTTP status a page failure maps to.
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func badRequest(err error) error  { return &statusError{http.StatusBadRequest, err} }
func serverError(err error) error { return &statusError{http.StatusInternalServerError, err} }

// page adapts a page builder to an HTTP handler.
func (s *Server) page(p Page) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.GetLoggerWithName("dashboard").With("page", p.Name)
		v := &View{Name: p.Name, Title: p.Title, Nav: pages}
		if err := p.build(s, r, v); err != nil {
			status := http.StatusInternalServerError
			var se *statusError
			if errors.As(err, &se) {
				status = se.status
			}
			logger.Error("Page failed", log.ErrorKey, err.Error(), "status", status)
			http.Error(w, err.Error(), status)
			return
		}

		var buf bytes.Buffer
		if err := layout.ExecuteTemplate(&buf, "layout", v); err != nil {
			logger.Error("Template failed", log.ErrorKey, err.Error())
			http.Error(w, "render page", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = buf.WriteTo(w)
	}
}

// artifact returns a chart section for the pre-rendered fragment name, or
// a warning section when it has not been rendered.
func (s *Server) artifact(name, heading string) (Section, error) {
	sec := Section{Heading: heading}
	b, err := os.ReadFile(filepath.Join(s.cfg.ImagesDir, name))
	switch {
	case err == nil:
		sec.Chart = template.HTML(b)
		return sec, nil
	case os.IsNotExist(err):
		s.metrics.ArtifactMiss(name)
		log.GetLoggerWithName("dashboard").Warn("Artifact missing", "artifact", name, log.PathKey, s.cfg.ImagesDir)
		sec.Warning = fmt.Sprintf("Chart %s has not been rendered yet. Run `climacrop render` to create it.", name)
		return sec, nil
	}
	return sec, serverError(errors.Wrapf(err, "read artifact %s", name))
}

// modelMissing is the warning shown in place of a missing model artifact.
func (s *Server) modelMissing(name string) Section {
	s.metrics.ArtifactMiss(name)
	log.GetLoggerWithName("dashboard").Warn("Artifact missing", "artifact", name, log.PathKey, s.cfg.ModelsDir)
	return Section{Warning: fmt.Sprintf("Model artifact %s was not found. Run `climacrop train` to create it.", name)}
}

// choice returns the query value of name when it is one of allowed, else
// the first allowed value.
func choice(r *http.Request, name string, allowed []string) string {
	v := r.URL.Query().Get(name)
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return allowed[0]
}

func selectOf(name, label string, values, labels []string, selected string) Select {
	sel := Select{Name: name, Label: label}
	for i, v := range values {
		l := v
		if labels != nil {
			l = labels[i]
		}
		sel.Options = append(sel.Options, SelectOption{Value: v, Label: l, Selected: v == selected})
	}
	return sel
}

// floatParam parses a numeric query value clamped to [lo, hi]. An absent
// value is def; an unparsable one is a bad request.
func floatParam(r *http.Request, name string, lo, hi, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) {
		return 0, badRequest(errors.NewValidationError(name, "must be a number", raw))
	}
	return math.Max(lo, math.Min(hi, v)), nil
}

func num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func pval(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'g', 3, 64)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
