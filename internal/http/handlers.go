package http

import (
	"bytes"
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"findash/internal/auth"
	"findash/internal/core"
	"findash/internal/insight"
	"findash/internal/log"
	"findash/internal/validate"
	"findash/internal/workbook"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := s.opts.Now()
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": now.UTC().Format(time.RFC3339),
		"version":   s.opts.Version,
		"uptime":    now.Sub(s.startedAt).Truncate(time.Second).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusServiceUnavailable)
		return
	}
	if s.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.opts.Ready(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ready"))
}

type sheetHelp struct {
	Name    string
	Columns []string
}

type indexData struct {
	Version      string
	User         string
	Currency     string
	Sheets       []sheetHelp
	Ranges       []core.Range
	SheetsImport bool
	HasData      bool
	Counts       core.TableCounts
	Categories   []string
	Report       insight.Report
	UploadError  string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderIndex(w, r, http.StatusOK, "")
}

func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, status int, uploadErr string) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	data := indexData{
		Version:      s.opts.Version,
		User:         auth.UserFromContext(r.Context()),
		Currency:     s.opts.Currency,
		Ranges:       core.Ranges,
		SheetsImport: s.opts.Sheets != nil,
		UploadError:  uploadErr,
	}
	for _, name := range validate.Sheets() {
		data.Sheets = append(data.Sheets, sheetHelp{Name: name, Columns: validate.Columns(name)})
	}
	sid := s.sessionID(w, r)
	if snap, err := s.store.Get(sid); err == nil {
		if eng, err := insight.New(snap, insight.WithClock(s.opts.Now)); err == nil {
			data.HasData = true
			data.Counts = snap.Counts()
			data.Categories = eng.Categories()
			data.Report = eng.CalculateInsights()
		}
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "Index template execution failed", log.FieldError, err, "template", "index.html")
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money": func(d decimal.Decimal) string { return core.FormatMoney(d, s.opts.Currency) },
		"pct":   func(d decimal.Decimal) string { return d.StringFixed(1) + "%" },
		"reason": func(err error) string {
			return insight.Reason(err)
		},
	}
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := workbook.WriteTemplate(&buf, s.opts.Now()); err != nil {
		s.logger.ErrorContext(r.Context(), "Template workbook generation failed", log.FieldError, err)
		http.Error(w, "could not build template", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="findash-template.xlsx"`)
	_, _ = buf.WriteTo(w)
}

// problem is the JSON error body of every API endpoint.
type problem struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, reason, message string) {
	writeJSON(w, status, problem{Reason: reason, Message: message})
}
