package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"findash/internal/core"
	"findash/internal/log"
	"findash/internal/services"
	"findash/internal/validate"
)

// multipart framing allowance on top of the workbook limit
const multipartOverhead = 1 << 20

const importTimeout = 30 * time.Second

type uploadResult struct {
	Valid    bool              `json:"valid"`
	UploadID string            `json:"upload_id,omitempty"`
	Counts   *core.TableCounts `json:"counts,omitempty"`
	Reason   string            `json:"reason,omitempty"`
	Message  string            `json:"message,omitempty"`
	Detail   []map[string]any  `json:"detail,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sid := s.sessionID(w, r)
	r.Body = http.MaxBytesReader(w, r.Body, s.uploads.MaxBytes()+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.respondUpload(w, r, core.UploadRecord{}, services.ErrTooLarge)
			return
		}
		writeProblem(w, http.StatusBadRequest, "bad_request", "expected a multipart form with a 'file' field")
		return
	}
	defer file.Close()

	rec, err := s.uploads.Upload(r.Context(), sid, header.Filename, file)
	s.respondUpload(w, r, rec, err)
}

func (s *Server) handleImportSheets(w http.ResponseWriter, r *http.Request) {
	if s.opts.Sheets == nil {
		writeProblem(w, http.StatusNotFound, "not_configured", "no Google Spreadsheet is configured")
		return
	}
	sid := s.sessionID(w, r)
	ctx, cancel := context.WithTimeout(r.Context(), importTimeout)
	defer cancel()

	rec, err := s.uploads.ImportSheets(ctx, sid, s.opts.Sheets)
	s.respondUpload(w, r, rec, err)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sid := s.sessionID(w, r)
	s.store.Drop(sid)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Session data cleared", log.FieldSessionID, sid)
	if wantsHTML(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondUpload answers a browser form post with a redirect or the page
// re-rendered with the error, and API clients with JSON.
func (s *Server) respondUpload(w http.ResponseWriter, r *http.Request, rec core.UploadRecord, err error) {
	if err == nil {
		if wantsHTML(r) {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		counts := rec.Counts
		writeJSON(w, http.StatusOK, uploadResult{Valid: true, UploadID: rec.ID, Counts: &counts})
		return
	}

	status := http.StatusUnprocessableEntity
	switch {
	case errors.Is(err, services.ErrTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, services.ErrSourceUnavailable):
		status = http.StatusBadGateway
	}

	if wantsHTML(r) {
		s.renderIndex(w, r, status, err.Error())
		return
	}
	res := uploadResult{
		Valid:    false,
		UploadID: rec.ID,
		Reason:   services.Reason(err),
		Message:  err.Error(),
	}
	if s.opts.Debug {
		for _, d := range validate.Diagnostics(err) {
			detail := d.Detail()
			detail["reason"] = d.Reason()
			res.Detail = append(res.Detail, detail)
		}
	}
	writeJSON(w, status, res)
}

// wantsHTML reports whether the caller is a plain browser form post.
func wantsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}
