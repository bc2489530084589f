package http

import (
	"net/http"

	"findash/internal/core"
	"findash/internal/insight"
	"findash/internal/log"
)

// engine returns an insight engine over the caller's snapshot, or writes a
// 409 and returns nil.
func (s *Server) engine(w http.ResponseWriter, r *http.Request) *insight.Engine {
	snap, err := s.store.Get(s.sessionID(w, r))
	if err == nil {
		var eng *insight.Engine
		if eng, err = insight.New(snap, insight.WithClock(s.opts.Now)); err == nil {
			return eng
		}
	}
	writeProblem(w, http.StatusConflict, insight.Reason(core.ErrNoSnapshot), "upload a workbook first")
	return nil
}

// writeSeries writes v, or maps a computation error to a problem response.
func (s *Server) writeSeries(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, v)
		return
	}
	reason := insight.Reason(err)
	status := http.StatusUnprocessableEntity
	if reason == "error" {
		status = http.StatusInternalServerError
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Series computation failed",
			log.FieldError, err, log.FieldPath, r.URL.Path)
	}
	writeProblem(w, status, reason, err.Error())
}

func (s *Server) rangeParam(w http.ResponseWriter, r *http.Request) (core.Range, bool) {
	rng, err := ParseRangeParam(r.URL.Query())
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_request", err.Error())
		return "", false
	}
	return rng, true
}

func (s *Server) handleNetWorth(w http.ResponseWriter, r *http.Request) {
	rng, ok := s.rangeParam(w, r)
	if !ok {
		return
	}
	eng := s.engine(w, r)
	if eng == nil {
		return
	}
	points, err := eng.NetWorthSeries(rng)
	s.writeSeries(w, r, points, err)
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	rng, ok := s.rangeParam(w, r)
	if !ok {
		return
	}
	eng := s.engine(w, r)
	if eng == nil {
		return
	}
	cmp, err := eng.IncomeVsExpenses(rng)
	s.writeSeries(w, r, cmp, err)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	rng, ok := s.rangeParam(w, r)
	if !ok {
		return
	}
	eng := s.engine(w, r)
	if eng == nil {
		return
	}
	shares, err := eng.CategoryBreakdown(rng)
	s.writeSeries(w, r, shares, err)
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	params, err := ParseBudgetParams(r.URL.Query(), s.opts.Now())
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	eng := s.engine(w, r)
	if eng == nil {
		return
	}
	lines, err := eng.BudgetVsActual(params.Categories, params.Month)
	s.writeSeries(w, r, lines, err)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	eng := s.engine(w, r)
	if eng == nil {
		return
	}
	writeJSON(w, http.StatusOK, eng.CalculateInsights())
}

type filters struct {
	Ranges     []core.Range `json:"ranges"`
	Categories []string     `json:"categories"`
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	eng := s.engine(w, r)
	if eng == nil {
		return
	}
	cats := eng.Categories()
	if cats == nil {
		cats = []string{}
	}
	writeJSON(w, http.StatusOK, filters{Ranges: core.Ranges, Categories: cats})
}

func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	if s.opts.Uploads == nil {
		writeProblem(w, http.StatusNotFound, "not_supported", "the configured upload journal cannot list uploads")
		return
	}
	limit, err := ParseLimitParam(r.URL.Query(), 20, 200)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	recs, err := s.opts.Uploads.Recent(r.Context(), limit)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Listing uploads failed",
			log.FieldError, err, log.FieldOperation, log.OpList)
		writeProblem(w, http.StatusInternalServerError, "error", "could not list uploads")
		return
	}
	if recs == nil {
		recs = []core.UploadRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

