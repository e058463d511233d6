package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/epidash/internal/dashboard"
	"github.com/sells-group/epidash/internal/geo"
	"github.com/sells-group/epidash/internal/model"
	"github.com/sells-group/epidash/internal/records"
	"github.com/sells-group/epidash/internal/scale"
)

var errBadRequest = eris.New("server: bad request")

func badRequest(format string, args ...any) error {
	return eris.Wrapf(errBadRequest, format, args...)
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

// parseInstant accepts an RFC 3339 timestamp or a calendar day.
func parseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := records.ParseDate(s)
	if err != nil {
		return time.Time{}, badRequest("invalid date %q", s)
	}
	return t, nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	res, err := s.disp.Dispatch(r.Context(), dashboard.GetSnapshot{})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Snapshot)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"selectable": model.SelectableMetrics,
		"all":        model.AllMetrics,
	})
}

func (s *Server) handleSelectMetric(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Metric string `json:"metric"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	m, err := model.ParseMetric(req.Metric)
	if err != nil {
		writeError(w, err)
		return
	}
	s.dispatch(w, r, dashboard.SelectMetric{Metric: m})
}

func (s *Server) handleFilterRange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	from, err := parseInstant(req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := parseInstant(req.To)
	if err != nil {
		writeError(w, err)
		return
	}
	s.dispatch(w, r, dashboard.FilterRange{From: from, To: to})
}

func (s *Server) handleClearRange(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, dashboard.ClearRange{})
}

func (s *Server) handleScrub(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index *int `json:"index"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Index == nil {
		writeError(w, badRequest("index is required"))
		return
	}
	s.dispatch(w, r, dashboard.Scrub{Index: *req.Index})
}

func (s *Server) handleTogglePlay(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, dashboard.TogglePlay{})
}

func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("t")
	if raw == "" {
		writeError(w, badRequest("t is required"))
		return
	}
	at, err := parseInstant(raw)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.disp.Dispatch(r.Context(), dashboard.Hover{At: at})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"at": at, "samples": res.Samples})
}

func (s *Server) handleRegions(w http.ResponseWriter, _ *http.Request) {
	regions := []geo.Region{}
	if s.opts.Layer != nil {
		regions = s.opts.Layer.Regions
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"regions":   regions,
		"unmatched": s.opts.Layer.Unmatched(),
	})
}

func (s *Server) handleSelectRegion(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, badRequest("invalid region name"))
		return
	}
	s.dispatch(w, r, dashboard.SelectRegion{Name: name})
}

func (s *Server) handleCloseDetail(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, dashboard.CloseDetail{})
}

func (s *Server) handleLegend(w http.ResponseWriter, r *http.Request) {
	n := 5
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 2 || v > 100 {
			writeError(w, badRequest("n must be an integer between 2 and 100"))
			return
		}
		n = v
	}
	res, err := s.disp.Dispatch(r.Context(), dashboard.GetSnapshot{})
	if err != nil {
		writeError(w, err)
		return
	}
	m := scale.NewManager()
	m.SetDomain(res.Snapshot.Domain)
	writeJSON(w, http.StatusOK, map[string]any{
		"domain":  res.Snapshot.Domain,
		"no_data": scale.NoDataHex,
		"stops":   m.Legend(n),
	})
}

func (s *Server) handleCache(w http.ResponseWriter, _ *http.Request) {
	if s.opts.CacheStats == nil {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, s.opts.CacheStats())
}

func (s *Server) handleQuality(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Quality == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "quality snapshot not collected"})
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Quality)
}
