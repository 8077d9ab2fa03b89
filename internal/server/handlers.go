package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/naka-gawa/commit-board/internal/domain"
	"github.com/naka-gawa/commit-board/internal/rotator"
	"github.com/naka-gawa/commit-board/internal/usecase"
)

// isoMillis is RFC 3339 in UTC with exactly three fractional digits.
const isoMillis = "2006-01-02T15:04:05.000Z"

type teamsResponse struct {
	Teams     []domain.TeamRecord `json:"teams"`
	UpdatedAt string              `json:"updatedAt"`
	Cached    bool                `json:"cached"`
	Stale     bool                `json:"stale,omitempty"`
}

type summaryResponse struct {
	Summary   domain.Summary `json:"summary"`
	UpdatedAt string         `json:"updatedAt"`
	Cached    bool           `json:"cached"`
	Stale     bool           `json:"stale,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleTeams(w http.ResponseWriter, r *http.Request) {
	res, err := s.teams.Get(r.Context())
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	teams := res.Teams
	if teams == nil {
		teams = []domain.TeamRecord{}
	}
	s.writeJSON(w, http.StatusOK, teamsResponse{
		Teams:     teams,
		UpdatedAt: res.UpdatedAt.UTC().Format(isoMillis),
		Cached:    res.Cached,
		Stale:     res.Stale,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	res, err := s.teams.Get(r.Context())
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, summaryResponse{
		Summary:   usecase.Summarize(res.Teams),
		UpdatedAt: res.UpdatedAt.UTC().Format(isoMillis),
		Cached:    res.Cached,
		Stale:     res.Stale,
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	content, err := s.info.Select()
	if err != nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		var missing *rotator.MissingFileError
		if errors.As(err, &missing) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = fmt.Fprint(w, missingFileBody(missing, s.infoConfigName))
			return
		}
		s.logger.Error("Failed to serve info file", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = fmt.Fprintf(w, "# Could not read info file\n\n%s\n", err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Rotation-Interval", strconv.Itoa(content.Interval))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content.Body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// missingFileBody renders the markdown shown on the dashboard when the
// selected file is absent.
func missingFileBody(err *rotator.MissingFileError, configName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# File not found: %s\n\nCheck your `%s`.\n", err.Name, configName)
	if len(err.Listing) > 0 {
		b.WriteString("\nFiles present:\n")
		for _, name := range err.Listing {
			fmt.Fprintf(&b, "- %s\n", name)
		}
	}
	return b.String()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response", zap.Error(err))
	}
}
