package server

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/testkube/simqueue/internal/errlog"
	"github.com/testkube/simqueue/internal/status"
)

// targetRow is one line of the status page. Each indicator carries the
// classes of its stage only.
type targetRow struct {
	Name  string
	Dev   string
	Grunt string
	Build string
}

type errorSection struct {
	Title   string
	Bucket  string
	Entries []errlog.Entry
}

func rowFor(st status.TargetStatus) targetRow {
	classes := st.Flags.Classes()
	return targetRow{
		Name:  st.Target,
		Dev:   stageClasses(classes, "-dev"),
		Grunt: stageClasses(classes, "-grunt"),
		Build: stageClasses(classes, "-build"),
	}
}

func stageClasses(classes []string, suffix string) string {
	var out []string
	for _, c := range classes {
		if strings.HasSuffix(c, suffix) {
			out = append(out, c)
		}
	}
	return joinClasses(out)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snapshot := s.Tracker.Snapshot()
	summary := status.Summarize(snapshot)

	rows := make([]targetRow, 0, len(snapshot))
	for _, st := range snapshot {
		rows = append(rows, rowFor(st))
	}

	sections := make([]errorSection, 0, len(errlog.Buckets))
	for _, b := range errlog.Buckets {
		sections = append(sections, errorSection{
			Title:   b.Title(),
			Bucket:  string(b),
			Entries: s.Errors.Entries(b),
		})
	}

	data := map[string]interface{}{
		"Title":        "Test status",
		"Targets":      rows,
		"Summary":      summary,
		"Errors":       sections,
		"OutcomeChart": template.HTML(s.Charts.OutcomeChart(summary)),
		"HistoryChart": template.HTML(""),
		"Drained":      false,
		"HostPage":     s.Frame != nil,
	}

	if s.Queue != nil {
		snap := s.Queue.Snapshot()
		data["Drained"] = snap.Drained
		data["Queue"] = snap
	}

	if s.DB != nil {
		runs, err := s.DB.ListRuns(r.Context(), 20)
		if err != nil {
			s.Log.Warn("failed to list runs", zap.Error(err))
		} else if len(runs) > 0 {
			data["Runs"] = runs
			data["HistoryChart"] = template.HTML(s.Charts.RunHistoryChart(runs))
		}
	}

	s.render(w, "status.html", data)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "Database not configured", http.StatusServiceUnavailable)
		return
	}
	id := chi.URLParam(r, "id")
	statuses, errs, err := s.loadRun(r, id)
	if err != nil {
		s.Log.Error("failed to load run", zap.String("run", id), zap.Error(err))
		http.Error(w, "Failed to load run", http.StatusInternalServerError)
		return
	}

	data := map[string]interface{}{
		"Title":    "Run " + id,
		"ID":       id,
		"Statuses": statuses,
		"Errors":   errs,
	}
	s.render(w, "run.html", data)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
