package server

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/testkube/simqueue/internal/charts"
	"github.com/testkube/simqueue/internal/database"
	"github.com/testkube/simqueue/internal/errlog"
	"github.com/testkube/simqueue/internal/sandbox"
	"github.com/testkube/simqueue/internal/scheduler"
	"github.com/testkube/simqueue/internal/signals"
	"github.com/testkube/simqueue/internal/status"
)

//go:embed templates/*.html
var templateFS embed.FS

const maxSignalBytes = 1 << 20

// QueueSource exposes the scheduler state shown by the queue API.
type QueueSource interface {
	Snapshot() scheduler.Snapshot
}

// FrameSource is implemented by execution contexts that a host page drives.
type FrameSource interface {
	State() sandbox.FrameState
}

// Deps wires the server to the running components. Frame and DB are
// optional.
type Deps struct {
	Tracker *status.Tracker
	Errors  *errlog.Log
	Queue   QueueSource
	Signals *signals.Channel
	Frame   FrameSource
	DB      database.Database
	Charts  *charts.Generator
	Log     *zap.Logger
}

type page struct {
	tmpl  *template.Template
	entry string
}

type Server struct {
	Deps
	pages map[string]page
}

func NewServer(deps Deps) *Server {
	if deps.Charts == nil {
		deps.Charts = charts.NewGenerator()
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}

	pages := map[string]page{
		// layout first, then the page defining "content"
		"status.html": {
			tmpl:  template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/status.html")),
			entry: "layout",
		},
		"run.html": {
			tmpl:  template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/run.html")),
			entry: "layout",
		},
		// the host page is bare: the iframe takes the whole viewport
		"host.html": {
			tmpl:  template.Must(template.ParseFS(templateFS, "templates/host.html")),
			entry: "host",
		},
	}

	return &Server{Deps: deps, pages: pages}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.handleStatus)
	r.Get("/host", s.handleHost)
	r.Get("/runs/{id}", s.handleRun)
	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/frame", s.handleFrameAPI)
		r.Post("/signals", s.handleSignalAPI)
		r.Get("/status", s.handleStatusAPI)
		r.Get("/status/{target}", s.handleTargetStatusAPI)
		r.Get("/errors", s.handleErrorsAPI)
		r.Get("/queue", s.handleQueueAPI)
		r.Get("/runs", s.handleRunsAPI)
		r.Get("/runs/{id}", s.handleRunAPI)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHost(w http.ResponseWriter, r *http.Request) {
	if s.Frame == nil {
		http.Error(w, "Execution context is not browser hosted", http.StatusNotFound)
		return
	}
	s.render(w, "host.html", nil)
}

func (s *Server) handleFrameAPI(w http.ResponseWriter, r *http.Request) {
	if s.Frame == nil {
		http.Error(w, "Execution context is not browser hosted", http.StatusNotFound)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, s.Frame.State())
}

func (s *Server) handleSignalAPI(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSignalBytes))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	sig, err := signals.Decode(body)
	if err == nil {
		err = sig.Validate()
	}
	if err != nil {
		s.Log.Debug("rejected signal", zap.Error(err))
		http.Error(w, "Invalid signal: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.Signals.Send(sig); err != nil {
		if errors.Is(err, signals.ErrDropped) {
			s.Log.Warn("signal dropped", zap.String("type", sig.Type), zap.String("url", sig.URL))
			http.Error(w, "Signal queue full", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleStatusAPI(w http.ResponseWriter, r *http.Request) {
	snapshot := s.Tracker.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"targets": snapshot,
		"summary": status.Summarize(snapshot),
	})
}

func (s *Server) handleTargetStatusAPI(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "target")
	st, ok := s.Tracker.Get(name)
	if !ok {
		http.Error(w, "Target not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleErrorsAPI(w http.ResponseWriter, r *http.Request) {
	buckets := errlog.Buckets
	if raw := r.URL.Query().Get("bucket"); raw != "" {
		b, err := errlog.ParseBucket(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		buckets = []errlog.Bucket{b}
	}

	out := make(map[string][]errlog.Entry, len(buckets))
	for _, b := range buckets {
		out[string(b)] = nonNil(s.Errors.Entries(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleQueueAPI(w http.ResponseWriter, r *http.Request) {
	if s.Queue == nil {
		http.Error(w, "Scheduler not running", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.Queue.Snapshot())
}

func (s *Server) handleRunsAPI(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "Database not configured", http.StatusServiceUnavailable)
		return
	}
	runs, err := s.DB.ListRuns(r.Context(), 50)
	if err != nil {
		s.Log.Error("failed to list runs", zap.Error(err))
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(runs))
}

func (s *Server) handleRunAPI(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":       id,
		"statuses": nonNil(statuses),
		"errors":   nonNil(errs),
	})
}

func (s *Server) loadRun(r *http.Request, id string) ([]database.StatusRecord, []database.ErrorRecord, error) {
	statuses, err := s.DB.GetRunStatuses(r.Context(), id)
	if err != nil {
		return nil, nil, err
	}
	errs, err := s.DB.GetRunErrors(r.Context(), id)
	if err != nil {
		return nil, nil, err
	}
	return statuses, errs, nil
}

func (s *Server) render(w http.ResponseWriter, name string, data interface{}) {
	p, ok := s.pages[name]
	if !ok {
		s.Log.Error("template not found", zap.String("template", name))
		http.Error(w, "Page not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := p.tmpl.ExecuteTemplate(w, p.entry, data); err != nil {
		s.Log.Error("template error", zap.String("template", name), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func joinClasses(classes []string) string {
	return strings.Join(classes, " ")
}
