// Package server exposes simulator sessions over HTTP and streams committed
// ticks to websocket clients.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/san-kum/mlplay/internal/engine"
	"github.com/san-kum/mlplay/internal/experiment"
	"github.com/san-kum/mlplay/internal/playground"
	"github.com/san-kum/mlplay/internal/render"
	"golang.org/x/net/websocket"
)

type Server struct {
	reg      *experiment.Registry
	sessions *Sessions
	log      *slog.Logger
	addr     string

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

// New creates a server. Sessions created through it stop ticking when ctx
// is done.
func New(ctx context.Context, reg *experiment.Registry, addr string, maxSessions int, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		reg:      reg,
		sessions: NewSessions(ctx, reg, maxSessions),
		log:      log,
		addr:     addr,
	}
}

func (s *Server) Sessions() *Sessions { return s.sessions }

// Addr returns the bound address once ListenAndServe is listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/simulators", s.handleSimulators)
	mux.HandleFunc("POST /api/sessions", s.handleCreate)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleStatus)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDelete)
	mux.HandleFunc("POST /api/sessions/{id}/{action}", s.handleAction)
	mux.HandleFunc("PUT /api/sessions/{id}/params", s.handleParams)
	mux.HandleFunc("GET /api/sessions/{id}/frame.svg", s.handleFrame)
	mux.HandleFunc("GET /api/sessions/{id}/trajectory", s.handleTrajectory)
	mux.HandleFunc("GET /api/sessions/{id}/stream", s.handleStream)
	return s.logRequests(mux)
}

// ListenAndServe blocks until ctx is cancelled, then shuts down and closes
// every session.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.httpServer = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	srv := s.httpServer
	s.mu.Unlock()

	s.log.Info("server listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.sessions.CloseAll()
		srv.Shutdown(shutdownCtx)
	}()

	err = srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

type paramView struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Step        float64 `json:"step"`
	Default     float64 `json:"default"`
}

type simulatorView struct {
	Name        string      `json:"name"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Params      []paramView `json:"params"`
	Overlays    []string    `json:"overlays"`
	Metric      string      `json:"metric"`
	IntervalMS  int64       `json:"interval_ms"`
	MaxTicks    int         `json:"max_ticks"`
}

type statusView struct {
	ID         string             `json:"id"`
	Simulator  string             `json:"simulator"`
	Status     string             `json:"status"`
	Tick       int                `json:"tick"`
	Values     map[string]float64 `json:"values"`
	Params     map[string]float64 `json:"params"`
	Degenerate bool               `json:"degenerate"`
	Reason     string             `json:"reason,omitempty"`
}

// Event is one message on the stream.
type Event struct {
	Tick       int                `json:"tick"`
	Status     string             `json:"status"`
	Values     map[string]float64 `json:"values"`
	Degenerate bool               `json:"degenerate,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	SVG        string             `json:"svg"`
}

func viewSimulator(info playground.Info) simulatorView {
	v := simulatorView{
		Name:        info.Name,
		Title:       info.Title,
		Description: info.Description,
		Overlays:    info.Overlays,
		Metric:      info.Metric,
		IntervalMS:  info.Config.Interval.Milliseconds(),
		MaxTicks:    info.Config.MaxTicks,
	}
	for _, p := range info.Params {
		v.Params = append(v.Params, paramView{
			Name: p.Name, Description: p.Description,
			Min: p.Min, Max: p.Max, Step: p.Step, Default: p.Default,
		})
	}
	return v
}

func viewStatus(m *Mounted) statusView {
	degenerate, reason := m.Session.Degenerate()
	return statusView{
		ID:         m.ID,
		Simulator:  m.Simulator,
		Status:     m.Session.Status().String(),
		Tick:       m.Session.Ticks(),
		Values:     m.Session.Values(),
		Params:     m.Session.Params(),
		Degenerate: degenerate,
		Reason:     reason,
	}
}

func (s *Server) handleSimulators(w http.ResponseWriter, r *http.Request) {
	infos := s.reg.List()
	out := make([]simulatorView, len(infos))
	for i, info := range infos {
		out[i] = viewSimulator(info)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	m, err := s.sessions.Create(req, engine.WithLogger(s.log))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.log.Info("session mounted", "id", m.ID, "simulator", m.Simulator)
	writeJSON(w, http.StatusCreated, map[string]string{"id": m.ID})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mounted(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewStatus(m))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.sessions.Delete(id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.log.Info("session unmounted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mounted(w, r)
	if !ok {
		return
	}
	sess := m.Session

	var err error
	switch action := r.PathValue("action"); action {
	case "start":
		err = sess.Start()
	case "pause":
		err = sess.Pause()
	case "resume":
		err = sess.Resume()
	case "stop":
		err = sess.Stop()
	case "reset":
		sess.Reset()
	case "step":
		err = sess.StepOnce()
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown action %q", action))
		return
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, viewStatus(m))
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mounted(w, r)
	if !ok {
		return
	}
	var body map[string]float64
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode params: %w", err))
		return
	}

	names := make([]string, 0, len(body))
	for name := range body {
		if _, ok := m.Session.Info().Param(name); !ok {
			writeError(w, http.StatusBadRequest, &playground.ParamError{Name: name})
			return
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := m.Session.SetParam(name, body[name]); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
	}
	writeJSON(w, http.StatusOK, viewStatus(m))
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mounted(w, r)
	if !ok {
		return
	}
	f := m.Session.Frame(frameOptions(r))
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write([]byte(render.SVG(f)))
}

func (s *Server) handleTrajectory(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mounted(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, m.Session.Records())
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mounted(w, r)
	if !ok {
		return
	}
	opts := frameOptions(r)

	ws := websocket.Server{Handler: func(conn *websocket.Conn) {
		defer conn.Close()
		records, unsubscribe := m.Subscribe()
		defer unsubscribe()

		// the read side only watches for the client going away
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			var discard string
			for websocket.Message.Receive(conn, &discard) == nil {
			}
		}()

		if err := websocket.JSON.Send(conn, s.event(m, opts, m.Session.Ticks())); err != nil {
			return
		}
		for {
			select {
			case <-gone:
				return
			case rec, ok := <-records:
				if !ok {
					return
				}
				if err := websocket.JSON.Send(conn, s.event(m, opts, rec.Tick)); err != nil {
					s.log.Debug("stream send failed", "id", m.ID, "err", err)
					return
				}
			}
		}
	}}
	ws.ServeHTTP(w, r)
}

func (s *Server) event(m *Mounted, opts render.Options, tick int) Event {
	degenerate, reason := m.Session.Degenerate()
	return Event{
		Tick:       tick,
		Status:     m.Session.Status().String(),
		Values:     m.Session.Values(),
		Degenerate: degenerate,
		Reason:     reason,
		SVG:        render.SVG(m.Session.Frame(opts)),
	}
}

func (s *Server) mounted(w http.ResponseWriter, r *http.Request) (*Mounted, bool) {
	m, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	return m, true
}

// frameOptions reads ?overlay=a&overlay=b&width=&height= from the request.
func frameOptions(r *http.Request) render.Options {
	opts := render.DefaultOptions()
	q := r.URL.Query()
	for _, o := range q["overlay"] {
		opts.Overlays[o] = true
	}
	if w, err := strconv.Atoi(q.Get("width")); err == nil && w > 0 && w <= 4096 {
		opts.Width = w
	}
	if h, err := strconv.Atoi(q.Get("height")); err == nil && h > 0 && h <= 4096 {
		opts.Height = h
	}
	return opts
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, experiment.ErrUnknownSimulator):
		return http.StatusNotFound
	case errors.Is(err, ErrTooManySessions):
		return http.StatusTooManyRequests
	case errors.Is(err, engine.ErrInvalidTransition), errors.Is(err, engine.ErrExhausted):
		return http.StatusConflict
	case errors.Is(err, engine.ErrUnknownParam), errors.Is(err, engine.ErrInvalidConfig):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
