// Package gateway exposes the assistant over HTTP: a streaming chat
// endpoint, the live event feed, and the task, personality, profile and
// proactive APIs the UI is built on.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/junoproject/juno/internal/events"
	"github.com/junoproject/juno/internal/executor"
	"github.com/junoproject/juno/internal/gateway/ws"
	"github.com/junoproject/juno/internal/memory"
	"github.com/junoproject/juno/internal/models"
	"github.com/junoproject/juno/internal/personality"
	"github.com/junoproject/juno/internal/pipeline"
	"github.com/junoproject/juno/internal/proactive"
	"github.com/junoproject/juno/internal/router"
	"github.com/junoproject/juno/internal/store"
)

// maxHistory is the number of exchanges kept as chat context.
const maxHistory = 6

// runner executes a validated agentic request.
type runner interface {
	ExecuteValidated(ctx context.Context, req executor.Request) executor.Result
}

// pauser lets a chat turn preempt background work.
type pauser interface {
	PauseForUser(ctx context.Context)
	ResumeAfterUser()
}

// intenter classifies a user message.
type intenter interface {
	Process(ctx context.Context, text string) pipeline.Intent
}

// generator produces one-shot completions (quick acks).
type generator interface {
	Generate(ctx context.Context, spec models.Spec, prompt string) (string, error)
}

// Config wires the server to the rest of the system.
type Config struct {
	Bus         *events.Bus
	Store       *store.Store
	Memory      *memory.Memory
	Personality *personality.Manager
	Proactive   *proactive.Engine
	Pipeline    intenter
	Router      *router.Router
	Executor    runner
	Heartbeat   pauser
	Generator   generator

	Host   string
	Port   int
	Logger *slog.Logger
}

// Server is the Juno HTTP server.
type Server struct {
	httpServer *http.Server
	hub        *ws.Hub

	bus         *events.Bus
	store       *store.Store
	memory      *memory.Memory
	personality *personality.Manager
	proactive   *proactive.Engine
	pipeline    intenter
	router      *router.Router
	executor    runner
	heartbeat   pauser
	gen         generator
	logger      *slog.Logger

	histMu  sync.Mutex
	history []*schema.Message
}

// NewServer creates the gateway server and mounts all routes.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		hub:         ws.NewHub(cfg.Bus, logger),
		bus:         cfg.Bus,
		store:       cfg.Store,
		memory:      cfg.Memory,
		personality: cfg.Personality,
		proactive:   cfg.Proactive,
		pipeline:    cfg.Pipeline,
		router:      cfg.Router,
		executor:    cfg.Executor,
		heartbeat:   cfg.Heartbeat,
		gen:         cfg.Generator,
		logger:      logger.With("component", "gateway"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/health", s.handleHealth)
	r.Post("/chat", s.handleChat)
	r.Get("/events", s.handleEvents)
	r.Get("/ws", s.hub.ServeWS)

	r.Get("/tasks", s.handleTaskList)
	r.Post("/tasks", s.handleTaskCreate)
	r.Delete("/tasks/{id}", s.handleTaskCancel)
	r.Get("/tasks/summary", s.handleTaskSummary)

	r.Post("/personality", s.handlePersonalitySave)
	r.Get("/personality", s.handlePersonalityGet)
	r.Get("/personality/presets", s.handlePresets)

	r.Get("/profile", s.handleProfile)
	r.Get("/proactive", s.handleProactive)
	r.Get("/proactive/push", s.handleProactivePush)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: r,
	}
	return s
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("gateway listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.memory.DisplayProfile(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	profile.AssistantName = s.personality.Name()
	writeJSON(w, profile)
}

func (s *Server) handleProactive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"suggestions": s.proactive.SidebarSuggestions(r.Context()),
	})
}

func (s *Server) handleProactivePush(w http.ResponseWriter, r *http.Request) {
	msg := s.proactive.PushMessage(r.Context())
	if msg != "" && s.bus != nil {
		s.bus.Publish(events.NewTypedEvent(events.SourceServer, events.ProactivePayload{Message: msg}))
	}
	writeJSON(w, map[string]string{"message": msg})
}

// appendHistory records a conversation turn, trimming to the last
// maxHistory exchanges.
func (s *Server) appendHistory(msg *schema.Message) {
	s.histMu.Lock()
	defer s.histMu.Unlock()
	s.history = append(s.history, msg)
	if len(s.history) > maxHistory*2 {
		s.history = s.history[len(s.history)-maxHistory*2:]
	}
}

// historySnapshot returns a copy safe to hand to the executor.
func (s *Server) historySnapshot() []*schema.Message {
	s.histMu.Lock()
	defer s.histMu.Unlock()
	out := make([]*schema.Message, len(s.history))
	copy(out, s.history)
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
