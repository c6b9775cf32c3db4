package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"solexplorer/pkg/account"
	"solexplorer/pkg/tokens"
	"solexplorer/pkg/watcher"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	watcher  *watcher.Watcher
	ctrl     *account.Controller
	registry *tokens.Registry
	log      zerolog.Logger
	clients  map[*websocket.Conn]bool
	mu       sync.Mutex
	router   chi.Router
}

func NewServer(w *watcher.Watcher, registry *tokens.Registry, logger zerolog.Logger) *Server {
	s := &Server{
		watcher:  w,
		ctrl:     account.NewController(w),
		registry: registry,
		log:      logger.With().Str("component", "server").Logger(),
		clients:  make(map[*websocket.Conn]bool),
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)
	s.router.Get("/api/status", s.handleStatus)
	s.router.Get("/ws", s.handleWS)
	s.router.Get("/address/{address}", s.handlePage)
	s.router.Get("/address/{address}/{tab}", s.handlePage)
	s.router.Post("/address/{address}/refetch", s.handleRefetch)
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(port int) error {
	go s.listenToWatcher(s.watcher.Subscribe())

	s.log.Info().Int("port", port).Msg("API server listening")
	return http.ListenAndServe(fmt.Sprintf(":%d", port), s.router)
}

type pageResponse struct {
	account.Page
	Header  tokens.Header `json:"header"`
	Cluster string        `json:"cluster"`
}

// statusCode maps a page state onto the HTTP status of its response.
func statusCode(state account.PageState) int {
	switch state {
	case account.PageInvalid:
		return http.StatusBadRequest
	case account.PageLoading:
		return http.StatusAccepted
	case account.PageFailed:
		return http.StatusBadGateway
	case account.PageRedirect:
		return http.StatusFound
	default:
		return http.StatusOK
	}
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	page := s.ctrl.Load(chi.URLParam(r, "address"), chi.URLParam(r, "tab"))

	if page.State == account.PageRedirect {
		target := page.RedirectTo
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		s.log.Debug().Str("from", r.URL.Path).Str("to", target).Msg("redirecting unavailable tab")
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	s.writePage(w, page, statusCode(page.State))
}

func (s *Server) handleRefetch(w http.ResponseWriter, r *http.Request) {
	page := s.ctrl.Retry(chi.URLParam(r, "address"), "")
	code := http.StatusAccepted
	if page.State == account.PageInvalid {
		code = http.StatusBadRequest
	}
	s.writePage(w, page, code)
}

func (s *Server) writePage(w http.ResponseWriter, page account.Page, code int) {
	cluster := s.watcher.Cluster().Name
	writeJSON(w, code, pageResponse{
		Page:    page,
		Header:  s.registry.Header(page.Address, cluster),
		Cluster: cluster,
	})
}

func (s *Server) status() map[string]interface{} {
	status, health := s.watcher.ClusterStatus()
	data := map[string]interface{}{
		"cluster":    s.watcher.Cluster().Name,
		"status":     status,
		"rpc_url":    health.RPCURL,
		"latency_ms": health.Latency.Milliseconds(),
	}
	if health.Err != nil {
		data["error"] = health.Err.Error()
	}
	return data
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	// Register and send the initial state under the lock so broadcasts never
	// interleave with the first write.
	s.mu.Lock()
	s.clients[conn] = true
	err = conn.WriteJSON(wireEvent{Type: "initial", Data: s.status()})
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()
	if err != nil {
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) listenToWatcher(sub watcher.Subscriber) {
	defer s.watcher.Unsubscribe(sub)

	for event := range sub {
		s.broadcast(toWire(event))
	}
}

func (s *Server) broadcast(event wireEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		if err := client.WriteJSON(event); err != nil {
			_ = client.Close()
			delete(s.clients, client)
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
