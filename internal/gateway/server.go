package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"fluxdbc"
	"fluxdbc/internal/keystore"
	"fluxdbc/internal/security"
)

// Config carries the server's secrets and limits.
type Config struct {
	// Keys resolves API key ids for /auth.
	Keys keystore.Store

	// JWTSecret signs session tokens; APISecret verifies /query signatures.
	JWTSecret string
	APISecret string

	// TokenTTL bounds session token lifetime. Zero means one hour.
	TokenTTL time.Duration

	// MaxRows caps the rows any single query returns. Zero means 10000.
	MaxRows int64

	// QueryTimeout bounds each query. Zero means 30 seconds.
	QueryTimeout time.Duration
}

// Server handles the gateway's HTTP surface. Each named datasource maps to a
// connection factory; wrap the factories for pooling or metrics before
// handing them in.
type Server struct {
	sources  map[string]fluxdbc.ConnectionFactory
	cfg      Config
	sessions *registry
	upgrader websocket.Upgrader
}

func NewServer(sources map[string]fluxdbc.ConnectionFactory, cfg Config) *Server {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 10000
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 30 * time.Second
	}
	return &Server{
		sources:  sources,
		cfg:      cfg,
		sessions: newRegistry(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origins are enforced by the CORS middleware in front.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Routes wires the handlers onto a mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", s.HandleAuth)
	mux.HandleFunc("/stream", s.HandleStream)
	mux.HandleFunc("/query", s.HandleQuery)
	mux.HandleFunc("/healthz", s.HandleHealth)
	return mux
}

// Sessions reports the number of live stream sessions.
func (s *Server) Sessions() int { return s.sessions.count() }

// CloseSessions closes every live stream session. Called on shutdown.
func (s *Server) CloseSessions() { s.sessions.closeAll() }

// resolve maps a requested source name to its factory. An empty name works
// when exactly one datasource is configured.
func (s *Server) resolve(name string) (fluxdbc.ConnectionFactory, bool) {
	if name == "" && len(s.sources) == 1 {
		for _, f := range s.sources {
			return f, true
		}
	}
	f, ok := s.sources[name]
	return f, ok
}

type authRequest struct {
	KeyID string `json:"key_id"`
	Key   string `json:"key"`
}

type authResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// HandleAuth trades an API key for a session token. Unknown ids and wrong
// keys get the same answer.
func (s *Server) HandleAuth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	hash, err := s.cfg.Keys.Lookup(r.Context(), req.KeyID)
	if err != nil {
		slog.Warn("auth failed", "key_id", req.KeyID, "error", err)
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if !security.CheckKey(hash, req.Key) {
		slog.Warn("auth failed", "key_id", req.KeyID, "error", "key mismatch")
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := security.IssueToken(s.cfg.JWTSecret, req.KeyID, s.cfg.TokenTTL)
	if err != nil {
		slog.Error("token issue failed", "key_id", req.KeyID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	slog.Info("session token issued", "key_id", req.KeyID)
	json.NewEncoder(w).Encode(authResponse{
		Token:     token,
		ExpiresIn: int64(s.cfg.TokenTTL.Seconds()),
	})
}

// HandleHealth reports liveness, the configured sources and live sessions.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.sources))
	for name := range s.sources {
		names = append(names, name)
	}
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sources":  names,
		"sessions": s.sessions.count(),
	})
}
