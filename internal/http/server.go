package httpapp

import (
	"net/http"

	"github.com/alphabot-ai/quill/internal/auth"
	"github.com/alphabot-ai/quill/internal/config"
	"github.com/alphabot-ai/quill/internal/logging"
	"github.com/alphabot-ai/quill/internal/store"

	_ "github.com/alphabot-ai/quill/docs" // swagger docs

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

// BuildInfo is reported by GET /version.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type Server struct {
	store   store.Store
	auth    *auth.Service
	log     logging.Logger
	cfg     config.Config
	build   BuildInfo
	handler http.Handler
}

func NewServer(st store.Store, authSvc *auth.Service, log logging.Logger, cfg config.Config, build BuildInfo) *Server {
	s := &Server{store: st, auth: authSvc, log: log, cfg: cfg, build: build}
	s.handler = s.accessLog(s.withTimeout(s.routes()))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)

	r.HandleFunc("/posts", s.handleListPosts).Methods(http.MethodGet)
	r.HandleFunc("/posts", s.requireAuth(s.handleCreatePost)).Methods(http.MethodPost)
	// Registered ahead of /posts/{id} so "search" is not taken for an id.
	r.HandleFunc("/posts/search", s.handleSearchPosts).Methods(http.MethodGet)
	r.HandleFunc("/posts/{id}", s.handleGetPost).Methods(http.MethodGet)
	r.HandleFunc("/posts/{id}", s.requireAuth(s.handleUpdatePost)).Methods(http.MethodPatch)
	r.HandleFunc("/posts/{id}", s.requireAuth(s.handleDeletePost)).Methods(http.MethodDelete)

	r.HandleFunc("/posts/{postId}/comments", s.handleListComments).Methods(http.MethodGet)
	r.HandleFunc("/posts/{postId}/comments", s.requireAuth(s.handleAddComment)).Methods(http.MethodPost)
	r.HandleFunc("/posts/{postId}/comments/{commentId}", s.requireAuth(s.handleUpdateComment)).Methods(http.MethodPatch)
	r.HandleFunc("/posts/{postId}/comments/{commentId}", s.requireAuth(s.handleDeleteComment)).Methods(http.MethodDelete)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)
	r.HandleFunc("/openapi.json", s.serveOpenAPIJSON).Methods(http.MethodGet)
	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)
	return r
}

// handleHealth godoc
//
//	@Summary	Health check
//	@Tags		Ops
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Failure	503	{object}	map[string]string
//	@Router		/healthz [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.Error(r.Context(), "health check failed", "err", err)
		writeError(w, http.StatusServiceUnavailable, "unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleVersion godoc
//
//	@Summary	Build information
//	@Tags		Ops
//	@Produce	json
//	@Success	200	{object}	BuildInfo
//	@Router		/version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.build)
}

func (s *Server) serveOpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		s.log.Error(r.Context(), "read openapi doc", "err", err)
		writeError(w, http.StatusInternalServerError, "openapi document unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write([]byte(doc))
}
