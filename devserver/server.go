// Package devserver is a small auth backend speaking the storefront's cookie
// protocol. It backs the integration tests and `sessionctl devserver`.
package devserver

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/jrsteele09/go-session-client/internal/config"
	"github.com/jrsteele09/go-session-client/sessions"
	"github.com/jrsteele09/go-session-client/token/jwt"
	"github.com/jrsteele09/go-session-client/token/keys"
	"github.com/jrsteele09/go-session-client/token/refresh"
	"github.com/jrsteele09/go-session-client/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config interface {
	config.EnvConfig
	config.ClientConfig
	config.DevServerConfig
}

type Server struct {
	env    string
	mux    *http.ServeMux
	routes []string
	config Config
	logger zerolog.Logger

	users     users.UserRepo
	creator   *jwt.Creator
	inspector *jwt.Inspector
	versions  *jwt.SessionVersions
	refresh   *refresh.Manager

	faultsLock sync.Mutex
	faults     map[string]*fault
}

type Option func(*Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(cfg Config, userRepo users.UserRepo, refreshRepo refresh.Repo, options ...Option) (*Server, error) {
	signer, err := keys.NewHMACSigner([]byte(cfg.GetSigningSecret()))
	if err != nil {
		return nil, fmt.Errorf("[devserver New] %w", err)
	}
	versions := jwt.NewSessionVersions()

	s := &Server{
		env:       cfg.GetEnv(),
		mux:       http.NewServeMux(),
		config:    cfg,
		logger:    log.Logger,
		users:     userRepo,
		creator:   jwt.NewCreator(signer, cfg.GetAccessTokenExpiry(), versions),
		inspector: jwt.NewInspector(signer, versions),
		versions:  versions,
		refresh:   refresh.NewManager(refreshRepo, cfg.GetRefreshTokenExpiry(), cfg.GetRefreshTokenLength()),
		faults:    make(map[string]*fault),
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "devserver").Logger()

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Seed creates (or replaces) a user that can sign in.
func (s *Server) Seed(email, name, password string, role sessions.Role) (*users.User, error) {
	u, err := users.NewUser(email, name, password, role)
	if err != nil {
		return nil, err
	}
	if existing, err := s.users.GetByEmail(u.Email); err == nil {
		u.ID = existing.ID
	}
	u.Verified = true
	if err := s.users.Upsert(u); err != nil {
		return nil, fmt.Errorf("seed user: %w", err)
	}
	return u, nil
}

// FailNext makes the next n requests to path answer with status. It lets
// tests drive the client through 5xx and 401 paths.
func (s *Server) FailNext(path string, status, n int) {
	s.faultsLock.Lock()
	defer s.faultsLock.Unlock()
	s.faults[path] = &fault{status: status, remaining: n}
}

// RevokeRefreshTokens drops every stored refresh token for userID and revokes
// the access tokens already issued, as a server restart with a fresh store would.
func (s *Server) RevokeRefreshTokens(userID string) {
	s.versions.Revoke(userID)
	if err := s.refresh.RevokeUser(userID); err != nil {
		s.logger.Debug().Err(err).Str("user_id", userID).Msg("no refresh token to revoke")
	}
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		s.logger.Debug().Str("method", method).Str("path", path).Msg("route")
	}
}
