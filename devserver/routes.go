package devserver

import (
	"github.com/jrsteele09/go-session-client/authapi"
)

// Orders is the protected demo resource used to exercise bearer auth.
const Orders = "/api/orders"

func (s *Server) initRoutes() {
	paths := authapi.Paths{
		Refresh: s.config.GetRefreshPath(),
		Logout:  s.config.GetLogoutPath(),
		Me:      s.config.GetMePath(),
		Login:   s.config.GetLoginPath(),
	}

	s.RegisterRouteFunc("POST "+paths.Login, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+paths.Refresh, ChainMiddleware(s.RefreshTokenHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+paths.Logout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+paths.Me, ChainMiddleware(s.MeHandler(), s.APIMiddleware(s.RequireAuth)...))
	s.RegisterRouteFunc("GET "+Orders, ChainMiddleware(s.OrdersHandler(), s.APIMiddleware(s.RequireAuth)...))
}
