package devserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jrsteele09/go-session-client/authapi"
	"github.com/jrsteele09/go-session-client/users"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userEnvelope struct {
	Success bool `json:"success"`
	Data    struct {
		User *authapi.User `json:"user"`
	} `json:"data"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "Email and password are required")
			return
		}

		user, err := s.users.GetByEmail(req.Email)
		if err != nil || !user.Authenticate(req.Password) {
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}

		if err := s.issueTokens(w, user); err != nil {
			s.logger.Error().Err(err).Str("user_id", user.ID).Msg("issue tokens on login")
			writeError(w, http.StatusInternalServerError, "Could not sign in")
			return
		}
		user.LastLogin = time.Now()
		user.LoggedIn = true
		if err := s.users.Upsert(user); err != nil {
			s.logger.Error().Err(err).Str("user_id", user.ID).Msg("record sign in")
		}
		s.logger.Info().Str("user_id", user.ID).Msg("user signed in")
		writeUser(w, user)
	}
}

// RefreshTokenHandler rotates the refresh cookie and issues a new access cookie.
func (s *Server) RefreshTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(s.config.GetRefreshCookieName())
		if err != nil || c.Value == "" {
			writeError(w, http.StatusUnauthorized, "No refresh token")
			return
		}

		next, userID, err := s.refresh.Rotate(c.Value)
		if err != nil {
			s.clearCookies(w)
			writeError(w, http.StatusUnauthorized, "Invalid refresh token")
			return
		}
		user, err := s.users.GetByID(userID)
		if err != nil || user.Blocked {
			_ = s.refresh.Delete(next)
			s.clearCookies(w)
			writeError(w, http.StatusUnauthorized, "Invalid refresh token")
			return
		}

		access, _, err := s.creator.CreateAccessToken(user)
		if err != nil {
			s.logger.Error().Err(err).Msg("create access token on refresh")
			writeError(w, http.StatusInternalServerError, "Could not refresh session")
			return
		}
		s.setCookies(w, access, next)
		writeUser(w, user)
	}
}

// LogoutHandler revokes whatever credentials the request carries. It always succeeds.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(s.config.GetAccessCookieName()); err == nil {
			if claims, err := s.inspector.Verify(c.Value); err == nil {
				s.versions.Revoke(claims.UserID)
				if err := s.users.SetLoggedIn(claims.Email, false); err != nil {
					s.logger.Warn().Err(err).Str("user_id", claims.UserID).Msg("record sign out")
				}
			}
		}
		if c, err := r.Cookie(s.config.GetRefreshCookieName()); err == nil {
			_ = s.refresh.Delete(c.Value)
		}
		s.clearCookies(w)
		writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Logged out"})
	}
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		user, err := s.users.GetByID(claims.UserID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		writeUser(w, user)
	}
}

func (s *Server) OrdersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"orders": []any{}}})
	}
}

func (s *Server) issueTokens(w http.ResponseWriter, user *users.User) error {
	access, _, err := s.creator.CreateAccessToken(user)
	if err != nil {
		return err
	}
	refreshToken, err := s.refresh.Create(user.ID)
	if err != nil {
		return err
	}
	s.setCookies(w, access, refreshToken)
	return nil
}

func toAPIUser(u *users.User) *authapi.User {
	return &authapi.User{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Role:       string(u.Role),
		IsVerified: u.Verified,
	}
}

func writeUser(w http.ResponseWriter, u *users.User) {
	var body userEnvelope
	body.Success = true
	body.Data.User = toAPIUser(u)
	writeJSON(w, http.StatusOK, body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
