package config

// ClientConfig describes where the auth backend lives and how its cookies are named.
type ClientConfig interface {
	GetBaseURL() string
	GetRefreshPath() string
	GetLogoutPath() string
	GetMePath() string
	GetLoginPath() string
	GetLoginRoute() string
	GetAccessCookieName() string
	GetRefreshCookieName() string
}

type Client struct{}

var _ ClientConfig = Client{}

// GetBaseURL returns the origin of the auth backend (e.g. "https://shop.example.com").
func (Client) GetBaseURL() string {
	return GetEnv("BASE_URL", "http://localhost:8080")
}

func (Client) GetRefreshPath() string {
	return "/api/auth/refresh-token"
}

func (Client) GetLogoutPath() string {
	return "/api/auth/logout"
}

func (Client) GetMePath() string {
	return "/api/auth/me"
}

func (Client) GetLoginPath() string {
	return "/api/auth/login"
}

// GetLoginRoute is where the user is sent after the session is torn down.
func (Client) GetLoginRoute() string {
	return GetEnv("LOGIN_ROUTE", "/login")
}

func (Client) GetAccessCookieName() string {
	return "accessToken"
}

func (Client) GetRefreshCookieName() string {
	return "refreshToken"
}
