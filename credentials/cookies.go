// Package credentials reads and deletes the session cookies held in the
// client's cookie jar. It holds no policy of its own.
package credentials

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
)

// Cookies gives named access to the credential cookies the backend sets for baseURL.
type Cookies struct {
	jar         http.CookieJar
	baseURL     *url.URL
	accessName  string
	refreshName string
}

// NewJar returns an empty in-memory cookie jar.
func NewJar() http.CookieJar {
	jar, _ := cookiejar.New(nil) // only fails for a bad PublicSuffixList
	return jar
}

// NewCookies binds jar to the backend origin.
func NewCookies(jar http.CookieJar, baseURL, accessName, refreshName string) (*Cookies, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must include scheme and host", baseURL)
	}
	return &Cookies{
		jar:         jar,
		baseURL:     u,
		accessName:  accessName,
		refreshName: refreshName,
	}, nil
}

func (c *Cookies) Jar() http.CookieJar {
	return c.jar
}

// AccessToken returns the raw access token, or "" when absent.
func (c *Cookies) AccessToken() string {
	return c.get(c.accessName)
}

// HasRefreshToken reports whether a refresh cookie is present. The value is
// opaque and intentionally not exposed.
func (c *Cookies) HasRefreshToken() bool {
	return c.get(c.refreshName) != ""
}

// SetAccessToken stores an access token for the backend origin.
func (c *Cookies) SetAccessToken(value string) {
	c.jar.SetCookies(c.baseURL, []*http.Cookie{{Name: c.accessName, Value: value, Path: "/"}})
}

// SetCookies stores cookies the backend returned for u, or for the backend
// origin when u is nil.
func (c *Cookies) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	if u == nil {
		u = c.baseURL
	}
	c.jar.SetCookies(u, cookies)
}

// DeleteAll expires both credential cookies. The refresh cookie is normally
// set by the server as HttpOnly; deleting it client side is still attempted.
func (c *Cookies) DeleteAll() {
	c.Delete(c.accessName)
	c.Delete(c.refreshName)
}

// Delete expires the named cookie for the backend origin.
func (c *Cookies) Delete(name string) {
	c.jar.SetCookies(c.baseURL, []*http.Cookie{{Name: name, Value: "", Path: "/", MaxAge: -1}})
}

func (c *Cookies) get(name string) string {
	for _, cookie := range c.jar.Cookies(c.baseURL) {
		if cookie.Name == name {
			return cookie.Value
		}
	}
	return ""
}
