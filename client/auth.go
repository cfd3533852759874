package client

import (
	"net/http"
	"net/url"
	"strings"
)

// AuthFunc returns the header to attach to a request for rawURL. An empty
// name means the request goes out unauthenticated.
type AuthFunc func(rawURL string) (name, value string)

func (fn AuthFunc) apply(req *http.Request) {
	if fn == nil {
		return
	}
	if name, value := fn(req.URL.String()); name != "" && value != "" {
		req.Header.Set(name, value)
	}
}

// BearerAuth sends "Authorization: Bearer token" to the host of indexURL
// and to nothing else, so the token never leaks to file mirrors.
// It returns nil when token is empty.
func BearerAuth(indexURL, token string) AuthFunc {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	u, err := url.Parse(indexURL)
	if err != nil || u.Host == "" {
		return nil
	}
	host := strings.ToLower(u.Host)
	return func(rawURL string) (string, string) {
		target, err := url.Parse(rawURL)
		if err != nil || strings.ToLower(target.Host) != host {
			return "", ""
		}
		return "Authorization", "Bearer " + token
	}
}
