// Package clients wraps the Alteris backend services (auth, admin,
// apprenti, jury) behind typed HTTP clients sharing one connection
// pool. Callers pass the bearer token to forward on each request.
package clients

import (
	"net/http"
	"strings"
	"time"

	"alteris/gateway/internal/config"
)

type Clients struct {
	Auth     *AuthClient
	Admin    *AdminClient
	Apprenti *ApprentiClient
	Jury     *JuryClient

	hc *http.Client
}

func New(cfg config.Config) *Clients {
	timeout := cfg.UpstreamTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := &http.Client{Timeout: timeout}
	return &Clients{
		Auth:     &AuthClient{rest: rest{baseURL: trimBase(cfg.AuthBaseURL), hc: hc}},
		Admin:    &AdminClient{rest: rest{baseURL: trimBase(cfg.AdminBaseURL), hc: hc}},
		Apprenti: &ApprentiClient{rest: rest{baseURL: trimBase(cfg.ApprentiBaseURL), hc: hc}},
		Jury:     &JuryClient{rest: rest{baseURL: trimBase(cfg.JuryBaseURL), hc: hc}},
		hc:       hc,
	}
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	c.hc.CloseIdleConnections()
}

func trimBase(baseURL string) string {
	return strings.TrimRight(baseURL, "/")
}
