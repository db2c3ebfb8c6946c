package clients

import (
	"context"
	"net/http"

	"alteris/gateway/internal/model"
)

// AuthClient talks to the auth service, which owns accounts and
// credentials across the per-role collections.
type AuthClient struct {
	rest
}

type meEnvelope struct {
	Message string     `json:"message,omitempty"`
	Me      model.User `json:"me"`
}

func (c *AuthClient) Login(ctx context.Context, email, password string) (*model.LoginResult, error) {
	in := map[string]string{"email": email, "password": password}
	var out model.LoginResult
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", "", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *AuthClient) Me(ctx context.Context, token string) (*model.User, error) {
	var out meEnvelope
	if err := c.doJSON(ctx, http.MethodGet, "/auth/me", token, nil, &out); err != nil {
		return nil, err
	}
	return &out.Me, nil
}

func (c *AuthClient) UpdateMe(ctx context.Context, token string, req model.UpdateMeRequest) (*model.User, error) {
	var out meEnvelope
	if err := c.doJSON(ctx, http.MethodPatch, "/auth/me", token, req, &out); err != nil {
		return nil, err
	}
	return &out.Me, nil
}

func (c *AuthClient) Users(ctx context.Context, token string) ([]model.User, error) {
	var out struct {
		Users []model.User `json:"users"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/auth/users", token, nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}
