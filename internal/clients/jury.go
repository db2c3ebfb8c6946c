package clients

import (
	"context"
	"net/http"
	"net/url"

	"alteris/gateway/internal/model"
)

// JuryClient talks to the jury service.
type JuryClient struct {
	rest
}

func (c *JuryClient) Juries(ctx context.Context, token string) ([]model.Jury, error) {
	var out []model.Jury
	if err := c.doJSON(ctx, http.MethodGet, "/jury/juries", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *JuryClient) Jury(ctx context.Context, token, id string) (*model.Jury, error) {
	var out model.Jury
	if err := c.doJSON(ctx, http.MethodGet, "/jury/juries/"+url.PathEscape(id), token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// InfosCompletes returns the jury with member contact details
// resolved.
func (c *JuryClient) InfosCompletes(ctx context.Context, token, id string) (*model.Jury, error) {
	var out model.Jury
	if err := c.doJSON(ctx, http.MethodGet, "/jury/infos-completes/"+url.PathEscape(id), token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *JuryClient) Create(ctx context.Context, token string, req model.JuryCreateRequest) (*model.Jury, error) {
	var out model.Jury
	if err := c.doJSON(ctx, http.MethodPost, "/jury/juries", token, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *JuryClient) Update(ctx context.Context, token, id string, req model.JuryUpdateRequest) (*model.Jury, error) {
	var out model.Jury
	if err := c.doJSON(ctx, http.MethodPatch, "/jury/juries/"+url.PathEscape(id), token, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *JuryClient) TimelineOptions(ctx context.Context, token string) ([]model.TimelineOption, error) {
	var out []model.TimelineOption
	if err := c.doJSON(ctx, http.MethodGet, "/jury/timeline-options", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
