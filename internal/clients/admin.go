package clients

import (
	"context"
	"net/http"
	"net/url"

	"alteris/gateway/internal/model"
)

// AdminClient talks to the admin service, which owns promotions and
// the apprentice roster.
type AdminClient struct {
	rest
}

func (c *AdminClient) Promotions(ctx context.Context, token string) ([]model.Promotion, error) {
	var out struct {
		Promotions []model.Promotion `json:"promotions"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/admin/promotions", token, nil, &out); err != nil {
		return nil, err
	}
	return out.Promotions, nil
}

func (c *AdminClient) Promotion(ctx context.Context, token, anneeAcademique string) (*model.Promotion, error) {
	var out model.Promotion
	path := "/admin/promotions/" + url.PathEscape(anneeAcademique)
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *AdminClient) Apprentis(ctx context.Context, token string) (*model.Roster, error) {
	var out model.Roster
	if err := c.doJSON(ctx, http.MethodGet, "/admin/apprentis", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
