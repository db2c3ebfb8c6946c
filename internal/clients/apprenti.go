package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"alteris/gateway/internal/model"
)

// ApprentiClient talks to the apprenti service, which owns the
// journal, documents and entretien records.
type ApprentiClient struct {
	rest
}

type entretienEnvelope struct {
	Message   string          `json:"message,omitempty"`
	Entretien model.Entretien `json:"entretien"`
}

func (c *ApprentiClient) Journal(ctx context.Context, token, apprentiID string) (*model.Journal, error) {
	var out struct {
		Message string `json:"message,omitempty"`
		Data    struct {
			Journal model.Journal `json:"journal"`
		} `json:"data"`
	}
	path := "/apprenti/infos-completes/" + url.PathEscape(apprentiID)
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return &out.Data.Journal, nil
}

func (c *ApprentiClient) Documents(ctx context.Context, token, apprentiID string) (*model.DocumentBundle, error) {
	var out model.DocumentBundle
	path := "/apprenti/documents/" + url.PathEscape(apprentiID)
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadDocument forwards a multipart body untouched; contentType must
// carry the original boundary.
func (c *ApprentiClient) UploadDocument(ctx context.Context, token, apprentiID, contentType string, body io.Reader) (*model.Document, error) {
	path := "/apprenti/documents/" + url.PathEscape(apprentiID)
	resp, err := c.do(ctx, http.MethodPost, path, token, contentType, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out struct {
		Message  string         `json:"message,omitempty"`
		Document model.Document `json:"document"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out.Document, nil
}

// DownloadDocument returns the raw file response; the caller owns
// resp.Body.
func (c *ApprentiClient) DownloadDocument(ctx context.Context, token, apprentiID, documentID string) (*http.Response, error) {
	path := "/apprenti/documents/" + url.PathEscape(apprentiID) + "/" + url.PathEscape(documentID) + "/fichier"
	return c.do(ctx, http.MethodGet, path, token, "", nil)
}

func (c *ApprentiClient) AddDocumentComment(ctx context.Context, token, apprentiID, documentID, content string) (*model.DocumentComment, error) {
	in := map[string]string{"content": content}
	var out struct {
		Message string                `json:"message,omitempty"`
		Comment model.DocumentComment `json:"comment"`
	}
	path := "/apprenti/documents/" + url.PathEscape(apprentiID) + "/" + url.PathEscape(documentID) + "/commentaires"
	if err := c.doJSON(ctx, http.MethodPost, path, token, in, &out); err != nil {
		return nil, err
	}
	return &out.Comment, nil
}

func (c *ApprentiClient) Entretiens(ctx context.Context, token, apprentiID string) ([]model.Entretien, error) {
	var out struct {
		Entretiens []model.Entretien `json:"entretiens"`
	}
	path := "/apprenti/entretiens/" + url.PathEscape(apprentiID)
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return out.Entretiens, nil
}

func (c *ApprentiClient) CreateEntretien(ctx context.Context, token string, req model.EntretienCreateRequest) (*model.Entretien, error) {
	var out entretienEnvelope
	if err := c.doJSON(ctx, http.MethodPost, "/apprenti/entretiens", token, req, &out); err != nil {
		return nil, err
	}
	return &out.Entretien, nil
}

func (c *ApprentiClient) DeleteEntretien(ctx context.Context, token, apprentiID, entretienID string) error {
	path := "/apprenti/entretiens/" + url.PathEscape(apprentiID) + "/" + url.PathEscape(entretienID)
	return c.doJSON(ctx, http.MethodDelete, path, token, nil, nil)
}

func (c *ApprentiClient) SetEntretienStatut(ctx context.Context, token, apprentiID, entretienID, role, statut string) (*model.Entretien, error) {
	in := map[string]string{"role": role, "statut": statut}
	var out entretienEnvelope
	path := "/apprenti/entretiens/" + url.PathEscape(apprentiID) + "/" + url.PathEscape(entretienID) + "/statut"
	if err := c.doJSON(ctx, http.MethodPatch, path, token, in, &out); err != nil {
		return nil, err
	}
	return &out.Entretien, nil
}
