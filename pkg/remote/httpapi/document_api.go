// Package httpapi is the production client for the document store's
// REST endpoints. Transport failures map to NetworkError, 409 replies
// to ConflictError and 4xx validation replies to ValidationError, so
// the save path can classify without knowing HTTP.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"doc-sync-engine/internal/dto"
	"doc-sync-engine/internal/entity"
	"doc-sync-engine/pkg/remote"

	"github.com/google/uuid"
)

type DocumentAPI struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewDocumentAPI(baseURL, token string, timeout time.Duration) *DocumentAPI {
	return &DocumentAPI{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

type conflictResponse struct {
	ServerUpdatedAt time.Time        `json:"server_updated_at"`
	Document        *entity.Document `json:"document"`
}

type validationResponse struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (a *DocumentAPI) CreateDocument(ctx context.Context, req *dto.CreateDocumentRequest) (*entity.Document, error) {
	return a.send(ctx, http.MethodPost, fmt.Sprintf("%s/api/documents", a.baseURL), req)
}

func (a *DocumentAPI) UpdateDocument(ctx context.Context, id uuid.UUID, req *dto.UpdateDocumentRequest) (*entity.Document, error) {
	return a.send(ctx, http.MethodPut, fmt.Sprintf("%s/api/documents/%s", a.baseURL, id), req)
}

func (a *DocumentAPI) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	_, err := a.send(ctx, http.MethodDelete, fmt.Sprintf("%s/api/documents/%s", a.baseURL, id), nil)
	return err
}

func (a *DocumentAPI) send(ctx context.Context, method, url string, body interface{}) (*entity.Document, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewBuffer(jsonBody)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, &remote.NetworkError{Op: method + " " + url, Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &remote.NetworkError{Op: "read response", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusConflict:
		var cr conflictResponse
		if err := json.Unmarshal(bodyBytes, &cr); err != nil {
			return nil, fmt.Errorf("document store conflict reply unreadable: %w", err)
		}
		conflict := &remote.ConflictError{ServerUpdatedAt: cr.ServerUpdatedAt, ServerDocument: cr.Document}
		if cr.Document != nil {
			conflict.DocumentId = cr.Document.Id
		}
		return nil, conflict
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		var vr validationResponse
		if err := json.Unmarshal(bodyBytes, &vr); err != nil {
			vr.Reason = string(bodyBytes)
		}
		return nil, &remote.ValidationError{Field: vr.Field, Reason: vr.Reason}
	case resp.StatusCode >= 500:
		// Store-side failures are retryable, same as transport loss.
		return nil, &remote.NetworkError{Op: method + " " + url, Err: fmt.Errorf("document store returned %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("document store error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if resp.StatusCode == http.StatusNoContent || len(bodyBytes) == 0 {
		return nil, nil
	}
	var doc entity.Document
	if err := json.Unmarshal(bodyBytes, &doc); err != nil {
		return nil, fmt.Errorf("document store reply unreadable: %w", err)
	}
	return &doc, nil
}
