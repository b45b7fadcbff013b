package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/m-gauthier/pwa-push/models"
)

// HTTPRegistryAPI talks to the Subscription Registry's HTTP surface.
type HTTPRegistryAPI struct {
	baseURL string
	client  *http.Client
}

func NewHTTPRegistryAPI(baseURL string, client *http.Client) *HTTPRegistryAPI {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRegistryAPI{baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

// Save submits the subscription with POST /subscriptions.
func (a *HTTPRegistryAPI) Save(ctx context.Context, subscription *models.Subscription) error {
	body, err := json.Marshal(subscription)
	if err != nil {
		return Error.Wrap(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/subscriptions", bytes.NewReader(body))
	if err != nil {
		return Error.Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")
	return a.do(req)
}

// Remove deletes the subscription with DELETE /subscriptions?endpoint=.
func (a *HTTPRegistryAPI) Remove(ctx context.Context, endpoint string) error {
	target := a.baseURL + "/subscriptions?endpoint=" + url.QueryEscape(endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, target, nil)
	if err != nil {
		return Error.Wrap(err)
	}
	return a.do(req)
}

func (a *HTTPRegistryAPI) do(req *http.Request) error {
	resp, err := a.client.Do(req)
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Error.New("registry returned status %d", resp.StatusCode)
	}
	return nil
}
