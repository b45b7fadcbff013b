package worker

import (
	"context"
	"net/http"
	"net/url"

	"github.com/m-gauthier/pwa-push/models"
)

// Request is a snapshot of a network request intercepted by the worker.
type Request struct {
	Method string
	URL    *url.URL
	// Destination is "document" for top-level navigations.
	Destination string
}

// IsNavigation reports whether the request is a top-level navigation.
func (r *Request) IsNavigation() bool {
	return r.Destination == "document"
}

// Response is a response snapshot that can be stored in a cache generation.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the response has a successful (2xx) status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Clone returns an independent copy, so the original can be handed to the
// caller while the copy goes to the cache.
func (r *Response) Clone() *Response {
	clone := &Response{
		StatusCode: r.StatusCode,
		Header:     make(http.Header, len(r.Header)),
		Body:       append([]byte(nil), r.Body...),
	}
	for key, values := range r.Header {
		clone.Header[key] = append([]string(nil), values...)
	}
	return clone
}

// Fetcher issues network requests on behalf of the worker.
type Fetcher interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// WindowClient is an open client window under the worker's scope.
type WindowClient interface {
	URL() string
	Focus(ctx context.Context) error
	Navigate(ctx context.Context, target string) error
}

// ClientRegistry enumerates, opens and claims client windows.
type ClientRegistry interface {
	MatchAll(ctx context.Context) ([]WindowClient, error)
	OpenWindow(ctx context.Context, target string) (WindowClient, error)
	// Claim puts all currently open windows under the instance's control
	// without a reload.
	Claim(ctx context.Context, instance *Instance) error
}

// NotificationPresenter displays and closes system notifications.
type NotificationPresenter interface {
	Show(ctx context.Context, payload models.NotificationPayload) error
	Close(tag string) error
}
