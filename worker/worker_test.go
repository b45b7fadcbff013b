package worker

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/m-gauthier/pwa-push/models"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]*Response
	err       error // when set, every request fails
	requests  []string
}

func (f *fakeFetcher) Do(ctx context.Context, req *Request) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req.URL.String())
	if f.err != nil {
		return nil, f.err
	}
	if response, ok := f.responses[req.URL.String()]; ok {
		return response.Clone(), nil
	}
	return nil, errors.New("no route to host")
}

func (f *fakeFetcher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeFetcher) respond(rawurl string, response *Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[rawurl] = response
}

type fakeWindow struct {
	mu       sync.Mutex
	url      string
	focused  bool
	focusErr error
}

func (w *fakeWindow) URL() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.url
}

func (w *fakeWindow) Focus(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.focusErr != nil {
		return w.focusErr
	}
	w.focused = true
	return nil
}

func (w *fakeWindow) Navigate(ctx context.Context, target string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.url = target
	return nil
}

type fakeClients struct {
	mu        sync.Mutex
	windows   []*fakeWindow
	opened    []string
	claimedBy *Instance
}

func (c *fakeClients) MatchAll(ctx context.Context) ([]WindowClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	windows := make([]WindowClient, len(c.windows))
	for i, window := range c.windows {
		windows[i] = window
	}
	return windows, nil
}

func (c *fakeClients) OpenWindow(ctx context.Context, target string) (WindowClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened = append(c.opened, target)
	window := &fakeWindow{url: target}
	c.windows = append(c.windows, window)
	return window, nil
}

func (c *fakeClients) Claim(ctx context.Context, instance *Instance) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.claimedBy = instance
	return nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	shown   []models.NotificationPayload
	closed  []string
	showErr error
}

func (n *fakeNotifier) Show(ctx context.Context, payload models.NotificationPayload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.showErr != nil {
		return n.showErr
	}
	n.shown = append(n.shown, payload)
	return nil
}

func (n *fakeNotifier) Close(tag string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = append(n.closed, tag)
	return nil
}

type testWorker struct {
	reg      *Registration
	fetcher  *fakeFetcher
	clients  *fakeClients
	notifier *fakeNotifier
	storage  *MemoryCacheStorage
	origin   *url.URL
}

func htmlResponse(body string) *Response {
	header := make(http.Header)
	header.Set("Content-Type", "text/html")
	return &Response{StatusCode: http.StatusOK, Header: header, Body: []byte(body)}
}

func newTestWorker(t *testing.T, modify func(*Options)) *testWorker {
	t.Helper()
	origin, err := url.Parse("https://app.example")
	require.NoError(t, err)

	fetcher := &fakeFetcher{responses: map[string]*Response{
		"https://app.example/":              htmlResponse("<html>home</html>"),
		"https://app.example/manifest.json": {StatusCode: http.StatusOK, Body: []byte(`{}`)},
	}}
	clients := &fakeClients{}
	notifier := &fakeNotifier{}
	storage := NewMemoryCacheStorage()

	opts := Options{
		Origin:      origin,
		Precache:    []string{"/", "/manifest.json"},
		SkipWaiting: true,
		Storage:     storage,
		Fetcher:     fetcher,
		Clients:     clients,
		Notifier:    notifier,
	}
	if modify != nil {
		modify(&opts)
	}
	reg, err := NewRegistration(opts)
	require.NoError(t, err)
	return &testWorker{reg: reg, fetcher: fetcher, clients: clients, notifier: notifier, storage: storage, origin: origin}
}

func TestRegisterInstallsAndActivates(t *testing.T) {
	w := newTestWorker(t, nil)
	ctx := context.Background()

	instance, err := w.reg.Register(ctx, "v1")
	require.NoError(t, err)
	require.Equal(t, StateActivated, instance.State())
	require.Same(t, instance, w.reg.Active())
	require.Same(t, instance, w.clients.claimedBy)

	// Precached entries are available under the current generation.
	cache, err := w.storage.Open("pwa-cache-v1")
	require.NoError(t, err)
	_, found, err := cache.Match("https://app.example/")
	require.NoError(t, err)
	require.True(t, found)
}

func TestInstallToleratesMissingPrecacheAssets(t *testing.T) {
	w := newTestWorker(t, func(opts *Options) {
		opts.Precache = []string{"/", "/does-not-exist.css"}
	})
	instance, err := w.reg.Register(context.Background(), "v1")
	require.NoError(t, err)
	require.Equal(t, StateActivated, instance.State())

	cache, err := w.storage.Open("pwa-cache-v1")
	require.NoError(t, err)
	_, found, err := cache.Match("https://app.example/does-not-exist.css")
	require.NoError(t, err)
	require.False(t, found)
}

func TestActivationEvictsStaleGenerations(t *testing.T) {
	w := newTestWorker(t, nil)
	ctx := context.Background()

	_, err := w.reg.Register(ctx, "v1")
	require.NoError(t, err)
	_, err = w.reg.Register(ctx, "v2")
	require.NoError(t, err)

	names, err := w.storage.Names()
	require.NoError(t, err)
	require.Equal(t, []string{"pwa-cache-v2"}, names)
}

func TestExactlyOneActivatedInstance(t *testing.T) {
	w := newTestWorker(t, nil)
	ctx := context.Background()

	first, err := w.reg.Register(ctx, "v1")
	require.NoError(t, err)
	second, err := w.reg.Register(ctx, "v2")
	require.NoError(t, err)

	require.Equal(t, StateRedundant, first.State())
	require.Equal(t, StateActivated, second.State())
	require.Same(t, second, w.reg.Active())
}

func TestWaitingInstanceActivatesWhenClientsGone(t *testing.T) {
	w := newTestWorker(t, func(opts *Options) {
		opts.SkipWaiting = false
	})
	ctx := context.Background()

	first, err := w.reg.Register(ctx, "v1")
	require.NoError(t, err)
	require.Equal(t, StateActivated, first.State(), "first version activates immediately, nothing controls the scope yet")

	second, err := w.reg.Register(ctx, "v2")
	require.NoError(t, err)
	require.Equal(t, StateInstalled, second.State())
	require.Same(t, first, w.reg.Active())
	require.Same(t, second, w.reg.Waiting())

	w.reg.ClientsGone(ctx)
	require.Equal(t, StateActivated, second.State())
	require.Equal(t, StateRedundant, first.State())
	require.Nil(t, w.reg.Waiting())
}

func TestSkipWaitingMessageActivatesWaitingInstance(t *testing.T) {
	w := newTestWorker(t, func(opts *Options) {
		opts.SkipWaiting = false
	})
	ctx := context.Background()

	first, err := w.reg.Register(ctx, "v1")
	require.NoError(t, err)
	second, err := w.reg.Register(ctx, "v2")
	require.NoError(t, err)

	// Unrecognized message shapes are ignored.
	second.HandleMessage(ctx, Message{Type: "telemetry"})
	require.Equal(t, StateInstalled, second.State())

	second.HandleMessage(ctx, Message{Type: MessageSkipWaiting})
	require.Equal(t, StateActivated, second.State())
	require.Equal(t, StateRedundant, first.State())
}

func TestRedundantInstanceProcessesNoEvents(t *testing.T) {
	w := newTestWorker(t, nil)
	ctx := context.Background()

	first, err := w.reg.Register(ctx, "v1")
	require.NoError(t, err)
	_, err = w.reg.Register(ctx, "v2")
	require.NoError(t, err)
	require.Equal(t, StateRedundant, first.State())

	_, err = first.HandleFetch(ctx, &Request{Method: http.MethodGet, URL: w.origin})
	require.Error(t, err)
	require.Error(t, first.HandlePush(ctx, []byte(`{"title":"t"}`)))

	first.HandleNotificationClick(ctx, NotificationClick{})
	require.Empty(t, w.notifier.closed)
}

func TestFailedInstallLeavesInstanceRedundant(t *testing.T) {
	w := newTestWorker(t, func(opts *Options) {
		opts.Storage = failingStorage{}
	})
	_, err := w.reg.Register(context.Background(), "v1")
	require.Error(t, err)
	require.Nil(t, w.reg.Active())
}

type failingStorage struct{}

func (failingStorage) Open(name string) (Cache, error) { return nil, errors.New("disk full") }
func (failingStorage) Names() ([]string, error)        { return nil, nil }
func (failingStorage) Delete(name string) (bool, error) {
	return false, nil
}
