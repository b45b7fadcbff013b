package client

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/m-gauthier/pwa-push/models"
	"github.com/m-gauthier/pwa-push/worker"
	"github.com/stretchr/testify/require"
)

type noopFetcher struct{}

func (noopFetcher) Do(ctx context.Context, req *worker.Request) (*worker.Response, error) {
	return &worker.Response{StatusCode: 200}, nil
}

type noopClients struct{}

func (noopClients) MatchAll(ctx context.Context) ([]worker.WindowClient, error) { return nil, nil }
func (noopClients) OpenWindow(ctx context.Context, target string) (worker.WindowClient, error) {
	return nil, nil
}
func (noopClients) Claim(ctx context.Context, instance *worker.Instance) error { return nil }

type noopNotifier struct{}

func (noopNotifier) Show(ctx context.Context, payload models.NotificationPayload) error { return nil }
func (noopNotifier) Close(tag string) error                                             { return nil }

type stubPlatform struct {
	permission     bool
	permErr        error
	existing       *models.Subscription
	subscribeErr   error
	subscribeCalls int
	unsubscribed   bool
}

func (p *stubPlatform) RequestPermission(ctx context.Context) (bool, error) {
	return p.permission, p.permErr
}

func (p *stubPlatform) Existing(ctx context.Context) (*models.Subscription, error) {
	return p.existing, nil
}

func (p *stubPlatform) Subscribe(ctx context.Context, applicationServerKey string) (*models.Subscription, error) {
	p.subscribeCalls++
	if p.subscribeErr != nil {
		return nil, p.subscribeErr
	}
	return &models.Subscription{
		Endpoint: "https://push.example/fresh",
		Keys:     models.SubscriptionKeys{P256dh: "pk", Auth: "secret"},
	}, nil
}

func (p *stubPlatform) Unsubscribe(ctx context.Context) error {
	p.unsubscribed = true
	return nil
}

type stubAPI struct {
	saveErr   error
	removeErr error
	saved     []string
	removed   []string
}

func (a *stubAPI) Save(ctx context.Context, subscription *models.Subscription) error {
	if a.saveErr != nil {
		return a.saveErr
	}
	a.saved = append(a.saved, subscription.Endpoint)
	return nil
}

func (a *stubAPI) Remove(ctx context.Context, endpoint string) error {
	if a.removeErr != nil {
		return a.removeErr
	}
	a.removed = append(a.removed, endpoint)
	return nil
}

func newTestManager(t *testing.T, platform *stubPlatform, api *stubAPI) *Manager {
	t.Helper()
	origin, err := url.Parse("https://app.example")
	require.NoError(t, err)
	registration, err := worker.NewRegistration(worker.Options{
		Origin:      origin,
		SkipWaiting: true,
		Fetcher:     noopFetcher{},
		Clients:     noopClients{},
		Notifier:    noopNotifier{},
	})
	require.NoError(t, err)
	return NewManager(registration, platform, api, "vapid-public-key")
}

func TestStartAdoptsExistingSubscription(t *testing.T) {
	platform := &stubPlatform{
		existing: &models.Subscription{Endpoint: "https://push.example/old"},
	}
	api := &stubAPI{}
	manager := newTestManager(t, platform, api)

	require.NoError(t, manager.Start(context.Background(), "v1"))
	require.True(t, manager.Subscribed())

	// Already subscribed: no permission prompt, no new platform subscription.
	require.NoError(t, manager.Subscribe(context.Background()))
	require.Zero(t, platform.subscribeCalls)
}

func TestSubscribePermissionDenied(t *testing.T) {
	platform := &stubPlatform{permission: false}
	api := &stubAPI{}
	manager := newTestManager(t, platform, api)
	require.NoError(t, manager.Start(context.Background(), "v1"))

	err := manager.Subscribe(context.Background())
	require.ErrorIs(t, err, ErrPermissionDenied)
	require.False(t, manager.Subscribed())
	require.Zero(t, platform.subscribeCalls, "denied permission takes no further action")
	require.Empty(t, api.saved)
}

func TestSubscribeSuccess(t *testing.T) {
	platform := &stubPlatform{permission: true}
	api := &stubAPI{}
	manager := newTestManager(t, platform, api)
	require.NoError(t, manager.Start(context.Background(), "v1"))

	require.NoError(t, manager.Subscribe(context.Background()))
	require.True(t, manager.Subscribed())
	require.Equal(t, []string{"https://push.example/fresh"}, api.saved)
}

func TestSubscribeRegistryFailureLeavesUnsubscribed(t *testing.T) {
	platform := &stubPlatform{permission: true}
	api := &stubAPI{saveErr: errors.New("registry unavailable")}
	manager := newTestManager(t, platform, api)
	require.NoError(t, manager.Start(context.Background(), "v1"))

	require.Error(t, manager.Subscribe(context.Background()))
	require.False(t, manager.Subscribed(), "a registry failure must leave local state unsubscribed")
	require.Equal(t, 1, platform.subscribeCalls)

	// The retry resubmits the existing platform subscription instead of
	// creating a new one.
	api.saveErr = nil
	require.NoError(t, manager.Subscribe(context.Background()))
	require.True(t, manager.Subscribed())
	require.Equal(t, 1, platform.subscribeCalls)
	require.Equal(t, []string{"https://push.example/fresh"}, api.saved)
}

func TestUnsubscribeLocalStateRegardlessOfServer(t *testing.T) {
	platform := &stubPlatform{permission: true}
	api := &stubAPI{removeErr: errors.New("registry unavailable")}
	manager := newTestManager(t, platform, api)
	require.NoError(t, manager.Start(context.Background(), "v1"))
	require.NoError(t, manager.Subscribe(context.Background()))

	require.NoError(t, manager.Unsubscribe(context.Background()))
	require.True(t, platform.unsubscribed, "the platform-level subscription is revoked first")
	require.False(t, manager.Subscribed())
}

func TestUnsubscribeWithoutSubscription(t *testing.T) {
	platform := &stubPlatform{}
	api := &stubAPI{}
	manager := newTestManager(t, platform, api)
	require.NoError(t, manager.Start(context.Background(), "v1"))

	require.NoError(t, manager.Unsubscribe(context.Background()))
	require.False(t, platform.unsubscribed)
}
