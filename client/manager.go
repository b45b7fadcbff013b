package client

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/m-gauthier/pwa-push/models"
	"github.com/m-gauthier/pwa-push/worker"
	"github.com/zeebo/errs"
)

// Error is the error class of the client subscription manager.
var Error = errs.Class("client")

// ErrPermissionDenied is returned when the user refuses notification
// permission; it is the only subscribe failure surfaced without a retry path.
var ErrPermissionDenied = Error.New("notification permission denied")

// PushPlatform is the browser push machinery: permission prompt and the
// platform-level subscription tied to the worker registration's scope.
type PushPlatform interface {
	// RequestPermission prompts for notification permission when not already
	// granted. It returns true when permission is granted.
	RequestPermission(ctx context.Context) (bool, error)
	// Existing returns the active platform subscription for the scope, or nil.
	Existing(ctx context.Context) (*models.Subscription, error)
	// Subscribe creates a push subscription using the service's public key.
	Subscribe(ctx context.Context, applicationServerKey string) (*models.Subscription, error)
	// Unsubscribe revokes the platform-level subscription.
	Unsubscribe(ctx context.Context) error
}

// RegistryAPI is the server-side Subscription Registry as seen by the client.
type RegistryAPI interface {
	Save(ctx context.Context, subscription *models.Subscription) error
	Remove(ctx context.Context, endpoint string) error
}

// Manager orchestrates worker registration, the permission prompt, and the
// subscription exchange with the registry.
type Manager struct {
	registration   *worker.Registration
	platform       PushPlatform
	api            RegistryAPI
	vapidPublicKey string

	mu         sync.Mutex
	current    *models.Subscription
	subscribed bool
}

func NewManager(registration *worker.Registration, platform PushPlatform, api RegistryAPI, vapidPublicKey string) *Manager {
	return &Manager{
		registration:   registration,
		platform:       platform,
		api:            api,
		vapidPublicKey: vapidPublicKey,
	}
}

// Start registers the worker script version for the scope. If an active
// platform subscription already exists it is adopted as current state
// without re-subscribing.
func (m *Manager) Start(ctx context.Context, version string) error {
	if _, err := m.registration.Register(ctx, version); err != nil {
		return Error.Wrap(err)
	}
	existing, err := m.platform.Existing(ctx)
	if err != nil {
		log.Printf("Manager: Could not look up existing subscription: %s", err.Error())
		return nil
	}
	if existing != nil {
		m.mu.Lock()
		m.current = existing
		m.subscribed = true
		m.mu.Unlock()
		log.Printf("Manager: Adopted existing subscription %s", existing.Endpoint)
	}
	return nil
}

// Subscribed reports whether a subscription is current and accepted by the
// registry.
func (m *Manager) Subscribed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribed
}

// Subscribe requests notification permission, waits for the worker to reach
// the activated state, creates a push subscription, and submits it to the
// registry. Local state only becomes subscribed once the registry accepts the
// submission: on a registry failure the platform-level subscription is kept
// so a retry re-submits it instead of re-subscribing.
func (m *Manager) Subscribe(ctx context.Context) error {
	m.mu.Lock()
	if m.subscribed {
		m.mu.Unlock()
		return nil
	}
	pending := m.current
	m.mu.Unlock()

	// Reconcile a previous registry submission failure by retrying it.
	if pending != nil {
		return m.submit(ctx, pending)
	}

	granted, err := m.platform.RequestPermission(ctx)
	if err != nil {
		return Error.Wrap(err)
	}
	if !granted {
		return ErrPermissionDenied
	}

	if err := m.waitActivated(ctx); err != nil {
		return err
	}

	subscription, err := m.platform.Subscribe(ctx, m.vapidPublicKey)
	if err != nil {
		return Error.Wrap(err)
	}
	return m.submit(ctx, subscription)
}

func (m *Manager) submit(ctx context.Context, subscription *models.Subscription) error {
	if err := m.api.Save(ctx, subscription); err != nil {
		// The platform-level subscription now exists without the registry
		// knowing it. Keep it for retry but stay unsubscribed.
		m.mu.Lock()
		m.current = subscription
		m.subscribed = false
		m.mu.Unlock()
		return Error.Wrap(err)
	}
	m.mu.Lock()
	m.current = subscription
	m.subscribed = true
	m.mu.Unlock()
	log.Printf("Manager: Subscribed %s", subscription.Endpoint)
	return nil
}

// Unsubscribe revokes the platform-level subscription first; local state
// becomes unsubscribed regardless of whether the server-side removal
// succeeds.
func (m *Manager) Unsubscribe(ctx context.Context) error {
	m.mu.Lock()
	current := m.current
	m.mu.Unlock()
	if current == nil {
		return nil
	}

	if err := m.platform.Unsubscribe(ctx); err != nil {
		return Error.Wrap(err)
	}
	m.mu.Lock()
	m.current = nil
	m.subscribed = false
	m.mu.Unlock()

	if err := m.api.Remove(ctx, current.Endpoint); err != nil {
		log.Printf("Manager: Server-side removal of %s failed: %s", current.Endpoint, err.Error())
	}
	return nil
}

// waitActivated blocks until the registration has an activated instance.
func (m *Manager) waitActivated(ctx context.Context) error {
	for {
		if active := m.registration.Active(); active != nil && active.State() == worker.StateActivated {
			return nil
		}
		select {
		case <-ctx.Done():
			return Error.New("worker did not reach the activated state: %s", ctx.Err().Error())
		case <-time.After(10 * time.Millisecond):
		}
	}
}
