package worker

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"sync"

	"github.com/gofrs/uuid"
	"golang.org/x/sync/errgroup"
)

const cachePrefix = "pwa-cache-"

// precacheConcurrency bounds the install-time fan-out over the static URL set.
const precacheConcurrency = 4

// Options configure a worker registration for one scope.
type Options struct {
	// Origin is the scope the worker controls. Requests to other origins are
	// never intercepted or cached.
	Origin *url.URL
	// Precache is the small, fixed set of critical static URLs fetched during
	// installation. Individual failures never abort the install.
	Precache []string
	// SkipWaiting requests immediate activation at the end of installation
	// instead of waiting for controlled clients to close.
	SkipWaiting bool

	Storage  CacheStorage
	Fetcher  Fetcher
	Clients  ClientRegistry
	Notifier NotificationPresenter
}

// Registration is the scope controller: it installs worker versions, holds
// the waiting instance, and guarantees exactly one instance is activated at a
// time. A newly activated instance demotes its predecessor to redundant.
type Registration struct {
	opts Options

	mu      sync.Mutex
	active  *Instance
	waiting *Instance
}

// Instance is one version of the worker, owning one cache generation.
type Instance struct {
	id         uuid.UUID
	version    string
	generation string
	reg        *Registration
	cache      Cache

	mu      sync.Mutex
	state   State
	pending sync.WaitGroup
}

// NewRegistration validates the collaborators and creates the scope controller.
func NewRegistration(opts Options) (*Registration, error) {
	if opts.Origin == nil {
		return nil, Error.New("scope origin is required")
	}
	if opts.Fetcher == nil {
		return nil, Error.New("fetcher is required")
	}
	if opts.Clients == nil {
		return nil, Error.New("client registry is required")
	}
	if opts.Notifier == nil {
		return nil, Error.New("notification presenter is required")
	}
	if opts.Storage == nil {
		opts.Storage = NewMemoryCacheStorage()
	}
	return &Registration{opts: opts}, nil
}

// Active returns the instance currently controlling the scope, if any.
func (r *Registration) Active() *Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Waiting returns the installed instance waiting to activate, if any.
func (r *Registration) Waiting() *Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waiting
}

// Register installs a new worker version. The returned instance has completed
// installation; whether it is already activated depends on SkipWaiting and on
// whether another instance currently controls the scope. A failed install
// leaves the instance redundant and is retried by the platform on the next
// registration attempt.
func (r *Registration) Register(ctx context.Context, version string) (*Instance, error) {
	id, _ := uuid.NewV4()
	instance := &Instance{
		id:         id,
		version:    version,
		generation: cachePrefix + version,
		reg:        r,
		state:      StateInstalling,
	}
	log.Printf("Worker: Installing version %s", version)

	if err := instance.install(ctx); err != nil {
		log.Printf("Worker: Installation of version %s failed: %s", version, err.Error())
		instance.setState(StateRedundant)
		return nil, Error.Wrap(err)
	}
	instance.setState(StateInstalled)

	r.mu.Lock()
	r.waiting = instance
	hasActive := r.active != nil
	r.mu.Unlock()

	if r.opts.SkipWaiting || !hasActive {
		r.activate(ctx, instance)
	}
	return instance, nil
}

// ClientsGone tells the registration that all controlled clients have
// navigated away, letting a waiting instance activate.
func (r *Registration) ClientsGone(ctx context.Context) {
	r.mu.Lock()
	waiting := r.waiting
	r.mu.Unlock()
	if waiting != nil {
		r.activate(ctx, waiting)
	}
}

// activate runs the activate routine and promotes the instance, demoting the
// previously activated one to redundant. Sub-task failures (a cache that
// cannot be evicted, a claim error) are logged, never fatal.
func (r *Registration) activate(ctx context.Context, instance *Instance) {
	r.mu.Lock()
	if instance.State() != StateInstalled {
		r.mu.Unlock()
		return
	}
	if r.waiting == instance {
		r.waiting = nil
	}
	previous := r.active
	r.mu.Unlock()

	instance.setState(StateActivating)
	instance.evictStaleGenerations()
	if err := r.opts.Clients.Claim(ctx, instance); err != nil {
		log.Printf("Worker: Instance %s could not claim clients: %s", instance.id, err.Error())
	}

	r.mu.Lock()
	if previous != nil {
		previous.setState(StateRedundant)
	}
	instance.setState(StateActivated)
	r.active = instance
	r.mu.Unlock()
}

// install opens the cache generation for this version and pre-populates it
// with the critical static URLs. Each pre-population attempt is independent:
// a missing asset or a network error is logged and skipped, joined with an
// all-settled fan-out. Only a storage failure is fatal to the install.
func (i *Instance) install(ctx context.Context) error {
	cache, err := i.reg.opts.Storage.Open(i.generation)
	if err != nil {
		return err
	}
	i.cache = cache

	var group errgroup.Group
	group.SetLimit(precacheConcurrency)
	for _, raw := range i.reg.opts.Precache {
		raw := raw
		group.Go(func() error {
			target, err := url.Parse(raw)
			if err != nil {
				log.Printf("Worker: Skipping precache of invalid URL %q: %s", raw, err.Error())
				return nil
			}
			request := &Request{Method: http.MethodGet, URL: i.reg.opts.Origin.ResolveReference(target)}
			response, err := i.reg.opts.Fetcher.Do(ctx, request)
			if err != nil {
				log.Printf("Worker: Failed to fetch %s for precaching: %s", request.URL, err.Error())
				return nil
			}
			if !response.OK() {
				log.Printf("Worker: Not precaching %s: status %d", request.URL, response.StatusCode)
				return nil
			}
			if err := cache.Put(request.URL.String(), response); err != nil {
				log.Printf("Worker: Failed to precache %s: %s", request.URL, err.Error())
			}
			return nil
		})
	}
	return group.Wait()
}

// evictStaleGenerations deletes every cache generation that doesn't belong to
// this version.
func (i *Instance) evictStaleGenerations() {
	names, err := i.reg.opts.Storage.Names()
	if err != nil {
		log.Printf("Worker: Could not enumerate cache generations: %s", err.Error())
		return
	}
	for _, name := range names {
		if name == i.generation {
			continue
		}
		log.Printf("Worker: Deleting old cache generation %s", name)
		if _, err := i.reg.opts.Storage.Delete(name); err != nil {
			log.Printf("Worker: Failed to delete cache generation %s: %s", name, err.Error())
		}
	}
}

// ID returns the unique identifier of this instance.
func (i *Instance) ID() uuid.UUID {
	return i.id
}

// Version returns the worker script version this instance was installed from.
func (i *Instance) Version() string {
	return i.version
}

// State returns the current lifecycle state.
func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

func (i *Instance) setState(state State) {
	i.mu.Lock()
	i.state = state
	i.mu.Unlock()
	log.Printf("Worker: Instance %s (version %s) is now %s", i.id, i.version, state)
}

// SkipWaiting requests immediate activation of a waiting installed instance.
func (i *Instance) SkipWaiting(ctx context.Context) {
	if i.State() == StateInstalled {
		i.reg.activate(ctx, i)
	}
}

// newScopedTask ties asynchronous work to the lifetime of the instance; the
// runtime is not reclaimed while tasks are pending.
func (i *Instance) newScopedTask() *ScopedTask {
	i.pending.Add(1)
	return &ScopedTask{wg: &i.pending}
}

// Settle blocks until all extended event work has concluded.
func (i *Instance) Settle() {
	i.pending.Wait()
}
