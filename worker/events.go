package worker

import (
	"context"
	"log"
	"net/http"
	"net/url"

	"github.com/m-gauthier/pwa-push/models"
)

// MessageSkipWaiting is the only recognized control message type.
const MessageSkipWaiting = "skip-waiting"

// Message is a control message posted to the worker by a client page.
type Message struct {
	Type string `json:"type"`
}

// NotificationClick is a user click on a displayed notification, optionally
// on one of its named actions.
type NotificationClick struct {
	Action       string
	Notification models.NotificationPayload
}

// ActionDismiss is the named action that closes the notification without
// navigating anywhere.
const ActionDismiss = "dismiss"

// HandleFetch intercepts same-origin GET requests with a network-first
// strategy. Non-GET and cross-origin requests pass through untouched. On
// network success the response is cached asynchronously when the path matches
// the content-type policy; on network failure the cache generation is
// consulted, and navigations with no cached entry get the static offline
// document. Any other request with no cache hit propagates the network error.
func (i *Instance) HandleFetch(ctx context.Context, req *Request) (*Response, error) {
	if state := i.State(); state != StateActivated {
		return nil, Error.New("instance is %s, not activated", state)
	}
	if !i.intercepts(req) {
		return i.reg.opts.Fetcher.Do(ctx, req)
	}

	response, err := i.reg.opts.Fetcher.Do(ctx, req)
	if err == nil {
		if response.OK() && cacheablePath(req.URL.Path) {
			clone := response.Clone()
			key := req.URL.String()
			task := i.newScopedTask()
			go func() {
				defer task.Done()
				// Failure to cache is logged, never surfaced to the caller.
				if err := i.cache.Put(key, clone); err != nil {
					log.Printf("Worker: Failed to cache %s: %s", key, err.Error())
				}
			}()
		}
		return response, nil
	}

	cached, found, matchErr := i.cache.Match(req.URL.String())
	if matchErr != nil {
		log.Printf("Worker: Cache lookup for %s failed: %s", req.URL, matchErr.Error())
	}
	if found {
		return cached, nil
	}
	if req.IsNavigation() {
		return offlineResponse(), nil
	}
	return nil, err
}

// intercepts reports whether the request is served by the worker at all:
// only same-origin GET requests over HTTP(S) are.
func (i *Instance) intercepts(req *Request) bool {
	if req.Method != http.MethodGet {
		return false
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return false
	}
	return req.URL.Host == i.reg.opts.Origin.Host
}

// HandlePush parses an incoming push message and displays a system
// notification built from it merged over the default payload. A message that
// is not structured data degrades to plain text in the body. The event's
// extended lifetime is held until the display attempt settles; a display
// rejection is logged, never surfaced, so the platform never sees the
// handler fail for a malformed or undisplayable message.
func (i *Instance) HandlePush(ctx context.Context, data []byte) error {
	if state := i.State(); state != StateActivated {
		return Error.New("instance is %s, not activated", state)
	}

	payload, parseErr := models.ParseNotification(data)
	if parseErr != nil {
		log.Printf("Worker: Could not parse push data as JSON, falling back to plain text: %s", parseErr.Error())
	}

	task := i.newScopedTask()
	defer task.Done()
	if err := i.reg.opts.Notifier.Show(ctx, payload); err != nil {
		log.Printf("Worker: Failed to display notification %q: %s", payload.Title, err.Error())
	}
	return nil
}

// HandleNotificationClick closes the notification and routes the user to the
// payload's target URL: an already open same-origin window is focused (and
// navigated when its URL differs), otherwise a new window is opened. A click
// on the dismiss action takes no further action. Errors are logged and
// swallowed; click handling never throws back to the platform.
func (i *Instance) HandleNotificationClick(ctx context.Context, click NotificationClick) {
	if state := i.State(); state != StateActivated {
		log.Printf("Worker: Ignoring notification click, instance is %s", state)
		return
	}

	if err := i.reg.opts.Notifier.Close(click.Notification.Tag); err != nil {
		log.Printf("Worker: Failed to close notification %q: %s", click.Notification.Tag, err.Error())
	}
	if click.Action == ActionDismiss {
		return
	}

	target := click.Notification.Data.URL
	if target == "" {
		target = "/"
	}
	targetURL, err := url.Parse(target)
	if err != nil {
		log.Printf("Worker: Invalid notification target URL %q: %s", target, err.Error())
		return
	}
	resolved := i.reg.opts.Origin.ResolveReference(targetURL).String()

	task := i.newScopedTask()
	defer task.Done()

	windows, err := i.reg.opts.Clients.MatchAll(ctx)
	if err != nil {
		log.Printf("Worker: Could not enumerate client windows: %s", err.Error())
		return
	}
	for _, window := range windows {
		if !i.sameOrigin(window.URL()) {
			continue
		}
		if err := window.Focus(ctx); err != nil {
			log.Printf("Worker: Failed to focus window %s: %s", window.URL(), err.Error())
			return
		}
		if window.URL() != resolved {
			if err := window.Navigate(ctx, resolved); err != nil {
				log.Printf("Worker: Failed to navigate window to %s: %s", resolved, err.Error())
			}
		}
		return
	}
	if _, err := i.reg.opts.Clients.OpenWindow(ctx, resolved); err != nil {
		log.Printf("Worker: Failed to open window at %s: %s", resolved, err.Error())
	}
}

// HandleMessage accepts the skip-waiting control message; all other message
// shapes are ignored.
func (i *Instance) HandleMessage(ctx context.Context, msg Message) {
	if msg.Type != MessageSkipWaiting {
		return
	}
	i.SkipWaiting(ctx)
}

func (i *Instance) sameOrigin(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return parsed.Host == i.reg.opts.Origin.Host
}
