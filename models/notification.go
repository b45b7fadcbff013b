package models

import (
	"encoding/json"
	"fmt"
)

// Defaults applied to every notification before the incoming payload is
// merged over them.
const (
	DefaultNotificationTitle = "Default Title"
	DefaultNotificationBody  = "Default body"
	DefaultNotificationIcon  = "/icon-192x192.png"
	DefaultNotificationBadge = "/badge-72x72.png"
	DefaultNotificationTag   = "default"
)

// NotificationAction is a named button rendered on the notification.
type NotificationAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Icon   string `json:"icon,omitempty"`
}

// NotificationData carries application data through the push service to the
// click handler.
type NotificationData struct {
	URL string `json:"url,omitempty"`
}

// NotificationPayload is the message fanned out to every subscription and
// displayed by the worker as a system notification.
type NotificationPayload struct {
	Title              string               `json:"title"`
	Body               string               `json:"body,omitempty"`
	Icon               string               `json:"icon,omitempty"`
	Badge              string               `json:"badge,omitempty"`
	Tag                string               `json:"tag,omitempty"`
	RequireInteraction bool                 `json:"requireInteraction,omitempty"`
	Actions            []NotificationAction `json:"actions,omitempty"`
	Data               NotificationData     `json:"data,omitempty"`
}

// DefaultNotification returns the documented default payload.
func DefaultNotification() NotificationPayload {
	return NotificationPayload{
		Title:   DefaultNotificationTitle,
		Body:    DefaultNotificationBody,
		Icon:    DefaultNotificationIcon,
		Badge:   DefaultNotificationBadge,
		Tag:     DefaultNotificationTag,
		Actions: []NotificationAction{},
	}
}

// ParseNotification merges an incoming push message over the default payload.
// A message that is not valid JSON is degraded to plain text: it becomes the
// notification body and the parse error is returned so the caller can log it.
// The returned payload is always displayable.
func ParseNotification(data []byte) (NotificationPayload, error) {
	payload := DefaultNotification()
	if len(data) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		payload = DefaultNotification()
		payload.Body = string(data)
		return payload, err
	}
	return payload, nil
}

// Encode serializes the payload for delivery. Payloads above the encrypted
// push message ceiling fail here, at send time, never at construction.
func (p *NotificationPayload) Encode(maxSize int) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	if maxSize > 0 && len(data) > maxSize {
		return nil, fmt.Errorf("notification payload is %d bytes, above the %d bytes push message ceiling", len(data), maxSize)
	}
	return data, nil
}
