package models

import (
	"errors"
	"time"

	"github.com/SherClockHolmes/webpush-go"
)

// SubscriptionKeys is the client key material used to encrypt push payloads.
type SubscriptionKeys struct {
	P256dh string `gorm:"column:p256dh" json:"p256dh"`
	Auth   string `gorm:"column:auth" json:"auth"`
}

// Subscription is a browser push subscription as submitted by a client.
// The endpoint issued by the push service is globally unique and serves
// as the primary key: re-subscribing with the same endpoint refreshes the
// key material in place.
type Subscription struct {
	Endpoint   string           `gorm:"primaryKey" json:"endpoint"`
	Keys       SubscriptionKeys `gorm:"embedded" json:"keys"`
	CreatedAt  time.Time        `json:"-"`
	LastSeenAt time.Time        `json:"-"`
}

// Valid rejects malformed subscriptions at the boundary, before they can
// reach the registry.
func (s *Subscription) Valid() error {
	if s.Endpoint == "" {
		return errors.New("subscription is missing its endpoint")
	}
	if s.Keys.P256dh == "" || s.Keys.Auth == "" {
		return errors.New("subscription is missing its p256dh or auth key")
	}
	return nil
}

// WebPush converts the record into the shape the push protocol library expects.
func (s *Subscription) WebPush() *webpush.Subscription {
	return &webpush.Subscription{
		Endpoint: s.Endpoint,
		Keys: webpush.Keys{
			P256dh: s.Keys.P256dh,
			Auth:   s.Keys.Auth,
		},
	}
}
