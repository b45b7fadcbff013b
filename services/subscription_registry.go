package services

import (
	"log"
	"time"

	"github.com/m-gauthier/pwa-push/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubscriptionRegistry is the durable mapping of push endpoint to credentials.
// Implementations must apply an upsert atomically (both keys together or
// neither) and serve List as a snapshot that doesn't block on writers.
type SubscriptionRegistry interface {
	Upsert(subscription *models.Subscription) error
	Remove(endpoint string) error
	List() ([]models.Subscription, error)
}

// SubscriptionManager is the database-backed SubscriptionRegistry.
type SubscriptionManager struct {
	db     *gorm.DB
	config *models.Config
}

// NewSubscriptionManager creates an instance of the registry and sets its DB handle
func NewSubscriptionManager(db *gorm.DB, config *models.Config) *SubscriptionManager {
	return &SubscriptionManager{db: db, config: config}
}

// Upsert inserts the subscription, or refreshes its key material when the
// endpoint is already known. Every time a worker is activated the browser will
// try to register its subscription again, so duplicates are expected; in that
// case both keys and the last seen timestamp are updated in a single statement.
func (m *SubscriptionManager) Upsert(subscription *models.Subscription) error {
	subscription.LastSeenAt = time.Now()
	result := m.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "last_seen_at"}),
	}).Create(subscription)
	if result.Error != nil {
		return result.Error
	}
	log.Printf("SubscriptionManager: Stored push subscription for %s", subscription.Endpoint)
	return nil
}

// Remove deletes the subscription for the endpoint. Removing an unknown
// endpoint is a no-op, not an error.
func (m *SubscriptionManager) Remove(endpoint string) error {
	result := m.db.Delete(&models.Subscription{}, "endpoint = ?", endpoint)
	return result.Error
}

// List returns a snapshot of all current subscriptions.
func (m *SubscriptionManager) List() ([]models.Subscription, error) {
	var subscriptions []models.Subscription
	if result := m.db.Order("created_at").Find(&subscriptions); result.Error != nil {
		return nil, result.Error
	}
	return subscriptions, nil
}
