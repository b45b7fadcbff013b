package subscriptions

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/m-gauthier/pwa-push/models"
	"github.com/m-gauthier/pwa-push/services"
	"github.com/m-gauthier/pwa-push/utils"
)

type SubscriptionsController struct {
	registry services.SubscriptionRegistry
	config   *models.Config
}

// New creates an instance of the controller and sets its registry handle
func New(registry services.SubscriptionRegistry, config *models.Config) *SubscriptionsController {
	return &SubscriptionsController{registry: registry, config: config}
}

// RegisterSubscription stores or refreshes the submitted push subscription.
// Malformed subscriptions are rejected here, before they can reach the
// registry.
func (c *SubscriptionsController) RegisterSubscription(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, c.config.MaxBodySize) // Refuse request with big body

	var subscription models.Subscription
	if err := json.NewDecoder(r.Body).Decode(&subscription); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := subscription.Valid(); err != nil {
		log.Printf("SubscriptionsController: Rejecting malformed subscription: %s", err.Error())
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := c.registry.Upsert(&subscription); err != nil {
		log.Printf("SubscriptionsController: Error saving subscription %s: %s", subscription.Endpoint, err.Error())
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	utils.JSONResponse(w, map[string]bool{"success": true}, http.StatusOK)
}

// ListSubscriptions returns the current registry snapshot, for diagnostics.
func (c *SubscriptionsController) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subscriptions, err := c.registry.List()
	if err != nil {
		log.Printf("SubscriptionsController: Error listing subscriptions: %s", err.Error())
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	utils.JSONResponse(w, subscriptions, http.StatusOK)
}

// RemoveSubscription deletes the subscription for the endpoint passed as a
// query parameter. Removing an unknown endpoint succeeds.
func (c *SubscriptionsController) RemoveSubscription(w http.ResponseWriter, r *http.Request) {
	endpoint := r.URL.Query().Get("endpoint")
	if endpoint == "" {
		http.Error(w, "missing endpoint parameter", http.StatusBadRequest)
		return
	}
	if err := c.registry.Remove(endpoint); err != nil {
		log.Printf("SubscriptionsController: Error removing subscription %s: %s", endpoint, err.Error())
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	utils.JSONResponse(w, map[string]bool{"success": true}, http.StatusOK)
}
