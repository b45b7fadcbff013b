package notifications

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/m-gauthier/pwa-push/models"
	"github.com/m-gauthier/pwa-push/services"
	"github.com/m-gauthier/pwa-push/utils"
)

type NotificationsController struct {
	dispatcher *services.Dispatcher
	config     *models.Config
}

// New creates an instance of the controller and sets its dispatcher handle
func New(dispatcher *services.Dispatcher, config *models.Config) *NotificationsController {
	return &NotificationsController{dispatcher: dispatcher, config: config}
}

type sendRequest struct {
	// Send triggers a broadcast of the fixed test payload.
	Send bool `json:"send"`
	models.NotificationPayload
}

type sendResponse struct {
	Results []models.DeliveryResult `json:"results"`
}

// SendNotification broadcasts a payload to every registered subscription and
// reports the per-recipient outcomes. The body is either {"send": true} for
// the fixed test payload, or an explicit payload with a required title.
// Individual delivery failures never fail the call.
func (c *NotificationsController) SendNotification(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, c.config.MaxBodySize) // Refuse request with big body

	var request sendRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var payload models.NotificationPayload
	if request.Send {
		payload = c.testPayload()
	} else {
		if request.Title == "" {
			http.Error(w, "notification title is required", http.StatusBadRequest)
			return
		}
		payload = request.NotificationPayload
	}

	results, err := c.dispatcher.Dispatch(r.Context(), &payload)
	if err != nil {
		log.Printf("NotificationsController: Dispatch failed: %s", err.Error())
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	utils.JSONResponse(w, sendResponse{Results: results}, http.StatusOK)
}

func (c *NotificationsController) testPayload() models.NotificationPayload {
	payload := models.DefaultNotification()
	payload.Title = c.config.AppName
	payload.Body = "This is a test notification!"
	return payload
}
