package notifications

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-gauthier/pwa-push/models"
	"github.com/stretchr/testify/require"
)

func TestSendNotificationRejectsBadJSON(t *testing.T) {
	config := (&models.Config{}).New()
	controller := New(nil, &config)

	r := httptest.NewRequest(http.MethodPost, "/notifications", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	controller.SendNotification(w, r)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendNotificationRequiresTitle(t *testing.T) {
	config := (&models.Config{}).New()
	controller := New(nil, &config)

	r := httptest.NewRequest(http.MethodPost, "/notifications", strings.NewReader(`{"body": "no title"}`))
	w := httptest.NewRecorder()
	controller.SendNotification(w, r)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTestPayload(t *testing.T) {
	config := (&models.Config{}).New()
	config.AppName = "My PWA"
	controller := New(nil, &config)

	payload := controller.testPayload()
	require.Equal(t, "My PWA", payload.Title)
	require.NotEmpty(t, payload.Body)
	require.Equal(t, models.DefaultNotificationIcon, payload.Icon)
}
