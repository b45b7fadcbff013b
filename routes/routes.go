package routes

import (
	"log"
	"net/http"
	"os"

	"github.com/asaskevich/EventBus"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	eventsController "github.com/m-gauthier/pwa-push/controllers/events"
	notificationsController "github.com/m-gauthier/pwa-push/controllers/notifications"
	subscriptionsController "github.com/m-gauthier/pwa-push/controllers/subscriptions"
	"github.com/m-gauthier/pwa-push/models"
	"github.com/m-gauthier/pwa-push/services"
	"github.com/markbates/pkger"
	"gorm.io/gorm"
)

func New(config *models.Config, db *gorm.DB, bus *EventBus.Bus) http.Handler {
	// Prepare embedded static assets (manifest, landing page)
	dir := pkger.Include("/web")
	staticHandler := NewStaticHandler(config)
	if err := staticHandler.LoadAssets(dir); err != nil {
		log.Fatalf("Error loading static assets: %s", err.Error())
	}

	registry := services.NewSubscriptionManager(db, config)
	dispatcher, err := services.NewDispatcher(registry, config, bus)
	if err != nil {
		log.Fatalf("Could not create the notification dispatcher: %s", err.Error())
	}

	router := mux.NewRouter()

	subscriptionsC := subscriptionsController.New(registry, config)
	router.Handle("/subscriptions",
		handlers.LoggingHandler(
			os.Stdout,
			http.HandlerFunc(subscriptionsC.RegisterSubscription),
		),
	).Methods(http.MethodPost)
	router.Handle("/subscriptions",
		handlers.LoggingHandler(
			os.Stdout,
			http.HandlerFunc(subscriptionsC.ListSubscriptions),
		),
	).Methods(http.MethodGet)
	router.Handle("/subscriptions",
		handlers.LoggingHandler(
			os.Stdout,
			http.HandlerFunc(subscriptionsC.RemoveSubscription),
		),
	).Methods(http.MethodDelete)

	notificationsC := notificationsController.New(dispatcher, config)
	router.Handle("/notifications",
		handlers.LoggingHandler(
			os.Stdout,
			http.HandlerFunc(notificationsC.SendNotification),
		),
	).Methods(http.MethodPost)

	eventsC := eventsController.New(config, bus)
	eventsC.Start()
	router.HandleFunc("/events", eventsC.HandleEvents).Methods(http.MethodGet)

	router.PathPrefix("/").HandlerFunc(staticHandler.HandleStaticAsset)

	return router
}
