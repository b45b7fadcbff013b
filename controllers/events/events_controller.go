package events

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/m-gauthier/pwa-push/models"
	"github.com/m-gauthier/pwa-push/services"
	"github.com/m-gauthier/pwa-push/utils"
)

// Broker keeps track of the connected event stream clients
type Broker struct {
	clientsChannels map[chan string]struct{}
	clientsMutex    *sync.Mutex
}

// EventsController streams dispatch summaries to connected operators over
// server-sent events.
type EventsController struct {
	config *models.Config
	broker *Broker
}

// New creates an instance of the controller and subscribes it to the
// dispatch summary feed.
func New(config *models.Config, bus *EventBus.Bus) *EventsController {
	controller := &EventsController{
		config: config,
		broker: &Broker{
			clientsChannels: make(map[chan string]struct{}),
			clientsMutex:    new(sync.Mutex),
		},
	}
	eventBus := *bus
	if err := eventBus.Subscribe(services.DispatchSummaryTopic, controller.onDispatchSummary); err != nil {
		log.Printf("EventsController: Could not subscribe to dispatch summaries: %s", err.Error())
	}
	return controller
}

func (b *Broker) Subscribe() chan string {
	b.clientsMutex.Lock()
	defer b.clientsMutex.Unlock()

	channel := make(chan string, 8)
	b.clientsChannels[channel] = struct{}{}
	return channel
}

// Unsubscribe removes a client from the broker pool
func (b *Broker) Unsubscribe(channel chan string) {
	b.clientsMutex.Lock()
	defer b.clientsMutex.Unlock()

	close(channel)
	delete(b.clientsChannels, channel)
}

func (b *Broker) Publish(message string) {
	b.clientsMutex.Lock()
	defer b.clientsMutex.Unlock()

	for channel := range b.clientsChannels {
		select {
		case channel <- message:
		default: // drop instead of blocking a slow client
		}
	}
}

func (c *EventsController) onDispatchSummary(summary models.DispatchSummary) {
	message, err := json.Marshal(summary)
	if err != nil {
		log.Printf("EventsController: Could not serialize dispatch summary: %s", err.Error())
		return
	}
	c.broker.Publish(string(message))
}

// Start ensures each client receives a periodic ping to maintain the connection
func (c *EventsController) Start() {
	go func() {
		for {
			c.broker.Publish(fmt.Sprintf(`{"ping":"%v"}`, time.Now().Unix()))
			time.Sleep(28e9) // 28s
		}
	}()
}

// HandleEvents is the SSE endpoint streaming dispatch summaries.
func (c *EventsController) HandleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Println("EventsController: HTTP streaming unsupported")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sourceIP := utils.New(c.config).GetClientIP(r)
	channel := c.broker.Subscribe()
	defer c.broker.Unsubscribe(channel)
	log.Printf("EventsController: Added new events client connecting from %s", sourceIP)

	// Set the headers related to event streaming.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for {
		select {
		case msg := <-channel:
			_, _ = fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		case <-r.Context().Done():
			log.Printf("EventsController: Removed events client connecting from %s", sourceIP)
			return
		}
	}
}
