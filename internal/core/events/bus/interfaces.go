package bus

import "time"

// EventBus is a synchronous, in-process pub/sub bus for simulation events.
//
// - Type-based fan-out: handlers subscribe by Event.Type.
// - Wildcard: handlers subscribed to Wildcard receive every event.
// - Synchronous delivery: Publish calls handlers in the caller goroutine, so a
//   tick that publishes an event observes every handler's side effects before
//   it continues.
// - Error aggregation: handler errors are joined and returned from Publish.
//
// All methods are safe for concurrent use.
type EventBus interface {
	Publish(event Event) error
	PublishBatch(events ...Event) error

	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	Unsubscribe(Subscription) error

	AddObserver(obs Observer)
	RemoveObserver(obs Observer)
	GetMetrics() Metrics
}

// Wildcard subscribes a handler to every event type.
const Wildcard = "*"

// Simulation event types.
const (
	TypeVehicleLoaded  = "vehicle.loaded"
	TypeTerrainLoaded  = "terrain.loaded"
	TypeAssetFailed    = "asset.failed"
	TypeBoostActivated = "boost.activated"
	TypeBoostExpired   = "boost.expired"
	TypeCameraToggled  = "camera.toggled"
	TypeBrakeEngaged   = "brake.engaged"
	TypeBrakeReleased  = "brake.released"
)

// Event is an immutable message transported by the bus.
type Event struct {
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

type (
	EventHandler func(event Event) error
)

// Subscription is a registered handler bound to an event type.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}

// Observer is notified about deliveries. Observers should return quickly.
type Observer interface {
	OnDelivered(event Event, handlers int, err error)
}

// Metrics are only collected while at least one observer is registered.
type Metrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	SubscribersActive uint64
}
