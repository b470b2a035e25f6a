// internal/domain/events/types.go
package events

// Channel names fan-out domain events to independent listeners.
const (
	ChannelTransactionSuccess = "transaction:success"
	ChannelSubscriptionCancel = "subscription:cancel"
)

// Event names within a channel.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// Event is the bus payload. Data is an immutable snapshot taken at publish
// time; events are not persisted, so a publish with no listeners is lost.
type Event struct {
	Channel   string
	EventName string
	Data      interface{}
}
