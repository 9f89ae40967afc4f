package events

import "slices"

// EventCollector queues the events an aggregate raises until the use case
// that changed it has persisted the aggregate and hands the queue to a
// publisher. The zero value is ready to use.
type EventCollector struct {
	pending []DomainEvent
}

// Record queues events in the order they happened.
func (c *EventCollector) Record(evts ...DomainEvent) {
	c.pending = append(c.pending, evts...)
}

// Events returns a copy of the queue.
func (c *EventCollector) Events() []DomainEvent {
	return slices.Clone(c.pending)
}

// ClearEvents hands over the queue and leaves the collector empty, so a
// retried publish cannot send the same event twice.
func (c *EventCollector) ClearEvents() []DomainEvent {
	collected := c.pending
	c.pending = nil
	return collected
}
