package combat

// EventType classifies controller notifications
type EventType string

const (
	EventStarted     EventType = "combat:started"
	EventPhase       EventType = "combat:phase"
	EventDamageDealt EventType = "combat:damage_dealt"
	EventDamageTaken EventType = "combat:damage_taken"
	EventHealed      EventType = "combat:healed"
	EventEnded       EventType = "combat:ended"
)

// Event is published to subscribers after a state change
type Event struct {
	Type     EventType `json:"type"`
	Phase    Phase     `json:"phase"`
	Seq      uint64    `json:"seq"`
	Amount   int       `json:"amount,omitempty"`
	Snapshot Snapshot  `json:"snapshot"`
}

// Token returns the resolution token for the phase instance the event was emitted in
func (e Event) Token() Token {
	return Token{Phase: e.Phase, Seq: e.Seq}
}

// emit queues an event; it is delivered when the current operation unlocks
func (c *Controller) emit(t EventType, amount int) {
	c.pending = append(c.pending, Event{
		Type:     t,
		Phase:    c.session.Phase,
		Seq:      c.seq,
		Amount:   amount,
		Snapshot: c.session.snapshot(c.seq),
	})
}
