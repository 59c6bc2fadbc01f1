package dragdrop

// Phase names one step of a drag gesture.
type Phase string

const (
	PhaseStart Phase = "start"
	PhaseOver  Phase = "over"
	PhaseDrop  Phase = "drop"
	PhaseEnd   Phase = "end"
)

// Event is a gesture step as it arrives from the dashboard.
type Event struct {
	Phase    Phase    `json:"phase"`
	ItemType ItemType `json:"itemType,omitempty"`
	ItemID   string   `json:"itemId,omitempty"`
	Target
}

// Handle applies one gesture event. Unknown phases are ignored.
func (c *Controller) Handle(ev Event) Outcome {
	switch ev.Phase {
	case PhaseStart:
		return c.Start(ev.ItemType, ev.ItemID)
	case PhaseOver:
		return c.Over(ev.Target)
	case PhaseDrop:
		return c.Drop(ev.Target)
	case PhaseEnd:
		return c.End()
	}
	return c.ignore("unknown drag phase " + string(ev.Phase))
}
