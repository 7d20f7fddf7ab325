package control

// Buttons is the enabled state of each toolbar action.
type Buttons struct {
	Record bool
	Stop   bool
	Speak  bool
	Save   bool
	Load   bool
	New    bool
}

// ComputeButtons derives enablement from worker state alone.
func ComputeButtons(listening, speaking bool, pending int) Buttons {
	return Buttons{
		Record: !listening,
		Speak:  !listening,
		Stop:   listening || speaking || pending > 0,
		Save:   true,
		Load:   true,
		New:    true,
	}
}
