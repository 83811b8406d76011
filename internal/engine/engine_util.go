package engine

func NewLocal() Local {
	return Local{State: StateMenu}
}

func ContainsEvent(events []Event, t EventType) bool {
	for _, e := range events {
		if e.Type == t {
			return true
		}
	}
	return false
}
