package engine

// Order is the canonical forward order of local states.
var Order = []State{StateMenu, StateWaiting, StateCountdown, StatePlaying, StateRoundEnd, StateGameEnd}

func rank(s State) int {
	for i, o := range Order {
		if o == s {
			return i
		}
	}
	return -1
}

func (s State) InMatch() bool {
	switch s {
	case StateCountdown, StatePlaying, StateRoundEnd:
		return true
	}
	return false
}

// CanTransition is the guard every peer applies before accepting a
// document status.
func CanTransition(current, next State) bool {
	if current == StateRoundEnd && next == StateCountdown {
		return true
	}
	if next == StateWaiting && current.InMatch() {
		return false
	}
	if current == StateCountdown && next == StateRoundEnd {
		return false
	}
	if current == next {
		return true
	}
	return rank(next) > rank(current)
}
