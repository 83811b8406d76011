package peer

import "time"

// timers holds every clock the loop selects on. A nil timer yields a nil
// channel, which blocks forever in a select.
type timers struct {
	tick      *time.Ticker
	countdown *time.Ticker
	heartbeat *time.Ticker
	grace     *time.Timer
	graceEnd  time.Time
	reconnect *time.Timer
}

func tickerC(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func (t *timers) tickC() <-chan time.Time      { return tickerC(t.tick) }
func (t *timers) countdownC() <-chan time.Time { return tickerC(t.countdown) }
func (t *timers) heartbeatC() <-chan time.Time { return tickerC(t.heartbeat) }

func (t *timers) graceC() <-chan time.Time {
	if t.grace == nil {
		return nil
	}
	return t.grace.C
}

func (t *timers) reconnectC() <-chan time.Time {
	if t.reconnect == nil {
		return nil
	}
	return t.reconnect.C
}

func (t *timers) startTick(d time.Duration) {
	t.stopTick()
	t.tick = time.NewTicker(d)
}

func (t *timers) stopTick() {
	if t.tick != nil {
		t.tick.Stop()
		t.tick = nil
	}
}

func (t *timers) startCountdown(d time.Duration) {
	t.stopCountdown()
	t.countdown = time.NewTicker(d)
}

func (t *timers) stopCountdown() {
	if t.countdown != nil {
		t.countdown.Stop()
		t.countdown = nil
	}
}

func (t *timers) startHeartbeat(d time.Duration) {
	t.stopHeartbeat()
	t.heartbeat = time.NewTicker(d)
}

func (t *timers) stopHeartbeat() {
	if t.heartbeat != nil {
		t.heartbeat.Stop()
		t.heartbeat = nil
	}
}

func (t *timers) startGrace(d time.Duration) {
	t.stopGrace()
	t.grace = time.NewTimer(d)
	t.graceEnd = time.Now().Add(d)
}

func (t *timers) stopGrace() {
	if t.grace != nil {
		t.grace.Stop()
		t.grace = nil
	}
	t.graceEnd = time.Time{}
}

func (t *timers) startReconnect(d time.Duration) {
	t.stopReconnect()
	t.reconnect = time.NewTimer(d)
}

func (t *timers) stopReconnect() {
	if t.reconnect != nil {
		t.reconnect.Stop()
		t.reconnect = nil
	}
}

func (t *timers) graceRemaining() time.Duration {
	if t.grace == nil {
		return 0
	}
	return max(0, time.Until(t.graceEnd))
}

// stopPhase cancels the clocks that belong to a single state.
func (t *timers) stopPhase() {
	t.stopTick()
	t.stopCountdown()
	t.stopGrace()
}

func (t *timers) stopAll() {
	t.stopPhase()
	t.stopHeartbeat()
	t.stopReconnect()
}
