package sp

import "time"

// timerKind enumerates the timer expirations the engine reacts to
// (spec §4.4).
type timerKind int

const (
	timerReconnect timerKind = iota
	timerRebind
	timerCancelSend
	timerCancelRecv
	timerCancelSurvey
	timerResend
)

// timerHandle is the opaque identifier returned when a timer is armed
// (spec §9 "Timer ownership"). The socket or policy owning the pending
// operation stores the handle and cancels before replying, to avoid
// spurious callbacks; a send, recv, survey or resend fire that loses the
// cancellation race is ignored because its timerEvent.handle no longer
// equals the stored handle. Reconnect and rebind fires are not checked.
type timerHandle uint64

// timerEvent is delivered on the engine's timer channel when a timer
// fires. addr carries the original address for Reconnect/Rebind.
type timerEvent struct {
	handle   timerHandle
	kind     timerKind
	token    Token
	sockID   SocketID
	addr     string
}

// timerService arms/cancels time.Timer-backed callbacks that post onto
// a shared channel the engine selects on, mirroring how the teacher's
// keepalive goroutine uses time.Ticker to feed the same select loop
// that owns all session state (session.go's keepalive/sendLoop share
// one die channel and one mutation owner).
type timerService struct {
	seq  sequence
	out  chan<- timerEvent
}

func newTimerService(out chan<- timerEvent) *timerService {
	return &timerService{out: out}
}

// arm schedules ev (with handle filled in) to fire after d.
func (t *timerService) arm(d time.Duration, kind timerKind, token Token, sockID SocketID, addr string) (timerHandle, *time.Timer) {
	h := timerHandle(t.seq.next())
	ev := timerEvent{handle: h, kind: kind, token: token, sockID: sockID, addr: addr}
	timer := time.AfterFunc(d, func() {
		t.out <- ev
	})
	return h, timer
}
