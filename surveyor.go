package sp

import "time"

// surveyBacklog bounds buffered-but-undelivered replies for the
// current survey.
const surveyBacklog = 128

// surveyorPolicy implements Surveyor (spec §4.3): broadcasts a survey,
// then accepts replies whose header matches the current survey id
// until the survey deadline fires, after which recv fails with
// ErrTimedOut (spec §7 classifies a survey deadline under TimedOut)
// until the next send starts a new survey.
type surveyorPolicy struct {
	sock  *socketState
	pipes map[Token]*pipe

	counter  uint32
	surveyID uint32
	active   bool
	expired  bool

	deadlineHandle timerHandle
	deadlineTimer  *time.Timer

	backlog []*Message
}

func newSurveyorPolicy(s *socketState) *surveyorPolicy {
	return &surveyorPolicy{sock: s, pipes: make(map[Token]*pipe)}
}

func (p *surveyorPolicy) addPipe(pp *pipe)     { p.pipes[pp.token] = pp }
func (p *surveyorPolicy) removePipe(tok Token) { delete(p.pipes, tok) }
func (p *surveyorPolicy) onPipeOpened(Token)   {}

func (p *surveyorPolicy) send(msg *Message, reply chan commandReply) {
	if p.deadlineTimer != nil {
		p.deadlineTimer.Stop()
	}
	p.counter++
	p.surveyID = 0x80000000 | p.counter
	p.active = true
	p.expired = false
	p.backlog = nil

	header := encodeID(p.surveyID)
	for _, pp := range p.pipes {
		pp.submitSend(msg.withHeader(header), p.sock.opts.sendPriority)
	}

	handle, timer := p.sock.engine.timers.arm(p.sock.opts.surveyDeadline, timerCancelSurvey, 0, p.sock.id, "")
	p.deadlineHandle, p.deadlineTimer = handle, timer

	reply <- commandReply{sockID: p.sock.id}
}

func (p *surveyorPolicy) onSendCompleted(Token) {}
func (p *surveyorPolicy) onSendTimeout()        {}

func (p *surveyorPolicy) onRecvCompleted(_ Token, msg *Message) {
	id, rest, ok := splitID(msg.Body)
	if !ok || id != p.surveyID {
		return // reply to a stale/foreign survey; drop (spec §4.3)
	}
	if p.sock.pendingRecv.pending {
		p.sock.completeRecv(&Message{Body: rest})
		return
	}
	if len(p.backlog) >= surveyBacklog {
		p.backlog = p.backlog[1:]
	}
	p.backlog = append(p.backlog, &Message{Body: rest})
}

func (p *surveyorPolicy) recv(reply chan commandReply) {
	if p.expired {
		reply <- commandReply{sockID: p.sock.id, err: ErrTimedOut}
		return
	}
	if len(p.backlog) > 0 {
		msg := p.backlog[0]
		p.backlog = p.backlog[1:]
		reply <- commandReply{sockID: p.sock.id, msg: msg}
		return
	}
	p.sock.armRecvTimeout(reply)
}

func (p *surveyorPolicy) onRecvTimeout() { p.sock.failRecv(ErrTimedOut) }

// onSurveyDeadline fires once per send when SurveyDeadline elapses: any
// recv currently parked fails, and the policy stays "expired" so every
// recv up to the next send returns the same error (spec §4.3).
func (p *surveyorPolicy) onSurveyDeadline(handle timerHandle) {
	if !p.active || handle != p.deadlineHandle {
		return
	}
	p.active = false
	p.expired = true
	if p.sock.pendingRecv.pending {
		p.sock.failRecv(ErrTimedOut)
	}
}

func (p *surveyorPolicy) destroy() {
	if p.deadlineTimer != nil {
		p.deadlineTimer.Stop()
	}
	p.backlog = nil
}
