package sp

import "time"

// policy is the capability bundle each socket type implements (spec
// §4.3). The engine calls these exclusively from its own goroutine, so
// a policy never needs its own locking.
type policy interface {
	addPipe(p *pipe)
	removePipe(tok Token)
	onPipeOpened(tok Token)
	send(msg *Message, reply chan commandReply)
	onSendCompleted(tok Token)
	onSendTimeout()
	recv(reply chan commandReply)
	onRecvCompleted(tok Token, msg *Message)
	onRecvTimeout()
	destroy()
}

// surveyDeadlineHandler is implemented by Surveyor to react to its
// survey deadline timer (spec §4.3). Checked via type assertion since
// only one policy variant needs it.
type surveyDeadlineHandler interface {
	onSurveyDeadline(handle timerHandle)
}

// resendHandler is implemented by Req to react to its resend timer
// (spec §4.3, §9 open question on ResendInterval).
type resendHandler interface {
	onResend(handle timerHandle)
}

// pendingOp tracks one in-flight blocking send or recv: who to reply to
// and the timer guarding it (spec §5 "every pending send or recv... is
// associated with at most one active timeout timer").
type pendingOp struct {
	reply   chan commandReply
	handle  timerHandle
	timer   *time.Timer
	pending bool
}

func (p *pendingOp) cancelTimer() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// socketState is the engine's record of one live socket: its policy,
// pipes, acceptors, options, and the one outstanding send/recv slot
// (spec §3 "Socket"). Touched only by the engine goroutine.
type socketState struct {
	id       SocketID
	typ      SocketType
	peerType SocketType
	opts     socketOptions

	pipes     map[Token]*pipe
	acceptors map[Token]*acceptor

	policy policy
	engine *Engine

	pendingSend pendingOp
	pendingRecv pendingOp

	destroyed bool
}

func newSocketState(e *Engine, id SocketID, typ SocketType) (*socketState, error) {
	s := &socketState{
		id:        id,
		typ:       typ,
		peerType:  peerOf(typ),
		opts:      defaultSocketOptions(),
		pipes:     make(map[Token]*pipe),
		acceptors: make(map[Token]*acceptor),
		engine:    e,
	}
	pol, err := newPolicy(typ, s)
	if err != nil {
		return nil, err
	}
	s.policy = pol
	return s, nil
}

// completeSend replies MsgSent and clears the pending send slot,
// cancelling its timer first (spec §9 "completion paths must cancel
// before replying").
func (s *socketState) completeSend() {
	if !s.pendingSend.pending {
		return
	}
	s.pendingSend.cancelTimer()
	reply := s.pendingSend.reply
	s.pendingSend = pendingOp{}
	if reply != nil {
		reply <- commandReply{sockID: s.id}
	}
}

// failSend replies MsgNotSent(err) and clears the pending send slot.
func (s *socketState) failSend(err error) {
	if !s.pendingSend.pending {
		return
	}
	s.pendingSend.cancelTimer()
	reply := s.pendingSend.reply
	s.pendingSend = pendingOp{}
	if reply != nil {
		reply <- commandReply{sockID: s.id, err: err}
	}
}

// completeRecv delivers msg to the pending recv slot.
func (s *socketState) completeRecv(msg *Message) {
	if !s.pendingRecv.pending {
		return
	}
	s.pendingRecv.cancelTimer()
	reply := s.pendingRecv.reply
	s.pendingRecv = pendingOp{}
	if reply != nil {
		reply <- commandReply{sockID: s.id, msg: msg}
	}
}

// failRecv replies an error and clears the pending recv slot.
func (s *socketState) failRecv(err error) {
	if !s.pendingRecv.pending {
		return
	}
	s.pendingRecv.cancelTimer()
	reply := s.pendingRecv.reply
	s.pendingRecv = pendingOp{}
	if reply != nil {
		reply <- commandReply{sockID: s.id, err: err}
	}
}

// armSendTimeout parks reply in pendingSend with a timeout timer.
func (s *socketState) armSendTimeout(reply chan commandReply) {
	d := s.opts.sendTimeout
	handle, timer := s.engine.timers.arm(d, timerCancelSend, 0, s.id, "")
	s.pendingSend = pendingOp{reply: reply, handle: handle, timer: timer, pending: true}
}

// armRecvTimeout parks reply in pendingRecv with a timeout timer.
func (s *socketState) armRecvTimeout(reply chan commandReply) {
	d := s.opts.recvTimeout
	handle, timer := s.engine.timers.arm(d, timerCancelRecv, 0, s.id, "")
	s.pendingRecv = pendingOp{reply: reply, handle: handle, timer: timer, pending: true}
}

// openPipes returns every pipe in socketState.pipes, including pipes
// whose handshake has not completed: the engine adds a pipe there as
// soon as it is created, and hands it to the policy (addPipe) only once
// evOpened fires.
func (s *socketState) openPipes() []*pipe {
	out := make([]*pipe, 0, len(s.pipes))
	for _, p := range s.pipes {
		out = append(out, p)
	}
	return out
}
