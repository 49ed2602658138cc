package sp

import "time"

// reqPolicy implements Req (spec §4.3): at most one outstanding
// request. send allocates a 4-byte id with the high bit set, prepends
// it, round-robins the peer pipe, and optionally arms a resend timer.
// recv only accepts replies whose header matches the outstanding id.
type reqPolicy struct {
	sock    *socketState
	pipes   map[Token]*pipe
	order   []Token
	cursor  int
	counter uint32

	outstanding bool
	reqID       uint32
	chosen      Token
	body        []byte // retained for resend
	// replyMsg holds a matched reply that arrived before recv was called.
	replyMsg *Message

	resendHandle timerHandle
	resendTimer  *time.Timer
}

func newReqPolicy(s *socketState) *reqPolicy {
	return &reqPolicy{sock: s, pipes: make(map[Token]*pipe)}
}

func (p *reqPolicy) addPipe(pp *pipe) {
	p.pipes[pp.token] = pp
	p.order = append(p.order, pp.token)
}

func (p *reqPolicy) removePipe(tok Token) {
	delete(p.pipes, tok)
	for i, t := range p.order {
		if t == tok {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	if p.chosen == tok {
		p.chosen = 0 // resend (if armed) will pick a new peer
	}
}

func (p *reqPolicy) pickPeer() (Token, *pipe, bool) {
	if len(p.order) == 0 {
		return 0, nil, false
	}
	for i := 0; i < len(p.order); i++ {
		p.cursor = (p.cursor + 1) % len(p.order)
		tok := p.order[p.cursor]
		if pp, ok := p.pipes[tok]; ok {
			return tok, pp, true
		}
	}
	return 0, nil, false
}

func (p *reqPolicy) onPipeOpened(tok Token) {
	if p.outstanding && p.chosen == 0 {
		if pp, ok := p.pipes[tok]; ok {
			p.chosen = tok
			pp.submitSend(newMessage(p.body).withHeader(encodeID(p.reqID)), p.sock.opts.sendPriority)
			p.armResend()
		}
	}
}

// send allocates a request id, picks a peer round-robin, and transmits.
// If no peer is open yet, the request stays parked (outstanding, no
// chosen pipe) until onPipeOpened dispatches it or the send timer fires.
func (p *reqPolicy) send(msg *Message, reply chan commandReply) {
	p.sock.armSendTimeout(reply)

	p.counter++
	p.reqID = 0x80000000 | p.counter
	p.body = msg.Body
	p.outstanding = true
	p.chosen = 0
	p.replyMsg = nil

	tok, pp, ok := p.pickPeer()
	if !ok {
		return
	}
	p.chosen = tok
	pp.submitSend(msg.withHeader(encodeID(p.reqID)), p.sock.opts.sendPriority)
	p.armResend()
}

func (p *reqPolicy) armResend() {
	if p.sock.opts.resendInterval <= 0 {
		return
	}
	handle, timer := p.sock.engine.timers.arm(p.sock.opts.resendInterval, timerResend, 0, p.sock.id, "")
	p.resendHandle = handle
	p.resendTimer = timer
}

func (p *reqPolicy) cancelResend() {
	if p.resendTimer != nil {
		p.resendTimer.Stop()
		p.resendTimer = nil
	}
}

// onResend retransmits the outstanding request body on a freshly
// chosen peer, per spec §4.3's resend-interval option.
func (p *reqPolicy) onResend(handle timerHandle) {
	if !p.outstanding || handle != p.resendHandle {
		return
	}
	tok, pp, ok := p.pickPeer()
	if !ok {
		p.armResend()
		return
	}
	p.chosen = tok
	pp.submitSend(newMessage(p.body).withHeader(encodeID(p.reqID)), p.sock.opts.sendPriority)
	p.armResend()
}

func (p *reqPolicy) onSendCompleted(tok Token) {
	if p.outstanding && p.chosen == tok {
		p.sock.completeSend()
	}
}

func (p *reqPolicy) onSendTimeout() {
	if p.chosen == 0 {
		p.outstanding = false // never dispatched; onPipeOpened must not send it later
	}
	p.sock.failSend(ErrTimedOut)
}

func (p *reqPolicy) recv(reply chan commandReply) {
	if p.replyMsg != nil {
		msg := p.replyMsg
		p.replyMsg = nil
		reply <- commandReply{sockID: p.sock.id, msg: msg}
		return
	}
	p.sock.armRecvTimeout(reply)
}

func (p *reqPolicy) onRecvCompleted(_ Token, msg *Message) {
	if !p.outstanding {
		return
	}
	id, rest, ok := splitID(msg.Body)
	if !ok || id != p.reqID {
		return // not our reply; drop, per spec §4.3
	}
	p.outstanding = false
	p.cancelResend()
	if !p.sock.pendingRecv.pending {
		p.replyMsg = &Message{Body: rest}
		return
	}
	p.sock.completeRecv(&Message{Body: rest})
}

func (p *reqPolicy) onRecvTimeout() {
	p.sock.failRecv(ErrTimedOut)
}

func (p *reqPolicy) destroy() {
	p.cancelResend()
}
