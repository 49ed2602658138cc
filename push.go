package sp

// pushPolicy implements Push (spec §4.3): round-robins sends across
// opened pipes; with none available, the send parks until a peer opens
// or the send timer fires.
type pushPolicy struct {
	sock   *socketState
	pipes  map[Token]*pipe
	order  []Token
	cursor int

	haveChosen bool
	chosen     Token
	parkedMsg  *Message
}

func newPushPolicy(s *socketState) *pushPolicy {
	return &pushPolicy{sock: s, pipes: make(map[Token]*pipe)}
}

func (p *pushPolicy) addPipe(pp *pipe) {
	p.pipes[pp.token] = pp
	p.order = append(p.order, pp.token)
}

func (p *pushPolicy) removePipe(tok Token) {
	delete(p.pipes, tok)
	for i, t := range p.order {
		if t == tok {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

func (p *pushPolicy) pickPeer() (Token, *pipe, bool) {
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

func (p *pushPolicy) onPipeOpened(tok Token) {
	if p.parkedMsg == nil || !p.sock.pendingSend.pending {
		return
	}
	if pp, ok := p.pipes[tok]; ok {
		msg := p.parkedMsg
		p.parkedMsg = nil
		p.haveChosen, p.chosen = true, tok
		pp.submitSend(msg, p.sock.opts.sendPriority)
	}
}

func (p *pushPolicy) send(msg *Message, reply chan commandReply) {
	p.sock.armSendTimeout(reply)
	tok, pp, ok := p.pickPeer()
	if !ok {
		p.parkedMsg = msg
		return
	}
	p.haveChosen, p.chosen = true, tok
	pp.submitSend(msg, p.sock.opts.sendPriority)
}

func (p *pushPolicy) onSendCompleted(tok Token) {
	if p.haveChosen && p.chosen == tok {
		p.haveChosen = false
		p.sock.completeSend()
	}
}

func (p *pushPolicy) onSendTimeout() {
	p.parkedMsg = nil
	p.haveChosen = false
	p.sock.failSend(ErrTimedOut)
}

func (p *pushPolicy) recv(reply chan commandReply) {
	reply <- commandReply{sockID: p.sock.id, err: ErrProtoOp}
}

func (p *pushPolicy) onRecvCompleted(Token, *Message) {}
func (p *pushPolicy) onRecvTimeout()                  {}

func (p *pushPolicy) destroy() { p.parkedMsg = nil }
