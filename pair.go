package sp

// pairPolicy implements Pair (spec §4.3): at most one peer pipe carries
// traffic at a time, the first one opened. Extra pipes are accepted
// (so a stray second connection doesn't get dropped) but stay idle.
type pairPolicy struct {
	sock *socketState
	main Token
	have bool

	// parkedSend holds a send the engine couldn't service immediately
	// because no peer was open yet; it is retried from onPipeOpened.
	parkedSend *Message
}

func newPairPolicy(s *socketState) *pairPolicy {
	return &pairPolicy{sock: s}
}

func (p *pairPolicy) addPipe(pp *pipe) {
	if !p.have {
		p.main = pp.token
		p.have = true
	}
}

func (p *pairPolicy) removePipe(tok Token) {
	if p.have && p.main == tok {
		p.have = false
		p.main = 0
	}
}

func (p *pairPolicy) onPipeOpened(tok Token) {
	if !p.have {
		p.main = tok
		p.have = true
	}
	if p.have && p.main == tok && p.parkedSend != nil && p.sock.pendingSend.pending {
		msg := p.parkedSend
		p.parkedSend = nil
		if pp, ok := p.sock.pipes[p.main]; ok {
			pp.submitSend(msg, p.sock.opts.sendPriority)
		}
	}
}

func (p *pairPolicy) send(msg *Message, reply chan commandReply) {
	p.sock.armSendTimeout(reply)
	if p.have {
		if pp, ok := p.sock.pipes[p.main]; ok {
			pp.submitSend(msg, p.sock.opts.sendPriority)
			return
		}
	}
	// No peer yet: park until one opens, or the send timer fires.
	p.parkedSend = msg
}

func (p *pairPolicy) onSendCompleted(tok Token) {
	if p.have && p.main == tok {
		p.sock.completeSend()
	}
}

func (p *pairPolicy) onSendTimeout() {
	p.parkedSend = nil
	p.sock.failSend(ErrTimedOut)
}

func (p *pairPolicy) recv(reply chan commandReply) {
	p.sock.armRecvTimeout(reply)
}

func (p *pairPolicy) onRecvCompleted(tok Token, msg *Message) {
	if p.have && p.main == tok {
		p.sock.completeRecv(msg)
	}
	// Messages from a non-main pipe are silently dropped, matching
	// spec §4.3 "additional pipes accepted but kept idle".
}

func (p *pairPolicy) onRecvTimeout() {
	p.sock.failRecv(ErrTimedOut)
}

func (p *pairPolicy) destroy() {
	p.parkedSend = nil
}
