package sp

// respondentPolicy implements Respondent (spec §4.3): the Rep-shaped
// reply half of a survey. Unlike Rep, incoming surveys are not queued —
// each new survey supersedes whatever arrived before it was recv'd,
// since an unanswered older survey is stale by the time a newer one
// shows up. send pairs with whichever survey was last delivered by recv.
type respondentPolicy struct {
	sock  *socketState
	pipes map[Token]*pipe

	haveCurrent bool
	currentID   uint32
	currentTok  Token
	currentBody []byte

	haveLast  bool
	lastReqID uint32
	lastTok   Token
}

func newRespondentPolicy(s *socketState) *respondentPolicy {
	return &respondentPolicy{sock: s, pipes: make(map[Token]*pipe)}
}

func (p *respondentPolicy) addPipe(pp *pipe)     { p.pipes[pp.token] = pp }
func (p *respondentPolicy) removePipe(tok Token) { delete(p.pipes, tok) }
func (p *respondentPolicy) onPipeOpened(Token)   {}

func (p *respondentPolicy) onSendCompleted(tok Token) {
	if p.haveLast && p.lastTok == tok {
		p.sock.completeSend()
	}
}
func (p *respondentPolicy) onSendTimeout() { p.sock.failSend(ErrTimedOut) }

func (p *respondentPolicy) send(msg *Message, reply chan commandReply) {
	if !p.haveLast {
		reply <- commandReply{sockID: p.sock.id, err: ErrNoRequest}
		return
	}
	pp, ok := p.pipes[p.lastTok]
	if !ok {
		reply <- commandReply{sockID: p.sock.id, err: ErrNoRequest}
		return
	}
	p.sock.armSendTimeout(reply)
	pp.submitSend(msg.withHeader(encodeID(p.lastReqID)), p.sock.opts.sendPriority)
}

// onRecvCompleted drops whatever survey was waiting undelivered and
// keeps only the newest one (spec §4.3 "surveys supersede each other").
func (p *respondentPolicy) onRecvCompleted(tok Token, msg *Message) {
	id, rest, ok := splitID(msg.Body)
	if !ok {
		return
	}
	if p.sock.pendingRecv.pending {
		p.haveLast, p.lastReqID, p.lastTok = true, id, tok
		p.sock.completeRecv(&Message{Body: rest})
		return
	}
	p.haveCurrent, p.currentID, p.currentTok, p.currentBody = true, id, tok, rest
}

func (p *respondentPolicy) recv(reply chan commandReply) {
	if p.haveCurrent {
		body := p.currentBody
		p.haveLast, p.lastReqID, p.lastTok = true, p.currentID, p.currentTok
		p.haveCurrent, p.currentBody = false, nil
		reply <- commandReply{sockID: p.sock.id, msg: &Message{Body: body}}
		return
	}
	p.sock.armRecvTimeout(reply)
}

func (p *respondentPolicy) onRecvTimeout() { p.sock.failRecv(ErrTimedOut) }

func (p *respondentPolicy) destroy() {
	p.haveCurrent = false
	p.currentBody = nil
}
