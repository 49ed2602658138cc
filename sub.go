package sp

// subBacklog bounds the number of matched-but-undelivered messages a
// Sub socket holds, mirroring the mangos xsub reference policy's
// fixed-capacity recvq (defaultQLen = 128) rather than an unbounded
// queue — consistent with spec §1's "not a persistent queue".
const subBacklog = 128

// subPolicy implements Sub (spec §4.3): matches each incoming message's
// prefix against the subscription set and silently drops non-matches.
// send is unsupported.
type subPolicy struct {
	sock    *socketState
	pipes   map[Token]*pipe
	backlog []*Message
}

func newSubPolicy(s *socketState) *subPolicy {
	return &subPolicy{sock: s, pipes: make(map[Token]*pipe)}
}

func (p *subPolicy) addPipe(pp *pipe)      { p.pipes[pp.token] = pp }
func (p *subPolicy) removePipe(tok Token)  { delete(p.pipes, tok) }
func (p *subPolicy) onPipeOpened(Token)    {}
func (p *subPolicy) onSendCompleted(Token) {}
func (p *subPolicy) onSendTimeout()        {}

func (p *subPolicy) send(_ *Message, reply chan commandReply) {
	reply <- commandReply{sockID: p.sock.id, err: ErrProtoOp}
}

func (p *subPolicy) matches(body []byte) bool {
	if len(p.sock.opts.subscriptions) == 0 {
		return false
	}
	for _, prefix := range p.sock.opts.subscriptions {
		if len(prefix) == 0 {
			return true // empty prefix matches all, spec §4.3
		}
		if len(body) >= len(prefix) && string(body[:len(prefix)]) == string(prefix) {
			return true
		}
	}
	return false
}

func (p *subPolicy) onRecvCompleted(_ Token, msg *Message) {
	if !p.matches(msg.Body) {
		return
	}
	if p.sock.pendingRecv.pending {
		p.sock.completeRecv(msg)
		return
	}
	if len(p.backlog) >= subBacklog {
		p.backlog = p.backlog[1:] // drop oldest, keep newest
	}
	p.backlog = append(p.backlog, msg)
}

func (p *subPolicy) recv(reply chan commandReply) {
	if len(p.backlog) > 0 {
		msg := p.backlog[0]
		p.backlog = p.backlog[1:]
		reply <- commandReply{sockID: p.sock.id, msg: msg}
		return
	}
	p.sock.armRecvTimeout(reply)
}

func (p *subPolicy) onRecvTimeout() {
	p.sock.failRecv(ErrTimedOut)
}

func (p *subPolicy) destroy() { p.backlog = nil }
