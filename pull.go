package sp

// pullBacklog bounds per-pipe queued messages, same rationale as
// subBacklog/repBacklog.
const pullBacklog = 128

// pullPolicy implements Pull (spec §4.3): fair-queues recvs across
// opened pipes with a rotating cursor so no single pipe starves the
// others. send is unsupported.
type pullPolicy struct {
	sock   *socketState
	pipes  map[Token]*pipe
	order  []Token
	cursor int
	queues map[Token][]*Message
}

func newPullPolicy(s *socketState) *pullPolicy {
	return &pullPolicy{sock: s, pipes: make(map[Token]*pipe), queues: make(map[Token][]*Message)}
}

func (p *pullPolicy) addPipe(pp *pipe) {
	p.pipes[pp.token] = pp
	p.order = append(p.order, pp.token)
}

func (p *pullPolicy) removePipe(tok Token) {
	delete(p.pipes, tok)
	delete(p.queues, tok)
	for i, t := range p.order {
		if t == tok {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

func (p *pullPolicy) onPipeOpened(Token) {}

func (p *pullPolicy) send(_ *Message, reply chan commandReply) {
	reply <- commandReply{sockID: p.sock.id, err: ErrProtoOp}
}
func (p *pullPolicy) onSendCompleted(Token) {}
func (p *pullPolicy) onSendTimeout()        {}

func (p *pullPolicy) onRecvCompleted(tok Token, msg *Message) {
	if p.sock.pendingRecv.pending {
		p.sock.completeRecv(msg)
		return
	}
	q := p.queues[tok]
	if len(q) >= pullBacklog {
		q = q[1:]
	}
	p.queues[tok] = append(q, msg)
}

// recv walks the rotating cursor one pipe at a time so a chatty pipe
// can't starve its siblings (spec §4.3 "fair-queues recvs").
func (p *pullPolicy) recv(reply chan commandReply) {
	if len(p.order) > 0 {
		for i := 0; i < len(p.order); i++ {
			p.cursor = (p.cursor + 1) % len(p.order)
			tok := p.order[p.cursor]
			q := p.queues[tok]
			if len(q) > 0 {
				msg := q[0]
				p.queues[tok] = q[1:]
				reply <- commandReply{sockID: p.sock.id, msg: msg}
				return
			}
		}
	}
	p.sock.armRecvTimeout(reply)
}

func (p *pullPolicy) onRecvTimeout() { p.sock.failRecv(ErrTimedOut) }

func (p *pullPolicy) destroy() {
	p.queues = make(map[Token][]*Message)
}
