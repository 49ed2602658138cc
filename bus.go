package sp

// busBacklog bounds undelivered messages, same rationale as the other
// protocols' fixed-capacity queues.
const busBacklog = 128

// busPolicy implements Bus (spec §4.3): broadcasts sends to every
// opened pipe; recv delivers any incoming message with no filtering or
// correlation. Loop prevention beyond "don't echo to the sender" is an
// application concern the spec explicitly leaves unmandated.
type busPolicy struct {
	sock    *socketState
	pipes   map[Token]*pipe
	backlog []*Message
}

func newBusPolicy(s *socketState) *busPolicy {
	return &busPolicy{sock: s, pipes: make(map[Token]*pipe)}
}

func (p *busPolicy) addPipe(pp *pipe)     { p.pipes[pp.token] = pp }
func (p *busPolicy) removePipe(tok Token) { delete(p.pipes, tok) }
func (p *busPolicy) onPipeOpened(Token)   {}

func (p *busPolicy) send(msg *Message, reply chan commandReply) {
	for _, pp := range p.pipes {
		pp.submitSend(msg, p.sock.opts.sendPriority)
	}
	reply <- commandReply{sockID: p.sock.id}
}

func (p *busPolicy) onSendCompleted(Token) {}
func (p *busPolicy) onSendTimeout()        {}

func (p *busPolicy) onRecvCompleted(_ Token, msg *Message) {
	if p.sock.pendingRecv.pending {
		p.sock.completeRecv(msg)
		return
	}
	if len(p.backlog) >= busBacklog {
		p.backlog = p.backlog[1:]
	}
	p.backlog = append(p.backlog, msg)
}

func (p *busPolicy) recv(reply chan commandReply) {
	if len(p.backlog) > 0 {
		msg := p.backlog[0]
		p.backlog = p.backlog[1:]
		reply <- commandReply{sockID: p.sock.id, msg: msg}
		return
	}
	p.sock.armRecvTimeout(reply)
}

func (p *busPolicy) onRecvTimeout() { p.sock.failRecv(ErrTimedOut) }

func (p *busPolicy) destroy() { p.backlog = nil }
