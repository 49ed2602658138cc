package sp

// repBacklog bounds how many undelivered requests a Rep socket holds,
// mirroring sub.go's subBacklog/mangos recvq convention.
const repBacklog = 128

type repEntry struct {
	reqID uint32
	tok   Token
	body  []byte
}

// repPolicy implements Rep (spec §4.3): recv returns the oldest queued
// request and records (req_id, pipe) for the next send; send without a
// recorded pair fails with ErrNoRequest.
type repPolicy struct {
	sock    *socketState
	pipes   map[Token]*pipe
	backlog []repEntry

	haveLast  bool
	lastReqID uint32
	lastTok   Token
}

func newRepPolicy(s *socketState) *repPolicy {
	return &repPolicy{sock: s, pipes: make(map[Token]*pipe)}
}

func (p *repPolicy) addPipe(pp *pipe) { p.pipes[pp.token] = pp }

// removePipe leaves any recorded (req_id, pipe) pair in place; if it
// named tok, the next send's p.pipes lookup will miss and fail with
// ErrNoRequest, per spec §4.3's "fails if pipe not still open".
func (p *repPolicy) removePipe(tok Token) { delete(p.pipes, tok) }

func (p *repPolicy) onPipeOpened(Token) {}
func (p *repPolicy) onSendCompleted(tok Token) {
	if p.haveLast && p.lastTok == tok {
		p.sock.completeSend()
	}
}
func (p *repPolicy) onSendTimeout() { p.sock.failSend(ErrTimedOut) }

func (p *repPolicy) send(msg *Message, reply chan commandReply) {
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

func (p *repPolicy) onRecvCompleted(tok Token, msg *Message) {
	id, rest, ok := splitID(msg.Body)
	if !ok {
		return // malformed request header, drop
	}
	if p.sock.pendingRecv.pending {
		p.haveLast, p.lastReqID, p.lastTok = true, id, tok
		p.sock.completeRecv(&Message{Body: rest})
		return
	}
	if len(p.backlog) >= repBacklog {
		p.backlog = p.backlog[1:]
	}
	p.backlog = append(p.backlog, repEntry{reqID: id, tok: tok, body: rest})
}

func (p *repPolicy) recv(reply chan commandReply) {
	if len(p.backlog) > 0 {
		e := p.backlog[0]
		p.backlog = p.backlog[1:]
		p.haveLast, p.lastReqID, p.lastTok = true, e.reqID, e.tok
		reply <- commandReply{sockID: p.sock.id, msg: &Message{Body: e.body}}
		return
	}
	p.sock.armRecvTimeout(reply)
}

func (p *repPolicy) onRecvTimeout() { p.sock.failRecv(ErrTimedOut) }

func (p *repPolicy) destroy() { p.backlog = nil }
