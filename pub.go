package sp

// pubPolicy implements Pub (spec §4.3): broadcasts to every opened pipe
// (the "distribution set"); a pipe that isn't ready simply drops the
// write (best-effort). send reports MsgSent immediately, without
// waiting for pipes to actually flush.
type pubPolicy struct {
	sock *socketState
	set  map[Token]*pipe
}

func newPubPolicy(s *socketState) *pubPolicy {
	return &pubPolicy{sock: s, set: make(map[Token]*pipe)}
}

func (p *pubPolicy) addPipe(pp *pipe)      { p.set[pp.token] = pp }
func (p *pubPolicy) removePipe(tok Token)  { delete(p.set, tok) }
func (p *pubPolicy) onPipeOpened(Token)    {}
func (p *pubPolicy) onSendCompleted(Token) {}
func (p *pubPolicy) onSendTimeout()        {}
func (p *pubPolicy) onRecvCompleted(Token, *Message) {}
func (p *pubPolicy) onRecvTimeout()        {}

func (p *pubPolicy) send(msg *Message, reply chan commandReply) {
	for _, pp := range p.set {
		pp.submitSend(msg, p.sock.opts.sendPriority)
	}
	reply <- commandReply{sockID: p.sock.id}
}

func (p *pubPolicy) recv(reply chan commandReply) {
	reply <- commandReply{sockID: p.sock.id, err: ErrProtoOp}
}

func (p *pubPolicy) destroy() {}
