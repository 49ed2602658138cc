package sp

import "context"

// Socket is the caller-facing handle for one SP socket (spec §4.5): a
// thin blocking wrapper that turns each method call into a command
// posted to the engine goroutine and blocks on that command's own
// reply channel. Not safe for concurrent Send or Recv calls: a Send (or
// Recv) issued while another is still pending replaces it in the
// engine, and the earlier call never receives a reply.
type Socket struct {
	engine *Engine
	id     SocketID
	typ    SocketType
}

// NewSocket creates a socket of the given type on e (spec §4.5). The
// socket is live immediately; Connect/Bind attach pipes and acceptors
// to it afterward.
func NewSocket(e *Engine, typ SocketType) (*Socket, error) {
	reply := make(chan commandReply, 1)
	if err := e.submit(command{kind: cmdCreateSocket, sock: typ, reply: reply}); err != nil {
		return nil, err
	}
	r := <-reply
	if r.err != nil {
		return nil, r.err
	}
	return &Socket{engine: e, id: r.sockID, typ: typ}, nil
}

// Connect dials addr ("scheme://specific", spec §3) and adds the
// resulting pipe to this socket. Connect returns once the TCP/IPC dial
// either succeeds (handshake continues asynchronously) or fails
// outright; a dial failure still arms the socket's reconnect timer.
func (s *Socket) Connect(addr string) error {
	return s.simpleCmd(cmdConnect, addr, nil, nil)
}

// Bind listens on addr and accepts inbound peers onto this socket.
func (s *Socket) Bind(addr string) error {
	return s.simpleCmd(cmdBind, addr, nil, nil)
}

func (s *Socket) simpleCmd(kind cmdKind, addr string, msg *Message, opt Option) error {
	reply := make(chan commandReply, 1)
	if err := s.engine.submit(command{kind: kind, sockID: s.id, addr: addr, msg: msg, opt: opt, reply: reply}); err != nil {
		return err
	}
	r := <-reply
	return r.err
}

// Send blocks until body is handed to a peer, times out per SendTimeout
// (default 1000ms, spec §6), or the socket is closed.
func (s *Socket) Send(body []byte) error {
	reply := make(chan commandReply, 1)
	cmd := command{kind: cmdSendMsg, sockID: s.id, msg: newMessage(body), reply: reply}
	if err := s.engine.submit(cmd); err != nil {
		return err
	}
	r := <-reply
	return r.err
}

// Recv blocks until a message is available, times out per RecvTimeout,
// or the socket is closed.
func (s *Socket) Recv() ([]byte, error) {
	reply := make(chan commandReply, 1)
	cmd := command{kind: cmdRecvMsg, sockID: s.id, reply: reply}
	if err := s.engine.submit(cmd); err != nil {
		return nil, err
	}
	r := <-reply
	if r.err != nil {
		return nil, r.err
	}
	return r.msg.Body, nil
}

// SendContext is Send but returns early if ctx is done, independent of
// the socket's own SendTimeout.
func (s *Socket) SendContext(ctx context.Context, body []byte) error {
	reply := make(chan commandReply, 1)
	cmd := command{kind: cmdSendMsg, sockID: s.id, msg: newMessage(body), reply: reply}
	if err := s.engine.submit(cmd); err != nil {
		return err
	}
	select {
	case r := <-reply:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecvContext is Recv but returns early if ctx is done.
func (s *Socket) RecvContext(ctx context.Context) ([]byte, error) {
	reply := make(chan commandReply, 1)
	cmd := command{kind: cmdRecvMsg, sockID: s.id, reply: reply}
	if err := s.engine.submit(cmd); err != nil {
		return nil, err
	}
	select {
	case r := <-reply:
		if r.err != nil {
			return nil, r.err
		}
		return r.msg.Body, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SetOption applies opt to this socket (spec §6).
func (s *Socket) SetOption(opt Option) error {
	return s.simpleCmd(cmdSetOption, "", nil, opt)
}

// Close destroys the socket: every pipe and acceptor is torn down and
// any pending send/recv fails with ErrClosed. Close is best-effort and
// non-blocking on a saturated command queue, matching spec §4.5's
// "close never needs to succeed synchronously" posture — a dropped
// Socket without an explicit Close is still cleaned up when its Engine
// shuts down.
func (s *Socket) Close() error {
	reply := make(chan commandReply, 1)
	cmd := command{kind: cmdDestroySocket, sockID: s.id, reply: reply}
	if err := s.engine.submit(cmd); err != nil {
		if err == ErrWouldBlock {
			return nil
		}
		return err
	}
	r := <-reply
	return r.err
}

// Type reports the protocol this socket was created with.
func (s *Socket) Type() SocketType { return s.typ }
