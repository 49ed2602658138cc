package sp

import (
	"fmt"
	"net"
	"sync"

	"github.com/kpcyrd/go-scaproust/internal/transport"
	"golang.org/x/sync/errgroup"
)

// cmdKind enumerates the command kinds of spec §4.4.
type cmdKind int

const (
	cmdCreateSocket cmdKind = iota
	cmdDestroySocket
	cmdConnect
	cmdBind
	cmdSendMsg
	cmdRecvMsg
	cmdSetOption
	cmdShutdown
)

// command is pushed onto the engine's inbound queue by a Socket facade
// call; reply carries the implicit per-command reply channel (spec §4.4).
type command struct {
	kind   cmdKind
	sockID SocketID
	sock   SocketType
	addr   string
	msg    *Message
	opt    Option
	reply  chan commandReply
}

// commandReply is the engine's single reply notification per command.
type commandReply struct {
	sockID SocketID
	token  Token
	msg    *Message
	err    error
}

// tokenKind distinguishes what a token maps to in the registry.
type tokenKind int

const (
	tokenPipe tokenKind = iota
	tokenAcceptor
)

type tokenEntry struct {
	sockID SocketID
	kind   tokenKind
}

// goRunner is the narrow slice of errgroup.Group the pipe/acceptor
// goroutines need, so pipe.go/acceptor.go don't import errgroup
// directly. *errgroup.Group satisfies it.
type goRunner interface {
	Go(func() error)
}

// Engine is the single-threaded event loop of spec §4.4: it owns every
// socket, pipe, acceptor and timer in the process and is the only
// goroutine that ever mutates that state (see SPEC_FULL.md §1.1).
type Engine struct {
	cfg Config

	cmds           chan command
	pipeEvents     chan pipeEvent
	acceptorEvents chan acceptorEvent
	timerEvents    chan timerEvent

	sockets  map[SocketID]*socketState
	tokens   map[Token]tokenEntry
	sockSeq  sequence
	tokenSeq sequence

	timers *timerService

	done     chan struct{}
	doneOnce sync.Once
	wg       errgroup.Group
}

// NewEngine starts the engine goroutine and returns a handle to it. One
// Engine is normally enough for an entire process; each Socket created
// from it shares the same single-threaded core (spec §1).
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		cfg:            cfg,
		cmds:           make(chan command, cfg.commandQueueDepth()),
		pipeEvents:     make(chan pipeEvent, 64),
		acceptorEvents: make(chan acceptorEvent, 16),
		timerEvents:    make(chan timerEvent, 64),
		sockets:        make(map[SocketID]*socketState),
		tokens:         make(map[Token]tokenEntry),
		done:           make(chan struct{}),
	}
	e.timers = newTimerService(e.timerEvents)
	go e.run()
	return e
}

// Shutdown stops the engine, closing every socket, pipe and acceptor,
// and waits for their goroutines to exit.
func (e *Engine) Shutdown() {
	e.doneOnce.Do(func() { close(e.done) })
	_ = e.wg.Wait()
}

func (e *Engine) run() {
	for {
		select {
		case cmd := <-e.cmds:
			e.handleCommand(cmd)
		case ev := <-e.pipeEvents:
			e.handlePipeEvent(ev)
		case ev := <-e.acceptorEvents:
			e.handleAcceptorEvent(ev)
		case ev := <-e.timerEvents:
			e.handleTimerEvent(ev)
		case <-e.done:
			e.shutdownAll()
			return
		}
	}
}

func (e *Engine) shutdownAll() {
	for _, s := range e.sockets {
		e.destroySocket(s)
	}
}

// submit enqueues cmd, surfacing ErrWouldBlock if the queue is
// saturated (spec §4.5 "transient would-block") rather than blocking
// the caller until the engine catches up.
func (e *Engine) submit(cmd command) error {
	select {
	case <-e.done:
		return ErrClosed
	default:
	}
	select {
	case e.cmds <- cmd:
		return nil
	case <-e.done:
		return ErrClosed
	default:
		return ErrWouldBlock
	}
}

// ---- command handling ----

func (e *Engine) handleCommand(cmd command) {
	switch cmd.kind {
	case cmdCreateSocket:
		e.doCreateSocket(cmd)
	case cmdDestroySocket:
		e.doDestroySocket(cmd)
	case cmdConnect:
		e.doConnect(cmd)
	case cmdBind:
		e.doBind(cmd)
	case cmdSendMsg:
		e.doSendMsg(cmd)
	case cmdRecvMsg:
		e.doRecvMsg(cmd)
	case cmdSetOption:
		e.doSetOption(cmd)
	case cmdShutdown:
		e.doneOnce.Do(func() { close(e.done) })
		if cmd.reply != nil {
			cmd.reply <- commandReply{}
		}
	default:
		panic(fmt.Sprintf("sp: unknown command kind %d", cmd.kind))
	}
}

func (e *Engine) doCreateSocket(cmd command) {
	id := SocketID(e.sockSeq.next())
	s, err := newSocketState(e, id, cmd.sock)
	if err != nil {
		cmd.reply <- commandReply{err: err}
		return
	}
	e.sockets[id] = s
	cmd.reply <- commandReply{sockID: id}
}

func (e *Engine) doDestroySocket(cmd command) {
	s, ok := e.sockets[cmd.sockID]
	if !ok {
		cmd.reply <- commandReply{err: fmt.Errorf("sp: %w: unknown socket", ErrInvalidInput)}
		return
	}
	e.destroySocket(s)
	cmd.reply <- commandReply{}
}

func (e *Engine) destroySocket(s *socketState) {
	if s.destroyed {
		return
	}
	s.destroyed = true
	s.failSend(ErrClosed)
	s.failRecv(ErrClosed)
	for tok, p := range s.pipes {
		delete(e.tokens, tok)
		p.close()
	}
	for tok, a := range s.acceptors {
		delete(e.tokens, tok)
		a.close()
	}
	s.policy.destroy()
	delete(e.sockets, s.id)
}

func (e *Engine) doConnect(cmd command) {
	s, ok := e.sockets[cmd.sockID]
	if !ok {
		cmd.reply <- commandReply{err: fmt.Errorf("sp: %w: unknown socket", ErrInvalidInput)}
		return
	}
	tok, err := e.dial(s, cmd.addr)
	cmd.reply <- commandReply{sockID: s.id, token: tok, err: err}
}

// dial connects addr and wires a new pipe under a fresh token. Shared
// by the initial Connect command and by the reconnect timer.
func (e *Engine) dial(s *socketState, addr string) (Token, error) {
	tr, specific, err := transport.Resolve(addr)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	conn, err := tr.Connect(specific)
	if err != nil {
		e.scheduleReconnect(s.id, addr)
		return 0, err
	}
	tok := e.newPipe(s, conn, addr)
	return tok, nil
}

func (e *Engine) newPipe(s *socketState, conn net.Conn, origin string) Token {
	tok := Token(e.tokenSeq.next())
	p := newPipe(tok, conn, s.typ, origin)
	p.maxRecv = e.cfg.maxRecvSize()
	e.tokens[tok] = tokenEntry{sockID: s.id, kind: tokenPipe}
	s.pipes[tok] = p
	p.open(e.pipeEvents, s.peerType, &e.wg)
	return tok
}

func (e *Engine) doBind(cmd command) {
	s, ok := e.sockets[cmd.sockID]
	if !ok {
		cmd.reply <- commandReply{err: fmt.Errorf("sp: %w: unknown socket", ErrInvalidInput)}
		return
	}
	tok, err := e.listen(s, cmd.addr)
	cmd.reply <- commandReply{sockID: s.id, token: tok, err: err}
}

func (e *Engine) listen(s *socketState, addr string) (Token, error) {
	tr, specific, err := transport.Resolve(addr)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	l, err := tr.Listen(specific)
	if err != nil {
		e.scheduleRebind(s.id, addr)
		return 0, err
	}
	tok := Token(e.tokenSeq.next())
	e.tokens[tok] = tokenEntry{sockID: s.id, kind: tokenAcceptor}
	a := newAcceptor(tok, addr, l, e.acceptorEvents, &e.wg)
	s.acceptors[tok] = a
	return tok, nil
}

func (e *Engine) doSendMsg(cmd command) {
	s, ok := e.sockets[cmd.sockID]
	if !ok {
		cmd.reply <- commandReply{err: fmt.Errorf("sp: %w: unknown socket", ErrInvalidInput)}
		return
	}
	s.policy.send(cmd.msg, cmd.reply)
}

func (e *Engine) doRecvMsg(cmd command) {
	s, ok := e.sockets[cmd.sockID]
	if !ok {
		cmd.reply <- commandReply{err: fmt.Errorf("sp: %w: unknown socket", ErrInvalidInput)}
		return
	}
	s.policy.recv(cmd.reply)
}

func (e *Engine) doSetOption(cmd command) {
	s, ok := e.sockets[cmd.sockID]
	if !ok {
		cmd.reply <- commandReply{err: fmt.Errorf("sp: %w: unknown socket", ErrInvalidInput)}
		return
	}
	if err := cmd.opt(&s.opts); err != nil {
		cmd.reply <- commandReply{err: err}
		return
	}
	cmd.reply <- commandReply{}
}

// ---- event handling ----

func (e *Engine) handlePipeEvent(ev pipeEvent) {
	entry, ok := e.tokens[ev.token]
	if !ok {
		return // pipe already torn down, event raced close
	}
	s, ok := e.sockets[entry.sockID]
	if !ok {
		return
	}
	p, ok := s.pipes[ev.token]
	if !ok {
		return
	}
	switch ev.kind {
	case evOpened:
		s.policy.addPipe(p)
		s.policy.onPipeOpened(ev.token)
	case evSendDone:
		s.policy.onSendCompleted(ev.token)
	case evRecvDone:
		s.policy.onRecvCompleted(ev.token, ev.msg)
	case evError:
		e.killPipe(s, p)
	}
}

// killPipe removes a dead pipe from its socket and, if it has an origin
// address, arms the 200ms reconnect timer (spec §3 "Lifecycle summary").
func (e *Engine) killPipe(s *socketState, p *pipe) {
	delete(e.tokens, p.token)
	delete(s.pipes, p.token)
	s.policy.removePipe(p.token)
	p.close()
	if p.hasOrigin {
		e.scheduleReconnect(s.id, p.origin)
	}
}

func (e *Engine) handleAcceptorEvent(ev acceptorEvent) {
	entry, ok := e.tokens[ev.tok]
	if !ok {
		return
	}
	s, ok := e.sockets[entry.sockID]
	if !ok {
		return
	}
	a, ok := s.acceptors[ev.tok]
	if !ok {
		return
	}
	switch ev.kind {
	case evAccepted:
		tok := Token(e.tokenSeq.next())
		p := newPipe(tok, ev.conn, s.typ, "")
		p.maxRecv = e.cfg.maxRecvSize()
		e.tokens[tok] = tokenEntry{sockID: s.id, kind: tokenPipe}
		s.pipes[tok] = p
		p.open(e.pipeEvents, s.peerType, &e.wg)
	case evAcceptError:
		delete(e.tokens, a.token)
		delete(s.acceptors, a.token)
		addr := a.addr
		a.close()
		e.scheduleRebind(s.id, addr)
	}
}

func (e *Engine) handleTimerEvent(ev timerEvent) {
	switch ev.kind {
	case timerReconnect:
		e.onReconnect(ev)
	case timerRebind:
		e.onRebind(ev)
	case timerCancelSend:
		e.onCancelSend(ev)
	case timerCancelRecv:
		e.onCancelRecv(ev)
	case timerCancelSurvey:
		e.onCancelSurvey(ev)
	case timerResend:
		e.onResend(ev)
	}
}

func (e *Engine) onReconnect(ev timerEvent) {
	s, ok := e.sockets[ev.sockID]
	if !ok {
		return
	}
	_, _ = e.dial(s, ev.addr)
}

func (e *Engine) onRebind(ev timerEvent) {
	s, ok := e.sockets[ev.sockID]
	if !ok {
		return
	}
	_, _ = e.listen(s, ev.addr)
}

func (e *Engine) onCancelSend(ev timerEvent) {
	s, ok := e.sockets[ev.sockID]
	if !ok || !s.pendingSend.pending || s.pendingSend.handle != ev.handle {
		return
	}
	s.policy.onSendTimeout()
}

func (e *Engine) onCancelRecv(ev timerEvent) {
	s, ok := e.sockets[ev.sockID]
	if !ok || !s.pendingRecv.pending || s.pendingRecv.handle != ev.handle {
		return
	}
	s.policy.onRecvTimeout()
}

func (e *Engine) onCancelSurvey(ev timerEvent) {
	s, ok := e.sockets[ev.sockID]
	if !ok {
		return
	}
	if sv, ok := s.policy.(surveyDeadlineHandler); ok {
		sv.onSurveyDeadline(ev.handle)
	}
}

func (e *Engine) onResend(ev timerEvent) {
	s, ok := e.sockets[ev.sockID]
	if !ok {
		return
	}
	if r, ok := s.policy.(resendHandler); ok {
		r.onResend(ev.handle)
	}
}

func (e *Engine) scheduleReconnect(id SocketID, addr string) {
	e.timers.arm(reconnectBackoff, timerReconnect, 0, id, addr)
}

func (e *Engine) scheduleRebind(id SocketID, addr string) {
	e.timers.arm(rebindBackoff, timerRebind, 0, id, addr)
}
