package sp

import (
	"container/heap"
	"io"
	"net"
	"sync/atomic"

	"github.com/sagernet/sing/common/bufio"
)

// pipeState names the stages of spec §4.1's state machine. A pipe's
// state field has this type, but no code assigns or reads it after the
// pipe is created: a pipe's progress reaches the engine only as the
// pipeEvent values its own goroutines post.
type pipeState int

const (
	stateInitial pipeState = iota
	stateHandshakeTx
	stateHandshakeRx
	stateIdle
	stateSendBusy
	stateRecvBusy
	stateDead
)

func (s pipeState) String() string {
	switch s {
	case stateInitial:
		return "initial"
	case stateHandshakeTx:
		return "handshake-tx"
	case stateHandshakeRx:
		return "handshake-rx"
	case stateIdle:
		return "idle"
	case stateSendBusy:
		return "send-busy"
	case stateRecvBusy:
		return "recv-busy"
	case stateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// pipeEventKind tags a pipeEvent.
type pipeEventKind int

const (
	evOpened pipeEventKind = iota // handshake complete, peer verified
	evSendDone
	evRecvDone
	evError
)

// pipeEvent is posted by a pipe's own goroutines onto the engine's
// shared events channel — the Go-native stand-in for the spec's
// non-blocking readiness registry (see SPEC_FULL.md §1.1).
type pipeEvent struct {
	token Token
	kind  pipeEventKind
	msg   *Message
	err   error
}

// sendRequest is one outbound frame queued on a pipe's writer. Ordered
// by class then priority then sequence, mirroring the teacher's
// writeRequest/shaperLoop priority heap in session.go.
type sendRequest struct {
	msg      *Message
	priority uint8
	ctrl     bool // control frames sort before all data frames; the handshake is written directly, never queued
	seq      uint64
}

// sendHeap is a container/heap.Interface ordering control frames first,
// then higher priority, then submission order — grounded directly on
// the teacher's shaperHeap (session.go's CLSCTRL/CLSDATA split).
type sendHeap []*sendRequest

func (h sendHeap) Len() int { return len(h) }
func (h sendHeap) Less(i, j int) bool {
	if h[i].ctrl != h[j].ctrl {
		return h[i].ctrl
	}
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h sendHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *sendHeap) Push(x any)        { *h = append(*h, x.(*sendRequest)) }
func (h *sendHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// pipe owns one byte-stream connection plus its framing and handshake
// state (spec §3 "Pipe"). Connection, pipe, and engine ownership nest
// exactly as described in spec §9: the connection belongs to the pipe,
// the pipe belongs to its socket's policy, the policy to its socket.
type pipe struct {
	token      Token
	conn       net.Conn
	origin     string // dial address, for reconnect; "" if accepted
	hasOrigin  bool
	localProto SocketType
	peerProto  SocketType
	maxRecv    uint64

	state pipeState // engine-goroutine-only

	events chan<- pipeEvent // shared, MPSC into the engine
	group  goRunner

	submit  chan *sendRequest
	closeCh chan struct{}
	closed  atomic.Bool

	seq atomic.Uint64
}

func newPipe(token Token, conn net.Conn, localProto SocketType, origin string) *pipe {
	p := &pipe{
		token:      token,
		conn:       conn,
		localProto: localProto,
		maxRecv:    defaultMaxRecvSize,
		submit:     make(chan *sendRequest, 16),
		closeCh:    make(chan struct{}),
	}
	if origin != "" {
		p.origin = origin
		p.hasOrigin = true
	}
	return p
}

// open performs the blocking SP handshake (spec §4.1 HandshakeTx then
// HandshakeRx) and, on success, starts the steady-state read/write
// goroutines. Grounded directly on the mangos reference pipe's
// handshake(): write our frame, then block for the peer's frame. Every
// goroutine this pipe ever starts is registered on group so Engine.Shutdown
// can wait for it to actually exit.
func (p *pipe) open(events chan<- pipeEvent, peer SocketType, group goRunner) {
	p.events = events
	p.group = group
	group.Go(func() error {
		p.handshakeThenServe(peer)
		return nil
	})
}

func (p *pipe) handshakeThenServe(peer SocketType) {
	out := buildHandshake(p.localProto)
	if _, err := writeAll(p.conn, out); err != nil {
		p.fail(err)
		return
	}
	in := make([]byte, handshakeSize)
	if err := readFull(p.conn, in); err != nil {
		p.fail(err)
		return
	}
	if err := verifyHandshake(in, peer); err != nil {
		p.fail(err)
		return
	}
	p.peerProto = peer
	select {
	case p.events <- pipeEvent{token: p.token, kind: evOpened}:
	case <-p.closeCh:
		return
	}
	p.group.Go(func() error { p.readLoop(); return nil })
	p.group.Go(func() error { p.writeLoop(); return nil })
}

// submitSend queues msg for transmission with the given priority. It
// never blocks the engine goroutine: the channel is drained
// continuously by writeLoop's internal heap.
func (p *pipe) submitSend(msg *Message, priority uint8) {
	p.trySubmit(&sendRequest{msg: msg, priority: priority, seq: p.seq.Add(1)})
}

// trySubmit never blocks the engine goroutine: if the pipe's writer is
// still catching up from a prior burst and the queue is momentarily
// full, the frame is dropped — exactly Pub/Bus/Surveyor's documented
// best-effort broadcast semantics (spec §4.3), and for the
// single-outstanding protocols (Pair, Push, Req, Rep, Respondent) the
// buffer is never actually saturated since those only ever hand one
// frame to a pipe between completions.
func (p *pipe) trySubmit(req *sendRequest) {
	select {
	case p.submit <- req:
	case <-p.closeCh:
	default:
	}
}

// writeLoop drains queued frames in priority order and writes each as
// an 8-byte length prefix followed by the payload, using a vectorised
// write when the connection supports it (exactly the teacher's
// sendLoop header+payload scatter-gather in session.go).
func (p *pipe) writeLoop() {
	var pending sendHeap
	bw, vectorised := bufio.CreateVectorisedWriter(p.conn)
	var vec [][]byte
	if vectorised {
		vec = make([][]byte, 2)
	}

	for {
		var next *sendRequest
		if len(pending) > 0 {
			next = heap.Pop(&pending).(*sendRequest)
		}

		if next == nil {
			select {
			case req := <-p.submit:
				heap.Push(&pending, req)
				continue
			case <-p.closeCh:
				return
			}
		}

		// Drain any further queued frames without blocking so a burst
		// of sends still gets priority-ordered instead of FIFO.
	drain:
		for {
			select {
			case req := <-p.submit:
				heap.Push(&pending, req)
			default:
				break drain
			}
		}

		payload := next.msg.encoded()
		prefix := encodeLength(len(payload))

		var err error
		if vectorised {
			vec[0] = prefix
			vec[1] = payload
			_, err = bufio.WriteVectorised(bw, vec)
		} else {
			buf := make([]byte, 0, len(prefix)+len(payload))
			buf = append(buf, prefix...)
			buf = append(buf, payload...)
			_, err = writeAll(p.conn, buf)
		}

		if err != nil {
			p.fail(err)
			return
		}

		select {
		case p.events <- pipeEvent{token: p.token, kind: evSendDone}:
		case <-p.closeCh:
			return
		}
	}
}

// readLoop continuously assembles framed messages (spec §4.1's
// Prefix/Payload/Done recv steps) and posts each as evRecvDone.
func (p *pipe) readLoop() {
	for {
		prefix := make([]byte, lengthPrefixSize)
		if err := readFull(p.conn, prefix); err != nil {
			p.fail(err)
			return
		}
		n, err := decodeLength(prefix, p.maxRecv)
		if err != nil {
			p.fail(err)
			return
		}
		body := make([]byte, n)
		if n > 0 {
			if err := readFull(p.conn, body); err != nil {
				p.fail(err)
				return
			}
		}
		select {
		case p.events <- pipeEvent{token: p.token, kind: evRecvDone, msg: newMessage(body)}:
		case <-p.closeCh:
			return
		}
	}
}

func (p *pipe) fail(err error) {
	select {
	case p.events <- pipeEvent{token: p.token, kind: evError, err: err}:
	case <-p.closeCh:
	}
}

// close tears down the connection and stops this pipe's goroutines.
// Idempotent.
func (p *pipe) close() {
	if p.closed.CompareAndSwap(false, true) {
		close(p.closeCh)
		_ = p.conn.Close()
	}
}

func writeAll(w io.Writer, b []byte) (int, error) {
	total := 0
	for total < len(b) {
		n, err := w.Write(b[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
