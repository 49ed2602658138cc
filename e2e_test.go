package sp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustBind(t *testing.T, sock *Socket, addr string) {
	t.Helper()
	require.NoError(t, sock.Bind(addr))
}

func mustConnect(t *testing.T, sock *Socket, addr string) {
	t.Helper()
	require.NoError(t, sock.Connect(addr))
}

func TestPushPullLoopback(t *testing.T) {
	e := NewEngine(Config{})
	defer e.Shutdown()

	pull, err := NewSocket(e, Pull)
	require.NoError(t, err)
	mustBind(t, pull, "tcp://127.0.0.1:18271")

	push, err := NewSocket(e, Push)
	require.NoError(t, err)
	mustConnect(t, push, "tcp://127.0.0.1:18271")

	require.NoError(t, push.Send([]byte("hello")))

	require.NoError(t, pull.SetOption(RecvTimeout(2*time.Second)))
	body, err := pull.Recv()
	require.NoError(t, err)
	require.Equal(t, "hello", string(body))
}

func TestPushRecvUnsupported(t *testing.T) {
	e := NewEngine(Config{})
	defer e.Shutdown()

	push, err := NewSocket(e, Push)
	require.NoError(t, err)
	_, err = push.Recv()
	require.ErrorIs(t, err, ErrProtoOp)
}

func TestSendTimeoutWithNoPeer(t *testing.T) {
	e := NewEngine(Config{})
	defer e.Shutdown()

	pair, err := NewSocket(e, Pair)
	require.NoError(t, err)
	require.NoError(t, pair.SetOption(SendTimeout(50*time.Millisecond)))

	start := time.Now()
	err = pair.Send([]byte("no one listening"))
	require.ErrorIs(t, err, ErrTimedOut)
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestReqRepRoundTrip(t *testing.T) {
	e := NewEngine(Config{})
	defer e.Shutdown()

	rep, err := NewSocket(e, Rep)
	require.NoError(t, err)
	mustBind(t, rep, "tcp://127.0.0.1:18272")

	req, err := NewSocket(e, Req)
	require.NoError(t, err)
	mustConnect(t, req, "tcp://127.0.0.1:18272")

	require.NoError(t, req.SetOption(RecvTimeout(2*time.Second)))
	require.NoError(t, rep.SetOption(RecvTimeout(2*time.Second)))

	require.NoError(t, req.Send([]byte("ping")))

	body, err := rep.Recv()
	require.NoError(t, err)
	require.Equal(t, "ping", string(body))

	require.NoError(t, rep.Send([]byte("pong")))

	reply, err := req.Recv()
	require.NoError(t, err)
	require.Equal(t, "pong", string(reply))
}

func TestRepSendWithoutRequestFails(t *testing.T) {
	e := NewEngine(Config{})
	defer e.Shutdown()

	rep, err := NewSocket(e, Rep)
	require.NoError(t, err)
	err = rep.Send([]byte("nobody asked"))
	require.ErrorIs(t, err, ErrNoRequest)
}

func TestPubSubSubscriptionFiltering(t *testing.T) {
	e := NewEngine(Config{})
	defer e.Shutdown()

	pub, err := NewSocket(e, Pub)
	require.NoError(t, err)
	mustBind(t, pub, "tcp://127.0.0.1:18273")

	sub, err := NewSocket(e, Sub)
	require.NoError(t, err)
	require.NoError(t, sub.SetOption(Subscribe([]byte("weather."))))
	require.NoError(t, sub.SetOption(RecvTimeout(500*time.Millisecond)))
	mustConnect(t, sub, "tcp://127.0.0.1:18273")

	// give the handshake a moment to complete before the first publish.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, pub.Send([]byte("sports.score 3-1")))
	require.NoError(t, pub.Send([]byte("weather.sunny")))

	body, err := sub.Recv()
	require.NoError(t, err)
	require.Equal(t, "weather.sunny", string(body))
}

func TestSurveyorRespondentDeadline(t *testing.T) {
	e := NewEngine(Config{})
	defer e.Shutdown()

	surv, err := NewSocket(e, Surveyor)
	require.NoError(t, err)
	mustBind(t, surv, "tcp://127.0.0.1:18274")
	require.NoError(t, surv.SetOption(SurveyDeadline(150*time.Millisecond)))

	resp, err := NewSocket(e, Respondent)
	require.NoError(t, err)
	require.NoError(t, resp.SetOption(RecvTimeout(2*time.Second)))
	mustConnect(t, resp, "tcp://127.0.0.1:18274")

	time.Sleep(50 * time.Millisecond)

	require.NoError(t, surv.Send([]byte("ping-all")))

	q, err := resp.Recv()
	require.NoError(t, err)
	require.Equal(t, "ping-all", string(q))
	require.NoError(t, resp.Send([]byte("pong")))

	answer, err := surv.Recv()
	require.NoError(t, err)
	require.Equal(t, "pong", string(answer))

	// A second, unanswered survey rounds the deadline: recv eventually
	// reports the deadline error, and stays that way until the next send.
	require.NoError(t, surv.Send([]byte("ping-again")))
	_, err = resp.Recv() // drain so no reply gets parked in resp's backlog
	require.NoError(t, err)

	time.Sleep(250 * time.Millisecond)
	_, err = surv.Recv()
	require.ErrorIs(t, err, ErrTimedOut)
	_, err = surv.Recv()
	require.ErrorIs(t, err, ErrTimedOut)
}

func TestSocketCloseFailsPendingRecv(t *testing.T) {
	e := NewEngine(Config{})
	defer e.Shutdown()

	pair, err := NewSocket(e, Pair)
	require.NoError(t, err)
	require.NoError(t, pair.SetOption(RecvTimeout(5*time.Second)))

	done := make(chan error, 1)
	go func() {
		_, err := pair.Recv()
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, pair.Close())

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("recv did not unblock after Close")
	}
}
