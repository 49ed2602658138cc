package sp

import "time"

const (
	defaultSendRecvTimeout = 1000 * time.Millisecond
	reconnectBackoff       = 200 * time.Millisecond
	rebindBackoff          = 200 * time.Millisecond
	defaultMaxRecvSize     = 32 << 20 // 32 MiB, spec §9's required configurable cap
	defaultCommandQueue    = 256
)

// Config tunes process-wide engine behavior. Zero Config is valid and
// uses the defaults above. There is no file/env loader: an embeddable
// library's only configuration surface is the struct the caller passes
// in-process (spec §6 "No CLI, no persisted state").
type Config struct {
	// MaxRecvSize bounds the length prefix a pipe will honor before
	// killing the connection with ErrInvalidData. 0 means default.
	MaxRecvSize uint64

	// CommandQueueDepth bounds the engine's inbound command channel.
	// 0 means default. A full queue surfaces ErrWouldBlock to the caller.
	CommandQueueDepth int
}

func (c Config) maxRecvSize() uint64 {
	if c.MaxRecvSize == 0 {
		return defaultMaxRecvSize
	}
	return c.MaxRecvSize
}

func (c Config) commandQueueDepth() int {
	if c.CommandQueueDepth == 0 {
		return defaultCommandQueue
	}
	return c.CommandQueueDepth
}

// socketOptions holds the per-socket option state of spec §6.
type socketOptions struct {
	sendTimeout    time.Duration
	recvTimeout    time.Duration
	subscriptions  [][]byte // Sub only
	surveyDeadline time.Duration
	resendInterval time.Duration // Req only; 0 disables resend
	sendPriority   uint8
	recvPriority   uint8
}

func defaultSocketOptions() socketOptions {
	return socketOptions{
		sendTimeout:    defaultSendRecvTimeout,
		recvTimeout:    defaultSendRecvTimeout,
		surveyDeadline: defaultSendRecvTimeout,
	}
}

// Option is applied to a socket's options under the engine goroutine
// when a SetOption command is processed. Functional-options style.
type Option func(*socketOptions) error

// SendTimeout sets the per-send deadline. Default 1000 ms (spec §6).
func SendTimeout(d time.Duration) Option {
	return func(o *socketOptions) error {
		if d < 0 {
			return ErrInvalidInput
		}
		o.sendTimeout = d
		return nil
	}
}

// RecvTimeout sets the per-recv deadline. Default 1000 ms (spec §6).
func RecvTimeout(d time.Duration) Option {
	return func(o *socketOptions) error {
		if d < 0 {
			return ErrInvalidInput
		}
		o.recvTimeout = d
		return nil
	}
}

// Subscribe adds a subscription prefix. Sub sockets only; the empty
// prefix matches every message (spec §4.3).
func Subscribe(prefix []byte) Option {
	return func(o *socketOptions) error {
		o.subscriptions = append(o.subscriptions, append([]byte(nil), prefix...))
		return nil
	}
}

// Unsubscribe removes a previously added prefix, if present.
func Unsubscribe(prefix []byte) Option {
	return func(o *socketOptions) error {
		for i, p := range o.subscriptions {
			if string(p) == string(prefix) {
				o.subscriptions = append(o.subscriptions[:i], o.subscriptions[i+1:]...)
				return nil
			}
		}
		return nil
	}
}

// SurveyDeadline sets the reply-collection window. Surveyor only.
func SurveyDeadline(d time.Duration) Option {
	return func(o *socketOptions) error {
		if d <= 0 {
			return ErrInvalidInput
		}
		o.surveyDeadline = d
		return nil
	}
}

// ResendInterval arms periodic request retransmission while a Req
// socket has an outstanding request. 0 (the default) disables resend.
func ResendInterval(d time.Duration) Option {
	return func(o *socketOptions) error {
		if d < 0 {
			return ErrInvalidInput
		}
		o.resendInterval = d
		return nil
	}
}

// SendPriority sets the priority attached to frames this socket queues
// from now on. Each pipe's writer sends its queued frames highest
// priority first, in submission order within one priority.
func SendPriority(p uint8) Option {
	return func(o *socketOptions) error {
		o.sendPriority = p
		return nil
	}
}

// RecvPriority records a receive priority in the socket's options. No
// protocol policy reads it, so it does not change receive order.
func RecvPriority(p uint8) Option {
	return func(o *socketOptions) error {
		o.recvPriority = p
		return nil
	}
}
