package sp

import "sync/atomic"

// Token is a process-unique dense integer identifying a pipe or an
// acceptor within the engine's readiness registry (spec §3).
type Token uint64

// SocketID is a process-unique dense integer identifying a socket,
// stable for its lifetime (spec §3).
type SocketID uint64

// sequence is a single monotonic counter. The engine keeps one shared
// between pipes and acceptors (spec §4.4 "token allocation") and a
// second, independent one for socket ids.
type sequence struct{ n atomic.Uint64 }

func (s *sequence) next() uint64 {
	return s.n.Add(1)
}
