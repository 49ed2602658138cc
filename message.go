package sp

// Message is an immutable payload exchanged between peers. Header is a
// short protocol-owned prefix (request id, survey id) prepended and
// stripped by the Req/Rep/Surveyor/Respondent policies; it is never
// seen by Pair/Pub/Sub/Push/Pull/Bus peers. Body is the caller's bytes.
//
// A Message handed to a broadcast send (Pub, Bus, Surveyor) is shared,
// read-only, across every pipe's writer goroutine for the duration of
// that send; no pipe mutates it.
type Message struct {
	Header []byte
	Body   []byte
}

func newMessage(body []byte) *Message {
	return &Message{Body: body}
}

// withHeader returns a copy sharing Body but carrying a fresh Header,
// used by Req/Rep/Surveyor/Respondent to stamp a correlation id without
// mutating the caller's original message.
func (m *Message) withHeader(h []byte) *Message {
	return &Message{Header: h, Body: m.Body}
}

// encoded returns header+body concatenated, the on-wire payload.
func (m *Message) encoded() []byte {
	if len(m.Header) == 0 {
		return m.Body
	}
	out := make([]byte, 0, len(m.Header)+len(m.Body))
	out = append(out, m.Header...)
	out = append(out, m.Body...)
	return out
}
