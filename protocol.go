package sp

import "fmt"

// SocketType identifies one of the ten SP messaging patterns (spec §3).
type SocketType uint16

// Protocol ids: family<<4 | role, per spec §3's bit layout.
const (
	Pair       SocketType = 0x10
	Pub        SocketType = 0x20
	Sub        SocketType = 0x21
	Req        SocketType = 0x30
	Rep        SocketType = 0x31
	Push       SocketType = 0x50
	Pull       SocketType = 0x51
	Surveyor   SocketType = 0x62
	Respondent SocketType = 0x63
	Bus        SocketType = 0x70
)

var typeNames = map[SocketType]string{
	Pair: "pair", Pub: "pub", Sub: "sub", Req: "req", Rep: "rep",
	Push: "push", Pull: "pull", Surveyor: "surveyor", Respondent: "respondent",
	Bus: "bus",
}

func (t SocketType) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("unknown(0x%02x)", uint16(t))
}

// peerOf returns the protocol id(s) this type accepts a connection from.
// Two protocols are compatible iff each names the other as peer (spec §3).
func peerOf(t SocketType) SocketType {
	switch t {
	case Pair:
		return Pair
	case Pub:
		return Sub
	case Sub:
		return Pub
	case Req:
		return Rep
	case Rep:
		return Req
	case Push:
		return Pull
	case Pull:
		return Push
	case Surveyor:
		return Respondent
	case Respondent:
		return Surveyor
	case Bus:
		return Bus
	default:
		return 0
	}
}

func compatible(self, peer SocketType) bool {
	return peerOf(self) == peer && peerOf(peer) == self
}

// newPolicy constructs the protocol policy variant for t.
func newPolicy(t SocketType, sock *socketState) (policy, error) {
	switch t {
	case Pair:
		return newPairPolicy(sock), nil
	case Pub:
		return newPubPolicy(sock), nil
	case Sub:
		return newSubPolicy(sock), nil
	case Req:
		return newReqPolicy(sock), nil
	case Rep:
		return newRepPolicy(sock), nil
	case Push:
		return newPushPolicy(sock), nil
	case Pull:
		return newPullPolicy(sock), nil
	case Surveyor:
		return newSurveyorPolicy(sock), nil
	case Respondent:
		return newRespondentPolicy(sock), nil
	case Bus:
		return newBusPolicy(sock), nil
	default:
		return nil, fmt.Errorf("sp: %w: unknown socket type 0x%x", ErrInvalidInput, uint16(t))
	}
}
