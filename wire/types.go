package wire

import (
	"go.dedis.ch/shuffleprover/deck"
)

// PointCodec converts a curve point to and from its compressed binary
// form. Decoding is expected to reject points that are not on the curve or
// not in the prime-order subgroup.
type PointCodec interface {
	EncodePoint(p deck.Point) ([]byte, error)
	DecodePoint(b []byte) (deck.Point, error)
}

// Task is a unit of work as handed out by the scheduler.
type Task struct {
	Key  deck.JointKey
	Deck deck.Deck
	// Digest is the commitment the scheduler attached to the input deck.
	// The worker does not use it.
	Digest deck.Element
}

// Response is the result of a proving task.
type Response struct {
	Deck   deck.Deck
	Digest deck.Element
	// KeyShares are the refreshed key points of the proving parameters,
	// one per card.
	KeyShares []deck.Point
	Proof     []byte
}
