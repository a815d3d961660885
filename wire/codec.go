// Package wire implements the binary layout of proving tasks and their
// responses.
//
// A task is framed as
//
//	[4 bytes big-endian L][L bytes: abi(uint256 key)][abi(uint256[] cards, uint256 digest)]
//
// and a response as
//
//	abi(uint256[] cards, uint256 digest, uint256[] keyShares, bytes proof)
//
// Every masked card takes four tokens in the order e2.x, e2.y, e1.x, e1.y.
// Key shares take two tokens, x then y.
package wire

import (
	"encoding/binary"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"go.dedis.ch/shuffleprover"
	"go.dedis.ch/shuffleprover/deck"
	"golang.org/x/xerrors"
)

// PrefixSize is the size of the length prefix of a task.
const PrefixSize = 4

var (
	inputArgs    abi.Arguments
	publicsArgs  abi.Arguments
	responseArgs abi.Arguments
)

func init() {
	uint256, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	uint256s, err := abi.NewType("uint256[]", "", nil)
	if err != nil {
		panic(err)
	}
	bytes, err := abi.NewType("bytes", "", nil)
	if err != nil {
		panic(err)
	}

	inputArgs = abi.Arguments{{Name: "jointKey", Type: uint256}}
	publicsArgs = abi.Arguments{
		{Name: "cards", Type: uint256s},
		{Name: "digest", Type: uint256},
	}
	responseArgs = abi.Arguments{
		{Name: "cards", Type: uint256s},
		{Name: "digest", Type: uint256},
		{Name: "keyShares", Type: uint256s},
		{Name: "proof", Type: bytes},
	}
}

// Codec encodes and decodes tasks and responses. The joint key goes through
// the point codec, every other point is carried as raw coordinates.
type Codec struct {
	Points PointCodec
}

// NewCodec returns a codec using pc for the joint key.
func NewCodec(pc PointCodec) *Codec {
	return &Codec{Points: pc}
}

// SplitTask separates the input and the publics segments of a task.
func SplitTask(b []byte) (input, publics []byte, err error) {
	if len(b) < PrefixSize {
		return nil, nil, shuffleprover.Errorf(shuffleprover.ErrFrame,
			"task of %d bytes has no length prefix", len(b))
	}
	l := uint64(binary.BigEndian.Uint32(b[:PrefixSize]))
	if l > uint64(len(b)-PrefixSize) {
		return nil, nil, shuffleprover.Errorf(shuffleprover.ErrFrame,
			"input segment of %d bytes exceeds the %d remaining bytes", l, len(b)-PrefixSize)
	}
	end := PrefixSize + int(l)
	return b[PrefixSize:end], b[end:], nil
}

// JoinTask frames the input and publics segments into a task.
func JoinTask(input, publics []byte) ([]byte, error) {
	if uint64(len(input)) > math.MaxUint32 {
		return nil, shuffleprover.Errorf(shuffleprover.ErrFrame,
			"input segment of %d bytes does not fit the length prefix", len(input))
	}
	out := make([]byte, PrefixSize, PrefixSize+len(input)+len(publics))
	binary.BigEndian.PutUint32(out, uint32(len(input)))
	out = append(out, input...)
	return append(out, publics...), nil
}

// DecodeTask parses a task as fetched from the scheduler.
func (c *Codec) DecodeTask(b []byte) (*Task, error) {
	input, publics, err := SplitTask(b)
	if err != nil {
		return nil, err
	}

	values, err := inputArgs.Unpack(input)
	if err != nil {
		return nil, shuffleprover.NewError(shuffleprover.ErrDecoding, err, "input segment")
	}
	keyToken, err := bigValue(values[0])
	if err != nil {
		return nil, shuffleprover.NewError(shuffleprover.ErrDecoding, err, "joint key")
	}
	key, err := c.decodeKey(keyToken)
	if err != nil {
		return nil, err
	}

	values, err = publicsArgs.Unpack(publics)
	if err != nil {
		return nil, shuffleprover.NewError(shuffleprover.ErrDecoding, err, "publics segment")
	}
	cardTokens, err := bigSliceValue(values[0])
	if err != nil {
		return nil, shuffleprover.NewError(shuffleprover.ErrDecoding, err, "card tokens")
	}
	digest, err := bigValue(values[1])
	if err != nil {
		return nil, shuffleprover.NewError(shuffleprover.ErrDecoding, err, "digest")
	}
	cards, err := decodeCards(cardTokens)
	if err != nil {
		return nil, err
	}

	return &Task{
		Key:    key,
		Deck:   cards,
		Digest: deck.ElementFromBig(digest),
	}, nil
}

// EncodeTask is the inverse of DecodeTask.
func (c *Codec) EncodeTask(t *Task) ([]byte, error) {
	input, publics, err := c.EncodeTaskSegments(t)
	if err != nil {
		return nil, err
	}
	return JoinTask(input, publics)
}

// EncodeTaskSegments returns the unframed input and publics segments of a
// task.
func (c *Codec) EncodeTaskSegments(t *Task) (input, publics []byte, err error) {
	keyToken, err := c.encodeKey(t.Key)
	if err != nil {
		return nil, nil, err
	}
	input, err = inputArgs.Pack(keyToken)
	if err != nil {
		return nil, nil, xerrors.Errorf("packing input segment: %w", err)
	}
	publics, err = publicsArgs.Pack(encodeCards(t.Deck), deck.ElementToBig(t.Digest))
	if err != nil {
		return nil, nil, xerrors.Errorf("packing publics segment: %w", err)
	}
	return input, publics, nil
}

// EncodeResponse serializes the result of a proving task. Contrary to a
// task, the response has no length prefix.
func (c *Codec) EncodeResponse(r *Response) ([]byte, error) {
	proof := r.Proof
	if proof == nil {
		proof = []byte{}
	}
	b, err := responseArgs.Pack(encodeCards(r.Deck), deck.ElementToBig(r.Digest),
		encodePoints(r.KeyShares), proof)
	if err != nil {
		return nil, xerrors.Errorf("packing response: %w", err)
	}
	return b, nil
}

// DecodeResponse is the inverse of EncodeResponse.
func (c *Codec) DecodeResponse(b []byte) (*Response, error) {
	values, err := responseArgs.Unpack(b)
	if err != nil {
		return nil, shuffleprover.NewError(shuffleprover.ErrDecoding, err, "response")
	}
	cardTokens, err := bigSliceValue(values[0])
	if err != nil {
		return nil, shuffleprover.NewError(shuffleprover.ErrDecoding, err, "card tokens")
	}
	digest, err := bigValue(values[1])
	if err != nil {
		return nil, shuffleprover.NewError(shuffleprover.ErrDecoding, err, "digest")
	}
	shareTokens, err := bigSliceValue(values[2])
	if err != nil {
		return nil, shuffleprover.NewError(shuffleprover.ErrDecoding, err, "key shares")
	}
	proof, ok := values[3].([]byte)
	if !ok {
		return nil, shuffleprover.Errorf(shuffleprover.ErrDecoding, "proof is a %T", values[3])
	}

	cards, err := decodeCards(cardTokens)
	if err != nil {
		return nil, err
	}
	if len(shareTokens)%2 != 0 {
		return nil, shuffleprover.Errorf(shuffleprover.ErrDecoding,
			"%d key share tokens is not a multiple of 2", len(shareTokens))
	}
	shares := make([]deck.Point, len(shareTokens)/2)
	for i := range shares {
		shares[i] = pointFromTokens(shareTokens[2*i], shareTokens[2*i+1])
	}

	return &Response{
		Deck:      cards,
		Digest:    deck.ElementFromBig(digest),
		KeyShares: shares,
		Proof:     proof,
	}, nil
}

func (c *Codec) decodeKey(token *big.Int) (deck.JointKey, error) {
	if token.BitLen() > 8*deck.ElementSize {
		return deck.JointKey{}, shuffleprover.Errorf(shuffleprover.ErrKeyDeserialization,
			"joint key token has %d bits", token.BitLen())
	}
	raw := token.FillBytes(make([]byte, deck.ElementSize))
	p, err := c.Points.DecodePoint(raw)
	if err != nil {
		return deck.JointKey{}, shuffleprover.NewError(shuffleprover.ErrKeyDeserialization, err, "joint key")
	}
	return deck.JointKey{Point: p}, nil
}

func (c *Codec) encodeKey(key deck.JointKey) (*big.Int, error) {
	raw, err := c.Points.EncodePoint(key.Point)
	if err != nil {
		return nil, xerrors.Errorf("encoding joint key: %w", err)
	}
	if len(raw) > deck.ElementSize {
		return nil, xerrors.Errorf("joint key encoding of %d bytes does not fit a token", len(raw))
	}
	return new(big.Int).SetBytes(raw), nil
}

// encodeCards emits e2 before e1 for every card.
func encodeCards(d deck.Deck) []*big.Int {
	out := make([]*big.Int, 0, len(d)*deck.TokensPerCard)
	for _, c := range d {
		out = append(out,
			deck.ElementToBig(c.E2.X), deck.ElementToBig(c.E2.Y),
			deck.ElementToBig(c.E1.X), deck.ElementToBig(c.E1.Y))
	}
	return out
}

func decodeCards(tokens []*big.Int) (deck.Deck, error) {
	if len(tokens)%deck.TokensPerCard != 0 {
		return nil, shuffleprover.Errorf(shuffleprover.ErrDeckLength,
			"%d card tokens is not a multiple of %d", len(tokens), deck.TokensPerCard)
	}
	out := make(deck.Deck, len(tokens)/deck.TokensPerCard)
	for i := range out {
		t := tokens[i*deck.TokensPerCard:]
		out[i] = deck.Card{
			E2: pointFromTokens(t[0], t[1]),
			E1: pointFromTokens(t[2], t[3]),
		}
	}
	return out, nil
}

func encodePoints(ps []deck.Point) []*big.Int {
	out := make([]*big.Int, 0, 2*len(ps))
	for _, p := range ps {
		out = append(out, deck.ElementToBig(p.X), deck.ElementToBig(p.Y))
	}
	return out
}

func pointFromTokens(x, y *big.Int) deck.Point {
	return deck.Point{X: deck.ElementFromBig(x), Y: deck.ElementFromBig(y)}
}

func bigValue(v interface{}) (*big.Int, error) {
	b, ok := v.(*big.Int)
	if !ok || b == nil {
		return nil, xerrors.Errorf("expected uint256, got %T", v)
	}
	return b, nil
}

func bigSliceValue(v interface{}) ([]*big.Int, error) {
	b, ok := v.([]*big.Int)
	if !ok {
		return nil, xerrors.Errorf("expected uint256[], got %T", v)
	}
	return b, nil
}
