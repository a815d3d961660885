package prover

import (
	"go.dedis.ch/shuffleprover/deck"
	"golang.org/x/xerrors"
)

const (
	pointSize = 2 * deck.ElementSize
	cardSize  = 2 * pointSize
)

func encodePoint(p deck.Point) []byte {
	x, y := p.X.Bytes(), p.Y.Bytes()
	return append(x[:], y[:]...)
}

func decodePoint(b []byte) (deck.Point, error) {
	if len(b) != pointSize {
		return deck.Point{}, xerrors.Errorf("decodePoint: expected %d bytes", pointSize)
	}
	return deck.Point{
		X: deck.ElementFromBytes(b[:deck.ElementSize]),
		Y: deck.ElementFromBytes(b[deck.ElementSize:]),
	}, nil
}

func encodePoints(ps []deck.Point) []byte {
	out := make([]byte, 0, len(ps)*pointSize)
	for _, p := range ps {
		out = append(out, encodePoint(p)...)
	}
	return out
}

func decodePoints(b []byte) ([]deck.Point, error) {
	if len(b)%pointSize != 0 {
		return nil, xerrors.Errorf("decodePoints: %d bytes is not a multiple of %d", len(b), pointSize)
	}
	out := make([]deck.Point, len(b)/pointSize)
	for i := range out {
		p, err := decodePoint(b[i*pointSize : (i+1)*pointSize])
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// encodeDeck writes every card in its natural order e1, e2.
func encodeDeck(d deck.Deck) []byte {
	out := make([]byte, 0, len(d)*cardSize)
	for _, c := range d {
		out = append(out, encodePoint(c.E1)...)
		out = append(out, encodePoint(c.E2)...)
	}
	return out
}

func decodeDeck(b []byte) (deck.Deck, error) {
	if len(b)%cardSize != 0 {
		return nil, xerrors.Errorf("decodeDeck: %d bytes is not a multiple of %d", len(b), cardSize)
	}
	ps, err := decodePoints(b)
	if err != nil {
		return nil, err
	}
	out := make(deck.Deck, len(ps)/2)
	for i := range out {
		out[i] = deck.Card{E1: ps[2*i], E2: ps[2*i+1]}
	}
	return out, nil
}

func encodeElements(es []deck.Element) []byte {
	out := make([]byte, 0, len(es)*deck.ElementSize)
	for i := range es {
		b := es[i].Bytes()
		out = append(out, b[:]...)
	}
	return out
}

func decodeElements(b []byte) ([]deck.Element, error) {
	if len(b)%deck.ElementSize != 0 {
		return nil, xerrors.Errorf("decodeElements: %d bytes is not a multiple of %d", len(b), deck.ElementSize)
	}
	out := make([]deck.Element, len(b)/deck.ElementSize)
	for i := range out {
		out[i] = deck.ElementFromBytes(b[i*deck.ElementSize : (i+1)*deck.ElementSize])
	}
	return out, nil
}
