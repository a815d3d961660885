package wire

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// HexSegments renders the input and publics segments of a framed task as
// 0x-prefixed hex strings, the form expected by the on-chain verifier.
func HexSegments(task []byte) (input, publics string, err error) {
	in, pub, err := SplitTask(task)
	if err != nil {
		return "", "", err
	}
	return hexutil.Encode(in), hexutil.Encode(pub), nil
}

// ParseHex is the inverse of the rendering done by HexSegments for one
// segment.
func ParseHex(s string) ([]byte, error) {
	return hexutil.Decode(s)
}
