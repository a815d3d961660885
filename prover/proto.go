package prover

// Messages exchanged with an external prover. Every operation starts one
// process: the request is written to its stdin and the reply read from its
// stdout, both encoded with go.dedis.ch/protobuf.
//
// Points are 64 bytes (x then y), cards 128 bytes (e1 then e2) and field
// elements 32 bytes, all big-endian. The joint key is given in its
// compressed form.

// Operations understood by an external prover.
const (
	OpSetup   = "setup"
	OpRefresh = "refresh"
	OpProve   = "prove"
	OpVerify  = "verify"
	OpHash    = "hash"
)

// SetupRequest asks for parameters for decks of DeckSize cards.
type SetupRequest struct {
	DeckSize int
}

// SetupReply holds the serialized parameters.
type SetupReply struct {
	Params []byte
}

// RefreshRequest binds parameters to a joint key.
type RefreshRequest struct {
	Params []byte
	Key    []byte
}

// RefreshReply returns the updated parameters and the refreshed key
// shares.
type RefreshReply struct {
	Params    []byte
	KeyShares []byte
}

// ProveRequest asks for a shuffle of Deck. Seed initializes the prover's
// randomness.
type ProveRequest struct {
	Seed   []byte
	Key    []byte
	Deck   []byte
	Params []byte
}

// ProveReply returns the proof and the shuffled deck.
type ProveReply struct {
	Proof []byte
	Deck  []byte
}

// VerifyRequest asks to check a proof.
type VerifyRequest struct {
	Params  []byte
	Key     []byte
	Deck    []byte
	NewDeck []byte
	Proof   []byte
}

// VerifyReply is the outcome of a verification.
type VerifyReply struct {
	Valid  bool
	Reason string
}

// HashRequest asks for the commitment hash of a sequence of elements.
type HashRequest struct {
	Elements []byte
}

// HashReply holds the resulting element.
type HashReply struct {
	Digest []byte
}
