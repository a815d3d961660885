package worker

import (
	"io"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.dedis.ch/shuffleprover/babyjub"
	"go.dedis.ch/shuffleprover/commit"
	"go.dedis.ch/shuffleprover/deck"
	"go.dedis.ch/shuffleprover/prover"
	"go.dedis.ch/shuffleprover/transport"
	"go.dedis.ch/shuffleprover/wire"
	"golang.org/x/xerrors"
)

// Names of the proof system backends.
const (
	BackendExec   = "exec"
	BackendRemask = "remask"
)

// Names of the commitment hashes. CommitmentAuto, the default, hashes with
// the external prover for the exec backend and with MiMC for the remask
// backend, so that a production worker commits with the verifier's hash
// unless MiMC is asked for explicitly.
const (
	CommitmentAuto   = ""
	CommitmentMiMC   = "mimc"
	CommitmentProver = "prover"
)

// Duration is a time.Duration read from a string like "5m" in the
// configuration file.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the content of the worker's toml file.
type Config struct {
	Endpoint           string
	PublicCards        int
	MaxDeckSize        int
	VerifyBeforeSubmit bool
	Commitment         string
	Transport          TransportConfig
	Prover             ProverConfig
}

// TransportConfig sets up the HTTP client.
type TransportConfig struct {
	Timeout     Duration
	Token       string
	MaxBodySize int64
}

// ProverConfig selects and sets up the proof system.
type ProverConfig struct {
	Backend string
	Command string
	Args    []string
	Env     []string
	Timeout Duration
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		PublicCards: deck.PublicCards,
		Commitment:  CommitmentAuto,
		Transport: TransportConfig{
			Timeout:     Duration{5 * time.Minute},
			MaxBodySize: transport.DefaultMaxBodySize,
		},
		Prover: ProverConfig{
			Backend: BackendExec,
			Command: "zshuffle-prover",
		},
	}
}

// LoadConfig reads a toml configuration on top of the defaults. Unknown
// keys are an error.
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, xerrors.Errorf("reading %s: %w", path, err)
	}
	if err := checkUndecoded(md); err != nil {
		return nil, xerrors.Errorf("reading %s: %w", path, err)
	}
	return c, nil
}

// ReadConfig is like LoadConfig but reads from r.
func ReadConfig(r io.Reader) (*Config, error) {
	c := DefaultConfig()
	md, err := toml.DecodeReader(r, c)
	if err != nil {
		return nil, xerrors.Errorf("parsing config: %w", err)
	}
	if err := checkUndecoded(md); err != nil {
		return nil, err
	}
	return c, nil
}

func checkUndecoded(md toml.MetaData) error {
	keys := md.Undecoded()
	if len(keys) == 0 {
		return nil
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	return xerrors.Errorf("unknown keys: %s", strings.Join(names, ", "))
}

// Validate checks the values that cannot be checked while decoding.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return xerrors.New("missing endpoint")
	}
	if c.PublicCards < 0 {
		return xerrors.Errorf("negative number of public cards: %d", c.PublicCards)
	}
	if c.MaxDeckSize < 0 {
		return xerrors.Errorf("negative maximum deck size: %d", c.MaxDeckSize)
	}
	switch c.Prover.Backend {
	case BackendExec:
		if c.Prover.Command == "" {
			return xerrors.New("the exec prover needs a command")
		}
	case BackendRemask:
	default:
		return xerrors.Errorf("unknown prover backend %q", c.Prover.Backend)
	}
	switch c.Commitment {
	case CommitmentAuto, CommitmentMiMC:
	case CommitmentProver:
		if c.Prover.Backend != BackendExec {
			return xerrors.Errorf("commitment %q needs the %s backend", c.Commitment, BackendExec)
		}
	default:
		return xerrors.Errorf("unknown commitment %q", c.Commitment)
	}
	if c.VerifyBeforeSubmit && c.Prover.Backend == BackendRemask {
		return xerrors.New("the remask backend cannot verify proofs")
	}
	return nil
}

// commitment resolves CommitmentAuto.
func (c *Config) commitment() string {
	if c.Commitment != CommitmentAuto {
		return c.Commitment
	}
	if c.Prover.Backend == BackendExec {
		return CommitmentProver
	}
	return CommitmentMiMC
}

// ProofSystem instantiates the configured backend.
func (c *Config) ProofSystem() prover.ProofSystem {
	if c.Prover.Backend == BackendRemask {
		return &prover.Remask{MaxDeckSize: c.MaxDeckSize}
	}
	e := prover.NewExec(c.Prover.Command, c.Prover.Args...)
	e.Env = c.Prover.Env
	e.Timeout = c.Prover.Timeout.Duration
	return e
}

// CommitmentHash returns the configured hash. ps must be the proof system
// returned by ProofSystem.
func (c *Config) CommitmentHash(ps prover.ProofSystem) (commit.Hash, error) {
	if c.commitment() == CommitmentMiMC {
		return commit.MiMC{}, nil
	}
	h, ok := ps.(commit.Hash)
	if !ok {
		return nil, xerrors.Errorf("%T cannot compute the commitment", ps)
	}
	return h, nil
}

// Client returns the HTTP client for the task endpoint.
func (c *Config) Client() *transport.Client {
	cl := transport.NewClient(c.Transport.Token, c.Transport.Timeout.Duration)
	cl.MaxBodySize = c.Transport.MaxBodySize
	return cl
}

// NewOrchestrator wires a ready-to-run orchestrator from the configuration.
func (c *Config) NewOrchestrator(rng io.Reader) (*Orchestrator, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	ps := c.ProofSystem()
	h, err := c.CommitmentHash(ps)
	if err != nil {
		return nil, err
	}
	cl := c.Client()
	o := New(cl, cl, wire.NewCodec(babyjub.Codec{}), ps, h, rng)
	o.PublicCards = c.PublicCards
	o.MaxDeckSize = c.MaxDeckSize
	o.VerifyBeforeSubmit = c.VerifyBeforeSubmit
	return o, nil
}
