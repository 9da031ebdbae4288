package provider

import (
	"math/big"
	"strings"

	"github.com/sirupsen/logrus"
)

// Client identifies a known execution-layer implementation.
type Client string

const (
	ClientGeth       Client = "geth"
	ClientErigon     Client = "erigon"
	ClientNethermind Client = "nethermind"
	ClientUnknown    Client = "unknown"
)

// ClientFromString classifies a node's self-reported version string by
// case-insensitive substring match.
func ClientFromString(version string) Client {
	v := strings.ToLower(version)

	switch {
	case strings.Contains(v, "geth"):
		return ClientGeth
	case strings.Contains(v, "erigon"):
		return ClientErigon
	case strings.Contains(v, "nethermind"):
		return ClientNethermind
	default:
		return ClientUnknown
	}
}

// TraceFormat names one of the trace encodings a node can serve.
type TraceFormat string

const (
	// TraceFormatParity is the legacy flat trace list (trace_transaction).
	TraceFormatParity TraceFormat = "parity"
	// TraceFormatCallTracer is the node-native nested call tracer.
	TraceFormatCallTracer TraceFormat = "callTracer"
)

// Tunables empirically safe for geth; also the conservative defaults for
// implementations we do not recognize.
const (
	defaultConcurrency   = 16
	defaultBlockPageSize = 5000
)

// ClientProfile captures everything learned about a connection during
// capability negotiation. It is populated once per successful connection and
// immutable afterward; a fresh connection always recomputes it.
type ClientProfile struct {
	Client  Client
	Version string
	ChainID *big.Int

	// Concurrency and BlockPageSize tune request parallelism and the page
	// size of range-style queries for this implementation.
	Concurrency   int
	BlockPageSize int

	// RequiresPoAShim is set when the chain's block headers carry an
	// extended-authority extra-data field that standard decoding rejects.
	RequiresPoAShim bool

	// TraceOrder is the call-tree strategy order for this implementation.
	// Implementations whose parity-style endpoint misbehaves list only the
	// call tracer.
	TraceOrder []TraceFormat
}

// newProfile builds the profile variant for a version string. Unrecognized
// implementations keep conservative defaults and warn; unknown nodes are
// expected to work via standard RPC.
func newProfile(log logrus.FieldLogger, version string, chainID *big.Int) *ClientProfile {
	profile := &ClientProfile{
		Client:        ClientFromString(version),
		Version:       version,
		ChainID:       chainID,
		Concurrency:   defaultConcurrency,
		BlockPageSize: defaultBlockPageSize,
		TraceOrder:    []TraceFormat{TraceFormatParity, TraceFormatCallTracer},
	}

	switch profile.Client {
	case ClientGeth:

	case ClientErigon:
		profile.Concurrency = 8
		profile.BlockPageSize = 40_000
		// Erigon serves parity traces natively; its call tracer is the one
		// that misbehaves.
		profile.TraceOrder = []TraceFormat{TraceFormatParity}

	case ClientNethermind:
		profile.Concurrency = 32
		profile.BlockPageSize = 50_000

	default:
		name := version
		if idx := strings.IndexByte(version, '/'); idx > 0 {
			name = version[:idx]
		}

		log.WithField("client", name).Warn("Connecting to unrecognized execution client")
	}

	return profile
}
