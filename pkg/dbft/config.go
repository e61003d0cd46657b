package dbft

import (
	"bytes"
	"errors"
	"time"

	"github.com/meridianchain/dbft/pkg/crypto/keys"
	"github.com/meridianchain/dbft/pkg/dbft/block"
	"github.com/meridianchain/dbft/pkg/dbft/payload"
	"github.com/meridianchain/dbft/pkg/dbft/timer"
	"go.uber.org/zap"
)

// Config contains initialization and working parameters for dBFT. Every
// blockchain/wallet/store/time dependency the Context needs is an
// explicit collaborator here rather than a process-wide singleton
// (spec.md §9's "Global state" note) so tests can supply deterministic
// doubles.
type Config struct {
	// Logger is used by the surrounding service; the Context itself
	// stays logging-free (§5).
	Logger *zap.Logger
	// Timer is the view-change timer, driven by the surrounding
	// service, not by the Context (§1, §5).
	Timer timer.Timer
	// SecondsPerBlock is the minimum time between blocks.
	SecondsPerBlock time.Duration
	// TimestampIncrement is added to the previous header's timestamp
	// when the wall clock hasn't advanced past it yet (§4.3 S4).
	// Default is 1 (millisecond precision).
	TimestampIncrement uint64
	// Now returns the current time in milliseconds; injectable for
	// deterministic tests (§6 Time provider).
	Now func() uint64

	// GetKeyPair returns the index of this node in the validator list
	// together with its key pair, or (-1, nil, nil) if not a validator.
	GetKeyPair func([]*keys.PublicKey) (int, *keys.PrivateKey, *keys.PublicKey)
	// Wallet resolves a validator's signing account; an alternative to
	// GetKeyPair for services that want per-call account lookups
	// (§4.3's "asks the wallet to produce the witness").
	Wallet Wallet

	// GetSnapshot acquires a fresh ledger Snapshot for Reset(0) (§4.5,
	// §6).
	GetSnapshot func() (Snapshot, error)

	// Store is the durable checkpoint store (§4.6, §6).
	Store Store

	// Policies are applied left-to-right to the memory pool's verified
	// transactions before they're proposed (§4.3).
	Policies []PolicyPlugin

	// RequestTx is called when transactions referenced by a
	// PrepareRequest can't be found locally.
	RequestTx func(h ...block.Transaction)
	// GetTx returns a transaction from the memory pool by hash, or nil.
	GetTx func(h [32]byte) block.Transaction
	// VerifyBlock verifies a fully assembled block.
	VerifyBlock func(b block.Block) bool
	// Broadcast sends a signed payload to the other consensus nodes.
	Broadcast func(m payload.ConsensusPayload)
	// ProcessBlock is called once a block has reached quorum.
	ProcessBlock func(b block.Block)
	// WatchOnly overrides watch-only status (e.g. node still syncing).
	WatchOnly func() bool

	// NewConsensusPayload builds a blank payload stamped with this
	// Context's envelope fields (version/prev-hash/height/validator),
	// the message type and content.
	NewConsensusPayload func(ctx *Context, t payload.MessageType, p interface{}) payload.ConsensusPayload

	// VerifyPrepareRequest validates an inbound PrepareRequest beyond
	// signature checking (e.g. transaction-set policy).
	VerifyPrepareRequest func(p payload.ConsensusPayload) error
	// VerifyPrepareResponse validates an inbound PrepareResponse.
	VerifyPrepareResponse func(p payload.ConsensusPayload) error
}

const defaultSecondsPerBlock = 15 * time.Second

const defaultTimestampIncrement = uint64(1)

// Option mutates a Config; functional options keep construction
// readable while letting every field stay exported for tests.
type Option = func(*Config)

func defaultConfig() *Config {
	return &Config{
		Logger:              zap.NewNop(),
		Timer:               timer.New(),
		SecondsPerBlock:     defaultSecondsPerBlock,
		TimestampIncrement:  defaultTimestampIncrement,
		Now:                 defaultNow,
		RequestTx:           func(h ...block.Transaction) {},
		GetTx:               func(h [32]byte) block.Transaction { return nil },
		VerifyBlock:         func(b block.Block) bool { return true },
		Broadcast:           func(m payload.ConsensusPayload) {},
		ProcessBlock:        func(b block.Block) {},
		WatchOnly:             func() bool { return false },
		NewConsensusPayload:   defaultNewConsensusPayload,
		VerifyPrepareRequest:  func(p payload.ConsensusPayload) error { return nil },
		VerifyPrepareResponse: func(p payload.ConsensusPayload) error { return nil },
	}
}

func defaultNow() uint64 {
	return uint64(time.Now().UnixNano() / int64(time.Millisecond))
}

func defaultNewConsensusPayload(ctx *Context, t payload.MessageType, p interface{}) payload.ConsensusPayload {
	cp := payload.NewConsensusPayload()
	cp.SetVersion(ctx.Version)
	cp.SetPrevHash(ctx.PrevHash)
	cp.SetHeight(ctx.BlockIndex)
	cp.SetViewNumber(ctx.ViewNumber)
	cp.SetType(t)
	cp.SetPayload(p)
	if ctx.MyIndex >= 0 {
		cp.SetValidatorIndex(uint16(ctx.MyIndex))
	}
	return cp
}

func checkConfig(cfg *Config) error {
	switch {
	case cfg.GetKeyPair == nil && cfg.Wallet == nil:
		return errors.New("dbft: one of GetKeyPair or Wallet is required")
	case cfg.GetSnapshot == nil:
		return errors.New("dbft: GetSnapshot is nil")
	}
	return nil
}

// WithKeyPair sets GetKeyPair to a function returning a fixed key pair
// whenever it appears in the validator list.
func WithKeyPair(priv *keys.PrivateKey, pub *keys.PublicKey) Option {
	myPub := pub.Bytes()

	return func(cfg *Config) {
		cfg.GetKeyPair = func(ps []*keys.PublicKey) (int, *keys.PrivateKey, *keys.PublicKey) {
			for i := range ps {
				if bytes.Equal(myPub, ps[i].Bytes()) {
					return i, priv, pub
				}
			}
			return -1, nil, nil
		}
	}
}

// WithGetKeyPair sets GetKeyPair directly.
func WithGetKeyPair(f func([]*keys.PublicKey) (int, *keys.PrivateKey, *keys.PublicKey)) Option {
	return func(cfg *Config) { cfg.GetKeyPair = f }
}

// WithWallet sets Wallet.
func WithWallet(w Wallet) Option {
	return func(cfg *Config) { cfg.Wallet = w }
}

// WithLogger sets Logger.
func WithLogger(log *zap.Logger) Option {
	return func(cfg *Config) { cfg.Logger = log }
}

// WithTimer sets Timer.
func WithTimer(t timer.Timer) Option {
	return func(cfg *Config) { cfg.Timer = t }
}

// WithSecondsPerBlock sets SecondsPerBlock.
func WithSecondsPerBlock(d time.Duration) Option {
	return func(cfg *Config) { cfg.SecondsPerBlock = d }
}

// WithTimestampIncrement sets TimestampIncrement.
func WithTimestampIncrement(u uint64) Option {
	return func(cfg *Config) { cfg.TimestampIncrement = u }
}

// WithNow sets Now.
func WithNow(f func() uint64) Option {
	return func(cfg *Config) { cfg.Now = f }
}

// WithGetSnapshot sets GetSnapshot.
func WithGetSnapshot(f func() (Snapshot, error)) Option {
	return func(cfg *Config) { cfg.GetSnapshot = f }
}

// WithStore sets Store.
func WithStore(s Store) Option {
	return func(cfg *Config) { cfg.Store = s }
}

// WithPolicies sets Policies.
func WithPolicies(p ...PolicyPlugin) Option {
	return func(cfg *Config) { cfg.Policies = p }
}

// WithRequestTx sets RequestTx.
func WithRequestTx(f func(h ...block.Transaction)) Option {
	return func(cfg *Config) { cfg.RequestTx = f }
}

// WithGetTx sets GetTx.
func WithGetTx(f func(h [32]byte) block.Transaction) Option {
	return func(cfg *Config) { cfg.GetTx = f }
}

// WithVerifyBlock sets VerifyBlock.
func WithVerifyBlock(f func(b block.Block) bool) Option {
	return func(cfg *Config) { cfg.VerifyBlock = f }
}

// WithBroadcast sets Broadcast.
func WithBroadcast(f func(m payload.ConsensusPayload)) Option {
	return func(cfg *Config) { cfg.Broadcast = f }
}

// WithProcessBlock sets ProcessBlock.
func WithProcessBlock(f func(b block.Block)) Option {
	return func(cfg *Config) { cfg.ProcessBlock = f }
}

// WithWatchOnly sets WatchOnly.
func WithWatchOnly(f func() bool) Option {
	return func(cfg *Config) { cfg.WatchOnly = f }
}

// WithNewConsensusPayload sets NewConsensusPayload.
func WithNewConsensusPayload(f func(*Context, payload.MessageType, interface{}) payload.ConsensusPayload) Option {
	return func(cfg *Config) { cfg.NewConsensusPayload = f }
}

// WithVerifyPrepareRequest sets VerifyPrepareRequest.
func WithVerifyPrepareRequest(f func(p payload.ConsensusPayload) error) Option {
	return func(cfg *Config) { cfg.VerifyPrepareRequest = f }
}

// WithVerifyPrepareResponse sets VerifyPrepareResponse.
func WithVerifyPrepareResponse(f func(p payload.ConsensusPayload) error) Option {
	return func(cfg *Config) { cfg.VerifyPrepareResponse = f }
}
