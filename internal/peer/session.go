package peer

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"

	"github.com/bip324/v2transport/internal/config"
	"github.com/bip324/v2transport/internal/crypto"
	"github.com/bip324/v2transport/internal/ellswift"
	"github.com/bip324/v2transport/internal/logging"
	"github.com/bip324/v2transport/internal/metrics"
	"github.com/bip324/v2transport/internal/protocol"
)

// handshakeState is the sum type modelling the four phases a handshake
// passes through. Only Session constructs or inspects these; callers only
// ever see Session's exported methods.
type handshakeState interface{ isHandshakeState() }

// stateAwaitingPrefix is the responder-only phase that scans incoming bytes
// against the 16-byte v1 version-message prefix, looking for the first
// mismatch.
type stateAwaitingPrefix struct{ prefix []byte }

// stateAwaitingKeys is the phase waiting on the remaining bytes of the
// peer's 64-byte ellswift encoding. received holds whatever leading bytes
// of it are already known (non-empty only for a responder that captured
// some of them during the prefix scan).
type stateAwaitingKeys struct{ received []byte }

// stateAwaitingAuth is the phase scanning for the garbage terminator and
// then decrypting (and discarding) decoy packets until the first
// non-decoy packet authenticates the handshake.
type stateAwaitingAuth struct {
	garbage         []byte
	terminatorFound bool
	firstPacketAAD  []byte
	firstPacketDone bool
}

// stateEstablished is the terminal phase: Session.Send/Decrypt carry
// ordinary packet traffic from here on.
type stateEstablished struct{}

func (*stateAwaitingPrefix) isHandshakeState() {}
func (*stateAwaitingKeys) isHandshakeState()   {}
func (*stateAwaitingAuth) isHandshakeState()   {}
func (*stateEstablished) isHandshakeState()    {}

var errGarbageTerminatorNotFound = errors.New("peer: garbage terminator not found within bound")

// SessionConfig configures a new handshake Session.
type SessionConfig struct {
	Role Role
	// Network selects the magic and garbage-length bound; only
	// Network.Network and Network.MaxGarbageBytes are consulted.
	Network *config.Config
	// Rand is the randomness source for key generation and garbage
	// padding. Defaults to crypto/rand.Reader; tests may inject a seeded
	// reader for reproducibility.
	Rand io.Reader
	// Logger defaults to a no-op logger.
	Logger *slog.Logger
	// Metrics defaults to the package-level Default() registry.
	Metrics *metrics.Metrics
}

// Session drives one side of a v2 handshake and, once Established, holds
// the send/recv packet codecs for the rest of the connection's life.
//
// Session is not safe for concurrent use except for Send, which is guarded
// internally so multiple goroutines may call it while a single receive
// loop owns Advance/Decrypt.
type Session struct {
	role            Role
	magic           [4]byte
	maxGarbageBytes int
	rnd             io.Reader
	logger          *slog.Logger
	metrics         *metrics.Metrics

	priv         [32]byte
	ellswiftOurs [64]byte
	sentGarbage  []byte

	state handshakeState
	keys  sessionKeys

	sendMu    sync.Mutex
	sendCount uint64
	recvCount uint64
}

// NewSession creates a Session for the given role. RoleInitiator sessions
// must call StartHandshake before the first Advance; RoleResponder sessions
// feed incoming bytes directly to Advance.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Network == nil {
		return nil, errors.New("peer: SessionConfig.Network is required")
	}
	magic, ok := config.NetworkMagic(cfg.Network.Network)
	if !ok {
		return nil, fmt.Errorf("peer: unknown network %q", cfg.Network.Network)
	}

	rnd := cfg.Rand
	if rnd == nil {
		rnd = rand.Reader
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.Default()
	}

	s := &Session{
		role:            cfg.Role,
		magic:           magic,
		maxGarbageBytes: cfg.Network.MaxGarbageBytes,
		rnd:             rnd,
		logger:          logger,
		metrics:         m,
	}
	if cfg.Role == RoleResponder {
		s.state = &stateAwaitingPrefix{}
	}
	s.metrics.HandshakesStarted.Inc()
	return s, nil
}

// Role reports which side of the handshake this session plays.
func (s *Session) Role() Role { return s.role }

// Established reports whether the handshake has completed and Send/Decrypt
// are ready to carry packet traffic.
func (s *Session) Established() bool {
	_, ok := s.state.(*stateEstablished)
	return ok
}

// SessionID returns the 32-byte session identifier derived during the
// handshake, used for out-of-band peer verification (e.g. short
// authentication strings). Only meaningful once Established.
func (s *Session) SessionID() [32]byte { return s.keys.sessionID }

// StartHandshake generates this session's ellswift keypair and garbage and
// returns the bytes the initiator sends first. Valid only for
// RoleInitiator, and only before any call to Advance.
func (s *Session) StartHandshake() ([]byte, error) {
	if s.role != RoleInitiator {
		panic("peer: StartHandshake is only valid for RoleInitiator")
	}
	out, err := s.beginKeyExchange()
	if err != nil {
		s.failHandshake(ReasonCryptoInput)
		return nil, disconnect(ReasonCryptoInput, err)
	}
	s.state = &stateAwaitingKeys{}
	return out, nil
}

// Advance feeds newly received bytes into the handshake (or, once
// Established, returns immediately with nothing to do).
//
// It returns bytes to transmit as a consequence of processing buf (nil if
// none), the number of leading bytes of buf that were consumed, and an
// error. ErrNeedMore means buf does not yet hold enough data: the caller
// should read more from the peer, append it, and retry with the
// unconsumed remainder plus the new bytes. ErrV1Fallback means a
// responder's prefix scan proved the remote peer speaks v1. Any other
// non-nil error is a *DisconnectError and the connection must be closed.
func (s *Session) Advance(buf []byte) (send []byte, consumed int, err error) {
	pos := 0
	for {
		if s.Established() {
			return send, pos, nil
		}

		n, out, stepErr := s.step(buf[pos:])
		pos += n
		if out != nil {
			send = append(send, out...)
		}
		if stepErr != nil {
			var de *DisconnectError
			if errors.As(stepErr, &de) {
				s.failHandshake(de.Reason)
			}
			return send, pos, stepErr
		}
	}
}

func (s *Session) failHandshake(reason Reason) {
	s.metrics.HandshakesFailed.WithLabelValues(reason.String()).Inc()
}

func (s *Session) step(b []byte) (int, []byte, error) {
	switch st := s.state.(type) {
	case *stateAwaitingPrefix:
		return s.stepPrefix(b, st)
	case *stateAwaitingKeys:
		return s.stepKeys(b, st)
	case *stateAwaitingAuth:
		return s.stepAuth(b, st)
	case *stateEstablished:
		return 0, nil, nil
	default:
		panic("peer: unknown handshake state")
	}
}

// v1Prefix is MAGIC || "version\0\0\0\0\0", the 16-byte leading fragment of
// a v1 "version" message that a v2 responder watches for to decide whether
// to fall back.
func v1Prefix(magic [4]byte) [16]byte {
	var p [16]byte
	copy(p[:4], magic[:])
	copy(p[4:], "version")
	return p
}

func (s *Session) stepPrefix(b []byte, st *stateAwaitingPrefix) (int, []byte, error) {
	prefix := v1Prefix(s.magic)
	for i, c := range b {
		st.prefix = append(st.prefix, c)
		idx := len(st.prefix) - 1
		if c != prefix[idx] {
			out, err := s.beginKeyExchange()
			if err != nil {
				return i + 1, nil, disconnect(ReasonCryptoInput, err)
			}
			s.state = &stateAwaitingKeys{received: append([]byte(nil), st.prefix...)}
			return i + 1, out, nil
		}
		if len(st.prefix) == len(prefix) {
			s.metrics.V1Fallbacks.Inc()
			return i + 1, nil, ErrV1Fallback
		}
	}
	return len(b), nil, ErrNeedMore
}

func (s *Session) stepKeys(b []byte, st *stateAwaitingKeys) (int, []byte, error) {
	need := 64 - len(st.received)
	if len(b) < need {
		return 0, nil, ErrNeedMore
	}

	var ellswiftTheirs [64]byte
	copy(ellswiftTheirs[:], st.received)
	copy(ellswiftTheirs[len(st.received):], b[:need])

	ecdhX, err := ellswift.ECDHXOnly(ellswiftTheirs, s.priv)
	if err != nil {
		return need, nil, disconnect(ReasonCryptoInput, err)
	}
	ecdhXBytes := ecdhX.Bytes()

	secret := computeSharedSecret(s.role, s.ellswiftOurs, ellswiftTheirs, ecdhXBytes)
	s.keys = deriveSessionKeys(s.role, s.magic, secret)

	out, err := s.sendGarbageTerminatorAndDecoys()
	if err != nil {
		return need, nil, disconnect(ReasonCryptoInput, err)
	}
	s.state = &stateAwaitingAuth{}
	s.logger.Debug("v2 key exchange complete", logging.KeyRole, s.role.String())
	return need, out, nil
}

// sendGarbageTerminatorAndDecoys builds send_garbage_terminator || decoys ||
// version_packet: the garbage terminator in the clear, ten decoy packets of
// random length 1..100 bytes (ignore bit set), and an empty-contents
// version packet, matching the reference test harness's handshake
// completion traffic exactly.
func (s *Session) sendGarbageTerminatorAndDecoys() ([]byte, error) {
	out := append([]byte{}, s.keys.sendTerm[:]...)

	aad := s.sentGarbage
	for i := 0; i < 10; i++ {
		n, err := randRangeInclusive(s.rnd, 1, 100)
		if err != nil {
			return nil, err
		}
		out = append(out, s.keys.send.Encrypt(make([]byte, n), aad, true)...)
		s.sendCount++
		aad = nil
	}
	out = append(out, s.keys.send.Encrypt(nil, aad, false)...)
	s.sendCount++
	return out, nil
}

func (s *Session) stepAuth(b []byte, st *stateAwaitingAuth) (int, []byte, error) {
	i := 0
	if !st.terminatorFound {
		for i < len(b) {
			st.garbage = append(st.garbage, b[i])
			i++
			if len(st.garbage) > s.maxGarbageBytes+16 {
				return i, nil, disconnect(ReasonProtocolViolation, errGarbageTerminatorNotFound)
			}
			if len(st.garbage) >= 16 && matchesTerminator(st.garbage, s.keys.recvTerm) {
				st.terminatorFound = true
				st.firstPacketAAD = append([]byte(nil), st.garbage[:len(st.garbage)-16]...)
				s.metrics.GarbageBytesReceived.Add(float64(len(st.firstPacketAAD)))
				break
			}
		}
		if !st.terminatorFound {
			return i, nil, ErrNeedMore
		}
	}

	for {
		var aad []byte
		if !st.firstPacketDone {
			aad = st.firstPacketAAD
		}
		consumed, payload, ignore, err := s.keys.recv.Decrypt(b[i:], aad)
		if err != nil {
			if errors.Is(err, protocol.ErrReservedBitsSet) {
				return i, nil, disconnect(ReasonProtocolViolation, err)
			}
			return i, nil, disconnect(ReasonAuthFailure, err)
		}
		if consumed == 0 {
			return i, nil, ErrNeedMore
		}
		st.firstPacketDone = true
		i += consumed
		s.recvCount++
		s.maybeCountRekey(s.recvCount)

		if !ignore {
			_ = payload // transport-version contents; nothing to act on yet
			s.state = &stateEstablished{}
			s.metrics.HandshakesCompleted.Inc()
			s.logger.Info("v2 handshake established", logging.KeyRole, s.role.String())
			return i, nil, nil
		}
	}
}

func matchesTerminator(garbage []byte, term [16]byte) bool {
	tail := garbage[len(garbage)-16:]
	for j := range term {
		if tail[j] != term[j] {
			return false
		}
	}
	return true
}

// beginKeyExchange generates this session's ellswift keypair and garbage
// padding, storing them for later use in the shared-secret computation and
// returning the bytes to transmit (ellswift_ours || sent_garbage).
func (s *Session) beginKeyExchange() ([]byte, error) {
	priv, enc, err := ellswift.EllSwiftCreate(s.rnd)
	if err != nil {
		return nil, err
	}
	s.priv = priv
	s.ellswiftOurs = enc

	garbageLen, err := randRange(s.rnd, s.maxGarbageBytes+1)
	if err != nil {
		return nil, err
	}
	garbage := make([]byte, garbageLen)
	if _, err := io.ReadFull(s.rnd, garbage); err != nil {
		return nil, err
	}
	s.sentGarbage = garbage
	s.metrics.GarbageBytesSent.Add(float64(garbageLen))

	s.logger.Debug("sending ellswift key and garbage",
		logging.KeyRole, s.role.String(), logging.KeyGarbageLen, garbageLen)

	out := make([]byte, 0, 64+garbageLen)
	out = append(out, enc[:]...)
	out = append(out, garbage...)
	return out, nil
}

// Send seals contents into a wire packet using this session's current send
// keys. Established must be true. Safe for concurrent use by multiple
// goroutines; the receive path (Advance/Decrypt) is not.
func (s *Session) Send(contents []byte, ignore bool) []byte {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	out := s.keys.send.Encrypt(contents, nil, ignore)
	s.sendCount++
	s.maybeCountRekey(s.sendCount)
	s.metrics.PacketsSent.Inc()
	return out
}

// Decrypt decodes one post-handshake packet from the front of buf, with
// the same resumable contract as protocol.Receiver.Decrypt. Not safe for
// concurrent use.
func (s *Session) Decrypt(buf []byte) (consumed int, payload []byte, ignore bool, err error) {
	consumed, payload, ignore, err = s.keys.recv.Decrypt(buf, nil)
	if err != nil {
		if errors.Is(err, protocol.ErrReservedBitsSet) {
			return consumed, payload, ignore, disconnect(ReasonProtocolViolation, err)
		}
		return consumed, payload, ignore, disconnect(ReasonAuthFailure, err)
	}
	if consumed > 0 {
		s.recvCount++
		s.maybeCountRekey(s.recvCount)
		s.metrics.PacketsReceived.Inc()
	}
	return consumed, payload, ignore, nil
}

func (s *Session) maybeCountRekey(count uint64) {
	if count%crypto.RekeyInterval == 0 {
		s.metrics.RekeysPerformed.Inc()
	}
}

func randRange(rnd io.Reader, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	v, err := rand.Int(rnd, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

func randRangeInclusive(rnd io.Reader, lo, hi int) (int, error) {
	n, err := randRange(rnd, hi-lo+1)
	if err != nil {
		return 0, err
	}
	return lo + n, nil
}
