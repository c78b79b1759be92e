package peer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/bip324/v2transport/internal/config"
	"github.com/bip324/v2transport/internal/logging"
	"github.com/bip324/v2transport/internal/metrics"
)

func newTestSessions(t *testing.T) (*Session, *Session) {
	t.Helper()
	cfg := config.Default()

	initiator, err := NewSession(SessionConfig{Role: RoleInitiator, Network: cfg})
	if err != nil {
		t.Fatalf("NewSession(initiator): %v", err)
	}
	responder, err := NewSession(SessionConfig{Role: RoleResponder, Network: cfg})
	if err != nil {
		t.Fatalf("NewSession(responder): %v", err)
	}
	return initiator, responder
}

// TestHandshakeSymmetry drives a full initiator/responder handshake over
// three message exchanges (the 1.5-RTT BIP-324 handshake) and checks both
// sides land on Established with a matching session id.
func TestHandshakeSymmetry(t *testing.T) {
	initiator, responder := newTestSessions(t)

	msg1, err := initiator.StartHandshake()
	if err != nil {
		t.Fatalf("StartHandshake: %v", err)
	}

	msg2, consumed, err := responder.Advance(msg1)
	if err != nil && !errors.Is(err, ErrNeedMore) {
		t.Fatalf("responder.Advance(msg1): %v", err)
	}
	if consumed != len(msg1) {
		t.Fatalf("responder consumed %d of %d bytes", consumed, len(msg1))
	}
	if responder.Established() {
		t.Fatal("responder should not be established after only one message")
	}

	msg3, consumed, err := initiator.Advance(msg2)
	if err != nil {
		t.Fatalf("initiator.Advance(msg2): %v", err)
	}
	if consumed != len(msg2) {
		t.Fatalf("initiator consumed %d of %d bytes", consumed, len(msg2))
	}
	if !initiator.Established() {
		t.Fatal("initiator should be established after its second message")
	}

	_, consumed, err = responder.Advance(msg3)
	if err != nil {
		t.Fatalf("responder.Advance(msg3): %v", err)
	}
	if consumed != len(msg3) {
		t.Fatalf("responder consumed %d of %d bytes", consumed, len(msg3))
	}
	if !responder.Established() {
		t.Fatal("responder should be established after the third message")
	}

	if initiator.SessionID() != responder.SessionID() {
		t.Fatal("session ids do not match")
	}
}

// TestEstablishedSessionsExchangePackets checks that, once both sides are
// established, ordinary packet traffic flows correctly in both directions.
func TestEstablishedSessionsExchangePackets(t *testing.T) {
	initiator, responder := newTestSessions(t)
	establish(t, initiator, responder)

	wire := initiator.Send([]byte("ping"), false)
	_, payload, ignore, err := responder.Decrypt(wire)
	if err != nil {
		t.Fatalf("responder.Decrypt: %v", err)
	}
	if ignore {
		t.Fatal("expected non-decoy packet")
	}
	if !bytes.Equal(payload, []byte("ping")) {
		t.Fatalf("payload = %q, want %q", payload, "ping")
	}
}

// establish drives a handshake to completion on both sides using the same
// three-message exchange as TestHandshakeSymmetry.
func establish(t *testing.T, initiator, responder *Session) {
	t.Helper()
	msg1, err := initiator.StartHandshake()
	if err != nil {
		t.Fatalf("StartHandshake: %v", err)
	}
	msg2, _, err := responder.Advance(msg1)
	if err != nil && !errors.Is(err, ErrNeedMore) {
		t.Fatalf("responder.Advance(msg1): %v", err)
	}
	msg3, _, err := initiator.Advance(msg2)
	if err != nil {
		t.Fatalf("initiator.Advance(msg2): %v", err)
	}
	if _, _, err := responder.Advance(msg3); err != nil {
		t.Fatalf("responder.Advance(msg3): %v", err)
	}
}

// TestV1Fallback checks that a responder seeing a full 16-byte v1 version
// prefix reports ErrV1Fallback rather than proceeding with a v2 handshake.
func TestV1Fallback(t *testing.T) {
	cfg := config.Default()
	responder, err := NewSession(SessionConfig{Role: RoleResponder, Network: cfg})
	if err != nil {
		t.Fatal(err)
	}

	magic, _ := config.NetworkMagic(cfg.Network)
	prefix := v1Prefix(magic)

	_, consumed, err := responder.Advance(prefix[:])
	if !errors.Is(err, ErrV1Fallback) {
		t.Fatalf("expected ErrV1Fallback, got %v", err)
	}
	if consumed != len(prefix) {
		t.Fatalf("consumed = %d, want %d", consumed, len(prefix))
	}
}

// TestV1FallbackMismatchTriggersV2 checks that a single mismatching byte
// anywhere in the 16-byte prefix window causes the responder to switch into
// the v2 key-exchange phase instead of falling back.
func TestV1FallbackMismatchTriggersV2(t *testing.T) {
	cfg := config.Default()
	responder, err := NewSession(SessionConfig{Role: RoleResponder, Network: cfg})
	if err != nil {
		t.Fatal(err)
	}

	magic, _ := config.NetworkMagic(cfg.Network)
	prefix := v1Prefix(magic)
	mismatched := prefix
	mismatched[5] ^= 0xFF // corrupt a byte inside "version"

	if _, _, err := responder.Advance(mismatched[:]); errors.Is(err, ErrV1Fallback) {
		t.Fatal("a mismatching prefix byte should not trigger v1 fallback")
	}
	if _, ok := responder.state.(*stateAwaitingKeys); !ok {
		t.Fatalf("expected responder to move to stateAwaitingKeys, got %T", responder.state)
	}
}

// TestGarbageTerminatorBoundary checks the ≤max-garbage-bytes bound during
// authentication: exactly at the bound the session still reports
// ErrNeedMore (not yet a protocol violation); one byte past it is fatal.
func TestGarbageTerminatorBoundary(t *testing.T) {
	cfg := config.Default()
	magic, _ := config.NetworkMagic(cfg.Network)

	newAwaitingAuthSession := func() *Session {
		keys := deriveSessionKeys(RoleInitiator, magic, [32]byte{1, 2, 3})
		return &Session{
			role:            RoleInitiator,
			magic:           magic,
			maxGarbageBytes: cfg.MaxGarbageBytes,
			keys:            keys,
			state:           &stateAwaitingAuth{},
			logger:          logging.NopLogger(),
			metrics:         metrics.Default(),
		}
	}

	t.Run("at bound", func(t *testing.T) {
		s := newAwaitingAuthSession()
		buf := bytes.Repeat([]byte{0x00}, cfg.MaxGarbageBytes+16)
		_, consumed, err := s.Advance(buf)
		if !errors.Is(err, ErrNeedMore) {
			t.Fatalf("expected ErrNeedMore at the bound, got %v", err)
		}
		if consumed != len(buf) {
			t.Fatalf("consumed = %d, want %d", consumed, len(buf))
		}
	})

	t.Run("past bound", func(t *testing.T) {
		s := newAwaitingAuthSession()
		buf := bytes.Repeat([]byte{0x00}, cfg.MaxGarbageBytes+17)
		_, _, err := s.Advance(buf)
		var de *DisconnectError
		if !errors.As(err, &de) || de.Reason != ReasonProtocolViolation {
			t.Fatalf("expected ReasonProtocolViolation disconnect, got %v", err)
		}
	})
}

// TestAuthenticateRejectsTamperedPacket checks that a corrupted decoy or
// version packet during authentication is a fatal auth failure.
func TestAuthenticateRejectsTamperedPacket(t *testing.T) {
	initiator, responder := newTestSessions(t)

	msg1, err := initiator.StartHandshake()
	if err != nil {
		t.Fatal(err)
	}
	msg2, _, err := responder.Advance(msg1)
	if err != nil && !errors.Is(err, ErrNeedMore) {
		t.Fatal(err)
	}
	msg3, _, err := initiator.Advance(msg2)
	if err != nil {
		t.Fatal(err)
	}

	tampered := append([]byte(nil), msg3...)
	tampered[len(tampered)-1] ^= 0xFF

	_, _, err = responder.Advance(tampered)
	var de *DisconnectError
	if !errors.As(err, &de) || de.Reason != ReasonAuthFailure {
		t.Fatalf("expected ReasonAuthFailure disconnect, got %v", err)
	}
}
