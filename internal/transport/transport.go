// Package transport drives raw bytes between a net.Conn and a peer.Session:
// feeding received bytes through the handshake, then through the packet
// decode loop, while writing outgoing messages synchronously in issue
// order.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bip324/v2transport/internal/logging"
	"github.com/bip324/v2transport/internal/peer"
	"github.com/bip324/v2transport/internal/protocol"
	"github.com/bip324/v2transport/internal/recovery"
)

// readChunkSize is how much we attempt to read off the wire per Read call.
const readChunkSize = 4096

// Dispatcher receives each decoded, non-decoy payload in arrival order,
// with its leading short-id byte translated to a message command via
// protocol.CommandForShortID. command is "" for the long-form sentinel
// (0x00) or for an id with no assignment in the table; contents is the
// packet payload with that leading byte stripped either way. Long-form
// payloads carry their ASCII command name inline in contents exactly as
// v1 does, which is out of scope for this layer beyond stripping the
// sentinel byte.
type Dispatcher func(command string, contents []byte)

// resolveCommand splits a decoded payload into its message command (if
// its leading byte names one in the short-id table) and the remaining
// contents.
func resolveCommand(payload []byte) (command string, contents []byte) {
	if len(payload) == 0 {
		return "", payload
	}
	if cmd, ok := protocol.CommandForShortID(payload[0]); ok {
		return cmd, payload[1:]
	}
	return "", payload[1:]
}

// Connection pairs a raw network connection with a handshake/packet Session
// and pumps bytes between them.
type Connection struct {
	conn    net.Conn
	session *peer.Session
	logger  *slog.Logger

	writeMu sync.Mutex
	recvBuf []byte
}

// NewConnection wraps conn with session. logger defaults to a no-op logger.
func NewConnection(conn net.Conn, session *peer.Session, logger *slog.Logger) *Connection {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Connection{conn: conn, session: session, logger: logger}
}

// Session returns the underlying handshake/packet session.
func (c *Connection) Session() *peer.Session { return c.session }

// Handshake drives the session's handshake to completion, reading from and
// writing to the wrapped connection as needed. If ctx carries a deadline
// (or is cancelled), a watcher goroutine forces any blocked Read to return
// by calling SetDeadline, since net.Conn has no native context support.
func (c *Connection) Handshake(ctx context.Context) error {
	stop := c.watchContext(ctx)
	defer stop()

	if c.session.Role() == peer.RoleInitiator {
		out, err := c.session.StartHandshake()
		if err != nil {
			return err
		}
		if err := c.write(out); err != nil {
			return err
		}
	}

	for !c.session.Established() {
		if err := c.fill(); err != nil {
			return err
		}

		send, consumed, err := c.session.Advance(c.recvBuf)
		c.recvBuf = c.recvBuf[consumed:]
		if len(send) > 0 {
			if werr := c.write(send); werr != nil {
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, peer.ErrNeedMore) {
				continue
			}
			// ErrV1Fallback and *DisconnectError both propagate as-is: the
			// caller decides whether to retry as v1 or tear the connection
			// down.
			return err
		}
	}

	c.logger.Info("handshake complete",
		logging.KeyRole, c.session.Role().String(),
		logging.KeyRemoteAddr, c.conn.RemoteAddr().String())
	return nil
}

// ReceivePackets runs the post-handshake packet decode loop until ctx is
// cancelled, the connection errors, or fatal decryption failure occurs.
// Decoy packets are discarded silently; every other payload has its
// short-id byte resolved to a command (see Dispatcher) before being handed
// to dispatch in arrival order.
func (c *Connection) ReceivePackets(ctx context.Context, dispatch Dispatcher) error {
	stop := c.watchContext(ctx)
	defer stop()

	for {
		for {
			consumed, payload, ignore, err := c.session.Decrypt(c.recvBuf)
			if err != nil {
				return err
			}
			if consumed == 0 {
				break
			}
			c.recvBuf = c.recvBuf[consumed:]
			if !ignore {
				command, contents := resolveCommand(payload)
				dispatch(command, contents)
			}
		}

		if err := c.fill(); err != nil {
			return err
		}
	}
}

// Send seals contents into a packet and writes it immediately.
func (c *Connection) Send(contents []byte, ignore bool) error {
	return c.write(c.session.Send(contents, ignore))
}

// fill reads whatever is available off the wire and appends it to recvBuf.
func (c *Connection) fill() error {
	buf := make([]byte, readChunkSize)
	n, err := c.conn.Read(buf)
	if n > 0 {
		c.recvBuf = append(c.recvBuf, buf[:n]...)
	}
	if err != nil {
		if n > 0 && errors.Is(err, io.EOF) {
			// Let the caller process whatever arrived before the peer
			// closed its write side.
			return nil
		}
		return fmt.Errorf("transport: read: %w", err)
	}
	return nil
}

// write serializes concurrent writers; Session.Send already guards the
// encryption step, this additionally guards the socket write itself.
func (c *Connection) write(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.conn.Write(b); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	return nil
}

// watchContext arranges for a blocked Read/Write on conn to return once ctx
// is done, returning a stop function that must be called to release the
// watcher goroutine once the caller no longer needs cancellation.
func (c *Connection) watchContext(ctx context.Context) func() {
	if ctx.Done() == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		defer recovery.RecoverWithLog(c.logger, "transport.watchContext")
		select {
		case <-ctx.Done():
			c.conn.SetDeadline(time.Now())
		case <-done:
		}
	}()
	return func() { close(done) }
}
