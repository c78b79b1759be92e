// Package main provides the bip324fuzz CLI, a thin driver that opens a raw
// v2 transport connection to (or from) a conformance peer, completes the
// handshake, and shuttles payloads between the wire and stdin/stdout. It
// carries no protocol logic of its own; everything it does is delegated to
// internal/transport, internal/peer, and internal/config.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bip324/v2transport/internal/config"
	"github.com/bip324/v2transport/internal/logging"
	"github.com/bip324/v2transport/internal/metrics"
	"github.com/bip324/v2transport/internal/peer"
	"github.com/bip324/v2transport/internal/transport"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		network   string
		logLevel  string
		logFormat string
	)

	cmd := &cobra.Command{
		Use:   "bip324fuzz",
		Short: "Drive a v2 transport connection for conformance and fuzz testing",
		Long: `bip324fuzz opens a raw v2 transport connection to, or accepts one from,
a peer speaking the BIP-324 encrypted transport protocol.

Once the handshake completes it relays line-delimited stdin to the peer as
packet contents, and prints every decoded, non-decoy payload it receives to
stdout. It is meant to sit on one end of a conformance or fuzzing harness,
not to be a production node.`,
	}

	cmd.PersistentFlags().StringVar(&network, "network", "regtest", "network magic to use")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	cmd.AddCommand(dialCmd(&network, &logLevel, &logFormat))
	cmd.AddCommand(listenCmd(&network, &logLevel, &logFormat))

	return cmd
}

func dialCmd(network, logLevel, logFormat *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dial <address>",
		Short: "Connect to a peer and act as the handshake initiator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := net.Dial("tcp", args[0])
			if err != nil {
				return fmt.Errorf("dial %s: %w", args[0], err)
			}
			return runConnection(conn, peer.RoleInitiator, *network, *logLevel, *logFormat)
		},
	}
	return cmd
}

func listenCmd(network, logLevel, logFormat *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen <address>",
		Short: "Accept one connection and act as the handshake responder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ln, err := net.Listen("tcp", args[0])
			if err != nil {
				return fmt.Errorf("listen %s: %w", args[0], err)
			}
			defer ln.Close()

			fmt.Fprintf(os.Stderr, "listening on %s\n", ln.Addr())
			conn, err := ln.Accept()
			if err != nil {
				return fmt.Errorf("accept: %w", err)
			}
			return runConnection(conn, peer.RoleResponder, *network, *logLevel, *logFormat)
		},
	}
	return cmd
}

// runConnection drives a single connection through the handshake and then
// pumps stdin to the wire and the wire to stdout until either side closes
// or the process receives an interrupt signal.
func runConnection(conn net.Conn, role peer.Role, network, logLevel, logFormat string) error {
	defer conn.Close()

	logger := logging.NewLogger(logLevel, logFormat)

	cfg := config.Default()
	cfg.Network = network
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid network config: %w", err)
	}

	session, err := peer.NewSession(peer.SessionConfig{
		Role:    role,
		Network: cfg,
		Logger:  logger,
		Metrics: metrics.Default(),
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	c := transport.NewConnection(conn, session, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := c.Handshake(ctx); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	logger.Info("handshake established", logging.KeyRole, role.String())

	var bytesReceived uint64
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.ReceivePackets(ctx, func(command string, contents []byte) {
			bytesReceived += uint64(len(contents))
			if command == "" {
				command = "(long-form)"
			}
			fmt.Fprintf(os.Stdout, "%s: %s\n", command, contents)
		})
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if err := c.Send(scanner.Bytes(), false); err != nil {
			return fmt.Errorf("send: %w", err)
		}
	}

	cancel()
	if err := <-errCh; err != nil && ctx.Err() == nil {
		return fmt.Errorf("receive: %w", err)
	}
	fmt.Fprintf(os.Stderr, "received %s of payload\n", humanize.Bytes(bytesReceived))
	return nil
}
