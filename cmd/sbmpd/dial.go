// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"code.hybscloud.com/sbmp"
)

func newDialCmd() *cobra.Command {
	var message string
	var bulkPayload string

	cmd := &cobra.Command{
		Use:   "dial",
		Short: "connect to an sbmpd peer, handshake, and send a message",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgFile)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			conn, err := net.Dial("tcp", cfg.Peer)
			if err != nil {
				return fmt.Errorf("sbmpd: dial %s: %w", cfg.Peer, err)
			}
			defer conn.Close()

			tx := newConnTx(conn)
			ep, err := sbmp.NewEndpoint(tx.send, func(dg sbmp.Datagram) {
				logger.Infof("sbmpd: received from %s: session=%#04x type=%d payload=%q",
					conn.RemoteAddr(), dg.Session, dg.Type, dg.Payload)
			},
				sbmp.WithBufferSize(cfg.BufferSize),
				sbmp.WithListenerCapacity(cfg.ListenerCapacity),
				sbmp.WithPreferredChecksum(checksumFromName(cfg.PrefCksum)),
				sbmp.WithLogger(logger),
			)
			if err != nil {
				return fmt.Errorf("sbmpd: constructing endpoint: %w", err)
			}

			// The engine is single-threaded (spec: Receive/Send never run
			// concurrently on one Endpoint), so handshake and every send
			// below run on this goroutine; readUntil below drives the one
			// reader that is allowed to call ep.Receive during that window.
			if err := ep.StartHandshake(); err != nil {
				return fmt.Errorf("sbmpd: starting handshake: %w", err)
			}
			if err := readUntil(conn, ep, 5*time.Second, func() bool {
				return ep.HandshakeStatus() != sbmp.HandshakeAwaitReply
			}); err != nil {
				return fmt.Errorf("sbmpd: waiting for handshake reply: %w", err)
			}
			switch ep.HandshakeStatus() {
			case sbmp.HandshakeSuccess:
				logger.Infof("sbmpd: handshake succeeded, peer buffer=%d", ep.PeerBufferSize())
			case sbmp.HandshakeConflict:
				return fmt.Errorf("sbmpd: handshake conflict with %s", cfg.Peer)
			default:
				return fmt.Errorf("sbmpd: handshake with %s timed out", cfg.Peer)
			}

			if message != "" {
				if _, err := ep.SendResponse(msgDatagramType, []byte(message), ep.NextSession()); err != nil {
					return fmt.Errorf("sbmpd: sending message: %w", err)
				}
			}
			if bulkPayload != "" {
				session := ep.NextSession()
				sender := sbmp.NewBulkSender(ep, sbmp.DgBulkData)
				n, err := sender.Send(session, []byte(bulkPayload))
				if err != nil {
					return fmt.Errorf("sbmpd: bulk send: %w", err)
				}
				logger.Infof("sbmpd: sent %d bulk bytes on session %#04x", n, session)
			}

			// Give the peer a moment to reply to the message/bulk send above,
			// still on this same goroutine, then exit.
			_ = readUntil(conn, ep, 200*time.Millisecond, func() bool { return false })
			return nil
		},
	}
	cmd.Flags().StringVar(&message, "message", "", "send a single-datagram message after handshaking")
	cmd.Flags().StringVar(&bulkPayload, "bulk", "", "send a payload via the chunked bulk-transfer helper")
	return cmd
}
