// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"code.hybscloud.com/sbmp"
)

// msgDatagramType is the user-level datagram type the demo uses for
// free-form message exchange: the first user type after DgBulkData, which
// takes the first value above the handshake's reserved range.
const msgDatagramType = sbmp.DgFirstUserType + 1

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "accept SBMP connections and log received messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgFile)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			ln, err := net.Listen("tcp", cfg.Listen)
			if err != nil {
				return fmt.Errorf("sbmpd: listen: %w", err)
			}
			logger.Infof("sbmpd: listening on %s", cfg.Listen)

			for {
				conn, err := ln.Accept()
				if err != nil {
					return fmt.Errorf("sbmpd: accept: %w", err)
				}
				go serveConn(conn, cfg, logger)
			}
		},
	}
}

func serveConn(conn net.Conn, cfg Config, logger sbmp.Logger) {
	defer conn.Close()

	bulk := map[uint16]*sbmp.BulkReceiver{}

	tx := newConnTx(conn)
	ep, err := sbmp.NewEndpoint(tx.send, func(dg sbmp.Datagram) {
		switch dg.Type {
		case sbmp.DgBulkData:
			r, ok := bulk[dg.Session]
			if !ok {
				r = sbmp.NewBulkReceiver(0)
				bulk[dg.Session] = r
			}
			done, err := r.Handle(dg)
			if err != nil {
				logger.Warnf("sbmpd: bulk transfer on session %#04x: %v", dg.Session, err)
				delete(bulk, dg.Session)
				return
			}
			if done {
				logger.Infof("sbmpd: bulk transfer complete from %s: session=%#04x %d bytes: %q",
					conn.RemoteAddr(), dg.Session, len(r.Bytes()), r.Bytes())
				delete(bulk, dg.Session)
			}
		default:
			logger.Infof("sbmpd: received from %s: session=%#04x type=%d payload=%q",
				conn.RemoteAddr(), dg.Session, dg.Type, dg.Payload)
		}
	},
		sbmp.WithBufferSize(cfg.BufferSize),
		sbmp.WithListenerCapacity(cfg.ListenerCapacity),
		sbmp.WithPreferredChecksum(checksumFromName(cfg.PrefCksum)),
		sbmp.WithLogger(logger),
	)
	if err != nil {
		logger.Errorf("sbmpd: constructing endpoint for %s: %v", conn.RemoteAddr(), err)
		return
	}

	pumpReceive(conn, ep, logger)
}
