// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"code.hybscloud.com/sbmp"
)

// newLogger builds a logrus.Logger from cfg and adapts it to sbmp.Logger.
// When LogFile is set, output is split between stdout and a rotating file
// via lumberjack, following sun977-NeoScan's logger shape; unlike that
// repo's global LoggerInstance singleton, the result is handed directly to
// sbmp.WithLogger by the caller.
func newLogger(cfg Config) sbmp.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		l.SetLevel(lvl)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}

	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSize,
			MaxAge:     cfg.LogMaxAge,
			MaxBackups: cfg.LogBackups,
			Compress:   true,
		}
		l.SetOutput(io.MultiWriter(os.Stdout, rotator))
	}

	return sbmp.NewLogger(l)
}

func checksumFromName(name string) sbmp.ChecksumType {
	switch name {
	case "none":
		return sbmp.ChecksumNone
	case "xor":
		return sbmp.ChecksumXOR
	default:
		return sbmp.ChecksumCRC32
	}
}
