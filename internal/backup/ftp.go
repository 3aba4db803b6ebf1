/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package backup

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rs/zerolog"
)

// FTPConfig configures the FTP archive target.
type FTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	RemoteDir string
	Timeout   time.Duration
}

// FTPTarget uploads files over FTP, reusing one control connection per cycle
// and reconnecting after any failure.
type FTPTarget struct {
	config FTPConfig
	conn   *ftp.ServerConn
	logger zerolog.Logger
}

// NewFTPTarget builds an FTP target; it does not dial until the first upload.
func NewFTPTarget(config FTPConfig, logger zerolog.Logger) *FTPTarget {
	if config.Port == 0 {
		config.Port = 21
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	return &FTPTarget{
		config: config,
		logger: logger.With().Str("component", "backup_ftp").Logger(),
	}
}

// Name identifies the target in logs and metrics.
func (t *FTPTarget) Name() string { return "ftp" }

// Upload stores the file under the configured remote directory.
func (t *FTPTarget) Upload(ctx context.Context, localPath, name string) error {
	conn, err := t.connect(ctx)
	if err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	remote := path.Join(t.config.RemoteDir, name)
	if err := conn.Stor(remote, f); err != nil {
		// The control connection may be wedged; force a fresh dial on the
		// next attempt.
		t.disconnect()
		return fmt.Errorf("store %s: %w", remote, err)
	}
	return nil
}

// Close quits the control connection if one is open.
func (t *FTPTarget) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Quit()
	t.conn = nil
	return err
}

func (t *FTPTarget) connect(ctx context.Context) (*ftp.ServerConn, error) {
	if t.conn != nil {
		return t.conn, nil
	}

	addr := fmt.Sprintf("%s:%d", t.config.Host, t.config.Port)
	conn, err := ftp.Dial(addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(t.config.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("dial ftp %s: %w", addr, err)
	}
	if err := conn.Login(t.config.Username, t.config.Password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("ftp login: %w", err)
	}
	if t.config.RemoteDir != "" {
		// Best effort; Stor fails cleanly if the directory is missing.
		if err := conn.MakeDir(t.config.RemoteDir); err != nil {
			t.logger.Debug().Err(err).Str("dir", t.config.RemoteDir).Msg("remote dir not created")
		}
	}

	t.logger.Info().Str("addr", addr).Msg("connected to ftp server")
	t.conn = conn
	return conn, nil
}

func (t *FTPTarget) disconnect() {
	if t.conn != nil {
		t.conn.Quit()
		t.conn = nil
	}
}
