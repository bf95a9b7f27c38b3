package server

import (
	"go.uber.org/zap"
)

type Option func(s *Server) error

// WithAddr returns an Option which set the server listening address. A
// unix:// prefix listens on a unix socket.
func WithAddr(addr string) Option {
	return func(s *Server) error {
		s.Addr = addr
		return nil
	}
}

// WithStatus returns an Option which set where /status reads the scheduler from.
func WithStatus(job string, src StatusSource) Option {
	return func(s *Server) error {
		s.job = job
		s.status = src
		return nil
	}
}

// WithBackupLister returns an Option which set the client serving /backups.
func WithBackupLister(l BackupLister) Option {
	return func(s *Server) error {
		s.backups = l
		return nil
	}
}

// WithLogger returns an Option which set the logger for Server.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}
