// Package server exposes container and blob operations over plain HTTP.
package server

import (
	"errors"
	"log/slog"
	"time"

	"blob-storage-proxy-go/storage"
)

const defaultMaxUploadBytes = 64 << 20

type Config struct {
	// Azure is required. AWS, when set, is served under /aws.
	Azure          storage.ProxyAuthHandler
	AWS            storage.ProxyAuthHandler
	// Defaults, when set, enables the /azure/default routes.
	Defaults       storage.DefaultNames
	LinkExpiration time.Duration
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Server holds only immutable configuration. A storage proxy is built for
// every request from the configured handler.
type Server struct {
	Config Config

	logger     *slog.Logger
	newProxy   func(storage.ProxyAuthHandler, *storage.CloudStorageProxyOptions) (storage.CloudStorageProxy, error)
	pickSample func() string
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Azure == nil {
		return nil, errors.New("an Azure authentication handler is required")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LinkExpiration > storage.DelegationKeyValidity {
		logger.Warn("Azure links stop working when their delegation key expires, before the configured link expiration",
			"link_expiration", cfg.LinkExpiration,
			"delegation_key_validity", storage.DelegationKeyValidity)
	}
	return &Server{
		Config:     cfg,
		logger:     logger,
		newProxy:   storage.CloudStorageProxyFactory,
		pickSample: randomSample,
	}, nil
}

func (s *Server) proxy(handler storage.ProxyAuthHandler) (storage.CloudStorageProxy, error) {
	return s.newProxy(handler, &storage.CloudStorageProxyOptions{
		LinkExpiration: s.Config.LinkExpiration,
		Logger:         s.logger,
	})
}
