package client

import (
	"crypto/tls"

	"github.com/flexprice/collections/internal/config"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/logger"
	"go.temporal.io/sdk/client"
)

// NewTemporalClient dials the temporal frontend from the temporal config.
func NewTemporalClient(cfg *config.Configuration, log *logger.Logger) (client.Client, error) {
	opts := client.Options{
		HostPort:  cfg.Temporal.Address,
		Namespace: cfg.Temporal.Namespace,
		Logger:    log.GetTemporalLogger(),
	}
	if cfg.Temporal.TLS {
		opts.ConnectionOptions = client.ConnectionOptions{TLS: &tls.Config{MinVersion: tls.VersionTLS12}}
	}
	if cfg.Temporal.APIKey != "" {
		opts.Credentials = client.NewAPIKeyStaticCredentials(cfg.Temporal.APIKey)
	}

	c, err := client.Dial(opts)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Failed to connect to temporal at %s", cfg.Temporal.Address).
			Mark(ierr.ErrSystem)
	}

	log.Infow("connected to temporal",
		"address", cfg.Temporal.Address,
		"namespace", cfg.Temporal.Namespace,
	)
	return c, nil
}
