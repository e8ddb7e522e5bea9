package kafka

import (
	"testing"

	"github.com/Shopify/sarama"
	"github.com/flexprice/collections/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSaramaConfig(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		c := GetSaramaConfig(config.GetDefaultConfig())
		assert.Equal(t, "collections", c.ClientID)
		assert.True(t, c.Producer.Idempotent)
		assert.Equal(t, 1, c.Net.MaxOpenRequests)
		assert.False(t, c.Net.TLS.Enable)
		assert.False(t, c.Net.SASL.Enable)
		require.NoError(t, c.Validate())
	})

	t.Run("scram implies tls", func(t *testing.T) {
		cfg := config.GetDefaultConfig()
		cfg.Kafka.UseSASL = true
		cfg.Kafka.SASLMechanism = string(sarama.SASLTypeSCRAMSHA256)
		cfg.Kafka.SASLUser = "collections"
		cfg.Kafka.SASLPassword = "secret"

		c := GetSaramaConfig(cfg)
		assert.True(t, c.Net.TLS.Enable)
		assert.True(t, c.Net.SASL.Enable)
		require.NotNil(t, c.Net.SASL.SCRAMClientGeneratorFunc)

		client := c.Net.SASL.SCRAMClientGeneratorFunc()
		require.NoError(t, client.Begin("collections", "secret", ""))
		first, err := client.Step("")
		require.NoError(t, err)
		assert.Contains(t, first, "n=collections")
		assert.False(t, client.Done())
	})
}
