package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ORDER_SINK_URL", "https://script.google.com/macros/s/abc/exec")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, int64(100), cfg.DeliveryFee)
	assert.Equal(t, CartStoreMemory, cfg.CartStore)
	assert.Equal(t, OrderSinkHTTP, cfg.OrderSink)
	assert.Equal(t, 2*time.Second, cfg.ClearDelay)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.RequireAck)
}

func TestLoad_FromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("ORDER_SINK=kafka\nKAFKA_BROKERS=k1:9092,k2:9092\nLOG_LEVEL=debug\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("ORDER_SINK")
		os.Unsetenv("KAFKA_BROKERS")
		os.Unsetenv("LOG_LEVEL")
	})

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, OrderSinkKafka, cfg.OrderSink)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingEnvFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"http sink needs url", map[string]string{}},
		{"unknown cart store", map[string]string{"ORDER_SINK_URL": "http://x", "CART_STORE": "sqlite"}},
		{"postgres needs dsn", map[string]string{"ORDER_SINK_URL": "http://x", "CART_STORE": "postgres"}},
		{"negative fee", map[string]string{"ORDER_SINK_URL": "http://x", "DELIVERY_FEE": "-1"}},
		{"bad log level", map[string]string{"ORDER_SINK_URL": "http://x", "LOG_LEVEL": "loud"}},
		{"bad log format", map[string]string{"ORDER_SINK_URL": "http://x", "LOG_FORMAT": "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()

			assert.Error(t, err)
		})
	}
}
