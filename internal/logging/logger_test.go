package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeKVs_RedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{"api_key", "sk-123", "username", "kojied", "access_token", "abc"})
	assert.Equal(t, []interface{}{"api_key", "[REDACTED]", "username", "kojied", "access_token", "[REDACTED]"}, out)
}

func TestSanitizeKVs_OddLength(t *testing.T) {
	out := sanitizeKVs([]interface{}{"username", "kojied", "dangling"})
	assert.Equal(t, []interface{}{"username", "kojied", "dangling"}, out)
}

func TestLogger_WritesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := Wrap(zap.New(core))

	l.With("run_id", "r1").Info("persona generated", "username", "kojied", "client_secret", "s3cr3t")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "r1", fields["run_id"])
	assert.Equal(t, "kojied", fields["username"])
	assert.Equal(t, "[REDACTED]", fields["client_secret"])
}

func TestNilLogger_IsSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Info("ignored", "k", "v")
		l.Sync()
	})
}

func TestNew_Modes(t *testing.T) {
	for _, mode := range []string{"dev", "prod"} {
		l, err := New(mode, "debug")
		require.NoError(t, err)
		assert.NotNil(t, l)
	}
}
