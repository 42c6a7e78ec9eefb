package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mel2oo/tlsprobe/gid"
	"github.com/mel2oo/tlsprobe/optionals"
)

func TestNew(t *testing.T) {
	l, err := New(Config{})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New(Config{Development: true})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New(Config{Development: true, Level: optionals.Some(zapcore.WarnLevel)})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("")
	require.NoError(t, err)
	assert.True(t, l.IsNone())

	l, err = ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, optionals.Some(zapcore.WarnLevel), l)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestForProbe(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	id, err := gid.GenerateProbeID()
	require.NoError(t, err)

	ForProbe(zap.New(core), id, "192.0.2.1:4433").Info("probe started")
	ForProbe(zap.New(core), id, "").Info("no address")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, map[string]interface{}{
		"probe_id":    id.String(),
		"remote_addr": "192.0.2.1:4433",
	}, entries[0].ContextMap())
	assert.Equal(t, map[string]interface{}{"probe_id": id.String()}, entries[1].ContextMap())
}
