package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/jrsteele09/brandbolt/internal/logger"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, zerolog.DebugLevel, logger.ParseLevel("DEBUG"))
	require.Equal(t, zerolog.WarnLevel, logger.ParseLevel("warning"))
	require.Equal(t, zerolog.InfoLevel, logger.ParseLevel("nonsense"))
	require.Equal(t, zerolog.Disabled, logger.ParseLevel("off"))
}

func TestInitJSON(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	l := logger.InitWithWriter(&buf, "info", "json")
	l.Info().Str("component", "test").Msg("hello")
	l.Debug().Msg("dropped")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "hello", line["message"])
	require.Equal(t, "test", line["component"])
}
