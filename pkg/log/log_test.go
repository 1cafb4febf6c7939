package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/banerjixplores/climacrop/pkg/errors"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestToLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{" warn ", WarnLevel},
		{"error", ErrorLevel},
		{"off", Disabled},
		{"verbose", InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ToLogLevel(tt.in))
		})
	}
}

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProviderWithWriter(&buf, DebugLevel)

	logger := p.GetLoggerWithName("ridge").With(ModelNameKey, "RidgeCV")
	logger.Info("Training started", SamplesKey, 120, FeaturesKey, 14)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "ridge", lines[0]["logger"])
	assert.Equal(t, "RidgeCV", lines[0][ModelNameKey])
	assert.Equal(t, float64(120), lines[0][SamplesKey])
	assert.Equal(t, "Training started", lines[0]["message"])
	assert.Equal(t, "info", lines[0]["level"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProviderWithWriter(&buf, WarnLevel)
	logger := p.GetLogger()

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["message"])
}

func TestOddFieldsArePadded(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProviderWithWriter(&buf, InfoLevel)

	p.GetLogger().Info("odd", PathKey)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "(MISSING)", lines[0][PathKey])
}

func TestSetProviderRoutesWarnings(t *testing.T) {
	var buf bytes.Buffer
	SetProvider(NewZerologProviderWithWriter(&buf, InfoLevel))
	defer SetProvider(NewZerologProvider(InfoLevel))

	cerrors.Warn(cerrors.NewConvergenceWarning("SVR", 10, "stopped early"))
	LogError(cerrors.New("boom"), "render failed", PathKey, "corr.html")
	LogError(nil, "ignored")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "warnings", lines[0]["logger"])
	assert.Equal(t, "error", lines[1]["level"])
	assert.Equal(t, "boom", lines[1][ErrorKey])
	assert.Equal(t, "corr.html", lines[1][PathKey])
}
