package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeOpenAIKey() string { return "sk-" + "TESTONLYxxxxxxxxxxxxxxxxxxxx1234" }

func TestSelectLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, selectLevel(true, false))
	assert.Equal(t, zerolog.WarnLevel, selectLevel(false, true))
	assert.Equal(t, zerolog.InfoLevel, selectLevel(false, false))
	assert.Equal(t, zerolog.DebugLevel, selectLevel(true, true))
}

func TestInitWithWriter_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := InitWithWriter(false, true, &buf)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestSecretHook_FlagsMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := InitWithWriter(false, false, &buf)

	logger.Info().Msg("calling with " + fakeOpenAIKey())
	assert.Contains(t, buf.String(), `"contains_secret":true`)
}

func TestRedact(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"openai key", "key " + fakeOpenAIKey(), "key " + Redacted},
		{"google query key", "url?key=" + "TESTONLYxxxxxxxxxxxxxxxx", "url?" + Redacted},
		{"plain text", "nothing to hide", "nothing to hide"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Redact(tc.input))
		})
	}
}

func TestRedactingWriter_ReportsOriginalLength(t *testing.T) {
	var buf bytes.Buffer
	w := NewRedactingWriter(&buf)
	in := []byte("token " + fakeOpenAIKey())

	n, err := w.Write(in)
	require.NoError(t, err)
	assert.Equal(t, len(in), n)
	assert.NotContains(t, buf.String(), fakeOpenAIKey())
}

func TestInit_WritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logger := Init(Options{Dir: dir})
	t.Cleanup(Close)

	logger.Info().Msg("hello file " + fakeOpenAIKey())
	Close()

	data, err := os.ReadFile(Path(dir))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello file")
	assert.NotContains(t, string(data), fakeOpenAIKey())
}

func TestInit_FileOnlyStillWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logger := Init(Options{Dir: dir, FileOnly: true})
	t.Cleanup(Close)

	logger.Warn().Msg("ui running")
	Close()

	data, err := os.ReadFile(Path(dir))
	require.NoError(t, err)
	assert.Contains(t, string(data), "ui running")
}
