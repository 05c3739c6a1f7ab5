package logging

import (
	"io"
	"regexp"

	"github.com/rs/zerolog"
)

// Redacted replaces secrets found in log output.
const Redacted = "[REDACTED]"

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-ant-api[a-zA-Z0-9_-]+`),
	regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*["']?[a-zA-Z0-9_-]{16,}["']?`),
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_.-]{20,}`),
	// Google API keys travel as a query parameter.
	regexp.MustCompile(`key=[a-zA-Z0-9_-]{20,}`),
}

// ContainsSecret reports whether s matches any known credential pattern.
func ContainsSecret(s string) bool {
	for _, p := range secretPatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// Redact replaces every credential-looking substring of s.
func Redact(s string) string {
	for _, p := range secretPatterns {
		s = p.ReplaceAllString(s, Redacted)
	}
	return s
}

// SecretHook flags log events whose message looks like it carries a secret.
// zerolog hooks cannot rewrite the message; the file sink redacts instead.
type SecretHook struct{}

// NewSecretHook returns a SecretHook.
func NewSecretHook() *SecretHook { return &SecretHook{} }

// Run implements zerolog.Hook.
func (SecretHook) Run(e *zerolog.Event, _ zerolog.Level, msg string) {
	if ContainsSecret(msg) {
		e.Bool("contains_secret", true)
	}
}

// RedactingWriter filters secrets out of everything written through it.
type RedactingWriter struct {
	w io.Writer
}

// NewRedactingWriter wraps w.
func NewRedactingWriter(w io.Writer) *RedactingWriter {
	return &RedactingWriter{w: w}
}

// Write implements io.Writer. It reports len(p) on success so callers do
// not see a short write when redaction changes the length.
func (rw *RedactingWriter) Write(p []byte) (int, error) {
	if _, err := rw.w.Write([]byte(Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}

type redactingWriteCloser struct {
	w *RedactingWriter
	c io.Closer
}

func (r *redactingWriteCloser) Write(p []byte) (int, error) { return r.w.Write(p) }
func (r *redactingWriteCloser) Close() error                { return r.c.Close() }
