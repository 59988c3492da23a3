package logger

import (
	"io"
	"regexp"
)

const redacted = "[REDACTED]"

// Redactor masks credentials in log output
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor creates a redactor for the credentials this service handles
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*regexp.Regexp{
			// LLM provider keys: Groq, Anthropic, OpenAI
			regexp.MustCompile(`gsk_[a-zA-Z0-9]{20,}`),
			regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{20,}`),
			regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`),

			// Scanner API key handed to generated pipelines
			regexp.MustCompile(`AEGIS_API_KEY["\s:=]+[^\s"$]{8,}`),

			regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`),
			regexp.MustCompile(`(?i)x-copilot-secret["\s:=]+[^\s"]+`),
			regexp.MustCompile(`password["\s:=]+[^\s"]+`),
			regexp.MustCompile(`token["\s:=]+[a-zA-Z0-9._-]{20,}`),
			regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
			regexp.MustCompile(`secret["\s:=]+[^\s"]+`),
		},
	}
}

// AddPattern adds a custom redaction pattern
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.patterns = append(r.patterns, re)
	return nil
}

// Redact masks every match in s
func (r *Redactor) Redact(s string) string {
	for _, pattern := range r.patterns {
		s = pattern.ReplaceAllString(s, redacted)
	}
	return s
}

// Wrap returns a writer that redacts before writing to w
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{
		writer:   w,
		redactor: r,
	}
}

type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

// Write reports len(p) on success, since callers check it against their input
func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := w.writer.Write([]byte(w.redactor.Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
