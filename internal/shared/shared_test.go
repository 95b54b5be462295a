package shared

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestGenerateToken(t *testing.T) {
	seen := make(map[string]bool)
	for range 50 {
		token, err := GenerateToken()
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}
		if len(token) != tokenLength {
			t.Errorf("expected token length %d, got %d", tokenLength, len(token))
		}
		if strings.ContainsAny(token, "01lIO") {
			t.Errorf("token %q contains ambiguous characters", token)
		}
		if seen[token] {
			t.Errorf("duplicate token %q", token)
		}
		seen[token] = true
	}
}

func TestParseLogLevel(t *testing.T) {
	tc := []struct {
		in      string
		want    log.Level
		wantErr bool
	}{
		{in: "", want: log.InfoLevel},
		{in: "debug", want: log.DebugLevel},
		{in: " WARN ", want: log.WarnLevel},
		{in: "error", want: log.ErrorLevel},
		{in: "verbose", want: log.InfoLevel, wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  User@Example.COM "); got != "user@example.com" {
		t.Errorf("NormalizeEmail() = %q", got)
	}
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.log")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}
	logger.Info("hello", "component", "test")

	if _, err := NewFileLogger(t.TempDir()); err == nil {
		t.Error("expected error when path is a directory")
	}
}

func TestMarshalJSON(t *testing.T) {
	v := map[string]int{"a": 1}

	compact, err := MarshalJSON(v, false)
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if string(compact) != `{"a":1}` {
		t.Errorf("compact = %s", compact)
	}

	pretty, err := MarshalJSON(v, true)
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if string(pretty) != "{\n  \"a\": 1\n}" {
		t.Errorf("pretty = %q", pretty)
	}

	if _, err := MarshalJSON(make(chan int), false); err == nil {
		t.Error("expected error for unsupported type")
	}
}
