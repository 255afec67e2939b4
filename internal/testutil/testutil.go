// Package testutil holds helpers shared by omni tests: a silent logger,
// absolute paths to the checked-in fixtures and a constant id generator.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"testing"
)

// Logger returns a logger that discards every record.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// RepoPath returns the absolute path of elem joined under the module root.
func RepoPath(t testing.TB, elem ...string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("testutil: cannot locate module root")
	}
	root := filepath.Join(filepath.Dir(file), "..", "..")
	return filepath.Join(append([]string{root}, elem...)...)
}

// ContentDir returns the checked-in content directory. Object paths under
// /Game/ resolve against it.
func ContentDir(t testing.TB) string {
	t.Helper()
	return RepoPath(t, "testdata", "content")
}

// ScenariosDir returns the directory of the shipped harness scenarios.
func ScenariosDir(t testing.TB) string {
	t.Helper()
	return RepoPath(t, "testdata", "scenarios")
}

// ConstantGenerator returns the same token on every call.
//
// Unlike registry.FixedGenerator, which hands out tokens in sequence and
// panics when they run out, it never runs dry. Use it where the number of
// sessions or forge runs a test starts is not the point of the test.
type ConstantGenerator struct {
	token string
}

// NewConstantGenerator creates a generator for token. An empty token
// becomes "test-token-default".
func NewConstantGenerator(token string) *ConstantGenerator {
	if token == "" {
		token = "test-token-default"
	}
	return &ConstantGenerator{token: token}
}

// Generate returns the token.
func (g *ConstantGenerator) Generate() string {
	return g.token
}
