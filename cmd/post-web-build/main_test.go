package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/narizgnaw/post-web-build/internal/snippet"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const scenarioB = `<head></head><body><script src="index.js"></script></body>`

type harness struct {
	fs     afero.Fs
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	vars   map[string]string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		fs:     afero.NewMemMapFs(),
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		vars:   map[string]string{"WEBHOOK_URL": "https://example.com/hooks/1"},
	}
}

func (h *harness) write(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(h.fs, "/site/docs/index.html", []byte(content), 0o644))
}

func (h *harness) read(t *testing.T) string {
	t.Helper()
	data, err := afero.ReadFile(h.fs, "/site/docs/index.html")
	require.NoError(t, err)
	return string(data)
}

func (h *harness) run(args ...string) int {
	h.stdout.Reset()
	h.stderr.Reset()
	lookup := func(key string) (string, bool) {
		v, ok := h.vars[key]
		return v, ok
	}
	return run(context.Background(), append([]string{"--root", "/site"}, args...), env{
		fs:        h.fs,
		stdout:    h.stdout,
		stderr:    h.stderr,
		lookupEnv: lookup,
	})
}

func lines(s string) int {
	return strings.Count(s, "\n")
}

func TestRun_MissingInput(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	code := h.run()
	require.Equal(t, 1, code)
	require.Equal(t, "Error: docs/index.html not found. Run the Godot web export first.\n", h.stderr.String())
	require.Empty(t, h.stdout.String())

	exists, err := afero.Exists(h.fs, "/site/docs/index.html")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestRun_ScenarioA_Malformed(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.write(t, "<html><body></body></html>")

	code := h.run()
	require.Equal(t, 1, code)
	require.Equal(t, `Error: could not find "<script src="index.js"></script>" in docs/index.html`+"\n", h.stderr.String())
	require.Equal(t, "<html><body></body></html>", h.read(t))
}

func TestRun_ScenarioB_C(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.write(t, scenarioB)

	code := h.run()
	require.Equal(t, 0, code)
	require.Equal(t, "Webhook snippet injected into docs/index.html\n", h.stdout.String())
	require.Empty(t, h.stderr.String())

	text, err := snippet.New("https://example.com/hooks/1").Render()
	require.NoError(t, err)
	afterB := h.read(t)
	require.Equal(t, `<head></head><body>`+text+`<script src="index.js"></script></body>`, afterB)

	code = h.run()
	require.Equal(t, 0, code)
	require.Equal(t, "Webhook snippet already present, skipping.\n", h.stdout.String())
	require.Equal(t, 1, lines(h.stdout.String()+h.stderr.String()))
	require.Equal(t, afterB, h.read(t))
}

func TestRun_MissingWebhook(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.vars = nil
	h.write(t, scenarioB)

	code := h.run()
	require.Equal(t, 1, code)
	require.True(t, strings.HasPrefix(h.stderr.String(), "Error: webhook endpoint not configured"))
	require.Equal(t, 1, lines(h.stderr.String()))
	require.Equal(t, scenarioB, h.read(t))
}

func TestRun_Flags(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.vars = nil
	require.NoError(t, afero.WriteFile(h.fs, "/site/web/index.html", []byte(scenarioB), 0o644))

	code := h.run("--target", "web/index.html", "--webhook", "https://flag.example/hook")
	require.Equal(t, 0, code)
	require.Equal(t, "Webhook snippet injected into web/index.html\n", h.stdout.String())

	data, err := afero.ReadFile(h.fs, "/site/web/index.html")
	require.NoError(t, err)
	require.Contains(t, string(data), `"https://flag.example/hook"`)
}

func TestRun_RejectsArguments(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	code := h.run("docs/index.html")
	require.Equal(t, 1, code)
	require.True(t, strings.HasPrefix(h.stderr.String(), "Error: "))

	code = h.run("--no-such-flag")
	require.Equal(t, 1, code)
	require.Contains(t, h.stderr.String(), "unknown flag")
}
