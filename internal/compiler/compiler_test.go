package compiler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/yamlinc/internal/config"
	yerrors "github.com/conneroisu/yamlinc/internal/errors"
	"github.com/conneroisu/yamlinc/internal/version"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newCompiler(t *testing.T, outDir string) *Compiler {
	t.Helper()
	cfg := config.Default()
	cfg.OutputDir = outDir
	return New(cfg, nil)
}

func withVersion(t *testing.T, v string) {
	t.Helper()
	old := version.Version
	version.Version = v
	t.Cleanup(func() { version.Version = old })
}

func TestCompileEndToEnd(t *testing.T) {
	withVersion(t, "v0.1.0")

	dir := t.TempDir()
	out := t.TempDir()
	input := writeFile(t, dir, "a.yml", "x: 1\n$include: b.yml\n")
	writeFile(t, dir, "b.yml", "x: 2\ny: 3\n")

	res, err := newCompiler(t, out).Compile(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(out, "a.inc.yml"), res.Output)
	assert.Equal(t, []string{filepath.Join(dir, "b.yml")}, res.Fragments)
	assert.False(t, res.Unchanged)
	assert.Len(t, res.Digest, 64)

	data, err := os.ReadFile(res.Output)
	require.NoError(t, err)

	expected := "## --------------------\n" +
		"## DON'T EDIT THIS FILE\n" +
		"## --------------------\n" +
		"## Engine: yamlinc@0.1.0\n" +
		"## Source: " + input + "\n" +
		"\n" +
		"x: 2\n" +
		"y: 3\n"
	assert.Equal(t, expected, string(data))
}

func TestCompileUnchanged(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "app.yaml", "name: app\n")
	c := newCompiler(t, dir)

	first, err := c.Compile(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, first.Unchanged)

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(first.Output, old, old))

	second, err := c.Compile(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, second.Unchanged)
	assert.Equal(t, first.Digest, second.Digest)

	info, err := os.Stat(second.Output)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Before(time.Now().Add(-time.Minute)), "output must not be rewritten")

	writeFile(t, dir, "app.yaml", "name: other\n")
	third, err := c.Compile(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, third.Unchanged)
	assert.NotEqual(t, first.Digest, third.Digest)
}

func TestCompileEmptyDocument(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "empty.yml", "")

	res, err := newCompiler(t, dir).Compile(context.Background(), input)
	require.NoError(t, err)

	data, err := os.ReadFile(res.Output)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "\n\nempty: true\n"))
}

func TestCompileCreatesOutputDir(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "a.yml", "a: 1\n")
	out := filepath.Join(dir, "build", "gen")

	res, err := newCompiler(t, out).Compile(context.Background(), input)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out, "a.inc.yml"))
	assert.Equal(t, filepath.Join(out, "a.inc.yml"), res.Output)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestCompileErrorsWriteNothing(t *testing.T) {
	testCases := []struct {
		name  string
		files map[string]string
		input string
		check func(error) bool
	}{
		{
			name:  "missing input",
			input: "a.yml",
			check: yerrors.IsNotFound,
		},
		{
			name:  "syntax error",
			files: map[string]string{"a.yml": "a: [1\n"},
			input: "a.yml",
			check: yerrors.IsSyntax,
		},
		{
			name: "syntax error in fragment",
			files: map[string]string{
				"a.yml": "$include: b.yml\n",
				"b.yml": "{ broken\n",
			},
			input: "a.yml",
			check: yerrors.IsSyntax,
		},
		{
			name: "cycle",
			files: map[string]string{
				"a.yml": "$include: b.yml\n",
				"b.yml": "$include: a.yml\n",
			},
			input: "a.yml",
			check: yerrors.IsCycle,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			out := t.TempDir()
			for name, content := range tc.files {
				writeFile(t, dir, name, content)
			}

			_, err := newCompiler(t, out).Compile(context.Background(), filepath.Join(dir, tc.input))
			require.Error(t, err)
			assert.True(t, tc.check(err), "unexpected error: %v", err)
			assert.NoFileExists(t, filepath.Join(out, "a.inc.yml"))
		})
	}
}

func TestCompileCustomDirective(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "a.yml", "$use: b.yml\n")
	writeFile(t, dir, "b.yml", "b: 1\n")

	cfg := config.Default()
	cfg.Directive = "$use"
	cfg.OutputDir = dir

	res, err := New(cfg, nil).Compile(context.Background(), input)
	require.NoError(t, err)

	data, err := os.ReadFile(res.Output)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "\n\nb: 1\n"))
}

func TestOutputName(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"a.yml", "a.inc.yml"},
		{"docker-compose.yaml", "docker-compose.inc.yaml"},
		{"dir/sub/App.YML", "App.inc.YML"},
		{"config.json", "config.inc.json"},
		{"Makefile", "Makefile.inc"},
		{"archive.tar.yml", "archive.tar.inc.yml"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, OutputName(tc.input))
		})
	}
}

func TestIsGenerated(t *testing.T) {
	c := newCompiler(t, ".")
	assert.True(t, c.IsGenerated("a.inc.yml"))
	assert.True(t, c.IsGenerated("/x/y/A.INC.YAML"))
	assert.False(t, c.IsGenerated("a.yml"))
	assert.False(t, c.IsGenerated("inc.yml"))
	assert.False(t, c.IsGenerated("a.inc.json"))

	cfg := config.Default()
	cfg.Extensions = []string{"yml", "yaml", "json"}
	c = New(cfg, nil)
	assert.True(t, c.IsGenerated("app.inc.json"))
	assert.True(t, c.IsGenerated(c.OutputPath("app.JSON")))
	assert.False(t, c.IsGenerated("app.json"))
	assert.False(t, c.IsGenerated("app.inc.toml"))
}

func TestIsInput(t *testing.T) {
	c := newCompiler(t, ".")
	assert.True(t, c.IsInput("a.yml"))
	assert.True(t, c.IsInput("dir/B.YAML"))
	assert.False(t, c.IsInput("a.json"))
	assert.False(t, c.IsInput("Makefile"))

	cfg := config.Default()
	cfg.Extensions = []string{"yml", "json"}
	c = New(cfg, nil)
	assert.True(t, c.IsInput("a.json"))
	assert.False(t, c.IsInput("a.yaml"))
}

func TestHeader(t *testing.T) {
	withVersion(t, "1.2.3")
	h := Header("docker-compose.yml")
	lines := strings.Split(h, "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "## Engine: yamlinc@1.2.3", lines[3])
	assert.Equal(t, "## Source: docker-compose.yml", lines[4])
	assert.Equal(t, "", lines[5])
	assert.Equal(t, "", lines[6])
}
