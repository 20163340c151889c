package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestTestCommand_WritesOutputDirectory(t *testing.T) {
	dir := t.TempDir()
	defPath := filepath.Join(dir, "jobs.yaml")
	require.NoError(t, os.WriteFile(defPath, []byte(`
- job:
    name: nightly
    builders:
      - shell: 'make all'
`), 0o644))

	outDir := filepath.Join(dir, "out")
	_, err := runCLI(t, "test", defPath, "--output", outDir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outDir, "nightly.xml"))
	require.NoError(t, err)
	require.Contains(t, string(data), "<command>make all</command>")

	outputDir = ""
}

func TestTestCommand_StdoutAndGlob(t *testing.T) {
	dir := t.TempDir()
	defPath := filepath.Join(dir, "jobs.yaml")
	require.NoError(t, os.WriteFile(defPath, []byte(`
- job:
    name: alpha
    builders: []
- job:
    name: beta
    builders: []
`), 0o644))

	out, err := runCLI(t, "test", defPath, "--jobs-glob", "alpha")
	require.NoError(t, err)
	require.Contains(t, out, "alpha:")
	require.NotContains(t, out, "beta:")

	jobsGlob = nil
}

func TestTestCommand_RequiresAPath(t *testing.T) {
	_, err := runCLI(t, "test")
	require.Error(t, err)
}
