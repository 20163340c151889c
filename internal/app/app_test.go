package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/loom/internal/config"
)

func writeDefs(t *testing.T, doc string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestRun_EndToEnd(t *testing.T) {
	path := writeDefs(t, `
- job-template:
    name: '{component}-build'
    triggers:
      - timed: '@daily'
    builders:
      - shell: 'make {component}'
    publishers:
      - archive:
          artifacts: '{component}/dist/*'
- project:
    name: proj
    component: [api, web]
    jobs:
      - '{component}-build'
`)

	res, err := New(config.Defaults(), nil).Run(context.Background(), []string{path}, nil)
	require.NoError(t, err)
	require.Len(t, res.Jobs, 2)

	require.Equal(t, "api-build", res.Jobs[0].Name)
	require.Equal(t, "job", res.Jobs[0].Kind)
	xml := res.Jobs[0].XML
	require.Contains(t, xml, `<?xml version="1.0" encoding="UTF-8"?>`)
	require.Contains(t, xml, "<command>make api</command>")
	require.Contains(t, xml, "<spec>@daily</spec>")
	require.Contains(t, xml, "<artifacts>api/dist/*</artifacts>")
	require.Contains(t, xml, "<description>")
	require.Contains(t, xml, "Managed by loom")

	require.Equal(t, "web-build", res.Jobs[1].Name)
	require.Contains(t, res.Jobs[1].XML, "<command>make web</command>")
}

func TestRun_Views(t *testing.T) {
	path := writeDefs(t, `
- view:
    name: frontline
    view-type: list
`)
	res, err := New(config.Defaults(), nil).Run(context.Background(), []string{path}, nil)
	require.NoError(t, err)
	require.Len(t, res.Views, 1)
	require.Equal(t, "frontline", res.Views[0].Name)
	require.Contains(t, res.Views[0].XML, "<hudson.model.ListView>")
	require.Contains(t, res.Views[0].XML, "<name>frontline</name>")
}

func TestRun_Patterns(t *testing.T) {
	path := writeDefs(t, `
- job:
    name: keep-me
    builders: []
- job:
    name: drop-me
    builders: []
`)
	res, err := New(config.Defaults(), nil).Run(context.Background(), []string{path}, []string{"keep-*"})
	require.NoError(t, err)
	require.Len(t, res.Jobs, 1)
	require.Equal(t, "keep-me", res.Jobs[0].Name)
}

func TestRun_MacroThroughPipeline(t *testing.T) {
	path := writeDefs(t, `
- builder:
    name: announce
    builders:
      - shell: 'echo starting {what}'
- job:
    name: uses-macro
    builders:
      - announce:
          what: build
`)
	res, err := New(config.Defaults(), nil).Run(context.Background(), []string{path}, nil)
	require.NoError(t, err)
	require.Len(t, res.Jobs, 1)
	require.Contains(t, res.Jobs[0].XML, "<command>echo starting build</command>")
}

func TestRun_FailureAbortsWholeRun(t *testing.T) {
	path := writeDefs(t, `
- job:
    name: fine
    builders: []
- job-template:
    name: broken-{component}
    builders:
      - shell: 'echo {missing}'
- project:
    name: proj
    component: [x]
    jobs:
      - broken-{component}
`)
	_, err := New(config.Defaults(), nil).Run(context.Background(), []string{path}, nil)
	require.Error(t, err)
}
