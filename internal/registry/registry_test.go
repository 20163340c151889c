package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/loom/internal/defs"
	"github.com/zjrosen/loom/internal/loader"
	"github.com/zjrosen/loom/internal/output"
)

// shellProvider mirrors the builtin shell builder closely enough for
// dispatch tests: it records the command it was handed.
func shellProvider(commands *[]string) Provider {
	return func(parent *output.Element, args any) error {
		cmd, _ := args.(string)
		*commands = append(*commands, cmd)
		parent.Child("hudson.tasks.Shell").TextChild("command", cmd)
		return nil
	}
}

func newTestRegistry(t *testing.T, doc string) (*Registry, *[]string) {
	t.Helper()
	store := defs.NewStore(false)
	if doc != "" {
		require.NoError(t, loader.New(store, nil).LoadBytes([]byte(doc), "test.yaml"))
	}
	r := New(store, Options{})
	r.RegisterCategory("builder", "builders")
	commands := &[]string{}
	r.RegisterProvider("builders", "shell", shellProvider(commands))
	return r, commands
}

func TestDispatch_Provider(t *testing.T) {
	r, commands := newTestRegistry(t, "")
	parent := output.New("builders")

	require.NoError(t, r.Dispatch("builder", parent, defs.MapOf("shell", "make all"), nil))
	require.Equal(t, []string{"make all"}, *commands)
	require.Len(t, parent.Children(), 1)
}

func TestDispatch_UnknownCategory(t *testing.T) {
	r, _ := newTestRegistry(t, "")
	err := r.Dispatch("nope", output.New("x"), "anything", nil)
	require.ErrorContains(t, err, "unknown component category: 'nope'")
}

func TestDispatch_UnknownNameNamesBoth(t *testing.T) {
	r, _ := newTestRegistry(t, "")
	err := r.Dispatch("builder", output.New("builders"), "mystery", nil)
	require.ErrorContains(t, err, "'mystery'")
	require.ErrorContains(t, err, "'builder'")
}

func TestDispatch_MacroInterpolatesArguments(t *testing.T) {
	r, commands := newTestRegistry(t, `
- builder:
    name: say
    builders:
      - shell: 'echo {msg}'
`)
	parent := output.New("builders")
	require.NoError(t, r.Dispatch("builder", parent, defs.MapOf("say", defs.MapOf("msg", "hi")), nil))
	require.Equal(t, []string{"echo hi"}, *commands)
}

func TestDispatch_BareMacroReference(t *testing.T) {
	r, commands := newTestRegistry(t, `
- builder:
    name: fixed-steps
    builders:
      - shell: 'step one'
      - shell: 'step two'
`)
	require.NoError(t, r.Dispatch("builder", output.New("builders"), "fixed-steps", nil))
	require.Equal(t, []string{"step one", "step two"}, *commands)
}

func TestDispatch_NestedMacros(t *testing.T) {
	r, commands := newTestRegistry(t, `
- builder:
    name: inner
    builders:
      - shell: 'run {target}'
- builder:
    name: outer
    builders:
      - inner:
          target: '{target}'
`)
	parent := output.New("builders")
	require.NoError(t, r.Dispatch("builder", parent, defs.MapOf("outer", defs.MapOf("target", "deep")), nil))
	require.Equal(t, []string{"run deep"}, *commands)
}

func TestDispatch_MacroMissingArgumentFails(t *testing.T) {
	r, _ := newTestRegistry(t, `
- builder:
    name: say
    builders:
      - shell: 'echo {msg}'
`)
	err := r.Dispatch("builder", output.New("builders"), defs.MapOf("say", defs.MapOf("other", "x")), nil)
	require.Error(t, err)
	var be *defs.Error
	require.ErrorAs(t, err, &be)
	require.Equal(t, "msg", be.Key)
}

func TestDispatch_EmptyArgumentsSkipInterpolation(t *testing.T) {
	// a bare or argument-less macro reference leaves inner tokens alone
	r, commands := newTestRegistry(t, `
- builder:
    name: say
    builders:
      - shell: 'echo {msg}'
`)
	require.NoError(t, r.Dispatch("builder", output.New("builders"), "say", nil))
	require.Equal(t, []string{"echo {msg}"}, *commands)
}

func TestDispatch_MacroMaskedByProviderWarnsAndProviderWins(t *testing.T) {
	r, commands := newTestRegistry(t, `
- builder:
    name: shell
    builders:
      - shell: 'never reached'
`)
	require.NoError(t, r.Dispatch("builder", output.New("builders"), defs.MapOf("shell", "direct"), nil))
	require.Equal(t, []string{"direct"}, *commands)
}

func TestDispatch_ProviderLookupIsCached(t *testing.T) {
	r, _ := newTestRegistry(t, "")
	parent := output.New("builders")
	require.NoError(t, r.Dispatch("builder", parent, defs.MapOf("shell", "a"), nil))
	require.NoError(t, r.Dispatch("builder", parent, defs.MapOf("shell", "b"), nil))
	_, ok := r.lookups.Get("builders:shell")
	require.True(t, ok)
}

func TestGenerate_WalksRegisteredCategories(t *testing.T) {
	r, commands := newTestRegistry(t, "")
	record := defs.MapOf(
		"name", "job-a",
		"builders", []any{defs.MapOf("shell", "make")},
	)
	parent := output.New("project")
	require.NoError(t, r.Generate(record, parent))
	require.Equal(t, []string{"make"}, *commands)
}

func TestGenerate_RecordWithoutFragmentListsIsFine(t *testing.T) {
	r, commands := newTestRegistry(t, "")
	require.NoError(t, r.Generate(defs.MapOf("name", "bare"), output.New("project")))
	require.Empty(t, *commands)
}
