package defs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/loom/internal/pubsub"
)

func mustDef(t *testing.T, category, name string, extra ...any) *Definition {
	t.Helper()
	body := MapOf(append([]any{"name", name}, extra...)...)
	def, err := NewDefinition(category, body)
	require.NoError(t, err)
	return def
}

func TestStore_DuplicateForbidden(t *testing.T) {
	s := NewStore(false)

	require.NoError(t, s.Insert(mustDef(t, CategoryJob, "build"), "a.yaml"))

	err := s.Insert(mustDef(t, CategoryJob, "build"), "b.yaml")
	require.Error(t, err)
	require.Contains(t, err.Error(), "'build' already defined")

	var be *Error
	require.ErrorAs(t, err, &be)
	require.Equal(t, CategoryJob, be.Category)
	require.Equal(t, "build", be.Name)
}

func TestStore_DuplicateAllowedLastWins(t *testing.T) {
	s := NewStore(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := s.Events().Subscribe(ctx)

	first := mustDef(t, CategoryJob, "build", "marker", "first")
	second := mustDef(t, CategoryJob, "build", "marker", "second")

	require.NoError(t, s.Insert(first, "a.yaml"))
	require.NoError(t, s.Insert(second, "b.yaml"))

	def, ok := s.Get(CategoryJob, "build")
	require.True(t, ok)
	marker, _ := def.Body.Get("marker")
	require.Equal(t, "second", marker)
	require.Len(t, s.All(CategoryJob), 1)

	select {
	case ev := <-events:
		require.Equal(t, pubsub.DuplicateEvent, ev.Type)
		require.Contains(t, ev.Payload, "build")
	case <-time.After(time.Second):
		require.Fail(t, "expected a duplicate warning event")
	}
}

func TestStore_SameIDInDifferentCategories(t *testing.T) {
	s := NewStore(false)

	require.NoError(t, s.Insert(mustDef(t, CategoryJob, "thing"), "a.yaml"))
	require.NoError(t, s.Insert(mustDef(t, CategoryView, "thing"), "a.yaml"))

	require.Equal(t, []string{CategoryJob, CategoryView}, s.Categories())
}

func TestStore_InsertionOrderPreserved(t *testing.T) {
	s := NewStore(false)
	for _, name := range []string{"z", "a", "m"} {
		require.NoError(t, s.Insert(mustDef(t, CategoryJob, name), "a.yaml"))
	}

	var got []string
	for _, def := range s.All(CategoryJob) {
		got = append(got, def.Name)
	}
	require.Equal(t, []string{"z", "a", "m"}, got)
}

func TestStore_DefaultsSet(t *testing.T) {
	s := NewStore(false)

	// implicit global set resolves to an empty map
	m, err := s.DefaultsSet(GlobalDefaults)
	require.NoError(t, err)
	require.Equal(t, 0, m.Len())

	// any other missing set is an error
	_, err = s.DefaultsSet("team")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown defaults set: 'team'")

	require.NoError(t, s.Insert(mustDef(t, CategoryDefaults, "team", "node", "linux"), "a.yaml"))

	m, err = s.DefaultsSet("team")
	require.NoError(t, err)
	v, _ := m.Get("node")
	require.Equal(t, "linux", v)

	// the returned set is a copy
	m.Set("node", "windows")
	again, err := s.DefaultsSet("team")
	require.NoError(t, err)
	v, _ = again.Get("node")
	require.Equal(t, "linux", v)
}
