package output

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestElement_Render(t *testing.T) {
	root := New("project")
	root.TextChild("description", "built nightly")
	builders := root.Child("builders")
	shell := builders.Child("hudson.tasks.Shell")
	shell.TextChild("command", "make all")

	want := `<?xml version="1.0" encoding="UTF-8"?>
<project>
  <description>built nightly</description>
  <builders>
    <hudson.tasks.Shell>
      <command>make all</command>
    </hudson.tasks.Shell>
  </builders>
</project>
`
	require.Equal(t, want, root.Render())
}

func TestElement_SelfClosingWhenEmpty(t *testing.T) {
	root := New("project")
	root.Child("builders")
	require.Contains(t, root.Render(), "  <builders/>\n")
}

func TestElement_EscapesMarkup(t *testing.T) {
	root := New("project")
	root.TextChild("command", `echo "a < b && b > c"`)
	out := root.Render()
	require.Contains(t, out, "echo \"a &lt; b &amp;&amp; b &gt; c\"")
}

func TestElement_NewlinesSurviveInText(t *testing.T) {
	root := New("project")
	root.TextChild("command", "line one\nline two")
	require.Contains(t, root.Render(), "<command>line one\nline two</command>")
}

func TestElement_Attributes(t *testing.T) {
	root := New("project")
	root.SetAttr("plugin", "git@4.0")
	root.SetAttr("class", "hudson.plugins.git.GitSCM")
	root.SetAttr("plugin", "git@5.0")
	require.Contains(t, root.Render(),
		`<project plugin="git@5.0" class="hudson.plugins.git.GitSCM"/>`)
}

func TestElement_Find(t *testing.T) {
	root := New("project")
	root.Child("builders")
	root.Child("publishers")

	got, ok := root.Find("publishers")
	require.True(t, ok)
	require.Equal(t, "publishers", got.Tag)

	_, ok = root.Find("wrappers")
	require.False(t, ok)
}
