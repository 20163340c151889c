package loader

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/loom/internal/defs"
	"github.com/zjrosen/loom/internal/format"
	"github.com/zjrosen/loom/internal/log"
)

// Inclusion directives. The parsed form substitutes another document's
// contents at the point of reference; the raw forms splice in a file's
// exact text, escaped or not.
const (
	tagInclude       = "!include"
	tagIncludeRaw    = "!include-raw"
	tagIncludeEscape = "!include-raw-escape"
)

// resolveIncludes walks a node tree and replaces every inclusion-tagged
// node with the referenced content. Untagged nodes are returned as-is with
// their children resolved in place.
func (l *Loader) resolveIncludes(node *yaml.Node, searchPath []string) (*yaml.Node, error) {
	switch strings.TrimSuffix(node.Tag, ":") {
	case tagInclude:
		return l.includeParsed(node, searchPath)
	case tagIncludeRaw:
		return l.includeRaw(node, searchPath, false)
	case tagIncludeEscape:
		return l.includeRaw(node, searchPath, true)
	}

	switch node.Kind {
	case yaml.MappingNode, yaml.SequenceNode:
		for i, child := range node.Content {
			resolved, err := l.resolveIncludes(child, searchPath)
			if err != nil {
				return nil, err
			}
			node.Content[i] = resolved
		}
	}
	return node, nil
}

// includeParsed substitutes the parsed contents of another document.
func (l *Loader) includeParsed(node *yaml.Node, searchPath []string) (*yaml.Node, error) {
	if node.Kind != yaml.ScalarNode {
		return nil, defs.Errorf("!include expects a file name, got a %s (line %d)",
			nodeKind(node), node.Line)
	}
	path, err := l.findFile(node.Value, searchPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: resolved include path
	if err != nil {
		return nil, defs.Errorf("include %s: %v", path, err)
	}

	var included yaml.Node
	if err := yaml.Unmarshal(data, &included); err != nil {
		return nil, defs.Errorf("parse included file %s: %v", path, err)
	}
	if len(included.Content) == 0 {
		return nil, defs.Errorf("included file %s is empty", path)
	}
	// nested includes resolve against the same search path
	return l.resolveIncludes(included.Content[0], searchPath)
}

// includeRaw splices in a file's exact text as a string scalar. A sequence
// of file names is concatenated with newlines. With escape set, every
// brace in the text is doubled so later formatting passes leave it alone.
func (l *Loader) includeRaw(node *yaml.Node, searchPath []string, escape bool) (*yaml.Node, error) {
	var names []string
	switch node.Kind {
	case yaml.ScalarNode:
		names = []string{node.Value}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, defs.Errorf("raw include expects file names, got a %s (line %d)",
					nodeKind(item), item.Line)
			}
			names = append(names, item.Value)
		}
	default:
		return nil, defs.Errorf("raw include expects a file name or list of file names (line %d)",
			node.Line)
	}

	var parts []string
	for _, name := range names {
		path, err := l.findFile(name, searchPath)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path) //nolint:gosec // G304: resolved include path
		if err != nil {
			return nil, defs.Errorf("include %s: %v", path, err)
		}
		parts = append(parts, string(data))
	}

	text := strings.Join(parts, "\n")
	if escape {
		text = format.EscapeBraces(text)
	}
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!str",
		Value: text,
		Style: yaml.LiteralStyle,
	}, nil
}

// findFile resolves a file name against the ordered search path; the
// first existing match wins.
func (l *Loader) findFile(name string, searchPath []string) (string, error) {
	for _, dir := range searchPath {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			log.Debug(log.CatLoader, "including file", "name", name, "dir", dir)
			return candidate, nil
		}
	}
	return "", defs.Errorf("failed to include file '%s' using search path: %s",
		name, strings.Join(searchPath, ":"))
}
