// Package loader reads definition documents into the store. A document is
// a YAML sequence of singleton mappings {category: body}. Inclusion
// directives substitute other documents, or raw file text, at the point of
// reference.
package loader

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/loom/internal/defs"
	"github.com/zjrosen/loom/internal/log"
)

// Loader populates a definition store from documents on disk.
type Loader struct {
	store *defs.Store
	// includePath is the configured part of the inclusion search path; the
	// including document's directory and the current directory are always
	// appended to it.
	includePath []string
}

// New creates a loader writing into store. includePath holds the
// configured inclusion directories, searched before the document's own
// directory.
func New(store *defs.Store, includePath []string) *Loader {
	return &Loader{store: store, includePath: includePath}
}

// Load reads every given path. Directories are enumerated in sorted order
// for *.yml / *.yaml entries; paths resolving to the same file are loaded
// only once.
func (l *Loader) Load(paths ...string) error {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return defs.Errorf("stat %s: %v", path, err)
		}
		if info.IsDir() {
			entries, err := os.ReadDir(path)
			if err != nil {
				return defs.Errorf("read directory %s: %v", path, err)
			}
			// os.ReadDir returns entries sorted by name
			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}
				name := entry.Name()
				if strings.HasSuffix(name, ".yml") || strings.HasSuffix(name, ".yaml") {
					files = append(files, filepath.Join(path, name))
				}
			}
		} else {
			files = append(files, path)
		}
	}

	// symlinks used to organize definition trees can surface the same file
	// twice; load each real path only once
	seen := make(map[string]bool)
	var unique []string
	for _, f := range files {
		real, err := filepath.EvalSymlinks(f)
		if err != nil {
			real = f
		}
		if seen[real] {
			log.Warn(log.CatLoader, "file already added, ignoring duplicate reference",
				"path", f, "resolved", real)
			continue
		}
		seen[real] = true
		unique = append(unique, real)
	}

	for _, f := range unique {
		if err := l.LoadFile(f); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile parses one document file into the store.
func (l *Loader) LoadFile(path string) error {
	log.Debug(log.CatLoader, "parsing definition file", "path", path)
	data, err := os.ReadFile(path) //nolint:gosec // G304: user-supplied definition path
	if err != nil {
		return defs.Errorf("read %s: %v", path, err)
	}
	searchPath := append(append([]string{}, l.includePath...), filepath.Dir(path), ".")
	return l.parse(data, path, searchPath)
}

// LoadBytes parses an in-memory document, as if read from sourceName.
// Includes resolve against the configured path plus the current directory.
func (l *Loader) LoadBytes(data []byte, sourceName string) error {
	searchPath := append(append([]string{}, l.includePath...), ".")
	return l.parse(data, sourceName, searchPath)
}

func (l *Loader) parse(data []byte, source string, searchPath []string) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return defs.Errorf("parse %s: %v", source, err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil // empty document
	}

	top := root.Content[0]
	if top.Kind != yaml.SequenceNode {
		return defs.Errorf("the topmost collection in '%s' must be a list, not a %s",
			source, nodeKind(top))
	}

	for _, item := range top.Content {
		processed, err := l.resolveIncludes(item, searchPath)
		if err != nil {
			return err
		}
		if processed.Kind == yaml.AliasNode {
			processed = processed.Alias
		}
		if processed.Kind != yaml.MappingNode {
			return defs.Errorf("item in '%s' must be a mapping of {type: definition}, got a %s (line %d)",
				source, nodeKind(processed), item.Line)
		}
		if len(processed.Content) != 2 {
			return defs.Errorf("syntax error in '%s', for item named '%s': missing indent?",
				source, itemName(processed))
		}

		category := processed.Content[0].Value
		bodyValue, err := defs.DecodeNode(processed.Content[1])
		if err != nil {
			return defs.Errorf("parse %s: %v", source, err)
		}
		body, ok := bodyValue.(*defs.Map)
		if !ok {
			return defs.Errorf("definition of type '%s' in '%s' must be a mapping, got %T",
				category, source, bodyValue)
		}

		def, err := defs.NewDefinition(category, body)
		if err != nil {
			return err
		}
		if err := l.store.Insert(def, source); err != nil {
			return err
		}
	}
	return nil
}

// itemName digs a name out of a malformed multi-key item for diagnostics.
// When an entry lost its indentation, the body keys (name included) sit at
// the item's top level.
func itemName(node *yaml.Node) string {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "name" {
			return node.Content[i+1].Value
		}
	}
	return "<unknown>"
}

func nodeKind(node *yaml.Node) string {
	switch node.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "list"
	case yaml.ScalarNode:
		return "scalar"
	default:
		return "document"
	}
}
