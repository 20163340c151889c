package expand

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gobwas/glob"

	"github.com/zjrosen/loom/internal/defs"
	"github.com/zjrosen/loom/internal/format"
	"github.com/zjrosen/loom/internal/log"
)

// dimension is one template axis: a list-valued override key whose
// placeholder appears in the template name.
type dimension struct {
	key    string
	values []any
}

// expandTemplate emits one record per combination of the template's
// dimensions, with override values winning over template values.
func (e *Expander) expandTemplate(override, template *defs.Map, k kind, filter *nameFilter) ([]*defs.Map, error) {
	templateName, _ := template.GetString("name")
	log.Debug(log.CatExpand, "expanding template", "name", templateName)

	d := override.Clone()
	for _, key := range structuralKeys {
		d.Delete(key)
	}
	excludeRaw, _ := d.Pop("exclude")
	excludes, err := excludeList(excludeRaw, templateName)
	if err != nil {
		return nil, err
	}

	var dims []dimension
	for _, key := range d.Keys() {
		v, _ := d.Get(key)
		values, ok := v.([]any)
		if !ok {
			continue
		}
		if !strings.Contains(templateName, "{"+key+"}") {
			log.Debug(log.CatExpand, "not a dimension, absent from template name",
				"template", templateName, "key", key)
			continue
		}
		dims = append(dims, dimension{key: key, values: values})
	}

	var records []*defs.Map
	for _, combo := range combinations(dims) {
		record, skip, err := e.expandCombination(d, template, templateName, combo, excludes, k, filter)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func (e *Expander) expandCombination(override, template *defs.Map, templateName string,
	combo []dimension, excludes []*defs.Map, k kind, filter *nameFilter) (*defs.Map, bool, error) {

	params, err := e.applyDefaults(override, template)
	if err != nil {
		return nil, false, contextualize(err, k.template, templateName)
	}
	params.Set("template-name", format.EscapeBraces(templateName))

	for _, axis := range combo {
		value := axis.values[0]
		// a mapping value names the variant by its first key and folds
		// the variant's own parameters into scope
		if m, ok := value.(*defs.Map); ok && m.Len() > 0 {
			variant := m.Keys()[0]
			params.Set(axis.key, variant)
			if body, _ := m.Get(variant); body != nil {
				if bm, ok := body.(*defs.Map); ok {
					params.Update(bm.Clone())
				}
			}
			continue
		}
		params.Set(axis.key, defs.DeepCopy(value))
	}

	formatted, err := format.Deep(params, params, false)
	if err != nil {
		log.ErrorErr(log.CatExpand, "failure formatting template parameters", err,
			"template", templateName)
		return nil, false, contextualize(err, k.template, templateName)
	}
	params = formatted.(*defs.Map)

	if matchesExclude(params, excludes) {
		log.Debug(log.CatExpand, "combination excluded", "template", templateName)
		return nil, true, nil
	}

	for _, key := range template.Keys() {
		if !params.Has(key) {
			v, _ := template.Get(key)
			params.Set(key, defs.DeepCopy(v))
		}
	}

	expandedAny, err := format.Deep(template, params, e.opts.AllowEmptyVariables)
	if err != nil {
		log.ErrorErr(log.CatExpand, "failure formatting template", err,
			"template", templateName)
		return nil, false, contextualize(err, k.template, templateName)
	}
	expanded := expandedAny.(*defs.Map)

	name := recordName(expanded)
	if !filter.matches(name) {
		log.Debug(log.CatExpand, "ignoring filtered record", "kind", k.label, "name", name)
		return nil, true, nil
	}
	if k.withDesc {
		e.formatDescription(expanded)
	}
	return expanded, false, nil
}

// combinations yields the cartesian product of the dimensions, rightmost
// axis varying fastest. Each element is a slice of single-valued
// dimensions in the original axis order. A dimensionless template still
// expands exactly once.
func combinations(dims []dimension) [][]dimension {
	if len(dims) == 0 {
		return [][]dimension{nil}
	}
	for _, d := range dims {
		if len(d.values) == 0 {
			return nil
		}
	}

	var out [][]dimension
	idx := make([]int, len(dims))
	for {
		combo := make([]dimension, len(dims))
		for i, d := range dims {
			combo[i] = dimension{key: d.key, values: []any{d.values[idx[i]]}}
		}
		out = append(out, combo)

		pos := len(dims) - 1
		for pos >= 0 {
			idx[pos]++
			if idx[pos] < len(dims[pos].values) {
				break
			}
			idx[pos] = 0
			pos--
		}
		if pos < 0 {
			return out
		}
	}
}

func excludeList(raw any, templateName string) ([]*defs.Map, error) {
	if raw == nil {
		return nil, nil
	}
	entries, ok := raw.([]any)
	if !ok {
		return nil, defs.Errorf("template '%s': 'exclude' must be a list of mappings", templateName)
	}
	out := make([]*defs.Map, 0, len(entries))
	for _, entry := range entries {
		m, ok := entry.(*defs.Map)
		if !ok {
			return nil, defs.Errorf("template '%s': 'exclude' entries must be mappings", templateName)
		}
		out = append(out, m)
	}
	return out, nil
}

// matchesExclude reports whether params hits any exclusion entry. Every
// key of an entry must match; a key absent from params acts as a
// wildcard and matches.
func matchesExclude(params *defs.Map, excludes []*defs.Map) bool {
	for _, entry := range excludes {
		matched := true
		for _, key := range entry.Keys() {
			want, _ := entry.Get(key)
			got, ok := params.Get(key)
			if !ok {
				continue
			}
			if !valuesEqual(got, want) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

func valuesEqual(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	return stringify(a) == stringify(b)
}

// nameFilter matches record names against fnmatch-style glob patterns.
// An empty filter matches everything.
type nameFilter struct {
	globs []glob.Glob
}

func newNameFilter(patterns []string) (*nameFilter, error) {
	f := &nameFilter{}
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid name pattern %q: %w", p, err)
		}
		f.globs = append(f.globs, g)
	}
	return f, nil
}

func (f *nameFilter) matches(name string) bool {
	if len(f.globs) == 0 {
		return true
	}
	for _, g := range f.globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}
