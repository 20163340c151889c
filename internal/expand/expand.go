// Package expand turns the definition store into flat, fully resolved job
// and view records: defaults are merged, templates are expanded over the
// cartesian product of their dimensions, exclusions filtered, placeholders
// substituted and duplicate names resolved last-wins.
package expand

import (
	"fmt"

	"github.com/spf13/cast"

	"github.com/zjrosen/loom/internal/defs"
	"github.com/zjrosen/loom/internal/log"
)

// Marker appended to record descriptions so generated items can be told
// apart from hand-edited ones.
const ManagedMarker = "<!-- Managed by loom -->"

// Options holds the knobs consumed by the expander.
type Options struct {
	// AllowEmptyVariables substitutes missing placeholder keys with the
	// empty string instead of failing.
	AllowEmptyVariables bool
	// KeepDescriptions leaves records without a description untouched
	// instead of defaulting it to empty before the managed marker is
	// appended.
	KeepDescriptions bool
}

// Expander performs one expansion pass over a loaded store. It keeps no
// state between calls.
type Expander struct {
	store *defs.Store
	opts  Options
}

// New creates an expander over store.
func New(store *defs.Store, opts Options) *Expander {
	return &Expander{store: store, opts: opts}
}

// Result holds the two ordered record lists of one expansion pass.
type Result struct {
	Jobs  []*defs.Map
	Views []*defs.Map
}

// kind describes one of the two expandable record families.
type kind struct {
	concrete string
	template string
	group    string
	refKey   string
	label    string
	withDesc bool
}

var (
	jobKind = kind{
		concrete: defs.CategoryJob,
		template: defs.CategoryJobTemplate,
		group:    defs.CategoryJobGroup,
		refKey:   "jobs",
		label:    "job",
		withDesc: true,
	}
	viewKind = kind{
		concrete: defs.CategoryView,
		template: defs.CategoryViewTemplate,
		group:    defs.CategoryViewGroup,
		refKey:   "views",
		label:    "view",
	}
)

// structural keys stripped from override bodies before dimension
// detection; they reference other definitions and never belong to output.
var structuralKeys = []string{"jobs", "views"}

// Expand resolves every job and view. patterns, when non-empty, is a list
// of fnmatch-style globs limiting the resolved record names.
func (e *Expander) Expand(patterns []string) (*Result, error) {
	filter, err := newNameFilter(patterns)
	if err != nil {
		return nil, err
	}

	jobs, err := e.expandKind(jobKind, filter)
	if err != nil {
		return nil, err
	}
	views, err := e.expandKind(viewKind, filter)
	if err != nil {
		return nil, err
	}
	return &Result{Jobs: jobs, Views: views}, nil
}

func (e *Expander) expandKind(k kind, filter *nameFilter) ([]*defs.Map, error) {
	var records []*defs.Map

	for _, def := range e.store.All(k.concrete) {
		if !filter.matches(def.Name) {
			log.Debug(log.CatExpand, "ignoring filtered record", "kind", k.label, "name", def.Name)
			continue
		}
		log.Debug(log.CatExpand, "expanding record", "kind", k.label, "name", def.Name)
		merged, err := e.applyDefaults(def.Body, nil)
		if err != nil {
			return nil, contextualize(err, k.concrete, def.Name)
		}
		if k.withDesc {
			e.formatDescription(merged)
		}
		records = append(records, merged)
	}

	for _, project := range e.store.All(defs.CategoryProject) {
		expanded, err := e.expandProject(project, k, filter)
		if err != nil {
			return nil, err
		}
		records = append(records, expanded...)
	}

	return e.resolveDuplicates(records, k.label)
}

func (e *Expander) expandProject(project *defs.Definition, k kind, filter *nameFilter) ([]*defs.Map, error) {
	refsRaw, ok := project.Body.Get(k.refKey)
	if !ok {
		return nil, nil
	}
	refs, ok := refsRaw.([]any)
	if !ok {
		return nil, (&defs.Error{
			Category: defs.CategoryProject,
			Name:     project.Name,
			Key:      k.refKey,
			Msg: fmt.Sprintf("project '%s': '%s' must be a list of %s references",
				project.Name, k.refKey, k.label),
		})
	}

	log.Debug(log.CatExpand, "expanding project", "name", project.Name, "kind", k.label)

	var records []*defs.Map
	seen := make(map[string]bool)

	for _, ref := range refs {
		inv, err := defs.ParseInvocation(ref)
		if err != nil {
			return nil, contextualize(err, defs.CategoryProject, project.Name)
		}
		name, params := inv.Name, inv.ArgsMap()

		// a reference may name a concrete record, a group, or a template
		if _, ok := e.store.Get(k.concrete, name); ok {
			if seen[name] {
				msg := fmt.Sprintf("duplicate %s '%s' specified for project '%s'",
					k.label, name, project.Name)
				if err := e.store.HandleDuplicate(msg); err != nil {
					return nil, err
				}
			}
			seen[name] = true
			continue // concrete records are emitted once, outside projects
		}

		if group, ok := e.store.Get(k.group, name); ok {
			expanded, err := e.expandGroup(project, group, params, k, filter, seen)
			if err != nil {
				return nil, err
			}
			records = append(records, expanded...)
			continue
		}

		template, found, err := e.templateFor(k, name)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, &defs.Error{
				Category: defs.CategoryProject,
				Name:     project.Name,
				Msg: fmt.Sprintf("failed to find suitable %s template named '%s' for project '%s'",
					k.label, name, project.Name),
			}
		}

		override := project.Body.Clone()
		override.Update(params)
		expanded, err := e.expandTemplate(override, template, k, filter)
		if err != nil {
			return nil, err
		}
		records = append(records, expanded...)
	}
	return records, nil
}

// expandGroup resolves each reference of a group under a project; group
// values override project values, and per-reference parameters override
// both.
func (e *Expander) expandGroup(project, group *defs.Definition, params *defs.Map,
	k kind, filter *nameFilter, seen map[string]bool) ([]*defs.Map, error) {

	refsRaw, _ := group.Body.Get(k.refKey)
	refs, ok := refsRaw.([]any)
	if !ok {
		return nil, &defs.Error{
			Category: k.group,
			Name:     group.Name,
			Key:      k.refKey,
			Msg: fmt.Sprintf("%s group '%s' must carry a '%s' list",
				k.label, group.Name, k.refKey),
		}
	}

	var records []*defs.Map
	for _, ref := range refs {
		inv, err := defs.ParseInvocation(ref)
		if err != nil {
			return nil, contextualize(err, k.group, group.Name)
		}
		name, refParams := inv.Name, inv.ArgsMap()

		if _, ok := e.store.Get(k.concrete, name); ok {
			if seen[name] {
				msg := fmt.Sprintf("duplicate %s '%s' specified for project '%s'",
					k.label, name, project.Name)
				if err := e.store.HandleDuplicate(msg); err != nil {
					return nil, err
				}
			}
			seen[name] = true
			continue
		}

		template, found, err := e.templateFor(k, name)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, &defs.Error{
				Category: k.group,
				Name:     group.Name,
				Msg: fmt.Sprintf("failed to find suitable %s template named '%s' in group '%s'",
					k.label, name, group.Name),
			}
		}

		override := project.Body.Clone()
		override.Update(params)
		override.Update(group.Body.Clone())
		override.Update(refParams)
		// the group's own name is never useful downstream
		override.Set("name", project.Name)

		expanded, err := e.expandTemplate(override, template, k, filter)
		if err != nil {
			return nil, err
		}
		records = append(records, expanded...)
	}
	return records, nil
}

// templateFor fetches a template by id with its defaults set applied.
func (e *Expander) templateFor(k kind, name string) (*defs.Map, bool, error) {
	def, ok := e.store.Get(k.template, name)
	if !ok {
		return nil, false, nil
	}
	merged, err := e.applyDefaults(def.Body, nil)
	if err != nil {
		return nil, false, contextualize(err, k.template, def.Name)
	}
	return merged, true, nil
}

// applyDefaults merges the defaults set named by data under data itself,
// data's own values winning. The override mapping, when given, replaces
// values inside the defaults set for keys the set already carries.
// Neither input is mutated.
func (e *Expander) applyDefaults(data, override *defs.Map) (*defs.Map, error) {
	whichDefaults := defs.GlobalDefaults
	if s, ok := data.GetString("defaults"); ok {
		whichDefaults = s
	}
	merged, err := e.store.DefaultsSet(whichDefaults)
	if err != nil {
		return nil, err
	}

	if override != nil {
		for _, key := range override.Keys() {
			if merged.Has(key) {
				v, _ := override.Get(key)
				merged.Set(key, defs.DeepCopy(v))
			}
		}
	}

	for _, key := range data.Keys() {
		v, _ := data.Get(key)
		merged.Set(key, defs.DeepCopy(v))
	}
	return merged, nil
}

// formatDescription appends the managed marker to a record's description.
func (e *Expander) formatDescription(record *defs.Map) {
	desc, ok := record.GetString("description")
	if !ok {
		if e.opts.KeepDescriptions && record.Has("description") {
			return // present but not a string, leave untouched
		}
		if e.opts.KeepDescriptions {
			return
		}
		desc = ""
	}
	if desc == "" {
		record.Set("description", ManagedMarker)
		return
	}
	record.Set("description", desc+"\n\n"+ManagedMarker)
}

// resolveDuplicates walks the record list in reverse so that the
// lexically-last definition of a name wins; earlier occurrences are
// dropped under the warn policy, or fail the run.
func (e *Expander) resolveDuplicates(records []*defs.Map, label string) ([]*defs.Map, error) {
	seen := make(map[string]bool)
	out := append([]*defs.Map(nil), records...)
	for i := len(out) - 1; i >= 0; i-- {
		name := recordName(out[i])
		if seen[name] {
			msg := fmt.Sprintf("duplicate definitions for %s '%s' specified", label, name)
			if err := e.store.HandleDuplicate(msg); err != nil {
				return nil, err
			}
			out = append(out[:i], out[i+1:]...)
			continue
		}
		seen[name] = true
	}
	return out, nil
}

func recordName(record *defs.Map) string {
	v, _ := record.Get("name")
	return stringify(v)
}

func stringify(v any) string {
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func contextualize(err error, category, name string) error {
	if be, ok := err.(*defs.Error); ok && be.Category == "" {
		return be.In(category, name)
	}
	return err
}
