// Package registry routes component invocations to generator functions.
// Categories are registered with the plural key under which records list
// their fragments ("builder" -> "builders"); providers are registered per
// fragment list and name. A name with no provider may still resolve to a
// macro defined in the store under the same category.
package registry

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/loom/internal/cachemanager"
	"github.com/zjrosen/loom/internal/defs"
	"github.com/zjrosen/loom/internal/format"
	"github.com/zjrosen/loom/internal/log"
	"github.com/zjrosen/loom/internal/output"
)

// Provider turns one resolved invocation into output under parent. args
// is the invocation's argument: nil for a bare reference, otherwise a
// *defs.Map or a scalar.
type Provider func(parent *output.Element, args any) error

// Options holds the knobs consumed by the dispatcher.
type Options struct {
	// AllowEmptyVariables substitutes missing placeholder keys in macro
	// arguments with the empty string instead of failing.
	AllowEmptyVariables bool
}

// Registry is the provider and macro dispatch table. Registration happens
// once at startup; Dispatch is read-only afterwards.
type Registry struct {
	store *defs.Store
	opts  Options

	categories   []string          // registration order
	fragmentList map[string]string // category -> plural fragment-list key
	providers    map[string]map[string]Provider

	lookups    *cachemanager.InMemoryCacheManager[Provider]
	maskWarned map[string]bool
}

// New creates an empty registry over store.
func New(store *defs.Store, opts Options) *Registry {
	return &Registry{
		store:        store,
		opts:         opts,
		fragmentList: make(map[string]string),
		providers:    make(map[string]map[string]Provider),
		lookups: cachemanager.NewInMemoryCacheManager[Provider]("provider-lookups",
			cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval),
		maskWarned: make(map[string]bool),
	}
}

// RegisterCategory declares a component category and the plural key under
// which records carry its fragment list.
func (r *Registry) RegisterCategory(category, fragmentList string) {
	if _, ok := r.fragmentList[category]; ok {
		return
	}
	r.categories = append(r.categories, category)
	r.fragmentList[category] = fragmentList
}

// RegisterProvider binds a generator function to a fragment name. A later
// registration under the same name replaces the earlier one.
func (r *Registry) RegisterProvider(fragmentList, name string, p Provider) {
	m, ok := r.providers[fragmentList]
	if !ok {
		m = make(map[string]Provider)
		r.providers[fragmentList] = m
	}
	m[name] = p
	r.lookups.Delete(fragmentList + ":" + name)
}

// Categories returns the registered categories in registration order.
func (r *Registry) Categories() []string {
	return append([]string(nil), r.categories...)
}

// Dispatch resolves one component invocation under category and runs its
// provider, or expands it as a macro. templateData, when non-empty, is
// interpolated into the invocation's name and arguments first.
func (r *Registry) Dispatch(category string, parent *output.Element, component any, templateData *defs.Map) error {
	listName, ok := r.fragmentList[category]
	if !ok {
		return defs.Errorf("unknown component category: '%s'", category)
	}

	inv, err := defs.ParseInvocation(component)
	if err != nil {
		if be, ok := err.(*defs.Error); ok {
			return be.In(category, "")
		}
		return err
	}
	name, args := inv.Name, inv.Args

	if templateData != nil && templateData.Len() > 0 {
		name, args, err = interpolate(name, args, templateData, r.opts.AllowEmptyVariables)
		if err != nil {
			log.ErrorErr(log.CatRegistry, "failure formatting component", err,
				"category", category, "name", inv.Name)
			if be, ok := err.(*defs.Error); ok {
				return be.In(category, inv.Name)
			}
			return err
		}
	}

	provider, found := r.provider(listName, name)
	macro, isMacro := r.store.Get(category, name)

	if found {
		if isMacro && !r.maskWarned[listName+":"+name] {
			r.maskWarned[listName+":"+name] = true
			log.Warn(log.CatRegistry, "macro is masked by a registered provider",
				"category", category, "name", name)
		}
		log.Debug(log.CatRegistry, "dispatching provider", "category", category, "name", name)
		return provider(parent, args)
	}

	if isMacro {
		return r.dispatchMacro(category, listName, parent, macro, args)
	}

	return defs.Errorf("no provider or macro named '%s' found for category '%s'", name, category)
}

// dispatchMacro runs each of the macro's inner invocations, with the
// macro's own arguments — already interpolated against the caller's
// scope — as the new interpolation scope.
func (r *Registry) dispatchMacro(category, listName string, parent *output.Element,
	macro *defs.Definition, args any) error {

	log.Debug(log.CatRegistry, "expanding macro", "category", category, "name", macro.Name)

	fragmentsRaw, ok := macro.Body.Get(listName)
	if !ok {
		return defs.Errorf("macro '%s' under category '%s' carries no '%s' list",
			macro.Name, category, listName)
	}
	fragments, ok := fragmentsRaw.([]any)
	if !ok {
		return defs.Errorf("macro '%s': '%s' must be a list", macro.Name, listName)
	}

	scope := defs.Invocation{Name: macro.Name, Args: args}.ArgsMap()
	for _, fragment := range fragments {
		if err := r.Dispatch(category, parent, fragment, scope); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) provider(listName, name string) (Provider, bool) {
	key := listName + ":" + name
	if p, ok := r.lookups.Get(key); ok {
		return p, true
	}
	p, ok := r.providers[listName][name]
	if ok {
		r.lookups.Set(key, p)
	}
	return p, ok
}

// Generate walks every registered category's fragment list on a resolved
// record and dispatches each entry.
func (r *Registry) Generate(record *defs.Map, parent *output.Element) error {
	name := "?"
	if s, ok := record.GetString("name"); ok {
		name = s
	}
	for _, category := range r.categories {
		listName := r.fragmentList[category]
		raw, ok := record.Get(listName)
		if !ok {
			continue
		}
		fragments, ok := raw.([]any)
		if !ok {
			return defs.Errorf("record '%s': '%s' must be a list", name, listName)
		}
		section := parent.Child(listName)
		for _, fragment := range fragments {
			if err := r.Dispatch(category, section, fragment, nil); err != nil {
				if be, ok := err.(*defs.Error); ok && be.Name == "" {
					return be.In(be.Category, name)
				}
				return err
			}
		}
	}
	return nil
}

// interpolate substitutes templateData into an invocation. The argument
// mapping is round-tripped through YAML so substituted values keep their
// parsed types.
func interpolate(name string, args any, templateData *defs.Map, allowEmpty bool) (string, any, error) {
	formattedName, err := format.Format(name, templateData, true)
	if err != nil {
		return "", nil, err
	}
	name = fmt.Sprintf("%v", formattedName)

	if args == nil {
		return name, nil, nil
	}

	raw, err := yaml.Marshal(args)
	if err != nil {
		return "", nil, defs.Errorf("cannot serialize arguments for '%s': %v", name, err)
	}
	substituted, err := format.Format(string(raw), templateData, allowEmpty)
	if err != nil {
		return "", nil, err
	}
	reparsed, err := defs.ParseDocument([]byte(fmt.Sprintf("%v", substituted)))
	if err != nil {
		return "", nil, defs.Errorf("cannot reparse arguments for '%s': %v", name, err)
	}
	return name, reparsed, nil
}
