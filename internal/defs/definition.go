package defs

// Engine-known categories. Categories outside this set (builder, wrapper,
// publisher, ...) belong to registered component modules and flow through
// the store untouched.
const (
	CategoryJob          = "job"
	CategoryJobTemplate  = "job-template"
	CategoryJobGroup     = "job-group"
	CategoryView         = "view"
	CategoryViewTemplate = "view-template"
	CategoryViewGroup    = "view-group"
	CategoryProject      = "project"
	CategoryDefaults     = "defaults"
)

// GlobalDefaults is the name of the implicit defaults set.
const GlobalDefaults = "global"

// Definition is one named, typed configuration record as loaded from a
// document. The body keeps every key, including name and id.
type Definition struct {
	Category string
	ID       string
	Name     string // raw form, may contain placeholder tokens
	Body     *Map
}

// NewDefinition builds a Definition from a category and a mapping body.
// The id attribute falls back to the name when absent.
func NewDefinition(category string, body *Map) (*Definition, error) {
	name, ok := body.GetString("name")
	if !ok {
		return nil, &Error{
			Category: category,
			Key:      "name",
			Msg:      "definition of type '" + category + "' is missing its name",
		}
	}
	id := name
	if v, ok := body.GetString("id"); ok {
		id = v
	}
	return &Definition{Category: category, ID: id, Name: name, Body: body}, nil
}
