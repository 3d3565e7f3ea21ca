package ecs

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rotisserie/eris"
)

// SearchParam selects entities by the kinds of components they hold and an optional filter. The
// filter is an expr-lang expression, see https://expr-lang.org/docs/language-definition.
//
// The filter sees each matching component under its type name (e.g. `Health.HP > 10`), the entity
// handle as `_id` and its name as `_name`. When an entity holds several components of one kind,
// the first is used.
type SearchParam struct {
	Find  []string // Component kinds an entity must hold. Empty matches every entity.
	Where string   // Optional boolean filter expression.
}

// compile returns the program for the where clause, or nil if there is none.
func (s *SearchParam) compile() (*vm.Program, error) {
	if len(s.Where) == 0 {
		return nil, nil //nolint:nilnil // no filter
	}

	// The environment is only known per entity, so the bool check is repeated at run time.
	filter, err := expr.Compile(s.Where, expr.AsBool())
	if err != nil {
		return nil, eris.Wrap(err, "failed to parse where clause")
	}
	return filter, nil
}

// Search returns, in registry order, the entities that hold every kind in params.Find and satisfy
// params.Where.
func (w *World) Search(params SearchParam) ([]*Entity, error) {
	filter, err := params.compile()
	if err != nil {
		return nil, eris.Wrap(err, "invalid search params")
	}

	results := make([]*Entity, 0)
	for _, e := range w.entities {
		env, ok := e.searchEnv(params.Find)
		if !ok {
			continue
		}
		if filter == nil {
			results = append(results, e)
			continue
		}

		output, err := expr.Run(filter, env)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to run filter expression on entity %s", e.id)
		}
		match, ok := output.(bool)
		if !ok {
			return nil, eris.Errorf("where clause returned %T, not a bool", output)
		}
		if match {
			results = append(results, e)
		}
	}
	return results, nil
}

// searchEnv builds the filter environment of e. It returns false if e lacks any of the kinds.
func (e *Entity) searchEnv(kinds []string) (map[string]any, bool) {
	env := make(map[string]any, len(e.components)+2)
	for _, s := range e.components {
		if _, ok := env[s.kind]; !ok {
			env[s.kind] = s.component
		}
	}
	for _, kind := range kinds {
		if _, ok := env[kind]; !ok {
			return nil, false
		}
	}

	// Set last so a component kind cannot shadow them.
	env["_id"] = uint64(e.id)
	env["_name"] = e.name
	return env, true
}
