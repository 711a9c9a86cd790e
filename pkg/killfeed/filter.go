package killfeed

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// compiledFilter holds pre-compiled filter configuration for efficient event filtering.
type compiledFilter struct {
	include map[EventType]struct{}
	exclude map[EventType]struct{}
	involve string
	where   *vm.Program
}

// newCompiledFilter creates a new compiledFilter from include and exclude slices.
// Returns nil if both slices are empty (no filtering needed).
func newCompiledFilter(include, exclude []EventType) *compiledFilter {
	if len(include) == 0 && len(exclude) == 0 {
		return nil
	}

	f := &compiledFilter{}
	f.setInclude(include)
	f.setExclude(exclude)
	return f
}

func (f *compiledFilter) setInclude(types []EventType) {
	f.include = nil
	if len(types) > 0 {
		f.include = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			f.include[t] = struct{}{}
		}
	}
}

func (f *compiledFilter) setExclude(types []EventType) {
	f.exclude = nil
	if len(types) > 0 {
		f.exclude = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			f.exclude[t] = struct{}{}
		}
	}
}

// AllowsType returns true if the given event type passes the type filter.
// If include is non-empty, only types in include are allowed.
// Types in exclude are always rejected (exclude takes precedence).
func (f *compiledFilter) AllowsType(t EventType) bool {
	if f == nil {
		return true
	}

	if len(f.include) > 0 {
		if _, ok := f.include[t]; !ok {
			return false
		}
	}

	if len(f.exclude) > 0 {
		if _, ok := f.exclude[t]; ok {
			return false
		}
	}

	return true
}

// Allows applies the type filter, the player filter and the where expression.
func (f *compiledFilter) Allows(ev Event) bool {
	if f == nil {
		return true
	}
	if !f.AllowsType(ev.Type) {
		return false
	}
	if f.involve != "" && !ev.Involves(f.involve) {
		return false
	}
	if f.where != nil {
		out, err := expr.Run(f.where, whereEnv(ev))
		if err != nil {
			return false
		}
		if matched, ok := out.(bool); !ok || !matched {
			return false
		}
	}
	return true
}

// whereEnv exposes event fields to where expressions under their JSON names.
func whereEnv(ev Event) map[string]any {
	return map[string]any{
		"type":        string(ev.Type),
		"timestamp":   ev.Timestamp,
		"killer":      ev.Killer,
		"killer_ship": ev.KillerShip,
		"victim":      ev.Victim,
		"victim_ship": ev.VictimShip,
		"weapon":      ev.Weapon,
		"damage_type": ev.DamageType,
		"status":      ev.Status,
	}
}

// WhereFields returns the sorted field names available to where expressions.
func WhereFields() []string {
	return slices.Sorted(maps.Keys(whereEnv(Event{})))
}

// CompileWhere compiles a boolean expression over event fields, for example
//
//	type == "kill" && killer_ship != "" && victim startsWith "NPC"
//
// Available fields: type, timestamp, killer, killer_ship, victim,
// victim_ship, weapon, damage_type, status.
func CompileWhere(src string) (*vm.Program, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, nil
	}
	program, err := expr.Compile(src, expr.Env(whereEnv(Event{})), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compiling where expression: %w", err)
	}
	return program, nil
}
