// Package filter compiles CEL expressions used to narrow what a subscriber receives.
package filter

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/syntrixbase/feedwatch/internal/feed"
)

// Compiler compiles CEL expressions evaluated against a single change.
type Compiler struct {
	env *cel.Env
}

// NewCompiler creates a compiler whose environment exposes the variable
// "change" with keys collection, operation, key, data and timestamp.
func NewCompiler() (*Compiler, error) {
	env, err := cel.NewEnv(
		cel.Variable("change", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("CEL environment error: %w", err)
	}
	return &Compiler{env: env}, nil
}

// Compile compiles a CEL expression string. An empty expression compiles to
// a nil program, which matches everything.
func (c *Compiler) Compile(expr string) (cel.Program, error) {
	if expr == "" {
		return nil, nil
	}

	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: CEL compile error: %v", feed.ErrInvalidFilter, issues.Err())
	}
	if ast.OutputType() != cel.BoolType && ast.OutputType() != cel.DynType {
		return nil, fmt.Errorf("%w: expression must evaluate to bool, got %s", feed.ErrInvalidFilter, ast.OutputType())
	}

	prg, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: CEL program creation error: %v", feed.ErrInvalidFilter, err)
	}
	return prg, nil
}

// Match evaluates prg against a change.
func Match(prg cel.Program, change feed.Change) (bool, error) {
	if prg == nil {
		return true, nil
	}

	data := change.Data
	if data == nil {
		data = map[string]interface{}{}
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"change": map[string]interface{}{
			"collection": change.Collection,
			"operation":  string(change.Operation),
			"key":        change.Key,
			"data":       data,
			"timestamp":  change.Timestamp,
		},
	})
	if err != nil {
		return false, err
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL result is not boolean: %T", out.Value())
	}
	return result, nil
}

// Apply returns a copy of cs holding only the changes prg matches.
// Changes whose evaluation fails are left out. It returns nil when nothing matches.
func Apply(prg cel.Program, cs *feed.ChangeSet) *feed.ChangeSet {
	if cs == nil {
		return nil
	}
	if prg == nil {
		return cs
	}

	var kept []feed.Change
	for _, c := range cs.Changes {
		ok, err := Match(prg, c)
		if err != nil || !ok {
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		return nil
	}

	return &feed.ChangeSet{
		ID:             cs.ID,
		SourceDateTime: cs.SourceDateTime,
		Changes:        kept,
	}
}
