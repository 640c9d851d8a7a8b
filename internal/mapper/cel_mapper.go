// Package mapper derives additional authentication-context entries from
// verified token claims using CEL (Common Expression Language) expressions.
package mapper

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/cel-go/cel"
)

// CELMapper evaluates a CEL expression against the verified claims of an
// identity token and merges the result into the authentication context.
//
// The expression has access to one variable:
//   - claims - every verified payload claim as a map
//
// The expression must evaluate to a map.
//
// Example expressions:
//
//	// Project a single claim under a new name
//	{"tenant": claims["custom:tenant_id"]}
//
//	// Conditional logic
//	claims["custom:role"] == "ADMIN" ? {"admin": true} : {"admin": false}
type CELMapper struct {
	script  string
	program cel.Program
}

// NewCELMapper compiles the given CEL expression once at construction time
func NewCELMapper(script string) (*CELMapper, error) {
	if script == "" {
		return nil, fmt.Errorf("CEL script cannot be empty")
	}

	env, err := cel.NewEnv(
		cel.Variable("claims", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(script)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL script: %w", issues.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &CELMapper{
		script:  script,
		program: program,
	}, nil
}

// Map evaluates the expression against the given claims
func (m *CELMapper) Map(ctx context.Context, claims map[string]any) (map[string]any, error) {
	result, _, err := m.program.ContextEval(ctx, map[string]any{
		"claims": claims,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	native, err := result.ConvertToNative(reflect.TypeOf(map[string]any{}))
	if err != nil {
		return nil, fmt.Errorf("CEL expression must evaluate to a map: %w", err)
	}

	resultMap, ok := native.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("CEL expression must evaluate to a map, got: %T", native)
	}

	return resultMap, nil
}

// Script returns the CEL script used by this mapper
func (m *CELMapper) Script() string {
	return m.script
}
