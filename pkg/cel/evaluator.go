// Package cel evaluates per-source filter expressions over mail candidates.
// Expressions see the candidate's subject, sender, order id, source name and
// received timestamp and must return bool.
package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"bookingsync/pkg/models"
)

type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("message_id", cel.StringType),
		cel.Variable("order_id", cel.StringType),
		cel.Variable("subject", cel.StringType),
		cel.Variable("from", cel.StringType),
		cel.Variable("source", cel.StringType),
		cel.Variable("received_at", cel.TimestampType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

func (e *Evaluator) ValidateFilterExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("filter expression must return bool, got %v", ast.OutputType())
	}

	return nil
}

func (e *Evaluator) EvaluateFilter(ctx context.Context, expression string, item models.MailItem) (bool, error) {
	program, err := e.CompileFilter(expression)
	if err != nil {
		return false, err
	}
	return e.runFilter(ctx, program, item)
}

// CompileFilter compiles once so the poll loop does not recompile the same
// source expression every tick.
func (e *Evaluator) CompileFilter(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("filter expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return program, nil
}

// EvaluateCompiled runs a program produced by CompileFilter.
func (e *Evaluator) EvaluateCompiled(ctx context.Context, program cel.Program, item models.MailItem) (bool, error) {
	return e.runFilter(ctx, program, item)
}

func (e *Evaluator) runFilter(ctx context.Context, program cel.Program, item models.MailItem) (bool, error) {
	vars := map[string]interface{}{
		"message_id":  item.MessageID,
		"order_id":    item.OrderID,
		"subject":     item.Subject,
		"from":        item.From,
		"source":      item.Source,
		"received_at": item.ReceivedAt,
	}

	result, _, err := program.ContextEval(ctx, vars)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}
