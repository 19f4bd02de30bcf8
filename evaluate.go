package observable

import (
	"errors"
	"time"
)

var ErrNoEvaluator = errors.New("observable: evaluator not configured")

// Evaluate runs expr with the target's members bound as identifiers.
func (p *ValueProxy) Evaluate(expr string) (any, error) {
	return p.EvaluateWith(RuleContext{}, expr)
}

// EvaluateWith runs expr using ctx, falling back to the wrapped value when
// ctx.Target is nil.
func (p *ValueProxy) EvaluateWith(ctx RuleContext, expr string) (any, error) {
	if ctx.Target == nil {
		ctx.Target = p.Target()
	}
	return p.cfg.evaluate(ctx, expr)
}

func (cfg *config) evaluate(ctx RuleContext, expr string) (any, error) {
	if expr == "" {
		return nil, ErrEmptyExpression
	}
	evaluator := cfg.resolveEvaluator()
	if evaluator == nil {
		return nil, ErrNoEvaluator
	}
	ctx = ctx.withDefaults()
	engine := evaluatorEngineName(evaluator)
	start := time.Now()
	value, evalErr := evaluator.Evaluate(ctx, expr)
	duration := time.Since(start)
	evalErr = evalFailure(engine, "", expr, ctx.ownerLabel(), evalErr)
	cfg.logger.LogEvent(LogEvent{
		Op:       "evaluate",
		Engine:   engine,
		Expr:     expr,
		Owner:    ctx.ownerLabel(),
		Duration: duration,
		Err:      evalErr,
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return value, nil
}

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	switch e.(type) {
	case *exprEvaluator:
		return "expr"
	case *celEvaluator:
		return "cel"
	}
	if name := jsEngineName(e); name != "" {
		return name
	}
	return "custom"
}
