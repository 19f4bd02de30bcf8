package observable

import (
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprEvaluatorOption configures an expr evaluator instance.
type ExprEvaluatorOption func(*exprEvaluator)

// ExprWithProgramCache wires a ProgramCache into the expr evaluator.
func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry wires a FunctionRegistry into the expr evaluator.
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

// exprEvaluator runs expr-lang programs. Identifiers are resolved at run
// time from the rule context, so one program serves every target type.
type exprEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr.
func NewExprEvaluator(opts ...ExprEvaluatorOption) Evaluator {
	e := &exprEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.rule(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *exprEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	return e.rule(expression)
}

func (e *exprEvaluator) rule(expression string) (*exprRule, error) {
	if expression == "" {
		return nil, ErrEmptyExpression
	}
	program, err := cachedProgram(e.cache, expression, e.build)
	if err != nil {
		return nil, evalFailure("expr", StageCompile, expression, "", err)
	}
	return &exprRule{evaluator: e, program: program, expression: expression}, nil
}

func (e *exprEvaluator) build(expression string) (*exprvm.Program, error) {
	opts := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	for name, fn := range e.registry.bindings() {
		opts = append(opts, exprlang.Function(name, fn))
	}
	return exprlang.Compile(expression, opts...)
}

// environment binds the target members and vars, then now, this and call
// unless the context already supplies them.
func (e *exprEvaluator) environment(ctx RuleContext) map[string]any {
	env := ctx.bindings()
	if _, ok := env["now"]; !ok {
		env["now"] = ctx.timestamp()
	}
	if ctx.Target != nil {
		env["this"] = unwrapProxy(ctx.Target)
	}
	if e.registry != nil {
		env["call"] = e.registry.Call
	}
	return env
}

type exprRule struct {
	evaluator  *exprEvaluator
	program    *exprvm.Program
	expression string
}

func (r *exprRule) Evaluate(ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	result, err := exprlang.Run(r.program, r.evaluator.environment(ctx))
	if err != nil {
		return nil, evalFailure("expr", StageRun, r.expression, ctx.ownerLabel(), err)
	}
	return result, nil
}
