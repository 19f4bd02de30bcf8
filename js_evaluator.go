//go:build js_eval

package observable

import (
	"github.com/dop251/goja"
)

// jsEvaluator runs expressions as goja programs. Each evaluation gets a
// fresh runtime with the rule context bound as globals.
type jsEvaluator struct {
	jsEvaluatorConfig
}

// NewJSEvaluator constructs an Evaluator backed by goja.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	return &jsEvaluator{jsEvaluatorConfig: applyJSEvaluatorOptions(opts)}
}

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.rule(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *jsEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	return e.rule(expression)
}

func (e *jsEvaluator) rule(expression string) (*jsRule, error) {
	if expression == "" {
		return nil, ErrEmptyExpression
	}
	program, err := cachedProgram(e.cache, expression, func(expression string) (*goja.Program, error) {
		return goja.Compile("", jsExpressionSource(expression), false)
	})
	if err != nil {
		return nil, evalFailure("js", StageCompile, expression, "", err)
	}
	return &jsRule{evaluator: e, program: program, expression: expression}, nil
}

// runtime returns a goja runtime with the context bindings, now, the
// registry functions and call set as globals.
func (e *jsEvaluator) runtime(ctx RuleContext) *goja.Runtime {
	vm := goja.New()
	for key, value := range ctx.bindings() {
		_ = vm.Set(key, value)
	}
	_ = vm.Set("now", ctx.timestamp())
	for name, fn := range e.registry.bindings() {
		_ = vm.Set(name, fn)
	}
	if e.registry != nil {
		_ = vm.Set("call", e.registry.Call)
	}
	return vm
}

// jsExpressionSource turns an expression into a program whose completion
// value is the expression result.
func jsExpressionSource(expression string) string {
	return "(function(){ return (" + expression + "); })()"
}

type jsRule struct {
	evaluator  *jsEvaluator
	program    *goja.Program
	expression string
}

func (r *jsRule) Evaluate(ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	value, err := r.evaluator.runtime(ctx).RunProgram(r.program)
	if err != nil {
		return nil, evalFailure("js", StageRun, r.expression, ctx.ownerLabel(), err)
	}
	return value.Export(), nil
}

// JSEvaluatorAvailable reports whether the binary was built with js_eval.
func JSEvaluatorAvailable() bool {
	return true
}

func jsEngineName(e Evaluator) string {
	if _, ok := e.(*jsEvaluator); ok {
		return "js"
	}
	return ""
}
