package observable

import (
	"reflect"
	"time"
)

// RuleContext carries inputs needed when evaluating an expression.
type RuleContext struct {
	// Target is the object whose members become top-level identifiers.
	Target any
	// Vars are bound after the target members and win on conflicts.
	Vars  map[string]any
	Now   *time.Time
	Owner string
}

func (ctx RuleContext) withDefaults() RuleContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Vars == nil {
		ctx.Vars = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaults()
	return *ctx.Now
}

func (ctx RuleContext) ownerLabel() string {
	if ctx.Owner != "" {
		return ctx.Owner
	}
	if ctx.Target != nil {
		return reflect.TypeOf(unwrapProxy(ctx.Target)).String()
	}
	return "unknown"
}

// bindings flattens the target's readable members and the vars into one
// environment. Proxies are unwrapped so engines see the raw values.
func (ctx RuleContext) bindings() map[string]any {
	env := map[string]any{}
	switch target := unwrapProxy(ctx.Target).(type) {
	case nil:
	case map[string]any:
		for key, value := range target {
			env[key] = unwrapProxy(value)
		}
	default:
		proxy := newValueProxy(reflect.ValueOf(target), defaultConfig())
		members := isStringMap(proxy.Type())
		for name := range proxy.MemberNames() {
			if _, ok := exportedField(proxy.Type(), name); !ok && !members {
				if _, ok := getterMethod(proxy.Type(), name); !ok {
					continue
				}
			}
			value, err := proxy.Get(name)
			if err != nil {
				continue
			}
			env[name] = unwrapProxy(value)
		}
	}
	for key, value := range ctx.Vars {
		env[key] = unwrapProxy(value)
	}
	return env
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}
