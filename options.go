package observable

import (
	"github.com/goliatone/go-observable/pkg/activity"
)

// Option configures proxies and hosts. Options applied to a root proxy or to
// Host.Init are shared by every proxy created beneath it.
type Option func(*config)

type config struct {
	converters    *ConverterRegistry
	evaluator     Evaluator
	programCache  ProgramCache
	functions     *FunctionRegistry
	logger        EventLogger
	activityHooks activity.Hooks
	activityCfg   activity.Config
	emitter       *activity.Emitter
}

func applyOptions(opts []Option) *config {
	cfg := &config{}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.converters == nil {
		cfg.converters = DefaultConverters()
	}
	if cfg.logger == nil {
		cfg.logger = noopEventLogger{}
	}
	if len(cfg.activityHooks) > 0 {
		activityCfg := cfg.activityCfg
		activityCfg.Enabled = true
		cfg.emitter = activity.NewEmitter(cfg.activityHooks, activityCfg)
	}
	return cfg
}

func defaultConfig() *config {
	return applyOptions(nil)
}

// WithConverters replaces the converter registry used for coercion.
func WithConverters(registry *ConverterRegistry) Option {
	return func(cfg *config) {
		if registry == nil {
			return
		}
		cfg.converters = registry
	}
}

// WithEvaluator configures the evaluator used by Evaluate, expression rules
// and expression predicates. The expr evaluator is used when none is set.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *config) {
		cfg.evaluator = e
	}
}

// WithProgramCache registers a program cache for the default evaluator.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *config) {
		cfg.programCache = cache
	}
}

// WithFunctionRegistry exposes registry functions to the default evaluator.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *config) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for the default evaluator.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *config) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}

func (cfg *config) resolveEvaluator() Evaluator {
	if cfg.evaluator != nil {
		return cfg.evaluator
	}
	var exprOpts []ExprEvaluatorOption
	if cfg.programCache != nil {
		exprOpts = append(exprOpts, ExprWithProgramCache(cfg.programCache))
	}
	if cfg.functions != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(cfg.functions))
	}
	cfg.evaluator = NewExprEvaluator(exprOpts...)
	return cfg.evaluator
}
