//go:build !js_eval

package observable

// NewJSEvaluator returns nil unless the binary is built with the js_eval
// tag. Callers check JSEvaluatorAvailable first.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = applyJSEvaluatorOptions(opts)
	return nil
}

// JSEvaluatorAvailable reports whether the binary was built with js_eval.
func JSEvaluatorAvailable() bool {
	return false
}

func jsEngineName(Evaluator) string {
	return ""
}
