package observable

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyExpression is returned for an empty expression.
var ErrEmptyExpression = errors.New("observable: empty expression")

// Stages recorded on EvaluationError.
const (
	StageParse   = "parse"
	StageCompile = "compile"
	StageRun     = "run"
)

// EvaluationError reports a failed expression with the engine, the stage
// that failed and the owner type it ran for.
type EvaluationError struct {
	Engine string
	Stage  string
	Expr   string
	Owner  string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("observable: ")
	b.WriteString(e.Engine)
	if e.Stage != "" {
		b.WriteString(" " + e.Stage)
	}
	fmt.Fprintf(&b, " %q", e.Expr)
	if e.Owner != "" {
		b.WriteString(" on " + e.Owner)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// evalFailure wraps err in an EvaluationError. When err already carries one,
// its empty fields are filled in and err is returned as is.
func evalFailure(engine, stage, expr, owner string, err error) error {
	if err == nil {
		return nil
	}
	var existing *EvaluationError
	if errors.As(err, &existing) {
		fillEmpty(&existing.Engine, engine)
		fillEmpty(&existing.Stage, stage)
		fillEmpty(&existing.Expr, expr)
		fillEmpty(&existing.Owner, owner)
		return err
	}
	return &EvaluationError{Engine: engine, Stage: stage, Expr: expr, Owner: owner, Err: err}
}

func fillEmpty(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
