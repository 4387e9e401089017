package manifold

import "fmt"

// NotImplementedError reports a contract operation invoked on a manifold that
// does not support it, or with point/tangent types the manifold does not
// understand. Carries the operation name and the concrete types involved so
// the failure names its cause instead of producing wrong numbers.
type NotImplementedError struct {
	Op       string // contract operation, e.g. "Exp"
	Manifold string // manifold name
	Got      string // concrete type(s) received
}

func (e *NotImplementedError) Error() string {
	if e.Got == "" {
		return fmt.Sprintf("manifold: %s not implemented for %s", e.Op, e.Manifold)
	}
	return fmt.Sprintf("manifold: %s on %s not implemented for %s", e.Op, e.Manifold, e.Got)
}

func (e *NotImplementedError) Is(target error) bool {
	_, ok := target.(*NotImplementedError)
	return ok
}

// BaseMismatchError reports two tangent vectors combined (sum, inner product)
// whose explicit base points differ, or where only one side carries a base.
type BaseMismatchError struct {
	Op string
}

func (e *BaseMismatchError) Error() string {
	return fmt.Sprintf("manifold: %s: tangent vectors have mismatched base points", e.Op)
}

func (e *BaseMismatchError) Is(target error) bool {
	_, ok := target.(*BaseMismatchError)
	return ok
}

// ShapeMismatchError reports array-valued manifold operations invoked on
// arrays of differing shape.
type ShapeMismatchError struct {
	Op   string
	Want []int
	Got  []int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("manifold: %s: shape mismatch (want %v, got %v)", e.Op, e.Want, e.Got)
}

func (e *ShapeMismatchError) Is(target error) bool {
	_, ok := target.(*ShapeMismatchError)
	return ok
}
