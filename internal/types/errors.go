package types

import "errors"

var (
	// ErrNotFound means an expected control or piece of markup is absent
	ErrNotFound = errors.New("not found")

	// ErrTimedOut means a polled condition never held within its bound
	ErrTimedOut = errors.New("timed out")

	// ErrStructuralInvalid means a located element lacks the expected shape
	ErrStructuralInvalid = errors.New("structurally invalid")

	// ErrParseAmbiguous means a value matched no normalization rule; the
	// accompanying output is a best-effort rendering
	ErrParseAmbiguous = errors.New("ambiguous value")
)
