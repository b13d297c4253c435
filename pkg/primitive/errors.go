package primitive

import "fmt"

// FittingError reports that a segment could not be turned into a
// primitive. No primitive geometry exists after it is returned.
type FittingError struct {
	Segment string
	Reason  string
	Err     error
}

func (e *FittingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("primitive: cannot fit %q: %s: %v", e.Segment, e.Reason, e.Err)
	}
	return fmt.Sprintf("primitive: cannot fit %q: %s", e.Segment, e.Reason)
}

func (e *FittingError) Unwrap() error {
	return e.Err
}

// StateMismatchError reports a snapshot, point set or persisted stream
// whose shape does not match the primitive.
type StateMismatchError struct {
	Field string
	Want  string
	Got   string
}

func (e *StateMismatchError) Error() string {
	return fmt.Sprintf("primitive: state mismatch in %s: want %s, got %s", e.Field, e.Want, e.Got)
}

func mismatch(field string, want, got any) *StateMismatchError {
	return &StateMismatchError{Field: field, Want: fmt.Sprint(want), Got: fmt.Sprint(got)}
}
