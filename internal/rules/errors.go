package rules

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateName is matched by every *DuplicateNameError.
	ErrDuplicateName = errors.New("duplicate rule name")
	// ErrInvalidPattern is matched by every *InvalidPatternError.
	ErrInvalidPattern = errors.New("invalid rule pattern")
	// ErrEmptyName is returned for rules without a name.
	ErrEmptyName = errors.New("rule name is empty")

	errEmptyPattern = errors.New("pattern is empty")
)

// DuplicateNameError reports an Add for a name already in the set.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("ignore rule with name '%s' already exists", e.Name)
}

func (e *DuplicateNameError) Is(target error) bool {
	return target == ErrDuplicateName
}

// InvalidPatternError reports a pattern that does not compile.
type InvalidPatternError struct {
	Name    string
	Pattern string
	Err     error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("rule '%s': invalid pattern %q: %v", e.Name, e.Pattern, e.Err)
}

func (e *InvalidPatternError) Is(target error) bool {
	return target == ErrInvalidPattern
}

func (e *InvalidPatternError) Unwrap() error {
	return e.Err
}
