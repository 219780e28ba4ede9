package survey

import (
	"errors"
	"fmt"
)

// Sentinel errors for matching with errors.Is
var (
	ErrDuplicateLabel          = errors.New("duplicate label")
	ErrInsufficientData        = errors.New("insufficient data")
	ErrDegenerateConfiguration = errors.New("degenerate configuration")
)

// DuplicateLabelError is returned when a label appears twice within one collection
type DuplicateLabelError struct {
	Label      string
	Collection string // "real" or "ideal"
}

func (e *DuplicateLabelError) Error() string {
	return fmt.Sprintf("duplicate label %q in %s points", e.Label, e.Collection)
}

func (e *DuplicateLabelError) Is(target error) bool {
	return target == ErrDuplicateLabel
}

// InsufficientDataError is returned when there are fewer pairs than a stage needs
type InsufficientDataError struct {
	Stage string
	Have  int
	Need  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data: have %d correspondence pairs, need at least %d", e.Stage, e.Have, e.Need)
}

func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// DegenerateConfigurationError is returned when the rotation is underdetermined
type DegenerateConfigurationError struct {
	Stage  string
	Reason string
}

func (e *DegenerateConfigurationError) Error() string {
	return fmt.Sprintf("%s: degenerate configuration: %s", e.Stage, e.Reason)
}

func (e *DegenerateConfigurationError) Is(target error) bool {
	return target == ErrDegenerateConfiguration
}

// UnmatchedLabelWarning records a real point with no ideal label. It is data, not an error.
type UnmatchedLabelWarning struct {
	Label string `json:"label"`
	Index int    `json:"index"` // position in the real input
}

func (w UnmatchedLabelWarning) String() string {
	return fmt.Sprintf("real point %q (#%d) has no ideal counterpart", w.Label, w.Index)
}
