// Package schema defines the fixed categorical annotation schema: the
// dimensions raters answer, the allowed value set per dimension, and the
// dimension groups reannotated together in one pass.
package schema

import (
	"errors"
	"fmt"
)

// Dimension identifies one categorical annotation field.
type Dimension string

const (
	PromiseStatus        Dimension = "promise_status"
	VerificationTimeline Dimension = "verification_timeline"
	EvidenceStatus       Dimension = "evidence_status"
	EvidenceQuality      Dimension = "evidence_quality"
)

// GroupName identifies a fixed, non-overlapping partition of dimensions.
type GroupName string

const (
	GroupPromise  GroupName = "promise"
	GroupEvidence GroupName = "evidence"
)

var (
	ErrUnknownDimension = errors.New("unknown dimension")
	ErrUnknownGroup     = errors.New("unknown dimension group")
	ErrInvalidValue     = errors.New("invalid value for dimension")
)

var dimensions = []Dimension{
	PromiseStatus,
	VerificationTimeline,
	EvidenceStatus,
	EvidenceQuality,
}

var groups = map[GroupName][]Dimension{
	GroupPromise:  {PromiseStatus, VerificationTimeline},
	GroupEvidence: {EvidenceStatus, EvidenceQuality},
}

var allowedValues = map[Dimension][]string{
	PromiseStatus:        {"yes", "no"},
	VerificationTimeline: {"within_2_years", "between_2_and_5_years", "more_than_5_years", "not_applicable"},
	EvidenceStatus:       {"yes", "no"},
	EvidenceQuality:      {"clear", "not_clear", "misleading", "not_applicable"},
}

// Dimensions returns all dimensions in schema order.
func Dimensions() []Dimension {
	out := make([]Dimension, len(dimensions))
	copy(out, dimensions)
	return out
}

// Groups returns all group names in schema order.
func Groups() []GroupName {
	return []GroupName{GroupPromise, GroupEvidence}
}

// GroupDimensions returns the dimensions belonging to a group.
func GroupDimensions(name GroupName) ([]Dimension, error) {
	dims, ok := groups[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, name)
	}
	out := make([]Dimension, len(dims))
	copy(out, dims)
	return out, nil
}

// Known reports whether d is part of the schema.
func Known(d Dimension) bool {
	_, ok := allowedValues[d]
	return ok
}

// ValidValue reports whether v is an allowed answer for dimension d.
// The empty string is not a valid answer; it encodes "unanswered".
func ValidValue(d Dimension, v string) bool {
	for _, allowed := range allowedValues[d] {
		if v == allowed {
			return true
		}
	}
	return false
}

// Fields holds one rater's answer per dimension. A missing key or an
// empty string both mean the dimension is unanswered.
type Fields map[Dimension]string

// Clone returns a copy safe to mutate.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for d, v := range f {
		out[d] = v
	}
	return out
}

// Validate checks that every entry names a known dimension and carries an
// allowed value.
func (f Fields) Validate() error {
	for d, v := range f {
		if !Known(d) {
			return fmt.Errorf("%w: %q", ErrUnknownDimension, d)
		}
		if v == "" {
			continue
		}
		if !ValidValue(d, v) {
			return fmt.Errorf("%w %s: %q", ErrInvalidValue, d, v)
		}
	}
	return nil
}

// ValidateForGroup is like Validate but additionally rejects dimensions
// outside the given group.
func (f Fields) ValidateForGroup(name GroupName) error {
	dims, err := GroupDimensions(name)
	if err != nil {
		return err
	}
	inGroup := make(map[Dimension]bool, len(dims))
	for _, d := range dims {
		inGroup[d] = true
	}
	for d := range f {
		if !inGroup[d] {
			return fmt.Errorf("%w: %q is not in group %q", ErrUnknownDimension, d, name)
		}
	}
	return f.Validate()
}
