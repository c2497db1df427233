// Package tle holds the two-line element set model shared by the pass-window
// service and the refresher, with the line-format checks both rely on.
package tle

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MinLineLength is the shortest accepted element line. Standard lines are
// exactly 69 characters; anything longer is tolerated.
const MinLineLength = 69

// ErrInvalidElementSet is returned when text does not contain a usable pair
// of element lines.
var ErrInvalidElementSet = errors.New("invalid element set")

// ElementSet is a satellite's two-line element set.
type ElementSet struct {
	Line1 string
	Line2 string
}

// String returns the two lines joined by a newline, the form stored in snapshots.
func (s ElementSet) String() string {
	return s.Line1 + "\n" + s.Line2
}

// Epoch parses the epoch embedded in line 1.
func (s ElementSet) Epoch() (time.Time, error) {
	return ParseEpoch(s.Line1)
}

// Validate checks the line-format invariant: both lines present, each at
// least MinLineLength characters, prefixed "1 " and "2 " respectively.
func (s ElementSet) Validate() error {
	if s.Line1 == "" || s.Line2 == "" {
		return fmt.Errorf("%w: both lines are required", ErrInvalidElementSet)
	}
	if !strings.HasPrefix(s.Line1, "1 ") {
		return fmt.Errorf("%w: line1 must start with \"1 \"", ErrInvalidElementSet)
	}
	if !strings.HasPrefix(s.Line2, "2 ") {
		return fmt.Errorf("%w: line2 must start with \"2 \"", ErrInvalidElementSet)
	}
	if len(s.Line1) < MinLineLength {
		return fmt.Errorf("%w: line1 length %d, expected at least %d", ErrInvalidElementSet, len(s.Line1), MinLineLength)
	}
	if len(s.Line2) < MinLineLength {
		return fmt.Errorf("%w: line2 length %d, expected at least %d", ErrInvalidElementSet, len(s.Line2), MinLineLength)
	}
	return nil
}

// Extract finds an element set in free-form text such as a catalog response.
// The first line starting with "1 " and the first line starting with "2 " are
// taken independently of each other; they need not be adjacent. A leading
// name line or trailing noise is ignored.
func Extract(text string) (ElementSet, error) {
	var s ElementSet
	for _, line := range Lines(text) {
		if s.Line1 == "" && strings.HasPrefix(line, "1 ") {
			s.Line1 = line
		}
		if s.Line2 == "" && strings.HasPrefix(line, "2 ") {
			s.Line2 = line
		}
		if s.Line1 != "" && s.Line2 != "" {
			break
		}
	}
	if err := s.Validate(); err != nil {
		return ElementSet{}, err
	}
	return s, nil
}

// Lines splits text into trimmed, non-empty lines.
func Lines(text string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
