package records

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrEmptyDataset is returned when a load accepts no rows at all.
var ErrEmptyDataset = eris.New("records: dataset has no valid rows")

// DataFormatError describes one malformed input row or field. A rejected
// error means the row was dropped; otherwise the field was coerced to zero.
type DataFormatError struct {
	Line     int
	Column   string
	Value    string
	Reason   string
	Rejected bool
}

func (e *DataFormatError) Error() string {
	action := "coerced to 0"
	if e.Rejected {
		action = "row dropped"
	}
	if e.Column == "" {
		return fmt.Sprintf("line %d: %s (%s)", e.Line, e.Reason, action)
	}
	return fmt.Sprintf("line %d: column %q value %q: %s (%s)", e.Line, e.Column, e.Value, e.Reason, action)
}

// LoadReport summarizes a load. Problems are collected here and surfaced
// once after the whole source has been read.
type LoadReport struct {
	Accepted int                `json:"accepted"`
	Rejected int                `json:"rejected"`
	Coerced  int                `json:"coerced"`
	Errors   []*DataFormatError `json:"-"`
}

// Err joins every collected problem into one error, or nil if there were none.
func (r *LoadReport) Err() error {
	if r == nil || len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return eris.Wrapf(errors.Join(errs...), "records: %d rejected, %d coerced", r.Rejected, r.Coerced)
}

func (r *LoadReport) add(e *DataFormatError) {
	r.Errors = append(r.Errors, e)
	if e.Rejected {
		r.Rejected++
	} else {
		r.Coerced++
	}
}
