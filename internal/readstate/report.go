package readstate

import (
	"errors"

	"github.com/nhle/notifeed/internal/model"
)

// Outcome is the result of one source's part of a mutation.
type Outcome struct {
	Source model.Source
	// Keys are the entries flipped optimistically. After a failure they
	// have been reverted.
	Keys []model.Key
	// Skipped is set when there was nothing to send to the source.
	Skipped bool
	Err     error
}

// OK reports whether the source call succeeded or was not needed.
func (o Outcome) OK() bool { return o.Err == nil }

// Report holds one Outcome per source touched by a mutation, in canonical
// source order. It is never collapsed into a single success flag.
type Report struct {
	Op       model.StepOp
	Outcomes []Outcome
}

// For returns the outcome for src.
func (r Report) For(src model.Source) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Source == src {
			return o, true
		}
	}
	return Outcome{}, false
}

// OK reports whether every source succeeded.
func (r Report) OK() bool {
	for _, o := range r.Outcomes {
		if !o.OK() {
			return false
		}
	}
	return true
}

// Partial reports whether some sources succeeded and others failed.
func (r Report) Partial() bool {
	var ok, failed bool
	for _, o := range r.Outcomes {
		if o.OK() {
			ok = true
		} else {
			failed = true
		}
	}
	return ok && failed
}

// Failed returns the sources whose call failed.
func (r Report) Failed() []model.Source {
	var out []model.Source
	for _, o := range r.Outcomes {
		if !o.OK() {
			out = append(out, o.Source)
		}
	}
	return out
}

// Err joins the per-source errors, or returns nil when all succeeded.
func (r Report) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}
