// Package overwrite implements the overwriting policy engine: a pure
// decision tree mapping a pair of catalogue entries (the one already in
// place and the one about to be added) to a concrete action on their
// data and on their EA/FSA set. It is grounded on
// original_source/src/libdar/crit_action.hpp, re-expressed in Go as an
// Action interface instead of a virtual-dispatch class hierarchy.
package overwrite

import (
	"github.com/edrusb/darchive/catalog"
	"github.com/edrusb/darchive/errs"
)

// DataAction is the outcome for an entry's data (file content, device
// numbers, symlink target, ...).
type DataAction int

const (
	DataUndefined DataAction = iota
	DataPreserve
	DataOverwrite
	DataPreserveMarkAlreadySaved
	DataOverwriteMarkAlreadySaved
	DataRemove
	DataAsk
)

// EAAction is the outcome for an entry's EA/FSA set.
type EAAction int

const (
	EAUndefined EAAction = iota
	EAPreserve
	EAOverwrite
	EAClear
	EAPreserveMarkAlreadySaved
	EAOverwriteMarkAlreadySaved
	EAMergePreserve
	EAMergeOverwrite
	EAAsk
)

// AskResolver is consulted whenever evaluation yields DataAsk or EAAsk;
// it must return a concrete, non-ask action of the matching kind.
type AskResolver interface {
	ResolveData(inPlace, incoming catalog.Entry) (DataAction, error)
	ResolveEA(inPlace, incoming catalog.Entry) (EAAction, error)
}

// Outcome is the result of evaluating an Action: a concrete pair of
// actions once resolved, see Resolve.
type Outcome struct {
	Data DataAction
	EA   EAAction
}

// Action is the common interface of every node in the decision tree:
// constant actions, criterion-gated branches (Testing), and left-to-right
// chains (Chain).
type Action interface {
	// evaluate fills in whatever of data/ea it can decide; either may
	// already be non-undefined on entry (a chain node composing
	// partial results from earlier links), in which case an
	// already-decided field must be left untouched.
	evaluate(inPlace, incoming catalog.Entry, data *DataAction, ea *EAAction)
}

// GetAction runs act over the pair and returns the raw outcome, which may
// still contain Undefined or Ask values; callers needing a fully
// resolved outcome should use Resolve instead.
func GetAction(act Action, inPlace, incoming catalog.Entry) Outcome {
	var o Outcome
	act.evaluate(inPlace, incoming, &o.Data, &o.EA)
	return o
}

// Resolve runs act over the pair and fully resolves it: Ask outcomes are
// dispatched to resolver, and Undefined outcomes at the end are reported
// as a KindBug error (the policy must always decide, per §4.8).
func Resolve(act Action, inPlace, incoming catalog.Entry, resolver AskResolver) (Outcome, error) {
	o := GetAction(act, inPlace, incoming)
	if o.Data == DataAsk {
		d, err := resolver.ResolveData(inPlace, incoming)
		if err != nil {
			return Outcome{}, errs.Wrap(err, "overwrite.Resolve: resolving data action")
		}
		o.Data = d
	}
	if o.EA == EAAsk {
		e, err := resolver.ResolveEA(inPlace, incoming)
		if err != nil {
			return Outcome{}, errs.Wrap(err, "overwrite.Resolve: resolving EA action")
		}
		o.EA = e
	}
	if o.Data == DataUndefined || o.Data == DataAsk {
		return Outcome{}, errs.New(errs.KindBug, "overwrite.Resolve: data action left undefined")
	}
	if o.EA == EAUndefined || o.EA == EAAsk {
		return Outcome{}, errs.New(errs.KindBug, "overwrite.Resolve: EA action left undefined")
	}
	return o, nil
}

// Constant always yields the same pair of actions, regardless of the
// entries being compared. Grounded on crit_constant_action.
type Constant struct {
	Data DataAction
	EA   EAAction
}

func (c Constant) evaluate(_, _ catalog.Entry, data *DataAction, ea *EAAction) {
	if *data == DataUndefined {
		*data = c.Data
	}
	if *ea == EAUndefined {
		*ea = c.EA
	}
}

// Testing evaluates Criterion against the pair and dispatches to GoTrue
// or GoFalse accordingly. Grounded on the `testing` class.
type Testing struct {
	Criterion Criterion
	GoTrue    Action
	GoFalse   Action
}

func (t Testing) evaluate(inPlace, incoming catalog.Entry, data *DataAction, ea *EAAction) {
	if t.Criterion.Evaluate(inPlace, incoming) {
		t.GoTrue.evaluate(inPlace, incoming, data, ea)
	} else {
		t.GoFalse.evaluate(inPlace, incoming, data, ea)
	}
}

// Chain sequences Actions left to right, stopping as soon as both the
// data and EA outcomes are no longer undefined. Grounded on crit_chain.
type Chain struct {
	sequence []Action
}

// Add appends act as the next link in the chain.
func (c *Chain) Add(act Action) { c.sequence = append(c.sequence, act) }

// Gobble appends all of other's links to c and empties other, mirroring
// crit_chain::gobe.
func (c *Chain) Gobble(other *Chain) {
	c.sequence = append(c.sequence, other.sequence...)
	other.sequence = nil
}

// Clear empties the chain.
func (c *Chain) Clear() { c.sequence = nil }

func (c *Chain) evaluate(inPlace, incoming catalog.Entry, data *DataAction, ea *EAAction) {
	for _, act := range c.sequence {
		if *data != DataUndefined && *ea != EAUndefined {
			return
		}
		act.evaluate(inPlace, incoming, data, ea)
	}
}
