package reduce

import (
	"errors"
	"fmt"
	"log"
)

const debugAnalysis = false

var (
	// ErrUnmatchedArgumentCount disqualifies a call whose argument count differs from the
	// callee's parameter count. It never leaves the analysis.
	ErrUnmatchedArgumentCount = errors.New("unmatched argument count")
	// ErrVariadicMismatch disqualifies a call that spreads a slice into a non-variadic callee,
	// or passes individual values to a variadic one.
	ErrVariadicMismatch = errors.New("variadic argument mismatch")
	// ErrDeferredCall disqualifies a call that must remain a call, such as a go or defer operand.
	ErrDeferredCall = errors.New("call cannot be replaced by an expression")
)

// DisqualifyReason names why a call site did not become a candidate.
type DisqualifyReason string

const (
	ReasonNotEligible      DisqualifyReason = "not_eligible"
	ReasonArgumentCount    DisqualifyReason = "argument_count"
	ReasonVariadicMismatch DisqualifyReason = "variadic_mismatch"
	ReasonDeferred         DisqualifyReason = "deferred"
)

func disqualifyReason(err error) DisqualifyReason {
	switch {
	case errors.Is(err, ErrUnmatchedArgumentCount):
		return ReasonArgumentCount
	case errors.Is(err, ErrVariadicMismatch):
		return ReasonVariadicMismatch
	case errors.Is(err, ErrDeferredCall):
		return ReasonDeferred
	default:
		return ReasonNotEligible
	}
}

// Candidate is a structurally valid call site paired with its eligible callee. It only holds
// byte ranges so it can be applied to the source without the parsed unit.
type Candidate struct {
	// Callee is the identity of the called function.
	Callee string `msgpack:"c" json:"callee"`
	// Call is the full range of the call expression, including arguments and parentheses.
	Call Range `msgpack:"r" json:"call"`
	// Args are the ranges of the actual arguments in positional order.
	Args []Range `msgpack:"a" json:"args"`
	// Return is the range of the callee's return expression.
	Return Range `msgpack:"e" json:"return"`
	// Refs are the parameter references within the return expression.
	Refs []ParmReference `msgpack:"p" json:"refs"`
	// Unresolved is set when a range could not be resolved, any rewrite of it fails.
	Unresolved bool `msgpack:"u,omitempty" json:"unresolved,omitempty"`
}

// Result is the analysis outcome for one unit.
type Result struct {
	Filename string `msgpack:"f" json:"filename"`
	Language string `msgpack:"l" json:"language"`
	// Functions is the number of eligible single-return functions.
	Functions int `msgpack:"n" json:"functions"`
	// Calls is the number of call expressions seen.
	Calls int `msgpack:"k" json:"calls"`
	// Conflicts lists identities with more than one definition.
	Conflicts []string `msgpack:"x,omitempty" json:"conflicts,omitempty"`
	// Candidates is indexed from zero in discovery order.
	Candidates []Candidate `msgpack:"c" json:"candidates"`
	// Disqualified counts the call sites filtered by reason.
	Disqualified map[DisqualifyReason]int `msgpack:"d,omitempty" json:"disqualified,omitempty"`
}

// Analyze cross-references the collected calls against the eligible functions. Invalid pairs
// are filtered silently; valid pairs are resolved into candidates in discovery order.
func Analyze(u *Unit, facts *Facts) *Result {
	result := &Result{
		Filename:     u.Filename(),
		Language:     u.Language(),
		Functions:    len(facts.Functions),
		Calls:        len(facts.Calls),
		Disqualified: make(map[DisqualifyReason]int),
	}
	for _, c := range facts.Conflicts {
		result.Conflicts = append(result.Conflicts, c.Ident)
	}

	for _, call := range facts.Calls {
		fn := facts.Functions[call.Callee]
		if err := matchCall(call, fn); err != nil {
			result.Disqualified[disqualifyReason(err)]++
			if debugAnalysis && fn != nil {
				log.Printf("analysis: call to %s disqualified: %v", fn.Func.Name, err)
			}
			continue
		}
		result.Candidates = append(result.Candidates, resolveCandidate(u, call, fn))
	}
	return result
}

// matchCall checks if the call can be substituted by the function's return expression.
func matchCall(call CallSite, fn *FunctionRecord) error {
	if call.Callee == "" || fn == nil {
		return errors.New("callee has no eligible definition")
	} else if call.Deferred {
		return ErrDeferredCall
	} else if len(call.Args) != len(fn.Func.Params) {
		return fmt.Errorf("%w: %s takes %d, got %d",
			ErrUnmatchedArgumentCount, fn.Func.Name, len(fn.Func.Params), len(call.Args))
	} else if call.Spread != fn.Func.Variadic {
		return fmt.Errorf("%w: %s", ErrVariadicMismatch, fn.Func.Name)
	}
	return nil
}

func resolveCandidate(u *Unit, call CallSite, fn *FunctionRecord) Candidate {
	c := Candidate{
		Callee: call.Callee,
		Return: fn.ReturnRange,
		Refs:   fn.Refs,
	}
	var err error
	if c.Call, err = u.Range(call.Node); err != nil {
		c.Unresolved = true
	}
	c.Args = make([]Range, len(call.Args))
	for i, arg := range call.Args {
		if c.Args[i], err = u.Range(arg); err != nil {
			c.Unresolved = true
		}
	}
	if fn.ReturnRange == invalidRange {
		c.Unresolved = true
	}
	for _, ref := range fn.Refs {
		if ref.Offset < 0 {
			c.Unresolved = true
		}
	}
	return c
}
