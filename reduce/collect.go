package reduce

import (
	"log"
)

const debugCollection = false

// FunctionRecord is a function whose body is exactly one return statement with one non-void
// result expression.
type FunctionRecord struct {
	// Func is the declaration the record was built from.
	Func FuncDecl
	// Return is the handle of the sole returned expression.
	Return NodeID
	// ReturnRange is invalid when the expression range could not be resolved.
	ReturnRange Range
	// Refs lists the parameter references inside the return expression in source order.
	Refs []ParmReference
}

// ParmReference is an occurrence of a formal parameter inside a return expression.
type ParmReference struct {
	Node NodeID `msgpack:"-" json:"-"`
	// Param is the ordinal of the referenced parameter.
	Param int `msgpack:"p" json:"param"`
	// Offset is relative to the start of the return expression, -1 when unresolved.
	Offset int `msgpack:"o" json:"offset"`
	// Length is the byte length of the reference text.
	Length int `msgpack:"l" json:"length"`
}

// CallSite is one call expression of the unit.
type CallSite struct {
	CallExpr
}

// Conflict records a function definition ignored because an earlier definition of the same
// identity was already collected.
type Conflict struct {
	Ident string
	Node  NodeID
}

// Facts is the result of the collection traversal. It is owned by a single pass run and read
// only once built.
type Facts struct {
	// Functions holds the eligible single-return functions by identity.
	Functions map[string]*FunctionRecord
	// Calls holds every call expression in discovery order.
	Calls []CallSite
	// Conflicts lists redefinitions excluded from candidacy.
	Conflicts []Conflict
}

// Collect traverses the unit once, recording eligible functions and every call expression.
func Collect(u *Unit) *Facts {
	cv := &collectionVisitor{
		unit: u,
		facts: &Facts{
			Functions: make(map[string]*FunctionRecord),
		},
		defined: make(map[string]bool),
	}
	u.Walk(cv)
	return cv.facts
}

type collectionVisitor struct {
	unit    *Unit
	facts   *Facts
	defined map[string]bool // identities for which a body has been seen
}

func (cv *collectionVisitor) VisitFunc(fn FuncDecl) {
	if !fn.HasBody {
		return // prototypes carry nothing to substitute
	} else if cv.defined[fn.Ident] {
		cv.facts.Conflicts = append(cv.facts.Conflicts, Conflict{Ident: fn.Ident, Node: fn.Node})
		log.Printf("%sConflicting definition of %s ignored in %s", ErrorLogPrefix, fn.Name, cv.unit.Filename())
		return
	}
	cv.defined[fn.Ident] = true

	ret, ok := singleReturn(fn)
	if !ok {
		return
	}
	record := &FunctionRecord{Func: fn, Return: ret}
	retRange, err := cv.unit.Range(ret)
	if err != nil {
		retRange = invalidRange
		if debugCollection {
			log.Printf("collect: %s return expression unresolved: %v", fn.Name, err)
		}
	}
	record.ReturnRange = retRange

	for _, id := range cv.unit.Idents(ret) {
		param := paramIndex(fn.Params, id.Decl)
		if param < 0 {
			continue
		}
		ref := ParmReference{Node: id.Node, Param: param, Offset: -1, Length: id.Range.Len()}
		if retRange.Start >= 0 && id.Range.Start >= retRange.Start && id.Range.End <= retRange.End {
			ref.Offset = id.Range.Start - retRange.Start
		}
		record.Refs = append(record.Refs, ref)
	}
	cv.facts.Functions[fn.Ident] = record
	if debugCollection {
		log.Printf("collect: %s eligible with %d parameter references", fn.Name, len(record.Refs))
	}
}

func (cv *collectionVisitor) VisitCall(call CallExpr) {
	cv.facts.Calls = append(cv.facts.Calls, CallSite{CallExpr: call})
}

// singleReturn returns the result expression if the body is exactly one return statement
// producing one value.
func singleReturn(fn FuncDecl) (NodeID, bool) {
	if fn.Void || len(fn.Body) != 1 {
		return NoNode, false
	}
	stmt := fn.Body[0]
	if stmt.Kind != StmtReturn || len(stmt.Results) != 1 {
		return NoNode, false
	}
	return stmt.Results[0], true
}

func paramIndex(params []Param, decl NodeID) int {
	if decl == NoNode {
		return -1
	}
	for i, p := range params {
		if p.Node == decl {
			return i
		}
	}
	return -1
}
