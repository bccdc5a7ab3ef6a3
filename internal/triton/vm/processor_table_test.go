package vm

import (
	"testing"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/xfield"

	"triton/internal/triton/circuit"
)

// evalRows evaluates every transition-constraint root against a pair of
// adjacent rows, returning the zero/nonzero verdict for each.
func evalRows(t *testing.T, roots []*circuit.Node, curr, next []field.Element) []xfield.XFieldElement {
	t.Helper()

	base := func(ii circuit.InputIndicator) xfield.XFieldElement {
		switch ind := ii.(type) {
		case circuit.DualRowIndicator:
			if ind.Next {
				return next[ind.Column].Lift()
			}
			return curr[ind.Column].Lift()
		case circuit.SingleRowIndicator:
			return curr[ind.Column].Lift()
		default:
			t.Fatalf("unexpected indicator %T", ii)
			return field.Zero.Lift()
		}
	}
	ext := func(circuit.InputIndicator) xfield.XFieldElement { return field.Zero.Lift() }
	challenges := func(int) xfield.XFieldElement { return field.Zero.Lift() }

	out := make([]xfield.XFieldElement, len(roots))
	for i, root := range roots {
		out[i] = root.Evaluate(base, ext, challenges)
	}
	return out
}

// processorRow builds a 30-column processor main-row (the order returned by
// GetMainColumns) with every column zeroed except the ones the caller sets.
func processorRow(set map[int]field.Element) []field.Element {
	row := make([]field.Element, 30)
	for i := range row {
		row[i] = field.Zero
	}
	for col, v := range set {
		row[col] = v
	}
	return row
}

func instructionBits(op Instruction) map[int]field.Element {
	bits := make(map[int]field.Element)
	cols := []int{procColIB0, procColIB1, procColIB2, procColIB3, procColIB4, procColIB5, procColIB6}
	for i, col := range cols {
		bits[col] = field.New(uint64(op.GetInstructionBit(InstructionBit(i))))
	}
	return bits
}

func allZero(t *testing.T, values []xfield.XFieldElement) {
	t.Helper()
	for i, v := range values {
		if !v.IsZero() {
			t.Errorf("constraint %d did not vanish: %v", i, v)
		}
	}
}

func anyNonZero(t *testing.T, values []xfield.XFieldElement) bool {
	t.Helper()
	for _, v := range values {
		if !v.IsZero() {
			return true
		}
	}
	return false
}

func TestProcessorTransitionAdd(t *testing.T) {
	pt := NewProcessorTable()
	roots, err := pt.CreateTransitionConstraints()
	if err != nil {
		t.Fatalf("CreateTransitionConstraints: %v", err)
	}

	currSet := map[int]field.Element{
		procColCLK: field.New(3),
		procColIP:  field.New(10),
		procColST0: field.New(7),
		procColST1: field.New(5),
	}
	for col, v := range instructionBits(Add) {
		currSet[col] = v
	}
	currSet[procColCI] = field.New(uint64(Add))
	curr := processorRow(currSet)

	nextSet := map[int]field.Element{
		procColCLK: field.New(4),
		procColIP:  field.New(11),
		procColST0: field.New(12), // 7 + 5
		procColST1: field.Zero,    // ST2 (zero) shifted into ST1
	}
	next := processorRow(nextSet)

	allZero(t, evalRows(t, roots, curr, next))

	// Tamper with the claimed sum; the Add-gated constraint must now fail.
	badNext := processorRow(mergeSets(nextSet, map[int]field.Element{procColST0: field.New(99)}))
	if !anyNonZero(t, evalRows(t, roots, curr, badNext)) {
		t.Fatal("expected a nonzero constraint for an incorrect add result")
	}
}

func TestProcessorTransitionCallAndReturn(t *testing.T) {
	pt := NewProcessorTable()
	roots, err := pt.CreateTransitionConstraints()
	if err != nil {
		t.Fatalf("CreateTransitionConstraints: %v", err)
	}

	currSet := map[int]field.Element{
		procColCLK: field.New(0),
		procColIP:  field.New(4),
		procColNIA: field.New(20), // call target
		procColJSP: field.New(0),
	}
	for col, v := range instructionBits(Call) {
		currSet[col] = v
	}
	currSet[procColCI] = field.New(uint64(Call))
	curr := processorRow(currSet)

	nextSet := map[int]field.Element{
		procColCLK: field.New(1),
		procColIP:  field.New(20),
		procColJSP: field.New(1),
		procColJSO: field.New(6), // return address: 4 + 2
		procColJSD: field.New(20),
	}
	next := processorRow(nextSet)

	allZero(t, evalRows(t, roots, curr, next))

	// A return from that state must restore IP to JSO and decrement JSP.
	returnCurrSet := map[int]field.Element{
		procColCLK: field.New(1),
		procColIP:  field.New(20),
		procColJSP: field.New(1),
		procColJSO: field.New(6),
		procColJSD: field.New(20),
	}
	for col, v := range instructionBits(Return) {
		returnCurrSet[col] = v
	}
	returnCurrSet[procColCI] = field.New(uint64(Return))
	returnCurr := processorRow(returnCurrSet)

	returnNextSet := map[int]field.Element{
		procColCLK: field.New(2),
		procColIP:  field.New(6),
		procColJSP: field.Zero,
		procColJSO: field.New(6),
		procColJSD: field.New(20),
	}
	returnNext := processorRow(returnNextSet)

	allZero(t, evalRows(t, roots, returnCurr, returnNext))
}

func mergeSets(base map[int]field.Element, overrides map[int]field.Element) map[int]field.Element {
	out := make(map[int]field.Element, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
