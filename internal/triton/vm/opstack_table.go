// Package vm implements the Operational Stack Table
package vm

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"triton/internal/triton/circuit"
)

const (
	opstackColCLK = iota
	opstackColIB1ShrinkStack
	opstackColStackPointer
	opstackColFirstUnderflowElement
)

// OpStackTableImpl implements the Operational Stack Table
// This table tracks stack underflow and ensures stack consistency via permutation arguments
//
// The operational stack table records all stack operations that go beyond the
// 16 on-chip registers. When the stack depth exceeds 16, values are recorded here.
//
// Main purpose: Prove consistency between processor stack operations and actual stack state
type OpStackTableImpl struct {
	// Main columns (BField elements)
	// These track the underflow stack (elements beyond the 16 registers)
	clk                   []field.Element // Clock cycle
	ib1ShrinkStack        []field.Element // Instruction bit: 0=grow, 1=shrink, 2=padding
	stackPointer          []field.Element // Current stack pointer (>= 16)
	firstUnderflowElement []field.Element // Value of first underflow element

	// Auxiliary columns (XField elements for cross-table arguments)
	runningProductPermArg []field.Element // Running product for permutation argument with Processor
	clockJumpDiffLogDeriv []field.Element // Log derivative for clock jump differences

	height       int
	paddedHeight int
}

// OpStack padding indicator value (stored in ib1ShrinkStack for padding rows)
const OpStackPaddingValue = 2

// NewOpStackTable creates a new Operational Stack Table
func NewOpStackTable() *OpStackTableImpl {
	return &OpStackTableImpl{
		clk:                   make([]field.Element, 0),
		ib1ShrinkStack:        make([]field.Element, 0),
		stackPointer:          make([]field.Element, 0),
		firstUnderflowElement: make([]field.Element, 0),
		runningProductPermArg: make([]field.Element, 0),
		clockJumpDiffLogDeriv: make([]field.Element, 0),
		height:                0,
		paddedHeight:          0,
	}
}

// GetID returns the table's identifier
func (ost *OpStackTableImpl) GetID() TableID {
	return OperationalStackTable
}

// GetHeight returns the current height
func (ost *OpStackTableImpl) GetHeight() int {
	return ost.height
}

// GetPaddedHeight returns the padded height
func (ost *OpStackTableImpl) GetPaddedHeight() int {
	return ost.paddedHeight
}

// GetMainColumns returns all main columns
func (ost *OpStackTableImpl) GetMainColumns() [][]field.Element {
	return [][]field.Element{
		ost.clk,
		ost.ib1ShrinkStack,
		ost.stackPointer,
		ost.firstUnderflowElement,
	}
}

// GetAuxiliaryColumns returns auxiliary columns
func (ost *OpStackTableImpl) GetAuxiliaryColumns() [][]field.Element {
	return [][]field.Element{
		ost.runningProductPermArg,
		ost.clockJumpDiffLogDeriv,
	}
}

// AddRow adds a new row to the operational stack table
func (ost *OpStackTableImpl) AddRow(entry *OpStackEntry) error {
	if entry == nil {
		return fmt.Errorf("opstack entry cannot be nil")
	}

	// Validation notes:
	// - Stack pointer must be >= 16 (enforced by caller and range check lookups)
	// - ib1ShrinkStack must be in {0, 1, 2} (enforced by AIR constraints)
	// - These invariants are proven via the AIR constraints and lookup arguments

	// Add main column values
	ost.clk = append(ost.clk, entry.Clock)
	ost.ib1ShrinkStack = append(ost.ib1ShrinkStack, entry.IB1ShrinkStack)
	ost.stackPointer = append(ost.stackPointer, entry.StackPointer)
	ost.firstUnderflowElement = append(ost.firstUnderflowElement, entry.FirstUnderflowElement)

	// Initialize auxiliary columns (computed during proving)
	ost.runningProductPermArg = append(ost.runningProductPermArg, field.Zero)
	ost.clockJumpDiffLogDeriv = append(ost.clockJumpDiffLogDeriv, field.Zero)

	ost.height++
	return nil
}

// Pad pads the table to the target height with padding rows
func (ost *OpStackTableImpl) Pad(targetHeight int) error {
	if targetHeight < ost.height {
		return fmt.Errorf("target height %d is less than current height %d", targetHeight, ost.height)
	}

	if ost.height == 0 {
		return fmt.Errorf("cannot pad empty table")
	}

	// Padding rows have ib1ShrinkStack = 2 (PADDING_VALUE)
	paddingIndicator := field.New(uint64(OpStackPaddingValue))

	// Use last row values for other fields
	lastIdx := ost.height - 1
	paddingRows := targetHeight - ost.height

	for i := 0; i < paddingRows; i++ {
		ost.clk = append(ost.clk, ost.clk[lastIdx])
		ost.ib1ShrinkStack = append(ost.ib1ShrinkStack, paddingIndicator)
		ost.stackPointer = append(ost.stackPointer, ost.stackPointer[lastIdx])
		ost.firstUnderflowElement = append(ost.firstUnderflowElement, ost.firstUnderflowElement[lastIdx])
		ost.runningProductPermArg = append(ost.runningProductPermArg, ost.runningProductPermArg[lastIdx])
		ost.clockJumpDiffLogDeriv = append(ost.clockJumpDiffLogDeriv, ost.clockJumpDiffLogDeriv[lastIdx])
	}

	ost.paddedHeight = targetHeight
	return nil
}

// CreateInitialConstraints generates constraints for the first row: the
// stack pointer starts at 16, the on-chip register boundary.
func (ost *OpStackTableImpl) CreateInitialConstraints() ([]*circuit.Node, error) {
	r := newCircuitRow()
	roots := []*circuit.Node{
		r.b.Sub(r.base(opstackColStackPointer), r.bconst(16)),
	}
	return r.finish(roots...), nil
}

// CreateConsistencyConstraints generates constraints within each row:
// ib1ShrinkStack is one of {0 (grow), 1 (shrink), 2 (padding)}.
func (ost *OpStackTableImpl) CreateConsistencyConstraints() ([]*circuit.Node, error) {
	r := newCircuitRow()

	ib1 := r.base(opstackColIB1ShrinkStack)
	roots := []*circuit.Node{
		r.b.Mul(ib1, r.b.Mul(r.b.Sub(ib1, r.one()), r.b.Sub(ib1, r.bconst(uint64(OpStackPaddingValue))))),
	}
	return r.finish(roots...), nil
}

// CreateTransitionConstraints generates constraints between consecutive
// rows: the stack pointer either grows by one or shrinks by one, and a
// padding row can only be followed by another padding row.
func (ost *OpStackTableImpl) CreateTransitionConstraints() ([]*circuit.Node, error) {
	r := newCircuitRow()

	sp, spNext := r.baseCurr(opstackColStackPointer), r.baseNext(opstackColStackPointer)
	spDelta := r.b.Sub(spNext, sp)
	spMovesByOne := r.b.Mul(r.b.Sub(spDelta, r.one()), r.b.Add(spDelta, r.one()))

	ib1, ib1Next := r.baseCurr(opstackColIB1ShrinkStack), r.baseNext(opstackColIB1ShrinkStack)
	padding := r.bconst(uint64(OpStackPaddingValue))
	isPaddingRow := r.b.Mul(ib1, r.b.Sub(ib1, r.one()))
	paddingIsSticky := r.b.Mul(isPaddingRow, r.b.Sub(ib1Next, padding))

	roots := []*circuit.Node{spMovesByOne, paddingIsSticky}
	return r.finish(roots...), nil
}

// CreateTerminalConstraints generates constraints for the last row. None
// are specific to this table: the permutation argument with the processor
// table is what ties its contents to the rest of the trace.
func (ost *OpStackTableImpl) CreateTerminalConstraints() ([]*circuit.Node, error) {
	return nil, nil
}

// UpdateRunningProductPermArg updates the running product for permutation argument
// This is called during proof generation with actual Fiat-Shamir challenges
func (ost *OpStackTableImpl) UpdateRunningProductPermArg(challenges map[string]field.Element) error {
	if ost.height == 0 {
		return fmt.Errorf("cannot update running product on empty table")
	}

	// Extract challenges
	indeterminate, ok := challenges["op_stack_indeterminate"]
	if !ok {
		return fmt.Errorf("missing op_stack_indeterminate challenge")
	}
	clkWeight, ok := challenges["op_stack_clk_weight"]
	if !ok {
		return fmt.Errorf("missing op_stack_clk_weight challenge")
	}
	ib1Weight, ok := challenges["op_stack_ib1_weight"]
	if !ok {
		return fmt.Errorf("missing op_stack_ib1_weight challenge")
	}
	pointerWeight, ok := challenges["op_stack_pointer_weight"]
	if !ok {
		return fmt.Errorf("missing op_stack_pointer_weight challenge")
	}
	elementWeight, ok := challenges["op_stack_element_weight"]
	if !ok {
		return fmt.Errorf("missing op_stack_element_weight challenge")
	}

	// Initialize running product
	paddingIndicator := field.New(uint64(OpStackPaddingValue))

	// First row handling
	if !ost.ib1ShrinkStack[0].Equal(paddingIndicator) {
		// Compress first row
		compressedRow := clkWeight.Mul(ost.clk[0]).
			Add(ib1Weight.Mul(ost.ib1ShrinkStack[0])).
			Add(pointerWeight.Mul(ost.stackPointer[0])).
			Add(elementWeight.Mul(ost.firstUnderflowElement[0]))

		// rppa[0] = indeterminate - compressed_row
		ost.runningProductPermArg[0] = indeterminate.Sub(compressedRow)
	} else {
		// First row is padding, use default initial
		ost.runningProductPermArg[0] = field.One
	}

	// Update subsequent rows
	for i := 1; i < ost.height; i++ {
		if !ost.ib1ShrinkStack[i].Equal(paddingIndicator) {
			// Compress current row
			compressedRow := clkWeight.Mul(ost.clk[i]).
				Add(ib1Weight.Mul(ost.ib1ShrinkStack[i])).
				Add(pointerWeight.Mul(ost.stackPointer[i])).
				Add(elementWeight.Mul(ost.firstUnderflowElement[i]))

			// rppa[i] = rppa[i-1] * (indeterminate - compressed_row)
			factor := indeterminate.Sub(compressedRow)
			ost.runningProductPermArg[i] = ost.runningProductPermArg[i-1].Mul(factor)
		} else {
			// Padding row, keep previous value
			ost.runningProductPermArg[i] = ost.runningProductPermArg[i-1]
		}
	}

	return nil
}

// OpStackEntry represents a single entry in the operational stack table
type OpStackEntry struct {
	Clock                 field.Element // Clock cycle when this stack operation occurred
	IB1ShrinkStack        field.Element // 0=grow stack, 1=shrink stack, 2=padding
	StackPointer          field.Element // Current stack pointer value (>= 16)
	FirstUnderflowElement field.Element // Value of the first underflow element
}

// NewOpStackEntry creates a new operational stack entry
func NewOpStackEntry(
	clock, ib1ShrinkStack, stackPointer, firstUnderflowElement field.Element,
) (*OpStackEntry, error) {
	return &OpStackEntry{
		Clock:                 clock,
		IB1ShrinkStack:        ib1ShrinkStack,
		StackPointer:          stackPointer,
		FirstUnderflowElement: firstUnderflowElement,
	}, nil
}
