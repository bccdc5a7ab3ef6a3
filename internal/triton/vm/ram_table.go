// Package vm implements the RAM Table
package vm

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"triton/internal/triton/circuit"
)

const (
	ramColCLK = iota
	ramColInstructionType
	ramColRAMPointer
	ramColRAMValue
	ramColInverseRampDiff
	ramColBezoutCoeffPoly0
	ramColBezoutCoeffPoly1
)

const (
	ramColRunningProductRAMP = iota
	ramColFormalDerivative
	ramColBezoutCoeff0
	ramColBezoutCoeff1
	ramColRunningProductPerm
	ramColClockJumpDiffLog
)

// ramIndeterminate is the local challenge index used by this table's own
// contiguity argument; the grand cross-table argument assigns it a
// concrete value drawn from the shared Fiat-Shamir transcript.
const ramIndeterminate = 0

// RAMTableImpl implements the RAM Table
// This table ensures memory consistency across the VM execution
//
// The RAM table tracks all memory operations (reads and writes) and proves:
// 1. Memory is initialized to zero
// 2. Reads return the most recently written value
// 3. Memory pointers form contiguous regions (via Bezout relation)
//
// Main purpose: Prove memory consistency and contiguity via permutation and contiguity arguments
type RAMTableImpl struct {
	// Main columns (BField elements)
	clk              []field.Element // Clock cycle when memory operation occurred
	instructionType  []field.Element // 0=WRITE, 1=READ, 2=PADDING
	ramPointer       []field.Element // Memory address being accessed
	ramValue         []field.Element // Value being read/written
	inverseRampDiff  []field.Element // Inverse of (ramPointer' - ramPointer), for contiguity
	bezoutCoeffPoly0 []field.Element // Bezout coefficient polynomial, coefficient 0
	bezoutCoeffPoly1 []field.Element // Bezout coefficient polynomial, coefficient 1

	// Auxiliary columns (XField elements for cross-table arguments)
	runningProductRAMP []field.Element // Running product of RAM pointers (for contiguity)
	formalDerivative   []field.Element // Formal derivative (for Bezout relation)
	bezoutCoeff0       []field.Element // Bezout coefficient 0
	bezoutCoeff1       []field.Element // Bezout coefficient 1
	runningProductPerm []field.Element // Running product for permutation argument with Processor
	clockJumpDiffLog   []field.Element // Log derivative for clock jump differences

	height       int
	paddedHeight int
}

// RAM table instruction type constants
const (
	RAMInstructionWrite = 0
	RAMInstructionRead  = 1
	RAMPaddingIndicator = 2
)

// NewRAMTable creates a new RAM Table
func NewRAMTable() *RAMTableImpl {
	return &RAMTableImpl{
		clk:                make([]field.Element, 0),
		instructionType:    make([]field.Element, 0),
		ramPointer:         make([]field.Element, 0),
		ramValue:           make([]field.Element, 0),
		inverseRampDiff:    make([]field.Element, 0),
		bezoutCoeffPoly0:   make([]field.Element, 0),
		bezoutCoeffPoly1:   make([]field.Element, 0),
		runningProductRAMP: make([]field.Element, 0),
		formalDerivative:   make([]field.Element, 0),
		bezoutCoeff0:       make([]field.Element, 0),
		bezoutCoeff1:       make([]field.Element, 0),
		runningProductPerm: make([]field.Element, 0),
		clockJumpDiffLog:   make([]field.Element, 0),
		height:             0,
		paddedHeight:       0,
	}
}

// GetID returns the table's identifier
func (rt *RAMTableImpl) GetID() TableID {
	return RAMTable
}

// GetHeight returns the current height
func (rt *RAMTableImpl) GetHeight() int {
	return rt.height
}

// GetPaddedHeight returns the padded height
func (rt *RAMTableImpl) GetPaddedHeight() int {
	return rt.paddedHeight
}

// GetMainColumns returns all main columns
func (rt *RAMTableImpl) GetMainColumns() [][]field.Element {
	return [][]field.Element{
		rt.clk,
		rt.instructionType,
		rt.ramPointer,
		rt.ramValue,
		rt.inverseRampDiff,
		rt.bezoutCoeffPoly0,
		rt.bezoutCoeffPoly1,
	}
}

// GetAuxiliaryColumns returns auxiliary columns
func (rt *RAMTableImpl) GetAuxiliaryColumns() [][]field.Element {
	return [][]field.Element{
		rt.runningProductRAMP,
		rt.formalDerivative,
		rt.bezoutCoeff0,
		rt.bezoutCoeff1,
		rt.runningProductPerm,
		rt.clockJumpDiffLog,
	}
}

// AddRow adds a new row to the RAM table
func (rt *RAMTableImpl) AddRow(entry *RAMEntry) error {
	if entry == nil {
		return fmt.Errorf("RAM entry cannot be nil")
	}

	// Validation notes:
	// - Instruction type must be in {0, 1, 2} (enforced by AIR constraints)
	// - RAM pointer and value must be valid field elements
	// - Inverse of RAM pointer difference is computed during preprocessing
	// - Bezout coefficients are computed during contiguity argument setup

	// Add main column values
	rt.clk = append(rt.clk, entry.Clock)
	rt.instructionType = append(rt.instructionType, entry.InstructionType)
	rt.ramPointer = append(rt.ramPointer, entry.RAMPointer)
	rt.ramValue = append(rt.ramValue, entry.RAMValue)
	rt.inverseRampDiff = append(rt.inverseRampDiff, entry.InverseRampDifference)
	rt.bezoutCoeffPoly0 = append(rt.bezoutCoeffPoly0, entry.BezoutCoeffPoly0)
	rt.bezoutCoeffPoly1 = append(rt.bezoutCoeffPoly1, entry.BezoutCoeffPoly1)

	// Initialize auxiliary columns (computed during proving)
	rt.runningProductRAMP = append(rt.runningProductRAMP, field.Zero)
	rt.formalDerivative = append(rt.formalDerivative, field.Zero)
	rt.bezoutCoeff0 = append(rt.bezoutCoeff0, field.Zero)
	rt.bezoutCoeff1 = append(rt.bezoutCoeff1, field.Zero)
	rt.runningProductPerm = append(rt.runningProductPerm, field.Zero)
	rt.clockJumpDiffLog = append(rt.clockJumpDiffLog, field.Zero)

	rt.height++
	return nil
}

// Pad pads the table to the target height with padding rows
func (rt *RAMTableImpl) Pad(targetHeight int) error {
	if targetHeight < rt.height {
		return fmt.Errorf("target height %d is less than current height %d", targetHeight, rt.height)
	}

	if rt.height == 0 {
		return fmt.Errorf("cannot pad empty table")
	}

	// Padding rows have instructionType = 2 (PADDING_INDICATOR)
	paddingIndicator := field.New(uint64(RAMPaddingIndicator))

	// Use last row values for other fields
	lastIdx := rt.height - 1
	paddingRows := targetHeight - rt.height

	for i := 0; i < paddingRows; i++ {
		rt.clk = append(rt.clk, rt.clk[lastIdx])
		rt.instructionType = append(rt.instructionType, paddingIndicator)
		rt.ramPointer = append(rt.ramPointer, rt.ramPointer[lastIdx])
		rt.ramValue = append(rt.ramValue, rt.ramValue[lastIdx])
		rt.inverseRampDiff = append(rt.inverseRampDiff, rt.inverseRampDiff[lastIdx])
		rt.bezoutCoeffPoly0 = append(rt.bezoutCoeffPoly0, rt.bezoutCoeffPoly0[lastIdx])
		rt.bezoutCoeffPoly1 = append(rt.bezoutCoeffPoly1, rt.bezoutCoeffPoly1[lastIdx])
		rt.runningProductRAMP = append(rt.runningProductRAMP, rt.runningProductRAMP[lastIdx])
		rt.formalDerivative = append(rt.formalDerivative, rt.formalDerivative[lastIdx])
		rt.bezoutCoeff0 = append(rt.bezoutCoeff0, rt.bezoutCoeff0[lastIdx])
		rt.bezoutCoeff1 = append(rt.bezoutCoeff1, rt.bezoutCoeff1[lastIdx])
		rt.runningProductPerm = append(rt.runningProductPerm, rt.runningProductPerm[lastIdx])
		rt.clockJumpDiffLog = append(rt.clockJumpDiffLog, rt.clockJumpDiffLog[lastIdx])
	}

	rt.paddedHeight = targetHeight
	return nil
}

// CreateInitialConstraints generates constraints for the first row: the
// Bezout relation starts from the zero polynomial, and the running product
// over RAM pointers starts from the first row's pointer.
func (rt *RAMTableImpl) CreateInitialConstraints() ([]*circuit.Node, error) {
	r := newCircuitRow()

	indeterminate := r.b.Challenge(ramIndeterminate)
	rampInitial := r.b.Sub(indeterminate, r.base(ramColRAMPointer))

	roots := []*circuit.Node{
		r.b.Sub(r.base(ramColBezoutCoeffPoly0), r.zero()),
		r.b.Sub(r.base(ramColBezoutCoeff0), r.zero()),
		r.b.Sub(r.base(ramColBezoutCoeff1), r.base(ramColBezoutCoeffPoly1)),
		r.b.Sub(r.base(ramColFormalDerivative), r.one()),
		r.b.Sub(r.ext(ramColRunningProductRAMP), rampInitial),
	}
	return r.finish(roots...), nil
}

// CreateConsistencyConstraints generates constraints within each row: the
// instruction type is one of WRITE (0), READ (1), or PADDING (2).
func (rt *RAMTableImpl) CreateConsistencyConstraints() ([]*circuit.Node, error) {
	r := newCircuitRow()

	it := r.base(ramColInstructionType)
	roots := []*circuit.Node{
		r.b.Mul(it, r.b.Mul(r.b.Sub(it, r.one()), r.b.Sub(it, r.bconst(uint64(RAMPaddingIndicator))))),
	}
	return r.finish(roots...), nil
}

// CreateTransitionConstraints generates constraints between consecutive
// rows: the inverse-of-pointer-difference column correctly detects whether
// the RAM pointer changed, a read that doesn't change the pointer must
// return the previously written value, and the Bezout running product and
// formal derivative only advance when the pointer changes (the relation
// that proves memory pointer regions are contiguous).
func (rt *RAMTableImpl) CreateTransitionConstraints() ([]*circuit.Node, error) {
	r := newCircuitRow()

	rampDiff := r.b.Sub(r.baseNext(ramColRAMPointer), r.baseCurr(ramColRAMPointer))
	rampDiffInv := r.baseCurr(ramColInverseRampDiff)
	rampChanges := r.b.Sub(r.one(), r.b.Mul(rampDiff, rampDiffInv))

	invConsistent := r.b.Mul(rampDiff, r.b.Sub(r.one(), r.b.Mul(rampDiff, rampDiffInv)))
	invIsZeroWhenNoDiff := r.b.Mul(rampDiffInv, rampChanges)

	itNext := r.baseNext(ramColInstructionType)
	valueUnchangedOnRead := r.b.Mul(rampChanges, r.b.Mul(r.b.Sub(r.bconst(uint64(RAMInstructionWrite)), itNext),
		r.b.Sub(r.baseNext(ramColRAMValue), r.baseCurr(ramColRAMValue))))

	bc0Sticky := r.b.Mul(rampChanges, r.b.Sub(r.baseNext(ramColBezoutCoeffPoly0), r.baseCurr(ramColBezoutCoeffPoly0)))
	bc1Sticky := r.b.Mul(rampChanges, r.b.Sub(r.baseNext(ramColBezoutCoeffPoly1), r.baseCurr(ramColBezoutCoeffPoly1)))

	indeterminate := r.b.Challenge(ramIndeterminate)
	rampFactorNext := r.b.Sub(indeterminate, r.baseNext(ramColRAMPointer))

	rampRunningProdChanges := r.b.Sub(r.extNext(ramColRunningProductRAMP),
		r.b.Mul(r.extCurr(ramColRunningProductRAMP), rampFactorNext))
	rampRunningProdSticky := r.b.Sub(r.extNext(ramColRunningProductRAMP), r.extCurr(ramColRunningProductRAMP))
	rampRunningProdUpdate := r.b.Add(
		r.b.Mul(rampChanges, rampRunningProdChanges),
		r.b.Mul(r.b.Sub(r.one(), rampChanges), rampRunningProdSticky),
	)

	fdChanges := r.b.Sub(r.baseNext(ramColFormalDerivative),
		r.b.Add(r.extCurr(ramColRunningProductRAMP), r.b.Mul(rampFactorNext, r.baseCurr(ramColFormalDerivative))))
	fdSticky := r.b.Sub(r.baseNext(ramColFormalDerivative), r.baseCurr(ramColFormalDerivative))
	fdUpdate := r.b.Add(
		r.b.Mul(rampChanges, fdChanges),
		r.b.Mul(r.b.Sub(r.one(), rampChanges), fdSticky),
	)

	roots := []*circuit.Node{
		invConsistent,
		invIsZeroWhenNoDiff,
		valueUnchangedOnRead,
		bc0Sticky,
		bc1Sticky,
		rampRunningProdUpdate,
		fdUpdate,
	}
	return r.finish(roots...), nil
}

// CreateTerminalConstraints generates constraints for the last row. None
// are specific to this table: consistency with the rest of the trace is
// ensured via the permutation and contiguity arguments.
func (rt *RAMTableImpl) CreateTerminalConstraints() ([]*circuit.Node, error) {
	return nil, nil
}

// UpdateContiguityArgument updates the Bezout relation for contiguity
// This is called during proof generation to compute the running product
// and formal derivative for proving memory pointer contiguity
func (rt *RAMTableImpl) UpdateContiguityArgument(indeterminate field.Element) error {
	if rt.height == 0 {
		return fmt.Errorf("cannot update contiguity argument on empty table")
	}

	// Initialize first row
	// runningProductRAMP[0] = indeterminate - ramPointer[0]
	rt.runningProductRAMP[0] = indeterminate.Sub(rt.ramPointer[0])

	// formalDerivative[0] = 1
	rt.formalDerivative[0] = field.One

	// bezoutCoeff0[0] = 0
	rt.bezoutCoeff0[0] = field.Zero

	// bezoutCoeff1[0] = bezoutCoeffPoly1[0]
	rt.bezoutCoeff1[0] = rt.bezoutCoeffPoly1[0]

	// Update subsequent rows
	for i := 1; i < rt.height; i++ {
		// Check if RAM pointer changed
		pointerDiff := rt.ramPointer[i].Sub(rt.ramPointer[i-1])
		pointerChanged := !pointerDiff.Equal(field.Zero)

		if pointerChanged {
			// Running product: runningProductRAMP[i] = runningProductRAMP[i-1] * (indeterminate - ramPointer[i])
			factor := indeterminate.Sub(rt.ramPointer[i])
			rt.runningProductRAMP[i] = rt.runningProductRAMP[i-1].Mul(factor)

			// Formal derivative: fd[i] = runningProductRAMP[i-1] + (indeterminate - ramPointer[i]) * fd[i-1]
			rt.formalDerivative[i] = rt.runningProductRAMP[i-1].Add(factor.Mul(rt.formalDerivative[i-1]))

			// Bezout coefficients: bc0[i] = indeterminate * bc0[i-1] + bezoutCoeffPoly0[i]
			rt.bezoutCoeff0[i] = indeterminate.Mul(rt.bezoutCoeff0[i-1]).Add(rt.bezoutCoeffPoly0[i])
			rt.bezoutCoeff1[i] = indeterminate.Mul(rt.bezoutCoeff1[i-1]).Add(rt.bezoutCoeffPoly1[i])
		} else {
			// Pointer didn't change, carry forward previous values
			rt.runningProductRAMP[i] = rt.runningProductRAMP[i-1]
			rt.formalDerivative[i] = rt.formalDerivative[i-1]
			rt.bezoutCoeff0[i] = rt.bezoutCoeff0[i-1]
			rt.bezoutCoeff1[i] = rt.bezoutCoeff1[i-1]
		}
	}

	return nil
}

// UpdatePermutationArgument updates the running product for permutation argument
// This is called during proof generation with actual Fiat-Shamir challenges
func (rt *RAMTableImpl) UpdatePermutationArgument(challenges map[string]field.Element) error {
	if rt.height == 0 {
		return fmt.Errorf("cannot update permutation argument on empty table")
	}

	// Extract challenges
	indeterminate, ok := challenges["ram_indeterminate"]
	if !ok {
		return fmt.Errorf("missing ram_indeterminate challenge")
	}
	clkWeight, ok := challenges["ram_clk_weight"]
	if !ok {
		return fmt.Errorf("missing ram_clk_weight challenge")
	}
	instrTypeWeight, ok := challenges["ram_instruction_type_weight"]
	if !ok {
		return fmt.Errorf("missing ram_instruction_type_weight challenge")
	}
	pointerWeight, ok := challenges["ram_pointer_weight"]
	if !ok {
		return fmt.Errorf("missing ram_pointer_weight challenge")
	}
	valueWeight, ok := challenges["ram_value_weight"]
	if !ok {
		return fmt.Errorf("missing ram_value_weight challenge")
	}

	// Initialize running product
	paddingIndicator := field.New(uint64(RAMPaddingIndicator))

	// First row handling
	if !rt.instructionType[0].Equal(paddingIndicator) {
		// Compress first row
		compressedRow := clkWeight.Mul(rt.clk[0]).
			Add(instrTypeWeight.Mul(rt.instructionType[0])).
			Add(pointerWeight.Mul(rt.ramPointer[0])).
			Add(valueWeight.Mul(rt.ramValue[0]))

		// rppa[0] = indeterminate - compressed_row
		rt.runningProductPerm[0] = indeterminate.Sub(compressedRow)
	} else {
		// First row is padding, use default initial
		rt.runningProductPerm[0] = field.One
	}

	// Update subsequent rows
	for i := 1; i < rt.height; i++ {
		if !rt.instructionType[i].Equal(paddingIndicator) {
			// Compress current row
			compressedRow := clkWeight.Mul(rt.clk[i]).
				Add(instrTypeWeight.Mul(rt.instructionType[i])).
				Add(pointerWeight.Mul(rt.ramPointer[i])).
				Add(valueWeight.Mul(rt.ramValue[i]))

			// rppa[i] = rppa[i-1] * (indeterminate - compressed_row)
			factor := indeterminate.Sub(compressedRow)
			rt.runningProductPerm[i] = rt.runningProductPerm[i-1].Mul(factor)
		} else {
			// Padding row, keep previous value
			rt.runningProductPerm[i] = rt.runningProductPerm[i-1]
		}
	}

	return nil
}

// RAMEntry represents a single entry in the RAM table
type RAMEntry struct {
	Clock                 field.Element // Clock cycle when memory operation occurred
	InstructionType       field.Element // 0=WRITE, 1=READ, 2=PADDING
	RAMPointer            field.Element // Memory address being accessed
	RAMValue              field.Element // Value being read/written
	InverseRampDifference field.Element // Inverse of (ramPointer' - ramPointer)
	BezoutCoeffPoly0      field.Element // Bezout coefficient polynomial, coefficient 0
	BezoutCoeffPoly1      field.Element // Bezout coefficient polynomial, coefficient 1
}

// NewRAMEntry creates a new RAM entry
func NewRAMEntry(
	clock, instructionType, ramPointer, ramValue field.Element,
) (*RAMEntry, error) {
	// Initialize with zero values for fields computed during preprocessing
	return &RAMEntry{
		Clock:                 clock,
		InstructionType:       instructionType,
		RAMPointer:            ramPointer,
		RAMValue:              ramValue,
		InverseRampDifference: field.Zero,
		BezoutCoeffPoly0:      field.Zero,
		BezoutCoeffPoly1:      field.Zero,
	}, nil
}
