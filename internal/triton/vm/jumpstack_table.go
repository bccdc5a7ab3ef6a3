// Package vm implements the Jump Stack Table
package vm

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"triton/internal/triton/circuit"
)

const (
	jsColCLK = iota
	jsColCI
	jsColJSP
	jsColJSO
	jsColJSD
)

const (
	jsColRunningProductPerm = iota
	jsColClockJumpDiffLog
)

// JumpStackTableImpl implements the Jump Stack Table
// This table tracks function call/return operations and ensures control flow consistency
//
// The jump stack records:
// 1. CALL instructions (push return address onto jump stack)
// 2. RETURN instructions (pop return address from jump stack)
// 3. RECURSE_OR_RETURN instructions (conditional return)
//
// Main purpose: Prove control flow correctness via permutation arguments with Processor table
type JumpStackTableImpl struct {
	// Main columns (BField elements)
	clk []field.Element // Clock cycle when jump stack operation occurred
	ci  []field.Element // Current instruction (CALL, RETURN, or RECURSE_OR_RETURN)
	jsp []field.Element // Jump stack pointer (depth of call stack)
	jso []field.Element // Jump stack origin (return address - where we came from)
	jsd []field.Element // Jump stack destination (return address - where to go back)

	// Auxiliary columns (XField elements for cross-table arguments)
	runningProductPerm []field.Element // Running product for permutation argument with Processor
	clockJumpDiffLog   []field.Element // Log derivative for clock jump differences

	height       int
	paddedHeight int
}

// NewJumpStackTable creates a new Jump Stack Table
func NewJumpStackTable() *JumpStackTableImpl {
	return &JumpStackTableImpl{
		clk:                make([]field.Element, 0),
		ci:                 make([]field.Element, 0),
		jsp:                make([]field.Element, 0),
		jso:                make([]field.Element, 0),
		jsd:                make([]field.Element, 0),
		runningProductPerm: make([]field.Element, 0),
		clockJumpDiffLog:   make([]field.Element, 0),
		height:             0,
		paddedHeight:       0,
	}
}

// GetID returns the table's identifier
func (jst *JumpStackTableImpl) GetID() TableID {
	return JumpStackTable
}

// GetHeight returns the current height
func (jst *JumpStackTableImpl) GetHeight() int {
	return jst.height
}

// GetPaddedHeight returns the padded height
func (jst *JumpStackTableImpl) GetPaddedHeight() int {
	return jst.paddedHeight
}

// GetMainColumns returns all main columns
func (jst *JumpStackTableImpl) GetMainColumns() [][]field.Element {
	return [][]field.Element{
		jst.clk,
		jst.ci,
		jst.jsp,
		jst.jso,
		jst.jsd,
	}
}

// GetAuxiliaryColumns returns auxiliary columns
func (jst *JumpStackTableImpl) GetAuxiliaryColumns() [][]field.Element {
	return [][]field.Element{
		jst.runningProductPerm,
		jst.clockJumpDiffLog,
	}
}

// AddRow adds a new row to the jump stack table
func (jst *JumpStackTableImpl) AddRow(entry *JumpStackEntry) error {
	if entry == nil {
		return fmt.Errorf("jump stack entry cannot be nil")
	}

	// Validation notes:
	// - Clock must be monotonically increasing (enforced by transition constraints)
	// - Jump stack pointer must be >= 0 (enforced by AIR constraints)
	// - Jump stack origin and destination are return addresses
	// - Current instruction must be valid (CALL, RETURN, or RECURSE_OR_RETURN)

	// Add main column values
	jst.clk = append(jst.clk, entry.Clock)
	jst.ci = append(jst.ci, entry.CurrentInstruction)
	jst.jsp = append(jst.jsp, entry.JumpStackPointer)
	jst.jso = append(jst.jso, entry.JumpStackOrigin)
	jst.jsd = append(jst.jsd, entry.JumpStackDestination)

	// Initialize auxiliary columns (computed during proving)
	jst.runningProductPerm = append(jst.runningProductPerm, field.Zero)
	jst.clockJumpDiffLog = append(jst.clockJumpDiffLog, field.Zero)

	jst.height++
	return nil
}

// Pad pads the table to the target height with padding rows
func (jst *JumpStackTableImpl) Pad(targetHeight int) error {
	if targetHeight < jst.height {
		return fmt.Errorf("target height %d is less than current height %d", targetHeight, jst.height)
	}

	if jst.height == 0 {
		return fmt.Errorf("cannot pad empty table")
	}

	// Use last row values for padding
	lastIdx := jst.height - 1
	paddingRows := targetHeight - jst.height

	for i := 0; i < paddingRows; i++ {
		jst.clk = append(jst.clk, jst.clk[lastIdx])
		jst.ci = append(jst.ci, jst.ci[lastIdx])
		jst.jsp = append(jst.jsp, jst.jsp[lastIdx])
		jst.jso = append(jst.jso, jst.jso[lastIdx])
		jst.jsd = append(jst.jsd, jst.jsd[lastIdx])
		jst.runningProductPerm = append(jst.runningProductPerm, jst.runningProductPerm[lastIdx])
		jst.clockJumpDiffLog = append(jst.clockJumpDiffLog, jst.clockJumpDiffLog[lastIdx])
	}

	jst.paddedHeight = targetHeight
	return nil
}

// CreateInitialConstraints generates constraints for the first row: the
// clock, jump stack pointer, origin, and destination all start at zero.
func (jst *JumpStackTableImpl) CreateInitialConstraints() ([]*circuit.Node, error) {
	r := newCircuitRow()
	roots := []*circuit.Node{
		r.base(jsColCLK),
		r.base(jsColJSP),
		r.base(jsColJSO),
		r.base(jsColJSD),
	}
	return r.finish(roots...), nil
}

// CreateConsistencyConstraints generates constraints within each row. None
// are specific to this table: instruction validity is enforced by the
// processor table.
func (jst *JumpStackTableImpl) CreateConsistencyConstraints() ([]*circuit.Node, error) {
	return nil, nil
}

// CreateTransitionConstraints generates constraints between consecutive
// rows: the jump stack pointer either stays put or grows by one, and a
// return address (origin/destination) may only change on a row where the
// pointer grows, i.e. a CALL.
func (jst *JumpStackTableImpl) CreateTransitionConstraints() ([]*circuit.Node, error) {
	r := newCircuitRow()

	jsp, jspNext := r.baseCurr(jsColJSP), r.baseNext(jsColJSP)
	jspDelta := r.b.Sub(jspNext, jsp)
	jspMovesByAtMostOne := r.b.Mul(r.b.Sub(jspDelta, r.one()), jspDelta)

	jspGrows := jspDelta
	jsoSticky := r.b.Mul(r.b.Sub(r.one(), jspGrows), r.b.Sub(r.baseNext(jsColJSO), r.baseCurr(jsColJSO)))
	jsdSticky := r.b.Mul(r.b.Sub(r.one(), jspGrows), r.b.Sub(r.baseNext(jsColJSD), r.baseCurr(jsColJSD)))

	ciNext := r.baseNext(jsColCI)
	callIsUsedWhenGrowing := r.b.Mul(jspGrows, r.b.Sub(ciNext, r.bconst(uint64(Call))))

	roots := []*circuit.Node{jspMovesByAtMostOne, jsoSticky, jsdSticky, callIsUsedWhenGrowing}
	return r.finish(roots...), nil
}

// CreateTerminalConstraints generates constraints for the last row. None
// are specific to this table: consistency is ensured via the permutation
// argument with the processor table.
func (jst *JumpStackTableImpl) CreateTerminalConstraints() ([]*circuit.Node, error) {
	return nil, nil
}

// UpdatePermutationArgument updates the running product for permutation argument
// This is called during proof generation with actual Fiat-Shamir challenges
func (jst *JumpStackTableImpl) UpdatePermutationArgument(challenges map[string]field.Element) error {
	if jst.height == 0 {
		return fmt.Errorf("cannot update permutation argument on empty table")
	}

	// Extract challenges
	indeterminate, ok := challenges["jumpstack_indeterminate"]
	if !ok {
		return fmt.Errorf("missing jumpstack_indeterminate challenge")
	}
	clkWeight, ok := challenges["jumpstack_clk_weight"]
	if !ok {
		return fmt.Errorf("missing jumpstack_clk_weight challenge")
	}
	ciWeight, ok := challenges["jumpstack_ci_weight"]
	if !ok {
		return fmt.Errorf("missing jumpstack_ci_weight challenge")
	}
	jspWeight, ok := challenges["jumpstack_jsp_weight"]
	if !ok {
		return fmt.Errorf("missing jumpstack_jsp_weight challenge")
	}
	jsoWeight, ok := challenges["jumpstack_jso_weight"]
	if !ok {
		return fmt.Errorf("missing jumpstack_jso_weight challenge")
	}
	jsdWeight, ok := challenges["jumpstack_jsd_weight"]
	if !ok {
		return fmt.Errorf("missing jumpstack_jsd_weight challenge")
	}

	// First row: clk, jsp, jso, jsd are all 0, so only ci contributes
	compressedRow := ciWeight.Mul(jst.ci[0])
	jst.runningProductPerm[0] = indeterminate.Sub(compressedRow)

	// Update subsequent rows
	for i := 1; i < jst.height; i++ {
		// Compress current row
		compressedRow = clkWeight.Mul(jst.clk[i]).
			Add(ciWeight.Mul(jst.ci[i])).
			Add(jspWeight.Mul(jst.jsp[i])).
			Add(jsoWeight.Mul(jst.jso[i])).
			Add(jsdWeight.Mul(jst.jsd[i]))

		// rppa[i] = rppa[i-1] * (indeterminate - compressed_row)
		factor := indeterminate.Sub(compressedRow)
		jst.runningProductPerm[i] = jst.runningProductPerm[i-1].Mul(factor)
	}

	return nil
}

// UpdateClockJumpLogDerivative updates the log derivative for clock jump differences
// This is called during proof generation for the lookup argument
func (jst *JumpStackTableImpl) UpdateClockJumpLogDerivative(indeterminate field.Element) error {
	if jst.height == 0 {
		return fmt.Errorf("cannot update clock jump log derivative on empty table")
	}

	// Initialize first row (default initial for lookup argument)
	jst.clockJumpDiffLog[0] = field.Zero

	// Update subsequent rows
	for i := 1; i < jst.height; i++ {
		// Check if jump stack pointer incremented
		jspDiff := jst.jsp[i].Sub(jst.jsp[i-1])
		jspIncremented := jspDiff.Equal(field.One)

		if jspIncremented {
			// log_deriv[i] = log_deriv[i-1] + 1/(indeterminate - (clk[i] - clk[i-1]))
			clockDiff := jst.clk[i].Sub(jst.clk[i-1])
			denominator := indeterminate.Sub(clockDiff)

			// Compute inverse
			inverse := denominator.Inverse()

			jst.clockJumpDiffLog[i] = jst.clockJumpDiffLog[i-1].Add(inverse)
		} else {
			// Jump stack pointer didn't increment, carry forward previous value
			jst.clockJumpDiffLog[i] = jst.clockJumpDiffLog[i-1]
		}
	}

	return nil
}

// JumpStackEntry represents a single entry in the jump stack table
type JumpStackEntry struct {
	Clock                field.Element // Clock cycle
	CurrentInstruction   field.Element // CALL, RETURN, or RECURSE_OR_RETURN
	JumpStackPointer     field.Element // Depth of call stack
	JumpStackOrigin      field.Element // Return address (where we came from)
	JumpStackDestination field.Element // Return address (where to go back)
}

// NewJumpStackEntry creates a new jump stack entry
func NewJumpStackEntry(
	clock, currentInstruction, jumpStackPointer, jumpStackOrigin, jumpStackDestination field.Element,
) (*JumpStackEntry, error) {
	return &JumpStackEntry{
		Clock:                clock,
		CurrentInstruction:   currentInstruction,
		JumpStackPointer:     jumpStackPointer,
		JumpStackOrigin:      jumpStackOrigin,
		JumpStackDestination: jumpStackDestination,
	}, nil
}
