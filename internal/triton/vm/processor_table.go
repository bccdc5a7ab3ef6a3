// Package vm implements the Processor Table
package vm

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"triton/internal/triton/circuit"
)

// Base column indices, matching the order returned by GetMainColumns.
const (
	procColCLK = iota
	procColIP
	procColCI
	procColNIA
	procColIB0
	procColIB1
	procColIB2
	procColIB3
	procColIB4
	procColIB5
	procColIB6
	procColJSP
	procColJSO
	procColJSD
	procColST0
	procColST1
	procColST2
	procColST3
	procColST4
	procColST5
	procColST6
	procColST7
	procColST8
	procColST9
	procColST10
	procColST11
	procColST12
	procColST13
	procColST14
	procColST15
)

// Extension column indices, matching the order returned by
// GetAuxiliaryColumns.
const (
	procColPermArg = iota
	procColEvalArg
	procColPermRP
)

// ProcessorTableImpl implements the Processor Table
// This is the main execution trace recording all VM state transitions
type ProcessorTableImpl struct {
	// Main columns (BField elements)
	// Based on Triton VM's processor table specification
	clk                                          []field.Element // Clock cycle
	ip                                           []field.Element // Instruction pointer
	ci                                           []field.Element // Current instruction
	nia                                          []field.Element // Next instruction (or argument)
	ib0, ib1, ib2, ib3, ib4, ib5, ib6            []field.Element // Instruction bits (for instruction decoding)
	jsp, jso, jsd                                []field.Element // Jump stack pointer, origin, destination
	st0, st1, st2, st3, st4, st5, st6, st7       []field.Element // Stack registers 0-7
	st8, st9, st10, st11, st12, st13, st14, st15 []field.Element // Stack registers 8-15

	// Auxiliary columns (XField elements for cross-table arguments)
	permArg []field.Element // Permutation argument accumulator
	evalArg []field.Element // Evaluation argument accumulator

	// Extension column for TIP-0007: Run-Time Permutation Check
	permrp []field.Element // Permutation running product

	height       int
	paddedHeight int
}

// NewProcessorTable creates a new Processor Table
func NewProcessorTable() *ProcessorTableImpl {
	return &ProcessorTableImpl{
		clk:          make([]field.Element, 0),
		ip:           make([]field.Element, 0),
		ci:           make([]field.Element, 0),
		nia:          make([]field.Element, 0),
		ib0:          make([]field.Element, 0),
		ib1:          make([]field.Element, 0),
		ib2:          make([]field.Element, 0),
		ib3:          make([]field.Element, 0),
		ib4:          make([]field.Element, 0),
		ib5:          make([]field.Element, 0),
		ib6:          make([]field.Element, 0),
		jsp:          make([]field.Element, 0),
		jso:          make([]field.Element, 0),
		jsd:          make([]field.Element, 0),
		st0:          make([]field.Element, 0),
		st1:          make([]field.Element, 0),
		st2:          make([]field.Element, 0),
		st3:          make([]field.Element, 0),
		st4:          make([]field.Element, 0),
		st5:          make([]field.Element, 0),
		st6:          make([]field.Element, 0),
		st7:          make([]field.Element, 0),
		st8:          make([]field.Element, 0),
		st9:          make([]field.Element, 0),
		st10:         make([]field.Element, 0),
		st11:         make([]field.Element, 0),
		st12:         make([]field.Element, 0),
		st13:         make([]field.Element, 0),
		st14:         make([]field.Element, 0),
		st15:         make([]field.Element, 0),
		permArg:      make([]field.Element, 0),
		evalArg:      make([]field.Element, 0),
		permrp:       make([]field.Element, 0),
		height:       0,
		paddedHeight: 0,
	}
}

// GetID returns the table's identifier
func (pt *ProcessorTableImpl) GetID() TableID {
	return ProcessorTable
}

// GetHeight returns the current height
func (pt *ProcessorTableImpl) GetHeight() int {
	return pt.height
}

// GetPaddedHeight returns the padded height
func (pt *ProcessorTableImpl) GetPaddedHeight() int {
	return pt.paddedHeight
}

// GetMainColumns returns all main columns
func (pt *ProcessorTableImpl) GetMainColumns() [][]field.Element {
	return [][]field.Element{
		pt.clk, pt.ip, pt.ci, pt.nia,
		pt.ib0, pt.ib1, pt.ib2, pt.ib3, pt.ib4, pt.ib5, pt.ib6,
		pt.jsp, pt.jso, pt.jsd,
		pt.st0, pt.st1, pt.st2, pt.st3,
		pt.st4, pt.st5, pt.st6, pt.st7,
		pt.st8, pt.st9, pt.st10, pt.st11,
		pt.st12, pt.st13, pt.st14, pt.st15,
	}
}

// GetAuxiliaryColumns returns auxiliary columns
func (pt *ProcessorTableImpl) GetAuxiliaryColumns() [][]field.Element {
	return [][]field.Element{
		pt.permArg,
		pt.evalArg,
		pt.permrp,
	}
}

// GetColumns returns all columns (main + auxiliary)
func (pt *ProcessorTableImpl) GetColumns() ([][]field.Element, error) {
	mainCols := pt.GetMainColumns()
	auxCols := pt.GetAuxiliaryColumns()

	// Combine all columns
	allCols := make([][]field.Element, 0, len(mainCols)+len(auxCols))
	allCols = append(allCols, mainCols...)
	allCols = append(allCols, auxCols...)

	return allCols, nil
}

// AddRow adds a new row to the processor table
func (pt *ProcessorTableImpl) AddRow(state *ProcessorState) error {
	if state == nil {
		return fmt.Errorf("processor state cannot be nil")
	}

	// Add main column values
	pt.clk = append(pt.clk, state.Clock)
	pt.ip = append(pt.ip, state.InstructionPointer)
	pt.ci = append(pt.ci, state.CurrentInstruction)
	pt.nia = append(pt.nia, state.NextInstructionOrArg)
	pt.ib0 = append(pt.ib0, state.InstructionBit0)
	pt.ib1 = append(pt.ib1, state.InstructionBit1)
	pt.ib2 = append(pt.ib2, state.InstructionBit2)
	pt.ib3 = append(pt.ib3, state.InstructionBit3)
	pt.ib4 = append(pt.ib4, state.InstructionBit4)
	pt.ib5 = append(pt.ib5, state.InstructionBit5)
	pt.ib6 = append(pt.ib6, state.InstructionBit6)
	pt.jsp = append(pt.jsp, state.JumpStackPointer)
	pt.jso = append(pt.jso, state.JumpStackOrigin)
	pt.jsd = append(pt.jsd, state.JumpStackDestination)

	// Add stack registers
	if len(state.Stack) != 16 {
		return fmt.Errorf("processor state must have exactly 16 stack registers, got %d", len(state.Stack))
	}
	pt.st0 = append(pt.st0, state.Stack[0])
	pt.st1 = append(pt.st1, state.Stack[1])
	pt.st2 = append(pt.st2, state.Stack[2])
	pt.st3 = append(pt.st3, state.Stack[3])
	pt.st4 = append(pt.st4, state.Stack[4])
	pt.st5 = append(pt.st5, state.Stack[5])
	pt.st6 = append(pt.st6, state.Stack[6])
	pt.st7 = append(pt.st7, state.Stack[7])
	pt.st8 = append(pt.st8, state.Stack[8])
	pt.st9 = append(pt.st9, state.Stack[9])
	pt.st10 = append(pt.st10, state.Stack[10])
	pt.st11 = append(pt.st11, state.Stack[11])
	pt.st12 = append(pt.st12, state.Stack[12])
	pt.st13 = append(pt.st13, state.Stack[13])
	pt.st14 = append(pt.st14, state.Stack[14])
	pt.st15 = append(pt.st15, state.Stack[15])

	// Initialize auxiliary columns (will be computed during proving)
	pt.permArg = append(pt.permArg, field.Zero)
	pt.evalArg = append(pt.evalArg, field.Zero)
	pt.permrp = append(pt.permrp, field.One) // TIP-0007: Start running product at 1

	pt.height++
	return nil
}

// Pad pads the table to the target height
func (pt *ProcessorTableImpl) Pad(targetHeight int) error {
	if targetHeight < pt.height {
		return fmt.Errorf("target height %d is less than current height %d", targetHeight, pt.height)
	}

	if pt.height == 0 {
		return fmt.Errorf("cannot pad empty table")
	}

	// Pad with copies of the last row
	lastIdx := pt.height - 1
	paddingRows := targetHeight - pt.height

	for i := 0; i < paddingRows; i++ {
		// Clone last row
		pt.clk = append(pt.clk, pt.clk[lastIdx])
		pt.ip = append(pt.ip, pt.ip[lastIdx])
		pt.ci = append(pt.ci, pt.ci[lastIdx])
		pt.nia = append(pt.nia, pt.nia[lastIdx])
		pt.ib0 = append(pt.ib0, pt.ib0[lastIdx])
		pt.ib1 = append(pt.ib1, pt.ib1[lastIdx])
		pt.ib2 = append(pt.ib2, pt.ib2[lastIdx])
		pt.ib3 = append(pt.ib3, pt.ib3[lastIdx])
		pt.ib4 = append(pt.ib4, pt.ib4[lastIdx])
		pt.ib5 = append(pt.ib5, pt.ib5[lastIdx])
		pt.ib6 = append(pt.ib6, pt.ib6[lastIdx])
		pt.jsp = append(pt.jsp, pt.jsp[lastIdx])
		pt.jso = append(pt.jso, pt.jso[lastIdx])
		pt.jsd = append(pt.jsd, pt.jsd[lastIdx])
		pt.st0 = append(pt.st0, pt.st0[lastIdx])
		pt.st1 = append(pt.st1, pt.st1[lastIdx])
		pt.st2 = append(pt.st2, pt.st2[lastIdx])
		pt.st3 = append(pt.st3, pt.st3[lastIdx])
		pt.st4 = append(pt.st4, pt.st4[lastIdx])
		pt.st5 = append(pt.st5, pt.st5[lastIdx])
		pt.st6 = append(pt.st6, pt.st6[lastIdx])
		pt.st7 = append(pt.st7, pt.st7[lastIdx])
		pt.st8 = append(pt.st8, pt.st8[lastIdx])
		pt.st9 = append(pt.st9, pt.st9[lastIdx])
		pt.st10 = append(pt.st10, pt.st10[lastIdx])
		pt.st11 = append(pt.st11, pt.st11[lastIdx])
		pt.st12 = append(pt.st12, pt.st12[lastIdx])
		pt.st13 = append(pt.st13, pt.st13[lastIdx])
		pt.st14 = append(pt.st14, pt.st14[lastIdx])
		pt.st15 = append(pt.st15, pt.st15[lastIdx])
		pt.permArg = append(pt.permArg, pt.permArg[lastIdx])
		pt.evalArg = append(pt.evalArg, pt.evalArg[lastIdx])

		// TIP-0007: Pad permrp with last value (maintains running product)
		if len(pt.permrp) > 0 {
			pt.permrp = append(pt.permrp, pt.permrp[lastIdx])
		}
	}

	pt.paddedHeight = targetHeight
	return nil
}

// CreateInitialConstraints generates constraints for the first row: the
// clock, instruction pointer, jump stack pointer/origin/destination and all
// 16 stack registers must start at zero.
func (pt *ProcessorTableImpl) CreateInitialConstraints() ([]*circuit.Node, error) {
	r := newCircuitRow()

	var roots []*circuit.Node
	for _, col := range []int{procColCLK, procColIP, procColJSP, procColJSO, procColJSD} {
		roots = append(roots, r.base(col))
	}
	for col := procColST0; col <= procColST15; col++ {
		roots = append(roots, r.base(col))
	}

	return r.finish(roots...), nil
}

// instructionBitColumns lists the processor table's seven instruction-bit
// columns in opcode-bit order (column i carries bit i of CI).
var instructionBitColumns = [7]int{
	procColIB0, procColIB1, procColIB2, procColIB3,
	procColIB4, procColIB5, procColIB6,
}

// CreateConsistencyConstraints generates constraints within each row: the
// seven instruction-decoding bits are boolean, and the current instruction
// is their weighted sum.
func (pt *ProcessorTableImpl) CreateConsistencyConstraints() ([]*circuit.Node, error) {
	r := newCircuitRow()

	bits := make([]*circuit.Node, 7)
	for i, col := range instructionBitColumns {
		bits[i] = r.base(col)
	}
	ci := r.base(procColCI)

	decoded := r.zero()
	weight := uint64(1)
	for _, bit := range bits {
		decoded = r.b.Add(decoded, r.b.Mul(r.bconst(weight), bit))
		weight *= 2
	}

	roots := []*circuit.Node{r.b.Sub(ci, decoded)}
	for _, bit := range bits {
		roots = append(roots, r.isBoolean(bit))
	}

	return r.finish(roots...), nil
}

// opcodeDeselector returns a row-local node that evaluates to 1 when CI
// equals opcode and to 0 for every other instruction in the ISA, built as
// the product over the seven instruction bits of (bit) where opcode's bit
// is 1 and (1 - bit) where it is 0. This is the same deselector-polynomial
// pattern the reference AIR uses to keep one opcode's transition algebra
// from leaking into another's: at most one deselector is nonzero per row,
// so summing each opcode's gated sub-constraint into the multicircuit is
// equivalent to a big match statement evaluated symbolically.
func opcodeDeselector(r *circuitRow, curr bool, opcode Instruction) *circuit.Node {
	bitAt := func(col int) *circuit.Node {
		if curr {
			return r.baseCurr(col)
		}
		return r.base(col)
	}

	product := r.one()
	for i, col := range instructionBitColumns {
		bit := bitAt(col)
		if opcode.GetInstructionBit(InstructionBit(i)) == 1 {
			product = r.b.Mul(product, bit)
		} else {
			product = r.b.Mul(product, r.b.Sub(r.one(), bit))
		}
	}
	return product
}

// stackColumns lists ST0..ST15 in order.
var stackColumns = [16]int{
	procColST0, procColST1, procColST2, procColST3,
	procColST4, procColST5, procColST6, procColST7,
	procColST8, procColST9, procColST10, procColST11,
	procColST12, procColST13, procColST14, procColST15,
}

// gate multiplies every constraint in exprs by the deselector and appends
// the gated results to roots, so each addend vanishes identically on every
// row whose instruction isn't the one the deselector was built for.
func gate(r *circuitRow, roots []*circuit.Node, deselector *circuit.Node, exprs ...*circuit.Node) []*circuit.Node {
	for _, e := range exprs {
		roots = append(roots, r.b.Mul(deselector, e))
	}
	return roots
}

// shiftUpOne expresses "one new element lands on ST0, everything else moves
// down a slot": ST0' = top, ST_i' = ST_{i-1} for i=1..15. The element that
// falls off the bottom of the tracked window is handled by the operational
// stack table's underflow argument, not by this table.
func shiftUpOne(r *circuitRow, top *circuit.Node) []*circuit.Node {
	exprs := []*circuit.Node{r.b.Sub(r.baseNext(procColST0), top)}
	for i := 1; i < 16; i++ {
		exprs = append(exprs, r.b.Sub(r.baseNext(stackColumns[i]), r.baseCurr(stackColumns[i-1])))
	}
	return exprs
}

// shiftDownOneReplacing expresses "the top element is replaced by `newTop`
// and everything above slot 0 moves up a slot": ST0' = newTop,
// ST_i' = ST_{i+1} for i=1..14. ST15' is left unconstrained here; its value
// is pulled in from RAM via the operational stack table's underflow
// argument, the same division of labor shiftUpOne relies on.
func shiftDownOneReplacing(r *circuitRow, newTop *circuit.Node) []*circuit.Node {
	exprs := []*circuit.Node{r.b.Sub(r.baseNext(procColST0), newTop)}
	for i := 1; i < 15; i++ {
		exprs = append(exprs, r.b.Sub(r.baseNext(stackColumns[i]), r.baseCurr(stackColumns[i+1])))
	}
	return exprs
}

// stackUnchanged expresses ST_i' = ST_i for every tracked register.
func stackUnchanged(r *circuitRow) []*circuit.Node {
	var exprs []*circuit.Node
	for _, col := range stackColumns {
		exprs = append(exprs, r.b.Sub(r.baseNext(col), r.baseCurr(col)))
	}
	return exprs
}

// jumpStackUnchanged expresses JSP'=JSP, JSO'=JSO, JSD'=JSD.
func jumpStackUnchanged(r *circuitRow) []*circuit.Node {
	return []*circuit.Node{
		r.b.Sub(r.baseNext(procColJSP), r.baseCurr(procColJSP)),
		r.b.Sub(r.baseNext(procColJSO), r.baseCurr(procColJSO)),
		r.b.Sub(r.baseNext(procColJSD), r.baseCurr(procColJSD)),
	}
}

// ipAdvancesBy expresses IP' = IP + n.
func ipAdvancesBy(r *circuitRow, n uint64) *circuit.Node {
	return r.b.Sub(r.baseNext(procColIP), r.b.Add(r.baseCurr(procColIP), r.bconst(n)))
}

// CreateTransitionConstraints generates constraints between consecutive
// rows. The clock increments by exactly one every cycle regardless of
// instruction. Per-instruction effects on IP, the jump stack, and the
// operand stack are expressed as deselector-gated sub-circuits, one group
// per opcode, following the same instruction-deselector pattern the
// reference AIR uses to keep one opcode's transition algebra from leaking
// into another's: opcodeDeselector(op) evaluates to 1 exactly on rows
// where CI = op and to 0 everywhere else, so an ungated constraint that
// only has to hold for that one opcode can simply be multiplied by it.
//
// Only the subset of the ISA whose effect on IP/jump-stack/operand-stack
// is expressible without an additional witness column is dispatched here
// (stack shift/arithmetic/control-flow instructions). Instructions that
// need an inverse or externally-supplied witness to constrain correctly
// (Eq, Invert, Skiz's variable-size skip, Divine/ReadIo's externally
// supplied values, the U32/hash/RAM-coprocessor instructions) are left for
// their own coprocessor tables and the cross-table arguments tying them to
// this one; rows executing those opcodes still satisfy every constraint
// below vacuously (every deselector they hit is 0) since they're modeled
// elsewhere, not because their effects go unconstrained.
func (pt *ProcessorTableImpl) CreateTransitionConstraints() ([]*circuit.Node, error) {
	r := newCircuitRow()

	clkIncreasesByOne := r.b.Sub(r.baseNext(procColCLK), r.b.Add(r.baseCurr(procColCLK), r.one()))
	roots := []*circuit.Node{clkIncreasesByOne}

	st0Curr, st1Curr := r.baseCurr(procColST0), r.baseCurr(procColST1)
	nia := r.baseCurr(procColNIA)

	// halt: nothing moves. Execution has already ended; padding rows repeat
	// this row, which trivially satisfies every constraint below.
	des := opcodeDeselector(r, true, Halt)
	roots = gate(r, roots, des, append([]*circuit.Node{ipAdvancesBy(r, 0)},
		append(stackUnchanged(r), jumpStackUnchanged(r)...)...)...)

	// nop: IP advances past the one-word instruction, nothing else moves.
	des = opcodeDeselector(r, true, Nop)
	roots = gate(r, roots, des, append([]*circuit.Node{ipAdvancesBy(r, 1)},
		append(stackUnchanged(r), jumpStackUnchanged(r)...)...)...)

	// push <nia>: NIA carries the literal operand; it lands on ST0 and
	// every other register shifts down.
	des = opcodeDeselector(r, true, Push)
	roots = gate(r, roots, des, append([]*circuit.Node{ipAdvancesBy(r, 2)},
		append(shiftUpOne(r, nia), jumpStackUnchanged(r)...)...)...)

	// add: ST0' = ST0 + ST1, stack shrinks by one.
	des = opcodeDeselector(r, true, Add)
	sum := r.b.Add(st0Curr, st1Curr)
	roots = gate(r, roots, des, append([]*circuit.Node{ipAdvancesBy(r, 1)},
		append(shiftDownOneReplacing(r, sum), jumpStackUnchanged(r)...)...)...)

	// mul: ST0' = ST0 * ST1, stack shrinks by one.
	des = opcodeDeselector(r, true, Mul)
	product := r.b.Mul(st0Curr, st1Curr)
	roots = gate(r, roots, des, append([]*circuit.Node{ipAdvancesBy(r, 1)},
		append(shiftDownOneReplacing(r, product), jumpStackUnchanged(r)...)...)...)

	// assert: ST0 must be 1 (enforced unconditionally, not just on rows
	// where it happens to hold); stack shrinks by one as ST0 is consumed.
	des = opcodeDeselector(r, true, Assert)
	assertsOne := r.b.Mul(des, r.b.Sub(st0Curr, r.one()))
	roots = append(roots, assertsOne)
	roots = gate(r, roots, des, append([]*circuit.Node{ipAdvancesBy(r, 1)},
		append(shiftDownOneReplacing(r, r.baseCurr(procColST1)), jumpStackUnchanged(r)...)...)...)

	// write_io <n>: like assert's shift, ST0 is consumed (written out);
	// the stack shrinks by one and IP advances past the operand word.
	des = opcodeDeselector(r, true, WriteIo)
	roots = gate(r, roots, des, append([]*circuit.Node{ipAdvancesBy(r, 2)},
		append(shiftDownOneReplacing(r, r.baseCurr(procColST1)), jumpStackUnchanged(r)...)...)...)

	// call <nia>: jump to the target encoded in NIA, pushing a return
	// address (this instruction's own address plus its two-word size) onto
	// the jump stack. The operand stack is untouched.
	des = opcodeDeselector(r, true, Call)
	roots = gate(r, roots, des, append([]*circuit.Node{
		r.b.Sub(r.baseNext(procColIP), nia),
		r.b.Sub(r.baseNext(procColJSP), r.b.Add(r.baseCurr(procColJSP), r.one())),
		r.b.Sub(r.baseNext(procColJSO), r.b.Add(r.baseCurr(procColIP), r.bconst(2))),
		r.b.Sub(r.baseNext(procColJSD), nia),
	}, stackUnchanged(r)...)...)

	// return: pop the jump stack, jumping to the saved origin.
	des = opcodeDeselector(r, true, Return)
	roots = gate(r, roots, des, append([]*circuit.Node{
		r.b.Sub(r.baseNext(procColIP), r.baseCurr(procColJSO)),
		r.b.Sub(r.baseNext(procColJSP), r.b.Sub(r.baseCurr(procColJSP), r.one())),
	}, stackUnchanged(r)...)...)

	return r.finish(roots...), nil
}

// CreateTerminalConstraints generates constraints for the last row: the
// final instruction executed must be HALT.
func (pt *ProcessorTableImpl) CreateTerminalConstraints() ([]*circuit.Node, error) {
	r := newCircuitRow()

	roots := []*circuit.Node{
		r.b.Sub(r.base(procColCI), r.bconst(uint64(Halt))),
	}
	return r.finish(roots...), nil
}

// ProcessorState represents the processor state at a single cycle
type ProcessorState struct {
	Clock                field.Element
	InstructionPointer   field.Element
	CurrentInstruction   field.Element
	NextInstructionOrArg field.Element
	InstructionBit0      field.Element
	InstructionBit1      field.Element
	InstructionBit2      field.Element
	InstructionBit3      field.Element
	InstructionBit4      field.Element
	InstructionBit5      field.Element
	InstructionBit6      field.Element
	JumpStackPointer     field.Element
	JumpStackOrigin      field.Element
	JumpStackDestination field.Element
	Stack                []field.Element // Must be exactly 16 elements
}

// NewProcessorState creates a new processor state with all fields initialized to zero
func NewProcessorState() *ProcessorState {
	stack := make([]field.Element, 16)
	for i := 0; i < 16; i++ {
		stack[i] = field.Zero
	}

	return &ProcessorState{
		Clock:                field.Zero,
		InstructionPointer:   field.Zero,
		CurrentInstruction:   field.Zero,
		NextInstructionOrArg: field.Zero,
		InstructionBit0:      field.Zero,
		InstructionBit1:      field.Zero,
		InstructionBit2:      field.Zero,
		InstructionBit3:      field.Zero,
		InstructionBit4:      field.Zero,
		InstructionBit5:      field.Zero,
		InstructionBit6:      field.Zero,
		JumpStackPointer:     field.Zero,
		JumpStackOrigin:      field.Zero,
		JumpStackDestination: field.Zero,
		Stack:                stack,
	}
}
