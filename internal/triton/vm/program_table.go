// Package vm implements the Program Table
package vm

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"triton/internal/triton/circuit"
)

const (
	progColAddress = iota
	progColInstruction
	progColLookupMultiplicity
	progColIndexInChunk
	progColMaxMinusIndexInv
	progColIsHashInputPadding
	progColIsTablePadding
)

// ProgramTableImpl implements the Program Table
// This table provides program attestation and proves the executed program is correct
//
// The program table records:
// 1. All instructions in the program (address + instruction pairs)
// 2. Instruction lookup server (for processor to query instructions)
// 3. Program attestation via hash chunks (Poseidon in our case)
//
// Main purpose: Prove program integrity and provide instruction lookups
type ProgramTableImpl struct {
	// Main columns (BField elements)
	address            []field.Element // Instruction address in program memory
	instruction        []field.Element // The instruction at this address
	lookupMultiplicity []field.Element // How many times this instruction is looked up
	indexInChunk       []field.Element // Index within current hash chunk (0 to RATE-1)
	maxMinusIndexInv   []field.Element // Inverse of (MAX_INDEX - indexInChunk), for boundary detection
	isHashInputPadding []field.Element // Boolean: is this row hash input padding?
	isTablePadding     []field.Element // Boolean: is this row table padding?

	// Auxiliary columns (XField elements for cross-table arguments)
	instrLookupLogDeriv []field.Element // Log derivative for instruction lookup (server side)
	prepareChunkRunEval []field.Element // Running evaluation for prepare chunk (program attestation)
	sendChunkRunEval    []field.Element // Running evaluation for send chunk (program attestation)

	height       int
	paddedHeight int

	// Hash chunk rate (for Poseidon, typically 4 or 8 depending on configuration)
	chunkRate int
}

// NewProgramTable creates a new Program Table
func NewProgramTable(chunkRate int) *ProgramTableImpl {
	return &ProgramTableImpl{
		address:             make([]field.Element, 0),
		instruction:         make([]field.Element, 0),
		lookupMultiplicity:  make([]field.Element, 0),
		indexInChunk:        make([]field.Element, 0),
		maxMinusIndexInv:    make([]field.Element, 0),
		isHashInputPadding:  make([]field.Element, 0),
		isTablePadding:      make([]field.Element, 0),
		instrLookupLogDeriv: make([]field.Element, 0),
		prepareChunkRunEval: make([]field.Element, 0),
		sendChunkRunEval:    make([]field.Element, 0),
		height:              0,
		paddedHeight:        0,
		chunkRate:           chunkRate,
	}
}

// GetID returns the table's identifier
func (pt *ProgramTableImpl) GetID() TableID {
	return ProgramTable
}

// GetHeight returns the current height
func (pt *ProgramTableImpl) GetHeight() int {
	return pt.height
}

// GetPaddedHeight returns the padded height
func (pt *ProgramTableImpl) GetPaddedHeight() int {
	return pt.paddedHeight
}

// GetMainColumns returns all main columns
func (pt *ProgramTableImpl) GetMainColumns() [][]field.Element {
	return [][]field.Element{
		pt.address,
		pt.instruction,
		pt.lookupMultiplicity,
		pt.indexInChunk,
		pt.maxMinusIndexInv,
		pt.isHashInputPadding,
		pt.isTablePadding,
	}
}

// GetAuxiliaryColumns returns auxiliary columns
func (pt *ProgramTableImpl) GetAuxiliaryColumns() [][]field.Element {
	return [][]field.Element{
		pt.instrLookupLogDeriv,
		pt.prepareChunkRunEval,
		pt.sendChunkRunEval,
	}
}

// AddRow adds a new row to the program table
func (pt *ProgramTableImpl) AddRow(entry *ProgramEntry) error {
	if entry == nil {
		return fmt.Errorf("program entry cannot be nil")
	}

	// Validation notes:
	// - Address must be monotonically increasing
	// - Instruction must be a valid opcode
	// - Index in chunk must be 0 <= idx < chunkRate
	// - isHashInputPadding and isTablePadding must be boolean (0 or 1)

	// Add main column values
	pt.address = append(pt.address, entry.Address)
	pt.instruction = append(pt.instruction, entry.Instruction)
	pt.lookupMultiplicity = append(pt.lookupMultiplicity, entry.LookupMultiplicity)
	pt.indexInChunk = append(pt.indexInChunk, entry.IndexInChunk)
	pt.maxMinusIndexInv = append(pt.maxMinusIndexInv, entry.MaxMinusIndexInv)
	pt.isHashInputPadding = append(pt.isHashInputPadding, entry.IsHashInputPadding)
	pt.isTablePadding = append(pt.isTablePadding, entry.IsTablePadding)

	// Initialize auxiliary columns (computed during proving)
	pt.instrLookupLogDeriv = append(pt.instrLookupLogDeriv, field.Zero)
	pt.prepareChunkRunEval = append(pt.prepareChunkRunEval, field.Zero)
	pt.sendChunkRunEval = append(pt.sendChunkRunEval, field.Zero)

	pt.height++
	return nil
}

// Pad pads the table to the target height with padding rows
func (pt *ProgramTableImpl) Pad(targetHeight int) error {
	if targetHeight < pt.height {
		return fmt.Errorf("target height %d is less than current height %d", targetHeight, pt.height)
	}

	if pt.height == 0 {
		return fmt.Errorf("cannot pad empty table")
	}

	// Padding rows have isTablePadding = 1
	tablePaddingIndicator := field.One

	// Use last row values for other fields
	lastIdx := pt.height - 1
	paddingRows := targetHeight - pt.height

	for i := 0; i < paddingRows; i++ {
		pt.address = append(pt.address, pt.address[lastIdx])
		pt.instruction = append(pt.instruction, pt.instruction[lastIdx])
		pt.lookupMultiplicity = append(pt.lookupMultiplicity, field.Zero) // No lookups in padding
		pt.indexInChunk = append(pt.indexInChunk, pt.indexInChunk[lastIdx])
		pt.maxMinusIndexInv = append(pt.maxMinusIndexInv, pt.maxMinusIndexInv[lastIdx])
		pt.isHashInputPadding = append(pt.isHashInputPadding, pt.isHashInputPadding[lastIdx])
		pt.isTablePadding = append(pt.isTablePadding, tablePaddingIndicator)
		pt.instrLookupLogDeriv = append(pt.instrLookupLogDeriv, pt.instrLookupLogDeriv[lastIdx])
		pt.prepareChunkRunEval = append(pt.prepareChunkRunEval, pt.prepareChunkRunEval[lastIdx])
		pt.sendChunkRunEval = append(pt.sendChunkRunEval, pt.sendChunkRunEval[lastIdx])
	}

	pt.paddedHeight = targetHeight
	return nil
}

// CreateInitialConstraints generates constraints for the first row: the
// address and chunk index both start at zero, and the first row is never
// hash-input padding.
func (pt *ProgramTableImpl) CreateInitialConstraints() ([]*circuit.Node, error) {
	r := newCircuitRow()
	roots := []*circuit.Node{
		r.base(progColAddress),
		r.base(progColIndexInChunk),
		r.base(progColIsHashInputPadding),
	}
	return r.finish(roots...), nil
}

// CreateConsistencyConstraints requires isHashInputPadding and
// isTablePadding to be boolean, and maxMinusIndexInv to behave as a
// Bezout-style inverse of (chunkRate-1 - indexInChunk).
func (pt *ProgramTableImpl) CreateConsistencyConstraints() ([]*circuit.Node, error) {
	r := newCircuitRow()

	maxIdx := r.bconst(uint64(pt.chunkRate - 1))
	remaining := r.b.Sub(maxIdx, r.base(progColIndexInChunk))
	inv := r.base(progColMaxMinusIndexInv)
	invWellFormed := r.b.Mul(remaining, r.b.Sub(r.one(), r.b.Mul(remaining, inv)))

	roots := []*circuit.Node{
		invWellFormed,
		r.isBoolean(r.base(progColIsHashInputPadding)),
		r.isBoolean(r.base(progColIsTablePadding)),
	}
	return r.finish(roots...), nil
}

// CreateTransitionConstraints generates constraints between consecutive
// rows: the address either stays the same or climbs by one, and table
// padding, once begun, is sticky. The instruction-lookup log derivative,
// the chunk-preparation running evaluation, and the chunk-send running
// evaluation (program attestation against the processor and hash tables)
// are all expressed as cross-table evaluation/lookup arguments rather than
// per-row polynomials in this table's own transition constraints.
func (pt *ProgramTableImpl) CreateTransitionConstraints() ([]*circuit.Node, error) {
	r := newCircuitRow()

	addr, addrNext := r.baseCurr(progColAddress), r.baseNext(progColAddress)
	addrDelta := r.b.Sub(addrNext, addr)
	addrStaysOrIncrements := r.b.Mul(addrDelta, r.b.Sub(addrDelta, r.one()))

	isTablePadding, isTablePaddingNext := r.baseCurr(progColIsTablePadding), r.baseNext(progColIsTablePadding)
	tablePaddingIsSticky := r.b.Mul(isTablePadding, r.b.Sub(r.one(), isTablePaddingNext))

	roots := []*circuit.Node{addrStaysOrIncrements, tablePaddingIsSticky}
	return r.finish(roots...), nil
}

// CreateTerminalConstraints generates constraints for the last row. None
// are specific to this table: the final chunk-send running evaluation is
// checked against the publicly known program digest by the evaluation
// argument, not a per-row polynomial here.
func (pt *ProgramTableImpl) CreateTerminalConstraints() ([]*circuit.Node, error) {
	return nil, nil
}

// UpdateInstructionLookupLogDerivative updates the log derivative for instruction lookups
// This implements the server side of the lookup argument with the Processor table
func (pt *ProgramTableImpl) UpdateInstructionLookupLogDerivative(challenges map[string]field.Element) error {
	if pt.height == 0 {
		return fmt.Errorf("cannot update instruction lookup on empty table")
	}

	// Extract challenges
	indeterminate, ok := challenges["instruction_lookup_indeterminate"]
	if !ok {
		return fmt.Errorf("missing instruction_lookup_indeterminate challenge")
	}
	addressWeight, ok := challenges["instruction_address_weight"]
	if !ok {
		return fmt.Errorf("missing instruction_address_weight challenge")
	}
	instrWeight, ok := challenges["instruction_weight"]
	if !ok {
		return fmt.Errorf("missing instruction_weight challenge")
	}

	// Initialize first row
	pt.instrLookupLogDeriv[0] = field.Zero

	// Update subsequent rows
	for i := 1; i < pt.height; i++ {
		// Check if there are lookups for this instruction
		multiplicity := pt.lookupMultiplicity[i-1]

		if !multiplicity.Equal(field.Zero) {
			// Compress row: address_weight * address + instr_weight * instruction
			compressedRow := addressWeight.Mul(pt.address[i-1]).
				Add(instrWeight.Mul(pt.instruction[i-1]))

			// log_deriv[i] = log_deriv[i-1] + multiplicity/(indeterminate - compressed_row)
			denominator := indeterminate.Sub(compressedRow)
			inverse := denominator.Inverse()

			contribution := multiplicity.Mul(inverse)
			pt.instrLookupLogDeriv[i] = pt.instrLookupLogDeriv[i-1].Add(contribution)
		} else {
			// No lookups, carry forward
			pt.instrLookupLogDeriv[i] = pt.instrLookupLogDeriv[i-1]
		}
	}

	return nil
}

// ProgramEntry represents a single entry in the program table
type ProgramEntry struct {
	Address            field.Element // Instruction address
	Instruction        field.Element // The instruction opcode
	LookupMultiplicity field.Element // How many times this is looked up
	IndexInChunk       field.Element // Index within hash chunk
	MaxMinusIndexInv   field.Element // Inverse of (MAX_INDEX - IndexInChunk)
	IsHashInputPadding field.Element // Boolean: hash input padding
	IsTablePadding     field.Element // Boolean: table padding
}

// NewProgramEntry creates a new program entry
func NewProgramEntry(
	address, instruction, lookupMultiplicity, indexInChunk field.Element,
) (*ProgramEntry, error) {
	return &ProgramEntry{
		Address:            address,
		Instruction:        instruction,
		LookupMultiplicity: lookupMultiplicity,
		IndexInChunk:       indexInChunk,
		MaxMinusIndexInv:   field.Zero, // Computed during preprocessing
		IsHashInputPadding: field.Zero, // Typically false unless needed
		IsTablePadding:     field.Zero, // False for actual instructions
	}, nil
}
