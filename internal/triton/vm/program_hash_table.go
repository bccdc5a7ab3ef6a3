// Package vm implements the Program Hash Table
package vm

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"

	"triton/internal/triton/circuit"
)

const (
	progHashColRoundNumber = 16
	progHashColIsAbsorbing = 17
	progHashColIsSqueezing = 18
)

// ProgramHashTableImpl implements the Program Hash Table (TIP-0006)
// This table computes the hash digest of the program's description using Poseidon in Sponge mode
//
// Key differences from regular Hash Table:
// 1. Single digest for variable-length input (vs multiple fixed-length)
// 2. Sponge mode absorption (absorb + squeeze)
// 3. State registers update by addition (not reset)
// 4. Receives chunks from Program Table via evaluation argument
//
// Main purpose: Compute program digest for recursive verification and program attestation
type ProgramHashTableImpl struct {
	// Main columns (BField elements)
	// State columns: Poseidon state (rate + capacity elements)
	// For Poseidon with rate=10, capacity=6, we have 16 state elements
	state [16][]field.Element // State registers 0-15

	// Control columns
	roundNumber []field.Element // Current round number in Poseidon
	isAbsorbing []field.Element // Boolean: are we absorbing input?
	isSqueezing []field.Element // Boolean: are we squeezing output?

	// Auxiliary columns (XField elements for cross-table arguments)
	recvChunkEvalArg []field.Element // Receives program chunks from Program Table

	height       int
	paddedHeight int

	// Poseidon/Sponge parameters (standard Tip5/Poseidon settings)
	rate      int // Number of elements absorbed per chunk (10 for Tip5)
	capacity  int // Number of capacity elements (6 for Tip5)
	width     int // Total state width (rate + capacity = 16)
	numRounds int // Total number of rounds per permutation
}

// NewProgramHashTable creates a new Program Hash Table with standard parameters
func NewProgramHashTable() *ProgramHashTableImpl {
	// Standard Tip5/Poseidon parameters
	rate := 10
	capacity := 6
	width := rate + capacity // 16
	numRounds := 83          // Standard for Tip5

	pht := &ProgramHashTableImpl{
		state:            [16][]field.Element{},
		roundNumber:      make([]field.Element, 0),
		isAbsorbing:      make([]field.Element, 0),
		isSqueezing:      make([]field.Element, 0),
		recvChunkEvalArg: make([]field.Element, 0),
		height:           0,
		paddedHeight:     0,
		rate:             rate,
		capacity:         capacity,
		width:            width,
		numRounds:        numRounds,
	}

	// Initialize state arrays
	for i := 0; i < 16; i++ {
		pht.state[i] = make([]field.Element, 0)
	}

	return pht
}

// GetID returns the table's identifier
func (pht *ProgramHashTableImpl) GetID() TableID {
	return ProgramHashTable
}

// GetHeight returns the current height
func (pht *ProgramHashTableImpl) GetHeight() int {
	return pht.height
}

// GetPaddedHeight returns the padded height
func (pht *ProgramHashTableImpl) GetPaddedHeight() int {
	return pht.paddedHeight
}

// GetMainColumns returns all main columns
func (pht *ProgramHashTableImpl) GetMainColumns() [][]field.Element {
	cols := make([][]field.Element, 0, 16+3)

	// Add all 16 state columns
	for i := 0; i < 16; i++ {
		cols = append(cols, pht.state[i])
	}

	// Add control columns
	cols = append(cols, pht.roundNumber)
	cols = append(cols, pht.isAbsorbing)
	cols = append(cols, pht.isSqueezing)

	return cols
}

// GetAuxiliaryColumns returns auxiliary columns
func (pht *ProgramHashTableImpl) GetAuxiliaryColumns() [][]field.Element {
	return [][]field.Element{
		pht.recvChunkEvalArg,
	}
}

// ProgramHashEntry represents a single row in the Program Hash Table
type ProgramHashEntry struct {
	State       [16]field.Element // Full Poseidon state
	RoundNumber field.Element     // Current round number
	IsAbsorbing field.Element     // Are we absorbing?
	IsSqueezing field.Element     // Are we squeezing?
}

// AddRow adds a new row to the program hash table
func (pht *ProgramHashTableImpl) AddRow(entry *ProgramHashEntry) error {
	if entry == nil {
		return fmt.Errorf("program hash entry cannot be nil")
	}

	// Add state columns
	for i := 0; i < 16; i++ {
		pht.state[i] = append(pht.state[i], entry.State[i])
	}

	// Add control columns
	pht.roundNumber = append(pht.roundNumber, entry.RoundNumber)
	pht.isAbsorbing = append(pht.isAbsorbing, entry.IsAbsorbing)
	pht.isSqueezing = append(pht.isSqueezing, entry.IsSqueezing)

	// Initialize auxiliary columns (computed during proving)
	pht.recvChunkEvalArg = append(pht.recvChunkEvalArg, field.Zero)

	pht.height++
	return nil
}

// Pad pads the table to the target height with padding rows
func (pht *ProgramHashTableImpl) Pad(targetHeight int) error {
	if targetHeight < pht.height || pht.height == 0 {
		return fmt.Errorf("invalid padding: target=%d, current=%d", targetHeight, pht.height)
	}

	lastIdx := pht.height - 1
	for i := pht.height; i < targetHeight; i++ {
		// Pad with last row values
		for j := 0; j < 16; j++ {
			pht.state[j] = append(pht.state[j], pht.state[j][lastIdx])
		}
		pht.roundNumber = append(pht.roundNumber, pht.roundNumber[lastIdx])
		pht.isAbsorbing = append(pht.isAbsorbing, pht.isAbsorbing[lastIdx])
		pht.isSqueezing = append(pht.isSqueezing, pht.isSqueezing[lastIdx])
		pht.recvChunkEvalArg = append(pht.recvChunkEvalArg, pht.recvChunkEvalArg[lastIdx])
	}

	pht.paddedHeight = targetHeight
	return nil
}

// CreateInitialConstraints requires the sponge's capacity registers to
// start at zero, and the permutation to begin on round zero.
func (pht *ProgramHashTableImpl) CreateInitialConstraints() ([]*circuit.Node, error) {
	r := newCircuitRow()
	roots := []*circuit.Node{r.base(progHashColRoundNumber)}
	for i := pht.rate; i < pht.width; i++ {
		roots = append(roots, r.base(i))
	}
	return r.finish(roots...), nil
}

// CreateConsistencyConstraints requires isAbsorbing and isSqueezing to be
// boolean and mutually exclusive.
func (pht *ProgramHashTableImpl) CreateConsistencyConstraints() ([]*circuit.Node, error) {
	r := newCircuitRow()
	isAbsorbing, isSqueezing := r.base(progHashColIsAbsorbing), r.base(progHashColIsSqueezing)
	roots := []*circuit.Node{
		r.isBoolean(isAbsorbing),
		r.isBoolean(isSqueezing),
		r.isBoolean(r.b.Add(isAbsorbing, isSqueezing)),
	}
	return r.finish(roots...), nil
}

// CreateTransitionConstraints requires the round counter to cycle the same
// way the regular hash table's does, and the capacity registers to stay
// untouched while absorbing (sponge capacity is never part of the
// attacker-visible rate). The chunk-receive evaluation argument against the
// program table, and the full Poseidon round algebra parameterized by
// round constants and the MDS matrix, live outside this table's own
// per-row polynomials, same as in the regular hash table.
func (pht *ProgramHashTableImpl) CreateTransitionConstraints() ([]*circuit.Node, error) {
	r := newCircuitRow()

	round, roundNext := r.baseCurr(progHashColRoundNumber), r.baseNext(progHashColRoundNumber)
	roundAdvancesOrResets := r.b.Mul(r.b.Sub(roundNext, r.b.Add(round, r.one())), roundNext)

	isAbsorbing := r.baseCurr(progHashColIsAbsorbing)
	roots := []*circuit.Node{roundAdvancesOrResets}
	for i := pht.rate; i < pht.width; i++ {
		capacityUnchangedWhileAbsorbing := r.b.Mul(isAbsorbing, r.b.Sub(r.baseNext(i), r.baseCurr(i)))
		roots = append(roots, capacityUnchangedWhileAbsorbing)
	}
	return r.finish(roots...), nil
}

// CreateTerminalConstraints generates constraints for the last row. None
// are specific to this table: the final digest (the first five rate
// registers, squeezed) is matched against the processor table's stack
// contents and the public output via the evaluation argument.
func (pht *ProgramHashTableImpl) CreateTerminalConstraints() ([]*circuit.Node, error) {
	return nil, nil
}

// ComputeProgramDigest computes the Poseidon hash digest of a program
// This is the main entry point for program attestation
func (pht *ProgramHashTableImpl) ComputeProgramDigest(program *Program) ([5]field.Element, error) {
	if program == nil {
		return [5]field.Element{}, fmt.Errorf("program cannot be nil")
	}

	// Encode program instructions as field elements
	// Each instruction contributes 2 elements: opcode + argument (or zero)
	programElements := make([]field.Element, 0, len(program.Instructions)*2)
	for _, instr := range program.Instructions {
		// Add instruction opcode
		programElements = append(programElements, field.New(uint64(instr.Instruction)))

		// Add argument if present, otherwise add zero
		if instr.Argument != nil {
			programElements = append(programElements, *instr.Argument)
		} else {
			programElements = append(programElements, field.Zero)
		}
	}

	// Hash the program description using Poseidon
	digestElement := hash.PoseidonHash(programElements)

	// Create 5-element digest (standard for Tip5/Poseidon in Triton VM)
	// For now, we use the single hash output in the first position and zeros for the rest
	// In a full Tip5 implementation, we would squeeze 5 elements from the sponge
	digest := [5]field.Element{
		digestElement,
		field.Zero,
		field.Zero,
		field.Zero,
		field.Zero,
	}

	return digest, nil
}

// ===========================================================================
// TIP-0006: Boundary Constraint Helpers
// ===========================================================================

// ComputeDigestEvaluation computes the evaluation polynomial δ for a digest
// According to TIP-0006: δ = γ^5 + Σ(i=0..4) digest[4-i] · γ^i
// This is used to link the digest across ProgramHashTable, ProcessorTable stack, and output
func ComputeDigestEvaluation(digest [5]field.Element, gamma field.Element) field.Element {
	gamma2 := gamma.Mul(gamma)
	gamma3 := gamma2.Mul(gamma)
	gamma4 := gamma3.Mul(gamma)
	gamma5 := gamma4.Mul(gamma)

	result := gamma5
	gammaPower := field.One
	for i := 0; i < 5; i++ {
		result = result.Add(digest[4-i].Mul(gammaPower))
		gammaPower = gammaPower.Mul(gamma)
	}

	return result
}

// ValidateDigestConsistency checks that the digest is consistent across all
// three locations it must agree on: the program hash table's own output,
// the processor table's operational stack at the halt instruction, and the
// publicly declared standard output.
func ValidateDigestConsistency(
	programHashDigest [5]field.Element,
	processorStackDigest [5]field.Element,
	outputDigest [5]field.Element,
) bool {
	for i := 0; i < 5; i++ {
		if !programHashDigest[i].Equal(processorStackDigest[i]) {
			return false
		}
		if !programHashDigest[i].Equal(outputDigest[i]) {
			return false
		}
	}
	return true
}
