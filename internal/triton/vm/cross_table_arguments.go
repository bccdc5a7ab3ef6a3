// Package vm implements cross-table arguments for multi-table architecture
// These arguments link different tables together to prove consistency
package vm

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// CrossTableArgumentType defines the type of cross-table argument
type CrossTableArgumentType int

const (
	// PermutationArgumentType proves two tables contain the same multiset of rows
	// Uses running product: RP[i] = RP[i-1] * (challenge - compressed_row[i])
	PermutationArgumentType CrossTableArgumentType = iota

	// EvaluationArgumentType proves correct evaluation of a polynomial at a point
	// Uses running sum: RE[i] = RE[i-1] * challenge + symbol[i]
	EvaluationArgumentType

	// LookupArgumentType proves values exist in a lookup table
	// Uses log-derivative: LD[i] = LD[i-1] + 1/(challenge - value[i])
	LookupArgumentType

	// ContiguityArgumentType proves memory regions are contiguous
	// Uses Bezout relation with running products and formal derivatives
	ContiguityArgumentType
)

// CrossTableArgument represents a cross-table argument between two tables
type CrossTableArgument struct {
	Type        CrossTableArgumentType
	SourceTable TableID
	TargetTable TableID
	Challenge   field.Element // Fiat-Shamir challenge
}

// PermutationArgumentComputer computes permutation arguments
type PermutationArgumentComputer struct{}

// NewPermutationArgumentComputer creates a new permutation argument computer
func NewPermutationArgumentComputer() *PermutationArgumentComputer {
	return &PermutationArgumentComputer{}
}

// DefaultInitial returns the default initial value for permutation arguments
func (pac *PermutationArgumentComputer) DefaultInitial() field.Element {
	return field.One
}

// ComputeTerminal computes the terminal value of a permutation argument
// Formula: initial · Π_i (challenge - symbols[i])
func (pac *PermutationArgumentComputer) ComputeTerminal(
	symbols []field.Element,
	initial field.Element,
	challenge field.Element,
) field.Element {
	result := initial
	for _, symbol := range symbols {
		result = result.Mul(challenge.Sub(symbol))
	}
	return result
}

// ComputeRunningProduct computes the running product for a table
// Returns: [RP[0], RP[1], ..., RP[n-1]] where RP[i] = RP[i-1] * (challenge - symbols[i])
func (pac *PermutationArgumentComputer) ComputeRunningProduct(
	symbols []field.Element,
	initial field.Element,
	challenge field.Element,
) ([]field.Element, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("symbols cannot be empty")
	}

	runningProduct := make([]field.Element, len(symbols))
	prev := initial
	for i, symbol := range symbols {
		prev = prev.Mul(challenge.Sub(symbol))
		runningProduct[i] = prev
	}

	return runningProduct, nil
}

// EvaluationArgumentComputer computes evaluation arguments
type EvaluationArgumentComputer struct{}

// NewEvaluationArgumentComputer creates a new evaluation argument computer
func NewEvaluationArgumentComputer() *EvaluationArgumentComputer {
	return &EvaluationArgumentComputer{}
}

// DefaultInitial returns the default initial value for evaluation arguments
func (eac *EvaluationArgumentComputer) DefaultInitial() field.Element {
	return field.One
}

// ComputeTerminal computes the terminal value of an evaluation argument
// Formula: initial·x^n + Σ_i symbols[n-i]·x^i, accumulated via Horner's method
func (eac *EvaluationArgumentComputer) ComputeTerminal(
	symbols []field.Element,
	initial field.Element,
	challenge field.Element,
) field.Element {
	result := initial
	for _, symbol := range symbols {
		result = challenge.Mul(result).Add(symbol)
	}
	return result
}

// ComputeRunningEvaluation computes the running evaluation for a table
// Returns: [RE[0], RE[1], ..., RE[n-1]] where RE[i] = challenge * RE[i-1] + symbols[i]
func (eac *EvaluationArgumentComputer) ComputeRunningEvaluation(
	symbols []field.Element,
	initial field.Element,
	challenge field.Element,
) ([]field.Element, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("symbols cannot be empty")
	}

	runningEval := make([]field.Element, len(symbols))
	prev := initial
	for i, symbol := range symbols {
		prev = challenge.Mul(prev).Add(symbol)
		runningEval[i] = prev
	}

	return runningEval, nil
}

// LookupArgumentComputer computes lookup arguments
type LookupArgumentComputer struct{}

// NewLookupArgumentComputer creates a new lookup argument computer
func NewLookupArgumentComputer() *LookupArgumentComputer {
	return &LookupArgumentComputer{}
}

// DefaultInitial returns the default initial value for lookup arguments
func (lac *LookupArgumentComputer) DefaultInitial() field.Element {
	return field.Zero
}

// ComputeTerminal computes the terminal value of a lookup argument
// Formula: initial + Σ_i 1/(challenge - symbols[i]), the log-derivative accumulation
func (lac *LookupArgumentComputer) ComputeTerminal(
	symbols []field.Element,
	initial field.Element,
	challenge field.Element,
) (field.Element, error) {
	result := initial
	for _, symbol := range symbols {
		denominator := challenge.Sub(symbol)
		if denominator.IsZero() {
			return field.Zero, fmt.Errorf("cannot compute lookup: challenge equals symbol")
		}
		result = result.Add(denominator.Inverse())
	}
	return result, nil
}

// ComputeLogDerivative computes the log-derivative for a table
// Returns: [LD[0], LD[1], ..., LD[n-1]] where LD[i] = LD[i-1] + 1/(challenge - symbols[i])
func (lac *LookupArgumentComputer) ComputeLogDerivative(
	symbols []field.Element,
	initial field.Element,
	challenge field.Element,
) ([]field.Element, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("symbols cannot be empty")
	}

	logDeriv := make([]field.Element, len(symbols))
	prev := initial
	for i, symbol := range symbols {
		denominator := challenge.Sub(symbol)
		if denominator.IsZero() {
			return nil, fmt.Errorf("cannot compute log derivative at index %d: challenge equals symbol", i)
		}
		prev = prev.Add(denominator.Inverse())
		logDeriv[i] = prev
	}

	return logDeriv, nil
}

// GrandCrossTableArgument manages all cross-table arguments over a
// complete algebraic execution trace.
type GrandCrossTableArgument struct {
	permArgs   *PermutationArgumentComputer
	evalArgs   *EvaluationArgumentComputer
	lookupArgs *LookupArgumentComputer
}

// NewGrandCrossTableArgument creates a new grand cross-table argument manager
func NewGrandCrossTableArgument() *GrandCrossTableArgument {
	return &GrandCrossTableArgument{
		permArgs:   NewPermutationArgumentComputer(),
		evalArgs:   NewEvaluationArgumentComputer(),
		lookupArgs: NewLookupArgumentComputer(),
	}
}

// VerifyTerminalConstraints verifies all cross-table terminal constraints
// by comparing the last row of each side's running-product/evaluation/
// log-derivative accumulator column. SimpleTraceRecorder.GenerateAET calls
// it on the freshly built AET, before any proof is made.
func (gcta *GrandCrossTableArgument) VerifyTerminalConstraints(aet *AET) error {
	if aet.ProcessorTable == nil || aet.OpStackTable == nil || aet.RAMTable == nil ||
		aet.JumpStackTable == nil || aet.ProgramTable == nil || aet.HashTable == nil ||
		aet.U32Table == nil || aet.CascadeTable == nil || aet.LookupTable == nil {
		return fmt.Errorf("missing table in AET")
	}

	// Permutation: Processor <-> OpStack, RAM, JumpStack.
	if err := matchTerminal("processor-opstack permutation",
		lastOf(aet.ProcessorTable.permArg), lastOf(aet.OpStackTable.runningProductPermArg)); err != nil {
		return err
	}
	if err := matchTerminal("processor-ram permutation",
		lastOf(aet.ProcessorTable.permArg), lastOf(aet.RAMTable.runningProductPerm)); err != nil {
		return err
	}
	if err := matchTerminal("processor-jumpstack permutation",
		lastOf(aet.ProcessorTable.permArg), lastOf(aet.JumpStackTable.runningProductPerm)); err != nil {
		return err
	}

	// Evaluation: Processor <-> Hash (hash operations), and the program
	// attestation chain Program -> ProgramHash.
	if err := matchTerminal("processor-hash evaluation",
		lastOf(aet.ProcessorTable.evalArg), lastOf(aet.HashTable.hashEvalArg)); err != nil {
		return err
	}
	if aet.ProgramHashTable != nil {
		if err := matchTerminal("program-programhash evaluation",
			lastOf(aet.ProgramTable.sendChunkRunEval), lastOf(aet.ProgramHashTable.recvChunkEvalArg)); err != nil {
			return err
		}
	}

	// Lookup: Processor -> Program (instruction lookup), U32 -> Cascade,
	// Cascade -> Lookup. Processor -> U32 is not compared here.
	if err := matchTerminal("instruction lookup",
		lastOf(aet.ProcessorTable.permArg), lastOf(aet.ProgramTable.instrLookupLogDeriv)); err != nil {
		return err
	}
	if err := matchTerminal("u32 lookup",
		lastOf(aet.U32Table.lookupLogDeriv), lastOf(aet.CascadeTable.lookupTableLogDeriv)); err != nil {
		return err
	}
	if err := matchTerminal("cascade-lookup table lookup",
		lastOf(aet.CascadeTable.lookupTableLogDeriv), lastOf(aet.LookupTable.lookupLogDeriv)); err != nil {
		return err
	}

	// Program attestation (TIP-0006): the digest squeezed by the program
	// hash table, the digest left on the processor's operational stack by
	// the halt instruction, and the program digest recorded on the AET
	// must all agree. Only checked once the program hash table has
	// actually recorded a squeeze; trace recording does not yet populate
	// it, so an empty table means this check is not yet applicable rather
	// than failed.
	if aet.ProgramHashTable != nil && aet.ProgramHashTable.GetHeight() > 0 {
		squeezed := [5]field.Element{
			lastOf(aet.ProgramHashTable.state[0]),
			lastOf(aet.ProgramHashTable.state[1]),
			lastOf(aet.ProgramHashTable.state[2]),
			lastOf(aet.ProgramHashTable.state[3]),
			lastOf(aet.ProgramHashTable.state[4]),
		}
		stackDigest := [5]field.Element{
			lastOf(aet.ProcessorTable.st0),
			lastOf(aet.ProcessorTable.st1),
			lastOf(aet.ProcessorTable.st2),
			lastOf(aet.ProcessorTable.st3),
			lastOf(aet.ProcessorTable.st4),
		}
		if !ValidateDigestConsistency(squeezed, stackDigest, aet.ProgramDigest) {
			return fmt.Errorf("program digest mismatch across hash table, processor stack, and AET")
		}
	}

	return nil
}

// lastOf returns the final element of a column, or the zero element for an
// empty column.
func lastOf(col []field.Element) field.Element {
	if len(col) == 0 {
		return field.Zero
	}
	return col[len(col)-1]
}

// matchTerminal compares the terminal values of two sides of a cross-table
// argument. Both sides are expected to have been filled in by their
// respective table's running-product/evaluation/log-derivative update
// method, using the same Fiat-Shamir challenges drawn from the transcript.
func matchTerminal(name string, a, b field.Element) error {
	if !a.Equal(b) {
		return fmt.Errorf("%s: terminal values disagree", name)
	}
	return nil
}

// CompressRow compresses a row into a single field element using challenges
// Formula: Σ challenge_i * column_i
func CompressRow(row []field.Element, challenges []field.Element) (field.Element, error) {
	if len(row) != len(challenges) {
		return field.Zero, fmt.Errorf("row length %d does not match challenges length %d", len(row), len(challenges))
	}

	result := field.Zero
	for i := range row {
		result = result.Add(challenges[i].Mul(row[i]))
	}

	return result, nil
}
