// Package vm provides the Triton VM virtual machine implementation
package vm

import (
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"triton/internal/triton/circuit"
)

// TableID uniquely identifies each table in the multi-table architecture
type TableID int

const (
	// ProcessorTable records the main execution trace
	ProcessorTable TableID = iota

	// OperationalStackTable tracks stack operations
	OperationalStackTable

	// RAMTable ensures memory consistency
	RAMTable

	// JumpStackTable handles control flow
	JumpStackTable

	// HashTable records cryptographic operations (Poseidon)
	HashTable

	// U32Table handles 32-bit operations
	U32Table

	// ProgramTable provides program attestation
	ProgramTable

	// CascadeTable optimizes lookup arguments
	CascadeTable

	// LookupTable stores precomputed values
	LookupTable

	// ProgramHashTable computes program digest (TIP-0006)
	ProgramHashTable
)

// String returns the name of the table
func (id TableID) String() string {
	switch id {
	case ProcessorTable:
		return "Processor"
	case OperationalStackTable:
		return "OperationalStack"
	case RAMTable:
		return "RAM"
	case JumpStackTable:
		return "JumpStack"
	case HashTable:
		return "Hash"
	case U32Table:
		return "U32"
	case ProgramTable:
		return "Program"
	case CascadeTable:
		return "Cascade"
	case LookupTable:
		return "Lookup"
	case ProgramHashTable:
		return "ProgramHash"
	default:
		return "Unknown"
	}
}

// ExecutionTable is the interface that all tables must implement
type ExecutionTable interface {
	// GetID returns the table's unique identifier
	GetID() TableID

	// GetHeight returns the current height (number of rows) before padding
	GetHeight() int

	// GetPaddedHeight returns the height after padding to power of 2
	GetPaddedHeight() int

	// GetMainColumns returns the main columns (BField elements)
	GetMainColumns() [][]field.Element

	// GetAuxiliaryColumns returns the auxiliary columns (XField elements for arguments)
	GetAuxiliaryColumns() [][]field.Element

	// Pad extends the table to the target height with padding rows
	Pad(targetHeight int) error

	// CreateInitialConstraints generates constraints for the first row
	CreateInitialConstraints() ([]*circuit.Node, error)

	// CreateConsistencyConstraints generates constraints within each row
	CreateConsistencyConstraints() ([]*circuit.Node, error)

	// CreateTransitionConstraints generates constraints between consecutive rows
	CreateTransitionConstraints() ([]*circuit.Node, error)

	// CreateTerminalConstraints generates constraints for the last row
	CreateTerminalConstraints() ([]*circuit.Node, error)
}

// TableLinkage describes how tables are connected
type TableLinkage struct {
	FromTable TableID
	ToTable   TableID
	LinkType  LinkageType
	Challenge field.Element // Verifier challenge for this linkage
}

// LinkageType defines the type of cross-table argument
type LinkageType int

const (
	// PermutationArgument proves one table is a permutation of another
	PermutationArgument LinkageType = iota

	// EvaluationArgument links table to public input/output
	EvaluationArgument

	// LookupArgument proves values in one table appear in another
	LookupArgument

	// ContiguityArgument proves memory pointer regions are contiguous
	ContiguityArgument
)

// String returns the name of the linkage type
func (lt LinkageType) String() string {
	switch lt {
	case PermutationArgument:
		return "Permutation"
	case EvaluationArgument:
		return "Evaluation"
	case LookupArgument:
		return "Lookup"
	case ContiguityArgument:
		return "Contiguity"
	default:
		return "Unknown"
	}
}

