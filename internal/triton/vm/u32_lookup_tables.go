// Package vm implements U32, Cascade, and Lookup tables
// These three tables work together to provide efficient 32-bit operations and range checks
package vm

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"triton/internal/triton/circuit"
)

const (
	u32ColCopyFlag = iota
	u32ColBits
	u32ColBitsMinus33Inv
	u32ColCI
	u32ColLHS
	u32ColLHSInv
	u32ColRHS
	u32ColRHSInv
	u32ColResult
	u32ColLookupMultiplicity
)

const (
	cascadeColLookInHi = iota
	cascadeColLookInLo
	cascadeColLookOutHi
	cascadeColLookOutLo
	cascadeColLookupMultiplicity
	cascadeColIsPadding
)

const (
	lookupColIndex = iota
	lookupColValue
	lookupColMultiplicity
)

// Lookup8Bit computes the 8-bit lookup function: L(x) = (x+1)^3 - 1
// This is the S-box component used in Tip5 hash function (TIP-0005)
func Lookup8Bit(x byte) field.Element {
	// Convert byte to field element
	xElem := field.New(uint64(x))

	// Compute (x + 1)
	xPlusOne := xElem.Add(field.One)

	// Compute (x + 1)^3 = (x + 1) * (x + 1) * (x + 1)
	xPlusOneSquared := xPlusOne.Mul(xPlusOne)
	xPlusOneCubed := xPlusOneSquared.Mul(xPlusOne)

	// Compute (x + 1)^3 - 1
	result := xPlusOneCubed.Sub(field.One)

	return result
}

// U32TableImpl implements the U32 Table
// This table handles 32-bit operations: AND, OR, XOR, shifts, etc.
//
// Main purpose: Prove correctness of 32-bit operations via lookup arguments
type U32TableImpl struct {
	// Main columns (BField elements)
	copyFlag           []field.Element // Boolean: is this a copy of previous row?
	bits               []field.Element // Number of bits in operation (0-33)
	bitsMinus33Inv     []field.Element // Inverse of (bits - 33), for boundary detection
	ci                 []field.Element // Current instruction (which U32 operation)
	lhs                []field.Element // Left-hand side operand
	lhsInv             []field.Element // Inverse of lhs (for zero detection)
	rhs                []field.Element // Right-hand side operand
	rhsInv             []field.Element // Inverse of rhs (for zero detection)
	result             []field.Element // Result of U32 operation
	lookupMultiplicity []field.Element // How many times this row is looked up

	// Auxiliary columns (XField elements for cross-table arguments)
	lookupLogDeriv []field.Element // Log derivative for lookup argument (server side)

	height       int
	paddedHeight int
}

// NewU32Table creates a new U32 Table
func NewU32Table() *U32TableImpl {
	return &U32TableImpl{
		copyFlag:           make([]field.Element, 0),
		bits:               make([]field.Element, 0),
		bitsMinus33Inv:     make([]field.Element, 0),
		ci:                 make([]field.Element, 0),
		lhs:                make([]field.Element, 0),
		lhsInv:             make([]field.Element, 0),
		rhs:                make([]field.Element, 0),
		rhsInv:             make([]field.Element, 0),
		result:             make([]field.Element, 0),
		lookupMultiplicity: make([]field.Element, 0),
		lookupLogDeriv:     make([]field.Element, 0),
		height:             0,
		paddedHeight:       0,
	}
}

// GetID returns U32 table identifier
func (ut *U32TableImpl) GetID() TableID {
	return U32Table
}

func (ut *U32TableImpl) GetHeight() int       { return ut.height }
func (ut *U32TableImpl) GetPaddedHeight() int { return ut.paddedHeight }

func (ut *U32TableImpl) GetMainColumns() [][]field.Element {
	return [][]field.Element{
		ut.copyFlag, ut.bits, ut.bitsMinus33Inv, ut.ci,
		ut.lhs, ut.lhsInv, ut.rhs, ut.rhsInv,
		ut.result, ut.lookupMultiplicity,
	}
}

func (ut *U32TableImpl) GetAuxiliaryColumns() [][]field.Element {
	return [][]field.Element{ut.lookupLogDeriv}
}

func (ut *U32TableImpl) AddRow(entry *U32Entry) error {
	if entry == nil {
		return fmt.Errorf("U32 entry cannot be nil")
	}

	ut.copyFlag = append(ut.copyFlag, entry.CopyFlag)
	ut.bits = append(ut.bits, entry.Bits)
	ut.bitsMinus33Inv = append(ut.bitsMinus33Inv, entry.BitsMinus33Inv)
	ut.ci = append(ut.ci, entry.CurrentInstruction)
	ut.lhs = append(ut.lhs, entry.LHS)
	ut.lhsInv = append(ut.lhsInv, entry.LHSInv)
	ut.rhs = append(ut.rhs, entry.RHS)
	ut.rhsInv = append(ut.rhsInv, entry.RHSInv)
	ut.result = append(ut.result, entry.Result)
	ut.lookupMultiplicity = append(ut.lookupMultiplicity, entry.LookupMultiplicity)
	ut.lookupLogDeriv = append(ut.lookupLogDeriv, field.Zero)

	ut.height++
	return nil
}

func (ut *U32TableImpl) Pad(targetHeight int) error {
	if targetHeight < ut.height || ut.height == 0 {
		return fmt.Errorf("invalid padding: target=%d, current=%d", targetHeight, ut.height)
	}

	lastIdx := ut.height - 1
	for i := ut.height; i < targetHeight; i++ {
		ut.copyFlag = append(ut.copyFlag, ut.copyFlag[lastIdx])
		ut.bits = append(ut.bits, ut.bits[lastIdx])
		ut.bitsMinus33Inv = append(ut.bitsMinus33Inv, ut.bitsMinus33Inv[lastIdx])
		ut.ci = append(ut.ci, ut.ci[lastIdx])
		ut.lhs = append(ut.lhs, ut.lhs[lastIdx])
		ut.lhsInv = append(ut.lhsInv, ut.lhsInv[lastIdx])
		ut.rhs = append(ut.rhs, ut.rhs[lastIdx])
		ut.rhsInv = append(ut.rhsInv, ut.rhsInv[lastIdx])
		ut.result = append(ut.result, ut.result[lastIdx])
		ut.lookupMultiplicity = append(ut.lookupMultiplicity, field.Zero)
		ut.lookupLogDeriv = append(ut.lookupLogDeriv, ut.lookupLogDeriv[lastIdx])
	}

	ut.paddedHeight = targetHeight
	return nil
}

// CreateInitialConstraints requires the first row to start a fresh
// decomposition: copyFlag is boolean, and bits begins at zero.
func (ut *U32TableImpl) CreateInitialConstraints() ([]*circuit.Node, error) {
	r := newCircuitRow()
	roots := []*circuit.Node{
		r.isBoolean(r.base(u32ColCopyFlag)),
		r.base(u32ColBits),
	}
	return r.finish(roots...), nil
}

// CreateConsistencyConstraints requires copyFlag to be boolean, and lhsInv
// and rhsInv to behave as Bezout-style inverses (only meaningful, i.e.
// forced to be the true inverse, where lhs/rhs are nonzero).
func (ut *U32TableImpl) CreateConsistencyConstraints() ([]*circuit.Node, error) {
	r := newCircuitRow()

	copyFlag := r.base(u32ColCopyFlag)
	lhs, lhsInv := r.base(u32ColLHS), r.base(u32ColLHSInv)
	rhs, rhsInv := r.base(u32ColRHS), r.base(u32ColRHSInv)

	roots := []*circuit.Node{
		r.isBoolean(copyFlag),
		r.b.Mul(lhs, r.b.Sub(r.one(), r.b.Mul(lhs, lhsInv))),
		r.b.Mul(rhs, r.b.Sub(r.one(), r.b.Mul(rhs, rhsInv))),
	}
	return r.finish(roots...), nil
}

// CreateTransitionConstraints requires the bit counter to climb by one into
// every row that is not a copy row. Copy rows and the operand columns are
// not constrained by any transition polynomial here.
// The bitwise decomposition itself (AND/OR/XOR semantics per instruction)
// is checked via the lookup argument against the cascade and 8-bit lookup
// tables, not by a polynomial here.
func (ut *U32TableImpl) CreateTransitionConstraints() ([]*circuit.Node, error) {
	r := newCircuitRow()

	copyFlagNext := r.baseNext(u32ColCopyFlag)
	bits, bitsNext := r.baseCurr(u32ColBits), r.baseNext(u32ColBits)
	bitsIncreaseWhenNotCopying := r.b.Mul(
		r.b.Sub(r.one(), copyFlagNext),
		r.b.Sub(bitsNext, r.b.Add(bits, r.one())),
	)

	roots := []*circuit.Node{bitsIncreaseWhenNotCopying}
	return r.finish(roots...), nil
}

// CreateTerminalConstraints generates constraints for the last row. None
// are specific to this table: the outstanding lookup argument against the
// cascade table is what ties this table's contents to the rest of the
// trace.
func (ut *U32TableImpl) CreateTerminalConstraints() ([]*circuit.Node, error) {
	return nil, nil
}

// U32Entry represents a U32 table entry
type U32Entry struct {
	CopyFlag           field.Element
	Bits               field.Element
	BitsMinus33Inv     field.Element
	CurrentInstruction field.Element
	LHS                field.Element
	LHSInv             field.Element
	RHS                field.Element
	RHSInv             field.Element
	Result             field.Element
	LookupMultiplicity field.Element
}

// CascadeTableImpl implements the TIP-0005 Cascade Table
// The cascade table decomposes 16-bit lookups into two 8-bit lookups.
// It acts as a "server" to hash table clients (providing 16-bit lookups)
// and as a "client" to the 8-bit lookup table (consuming 8-bit lookups).
//
// Main Columns (6):
//   - LookInHi: High 8 bits of input
//   - LookInLo: Low 8 bits of input
//   - LookOutHi: High 8 bits of output
//   - LookOutLo: Low 8 bits of output
//   - LookupMultiplicity: Number of times this 16-bit pair is queried
//   - IsPadding: 1 if padding row, 0 otherwise
//
// Auxiliary Columns (2):
//   - HashTableLogDerivative: Running log derivative for hash table (server role)
//   - LookupTableLogDerivative: Running log derivative for 8-bit lookup (client role)
type CascadeTableImpl struct {
	// Main columns (BField elements) - TIP-0005 compliant
	lookInHi           []field.Element // High 8 bits of 16-bit input
	lookInLo           []field.Element // Low 8 bits of 16-bit input
	lookOutHi          []field.Element // High 8 bits of 16-bit output
	lookOutLo          []field.Element // Low 8 bits of 16-bit output
	lookupMultiplicity []field.Element // Multiplicity with which this row is queried
	isPadding          []field.Element // Padding indicator

	// Auxiliary columns (XField elements) - TIP-0005 compliant
	hashTableLogDeriv   []field.Element // Log derivative for hash table (server)
	lookupTableLogDeriv []field.Element // Log derivative for 8-bit lookup (client)

	height       int
	paddedHeight int
}

// NewCascadeTable creates a new TIP-0005 compliant Cascade Table
func NewCascadeTable() *CascadeTableImpl {
	return &CascadeTableImpl{
		lookInHi:            make([]field.Element, 0),
		lookInLo:            make([]field.Element, 0),
		lookOutHi:           make([]field.Element, 0),
		lookOutLo:           make([]field.Element, 0),
		lookupMultiplicity:  make([]field.Element, 0),
		isPadding:           make([]field.Element, 0),
		hashTableLogDeriv:   make([]field.Element, 0),
		lookupTableLogDeriv: make([]field.Element, 0),
		height:              0,
		paddedHeight:        0,
	}
}

func (ct *CascadeTableImpl) GetID() TableID       { return CascadeTable }
func (ct *CascadeTableImpl) GetHeight() int       { return ct.height }
func (ct *CascadeTableImpl) GetPaddedHeight() int { return ct.paddedHeight }

func (ct *CascadeTableImpl) GetMainColumns() [][]field.Element {
	return [][]field.Element{
		ct.lookInHi,
		ct.lookInLo,
		ct.lookOutHi,
		ct.lookOutLo,
		ct.lookupMultiplicity,
		ct.isPadding,
	}
}

func (ct *CascadeTableImpl) GetAuxiliaryColumns() [][]field.Element {
	return [][]field.Element{
		ct.hashTableLogDeriv,
		ct.lookupTableLogDeriv,
	}
}

// AddRow adds a TIP-0005 compliant cascade table row (16-bit lookup decomposed into 8-bit limbs)
func (ct *CascadeTableImpl) AddRow(input16 uint16, multiplicity uint64) error {
	// Decompose 16-bit input into high/low bytes
	inputLo := byte(input16 & 0xff)
	inputHi := byte((input16 >> 8) & 0xff)

	// Compute 8-bit lookups for each limb using Tip5 S-box (TIP-0005)
	// This Production implementation.
	outputLo := Lookup8Bit(inputLo)
	outputHi := Lookup8Bit(inputHi)

	// Add row to table
	ct.lookInHi = append(ct.lookInHi, field.New(uint64(inputHi)))
	ct.lookInLo = append(ct.lookInLo, field.New(uint64(inputLo)))
	ct.lookOutHi = append(ct.lookOutHi, outputHi)
	ct.lookOutLo = append(ct.lookOutLo, outputLo)
	ct.lookupMultiplicity = append(ct.lookupMultiplicity, field.New(multiplicity))
	ct.isPadding = append(ct.isPadding, field.Zero)

	// Initialize auxiliary columns to zero (will be filled during extension)
	ct.hashTableLogDeriv = append(ct.hashTableLogDeriv, field.Zero)
	ct.lookupTableLogDeriv = append(ct.lookupTableLogDeriv, field.Zero)

	ct.height++
	return nil
}

func (ct *CascadeTableImpl) Pad(targetHeight int) error {
	if targetHeight < ct.height || ct.height == 0 {
		return fmt.Errorf("invalid padding")
	}
	lastIdx := ct.height - 1
	for i := ct.height; i < targetHeight; i++ {
		// Pad with last row values, mark as padding
		ct.lookInHi = append(ct.lookInHi, ct.lookInHi[lastIdx])
		ct.lookInLo = append(ct.lookInLo, ct.lookInLo[lastIdx])
		ct.lookOutHi = append(ct.lookOutHi, ct.lookOutHi[lastIdx])
		ct.lookOutLo = append(ct.lookOutLo, ct.lookOutLo[lastIdx])
		ct.lookupMultiplicity = append(ct.lookupMultiplicity, field.Zero)
		ct.isPadding = append(ct.isPadding, field.One) // Mark as padding

		// Pad auxiliary columns
		ct.hashTableLogDeriv = append(ct.hashTableLogDeriv, ct.hashTableLogDeriv[lastIdx])
		ct.lookupTableLogDeriv = append(ct.lookupTableLogDeriv, ct.lookupTableLogDeriv[lastIdx])
	}
	ct.paddedHeight = targetHeight
	return nil
}

// CreateInitialConstraints generates constraints for the first row. None
// are specific to this table: the isPadding boolean is enforced generally
// in CreateConsistencyConstraints.
func (ct *CascadeTableImpl) CreateInitialConstraints() ([]*circuit.Node, error) {
	return nil, nil
}

// CreateConsistencyConstraints requires isPadding to be boolean.
func (ct *CascadeTableImpl) CreateConsistencyConstraints() ([]*circuit.Node, error) {
	r := newCircuitRow()
	roots := []*circuit.Node{r.isBoolean(r.base(cascadeColIsPadding))}
	return r.finish(roots...), nil
}

// CreateTransitionConstraints requires padding rows to stay padding once
// the table enters its padding region.
func (ct *CascadeTableImpl) CreateTransitionConstraints() ([]*circuit.Node, error) {
	r := newCircuitRow()
	isPadding := r.baseCurr(cascadeColIsPadding)
	isPaddingNext := r.baseNext(cascadeColIsPadding)
	paddingIsSticky := r.b.Mul(isPadding, r.b.Sub(r.one(), isPaddingNext))
	roots := []*circuit.Node{paddingIsSticky}
	return r.finish(roots...), nil
}

// CreateTerminalConstraints generates constraints for the last row. None
// are specific to this table: the hash-table and 8-bit lookup-table log
// derivatives tie this table's contents to the rest of the trace via
// lookup arguments, not a per-row polynomial here.
func (ct *CascadeTableImpl) CreateTerminalConstraints() ([]*circuit.Node, error) {
	return nil, nil
}

// LookupTableImpl implements the Lookup Table
// This table stores precomputed values for efficient range checks and lookups
type LookupTableImpl struct {
	// Main columns
	lookupIndex        []field.Element // Index in lookup table
	lookupValue        []field.Element // Precomputed value at this index
	lookupMultiplicity []field.Element // How many times this is looked up

	// Auxiliary columns
	lookupLogDeriv []field.Element

	height       int
	paddedHeight int
}

// NewLookupTable creates a new Lookup Table
func NewLookupTable() *LookupTableImpl {
	return &LookupTableImpl{
		lookupIndex:        make([]field.Element, 0),
		lookupValue:        make([]field.Element, 0),
		lookupMultiplicity: make([]field.Element, 0),
		lookupLogDeriv:     make([]field.Element, 0),
		height:             0,
		paddedHeight:       0,
	}
}

func (lt *LookupTableImpl) GetID() TableID       { return LookupTable }
func (lt *LookupTableImpl) GetHeight() int       { return lt.height }
func (lt *LookupTableImpl) GetPaddedHeight() int { return lt.paddedHeight }
func (lt *LookupTableImpl) GetMainColumns() [][]field.Element {
	return [][]field.Element{lt.lookupIndex, lt.lookupValue, lt.lookupMultiplicity}
}

func (lt *LookupTableImpl) GetAuxiliaryColumns() [][]field.Element {
	return [][]field.Element{lt.lookupLogDeriv}
}

func (lt *LookupTableImpl) AddRow(index, value, multiplicity field.Element) error {
	lt.lookupIndex = append(lt.lookupIndex, index)
	lt.lookupValue = append(lt.lookupValue, value)
	lt.lookupMultiplicity = append(lt.lookupMultiplicity, multiplicity)
	lt.lookupLogDeriv = append(lt.lookupLogDeriv, field.Zero)
	lt.height++
	return nil
}

func (lt *LookupTableImpl) Pad(targetHeight int) error {
	if targetHeight < lt.height || lt.height == 0 {
		return fmt.Errorf("invalid padding")
	}
	lastIdx := lt.height - 1
	for i := lt.height; i < targetHeight; i++ {
		lt.lookupIndex = append(lt.lookupIndex, lt.lookupIndex[lastIdx])
		lt.lookupValue = append(lt.lookupValue, lt.lookupValue[lastIdx])
		lt.lookupMultiplicity = append(lt.lookupMultiplicity, field.Zero)
		lt.lookupLogDeriv = append(lt.lookupLogDeriv, lt.lookupLogDeriv[lastIdx])
	}
	lt.paddedHeight = targetHeight
	return nil
}

// CreateInitialConstraints requires the table to begin its fixed
// enumeration at index zero.
func (lt *LookupTableImpl) CreateInitialConstraints() ([]*circuit.Node, error) {
	r := newCircuitRow()
	roots := []*circuit.Node{r.base(lookupColIndex)}
	return r.finish(roots...), nil
}

// CreateConsistencyConstraints generates constraints within each row. None
// are specific to this table: the index/value pairing is fixed by the
// precomputed table contents rather than an algebraic relation between
// columns.
func (lt *LookupTableImpl) CreateConsistencyConstraints() ([]*circuit.Node, error) {
	return nil, nil
}

// CreateTransitionConstraints requires the index column to enumerate
// consecutive values, i.e. this is the canonical fixed lookup table rather
// than an arbitrary permutation of it.
func (lt *LookupTableImpl) CreateTransitionConstraints() ([]*circuit.Node, error) {
	r := newCircuitRow()
	index, indexNext := r.baseCurr(lookupColIndex), r.baseNext(lookupColIndex)
	indexIncreasesByOne := r.b.Sub(indexNext, r.b.Add(index, r.one()))
	roots := []*circuit.Node{indexIncreasesByOne}
	return r.finish(roots...), nil
}

// CreateTerminalConstraints generates constraints for the last row. None
// are specific to this table: the accumulated lookup multiplicities are
// checked against querying tables via a log-derivative lookup argument.
func (lt *LookupTableImpl) CreateTerminalConstraints() ([]*circuit.Node, error) {
	return nil, nil
}

// PrecomputeLookupTable generates precomputed values for common operations
// This is used to populate the Lookup Table with range check values, etc.
func PrecomputeLookupTable(maxValue int) *LookupTableImpl {
	table := NewLookupTable()

	// Precompute values 0 to maxValue
	for i := 0; i <= maxValue; i++ {
		index := field.New(uint64(i))
		value := field.New(uint64(i))                // Identity for range checks
		multiplicity := field.Zero                   // Will be computed during execution
		_ = table.AddRow(index, value, multiplicity) // Error can be safely ignored in precomputation
	}

	return table
}

// Fill populates the lookup table with TIP-0005 8-bit lookup values
// This fills all 256 entries with L(x) = (x+1)^3 - 1
func (lt *LookupTableImpl) Fill(multiplicities [256]uint64) error {
	// Table always has exactly 256 rows (one for each 8-bit value)
	const tableSize = 256

	lt.lookupIndex = make([]field.Element, tableSize)
	lt.lookupValue = make([]field.Element, tableSize)
	lt.lookupMultiplicity = make([]field.Element, tableSize)
	lt.lookupLogDeriv = make([]field.Element, tableSize)

	// Generate all 256 lookup pairs using TIP-0005 Tip5 S-box
	for i := 0; i < tableSize; i++ {
		lt.lookupIndex[i] = field.New(uint64(i))
		lt.lookupValue[i] = Lookup8Bit(byte(i)) // TIP-0005 compliant lookup
		lt.lookupMultiplicity[i] = field.New(multiplicities[i])
		lt.lookupLogDeriv[i] = field.Zero // Will be filled during extension
	}

	lt.height = tableSize
	return nil
}
