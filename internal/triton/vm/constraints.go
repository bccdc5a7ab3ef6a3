package vm

import (
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"triton/internal/triton/circuit"
)

// circuitRow is a small convenience wrapper around a circuit.Builder that
// knows how to address a table's own base/extension columns by index, for
// both boundary constraints (single row) and transition constraints
// (current and next row).
type circuitRow struct {
	b *circuit.Builder
}

func newCircuitRow() *circuitRow {
	return &circuitRow{b: circuit.NewBuilder()}
}

func (r *circuitRow) base(col int) *circuit.Node {
	return r.b.Input(circuit.SingleRowIndicator{Base: true, Column: col})
}

func (r *circuitRow) ext(col int) *circuit.Node {
	return r.b.Input(circuit.SingleRowIndicator{Base: false, Column: col})
}

func (r *circuitRow) baseCurr(col int) *circuit.Node {
	return r.b.Input(circuit.DualRowIndicator{Base: true, Next: false, Column: col})
}

func (r *circuitRow) baseNext(col int) *circuit.Node {
	return r.b.Input(circuit.DualRowIndicator{Base: true, Next: true, Column: col})
}

func (r *circuitRow) extCurr(col int) *circuit.Node {
	return r.b.Input(circuit.DualRowIndicator{Base: false, Next: false, Column: col})
}

func (r *circuitRow) extNext(col int) *circuit.Node {
	return r.b.Input(circuit.DualRowIndicator{Base: false, Next: true, Column: col})
}

func (r *circuitRow) bconst(v uint64) *circuit.Node {
	return r.b.BConst(field.New(v))
}

func (r *circuitRow) zero() *circuit.Node { return r.b.BConst(field.Zero) }
func (r *circuitRow) one() *circuit.Node  { return r.b.BConst(field.One) }

// isBoolean returns the node `x * (x - 1)`, which vanishes exactly when x
// is 0 or 1.
func (r *circuitRow) isBoolean(x *circuit.Node) *circuit.Node {
	return r.b.Mul(x, r.b.Sub(x, r.one()))
}

// finish runs constant folding to a fixed point and returns the result.
func (r *circuitRow) finish(roots ...*circuit.Node) []*circuit.Node {
	return circuit.NewPipeline(circuit.FoldingPass{}).Run(r.b, roots)
}
