package circuit

import (
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/xfield"
)

// Pass is one rewrite applied to a multicircuit in place, modeled on the
// OptimizationPass/OptimizationPipeline shape used for IR rewrites
// elsewhere in the pack (see DESIGN.md). Apply reports whether it changed
// anything, so a Pipeline can iterate passes to a fixed point.
type Pass interface {
	Name() string
	// Apply rewrites roots in place (by replacing entries) and returns the
	// possibly-updated slice plus whether anything changed.
	Apply(b *Builder, roots []*Node) ([]*Node, bool)
}

// Pipeline runs a sequence of passes to a fixed point: as long as any pass
// in one sweep reports a change, the whole sequence runs again.
type Pipeline struct {
	passes []Pass
}

func NewPipeline(passes ...Pass) *Pipeline {
	return &Pipeline{passes: passes}
}

func (p *Pipeline) Run(b *Builder, roots []*Node) []*Node {
	for {
		changedAny := false
		for _, pass := range p.passes {
			var changed bool
			roots, changed = pass.Apply(b, roots)
			changedAny = changedAny || changed
		}
		if !changedAny {
			return roots
		}
	}
}

// FoldingPass collapses additive/multiplicative identities and evaluates
// BinOp nodes whose operands are both constants, respecting base/extension
// typing.
type FoldingPass struct{}

func (FoldingPass) Name() string { return "constant-folding" }

func (FoldingPass) Apply(b *Builder, roots []*Node) ([]*Node, bool) {
	memo := make(map[int]*Node)
	changed := false

	var fold func(n *Node) *Node
	fold = func(n *Node) *Node {
		if m, ok := memo[n.id]; ok {
			return m
		}
		if n.kind != kindBinOp {
			memo[n.id] = n
			return n
		}
		l := fold(n.left)
		r := fold(n.right)

		folded := foldBinOp(b, n.op, l, r)
		if folded == nil {
			if l != n.left || r != n.right {
				folded = b.BinOp(n.op, l, r)
			} else {
				folded = n
			}
		}
		if folded != n {
			changed = true
		}
		memo[n.id] = folded
		return folded
	}

	newRoots := make([]*Node, len(roots))
	for i, r := range roots {
		newRoots[i] = fold(r)
	}
	return newRoots, changed
}

// foldBinOp applies identity, annihilator, and constant-evaluation rules.
// It returns nil when no rule fires, meaning the caller should keep (a
// possibly rebuilt) BinOp node.
//
// Crucially, `0 - a` is never folded to `a`: subtraction is not commutative,
// so only the right-hand operand being zero collapses the node.
func foldBinOp(b *Builder, op BinOp, l, r *Node) *Node {
	switch op {
	case OpAdd:
		if l.IsZero() {
			return r
		}
		if r.IsZero() {
			return l
		}
	case OpSub:
		if r.IsZero() {
			return l
		}
		// Note: l.IsZero() does NOT fold `0 - a` to `a`.
	case OpMul:
		if l.IsZero() || r.IsZero() {
			return b.BConst(field.Zero)
		}
		if l.IsOne() {
			return r
		}
		if r.IsOne() {
			return l
		}
	}

	if isConst(l) && isConst(r) {
		lv := constValue(l)
		rv := constValue(r)
		result := op.Apply(lv, rv)
		return b.XConst(result)
	}
	return nil
}

func isConst(n *Node) bool {
	return n.kind == kindBConst || n.kind == kindXConst
}

func constValue(n *Node) xfield.XFieldElement {
	if n.kind == kindBConst {
		return n.bconst.Lift()
	}
	return n.xconst
}
