package circuit

import (
	"testing"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

func TestConstantFoldingIdentities(t *testing.T) {
	b := NewBuilder()
	a := b.Input(SingleRowIndicator{Base: true, Column: 0})
	zero := b.BConst(field.Zero)
	one := b.BConst(field.One)

	cases := []struct {
		name string
		node *Node
	}{
		{"a+0", b.Add(a, zero)},
		{"0+a", b.Add(zero, a)},
		{"a-0", b.Sub(a, zero)},
		{"1*a", b.Mul(one, a)},
		{"a*1", b.Mul(a, one)},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			folded := NewPipeline(FoldingPass{}).Run(b, []*Node{c.node})
			if folded[0].id != a.id {
				t.Errorf("%s: folded to node %v, want %v", c.name, folded[0], a)
			}
		})
	}
}

func TestConstantFoldingAnnihilator(t *testing.T) {
	b := NewBuilder()
	a := b.Input(SingleRowIndicator{Base: true, Column: 0})
	zero := b.BConst(field.Zero)

	left := NewPipeline(FoldingPass{}).Run(b, []*Node{b.Mul(a, zero)})
	right := NewPipeline(FoldingPass{}).Run(b, []*Node{b.Mul(zero, a)})

	if !left[0].IsZero() || !right[0].IsZero() {
		t.Errorf("a*0 and 0*a must fold to the zero constant, got %v and %v", left[0], right[0])
	}
}

func TestZeroMinusAIsNotA(t *testing.T) {
	b := NewBuilder()
	a := b.Input(SingleRowIndicator{Base: true, Column: 0})
	zero := b.BConst(field.Zero)

	folded := NewPipeline(FoldingPass{}).Run(b, []*Node{b.Sub(zero, a)})
	if folded[0].id == a.id {
		t.Fatalf("0 - a must not fold to a")
	}
}

func TestCommutativeUnification(t *testing.T) {
	b := NewBuilder()
	x := b.Input(SingleRowIndicator{Base: true, Column: 0})
	y := b.Input(SingleRowIndicator{Base: true, Column: 1})

	xy := b.Add(x, y)
	yx := b.Add(y, x)
	if xy.id != yx.id {
		t.Errorf("a+b and b+a must hash-cons to the same node, got %d and %d", xy.id, yx.id)
	}

	xyMul := b.Mul(x, y)
	yxMul := b.Mul(y, x)
	if xyMul.id != yxMul.id {
		t.Errorf("a*b and b*a must hash-cons to the same node, got %d and %d", xyMul.id, yxMul.id)
	}
}

func TestDegreeLowering(t *testing.T) {
	b := NewBuilder()
	// Build x^5 (degree 5) via repeated squaring/multiplication so it
	// comfortably exceeds a target degree of 4.
	x := b.Input(SingleRowIndicator{Base: true, Column: 0})
	x2 := b.Mul(x, x)
	x4 := b.Mul(x2, x2)
	x5 := b.Mul(x4, x)

	roots, baseSubs, extSubs := LowerToDegree(b, []*Node{x5}, 4, 1, 0)

	for _, r := range roots {
		if d := r.Degree(); d > 4 {
			t.Errorf("root degree %d exceeds target degree 4", d)
		}
	}
	for _, c := range append(append([]*Node{}, baseSubs...), extSubs...) {
		if d := c.Degree(); d > 4 {
			t.Errorf("substitution constraint degree %d exceeds target degree 4", d)
		}
		if c.kind != kindBinOp || c.op != OpSub {
			t.Errorf("substitution constraint must be `newvar - old`, got %v", c)
		}
	}
}

func TestDegreeLoweringWithinBoundsIsNoop(t *testing.T) {
	b := NewBuilder()
	x := b.Input(SingleRowIndicator{Base: true, Column: 0})
	y := b.Input(SingleRowIndicator{Base: true, Column: 1})
	expr := b.Add(b.Mul(x, y), x)

	roots, baseSubs, extSubs := LowerToDegree(b, []*Node{expr}, 4, 1, 0)
	if len(baseSubs) != 0 || len(extSubs) != 0 {
		t.Errorf("expected no substitutions for an already-low-degree circuit, got %d base + %d ext", len(baseSubs), len(extSubs))
	}
	if roots[0].id != expr.id {
		t.Errorf("root identity should be unchanged when no lowering is needed")
	}
}

func TestNodeCountingAndUniqueIDs(t *testing.T) {
	b := NewBuilder()
	x := b.Input(SingleRowIndicator{Base: true, Column: 0})
	shared := b.Mul(x, x)
	root1 := b.Add(shared, x)
	root2 := b.Sub(shared, x)

	AssertUniqueIDs([]*Node{root1, root2})

	n := CountNodes([]*Node{root1, root2})
	// Distinct nodes: x, shared(=x*x), root1, root2 = 4, even though
	// `shared` is referenced twice.
	if n != 4 {
		t.Errorf("CountNodes = %d, want 4", n)
	}
}
