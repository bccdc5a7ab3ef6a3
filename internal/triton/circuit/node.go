package circuit

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/xfield"
)

// BinOp is one of the three algebraic operations a circuit node can apply to
// its two children.
type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
)

func (op BinOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	default:
		return "?"
	}
}

// Apply evaluates op over two already-lifted extension-field operands.
func (op BinOp) Apply(lhs, rhs xfield.XFieldElement) xfield.XFieldElement {
	switch op {
	case OpAdd:
		return lhs.Add(rhs)
	case OpSub:
		return lhs.Sub(rhs)
	case OpMul:
		return lhs.Mul(rhs)
	default:
		panic(fmt.Sprintf("circuit: unknown BinOp %d", op))
	}
}

// InputIndicator names a column a circuit Input node reads from. Triton
// tables need two shapes: a single-row reference (for boundary/terminal
// constraints) and a dual current/next-row reference (for transition
// constraints). Both are comparable structs so they can be used as hash-cons
// and map keys directly.
type InputIndicator interface {
	fmt.Stringer
	// IsBaseColumn reports whether this indicator reads a base (as
	// opposed to extension) column.
	IsBaseColumn() bool
}

// SingleRowIndicator addresses one column of one row - used by boundary and
// terminal constraints, which only ever look at a single row of the table.
type SingleRowIndicator struct {
	Base   bool // true: base column, false: extension column
	Column int
}

func (s SingleRowIndicator) IsBaseColumn() bool { return s.Base }

func (s SingleRowIndicator) String() string {
	kind := "ext"
	if s.Base {
		kind = "base"
	}
	return fmt.Sprintf("%s_row[%d]", kind, s.Column)
}

// DualRowIndicator addresses one column of either the current or the next
// row - used by transition constraints.
type DualRowIndicator struct {
	Base    bool // true: base column, false: extension column
	Next    bool // true: next row, false: current row
	Column int
}

func (d DualRowIndicator) IsBaseColumn() bool { return d.Base }

func (d DualRowIndicator) String() string {
	kind := "ext"
	if d.Base {
		kind = "base"
	}
	row := "curr"
	if d.Next {
		row = "next"
	}
	return fmt.Sprintf("%s_%s[%d]", kind, row, d.Column)
}

// kind tags the variant of a Node's expression: a base constant, extension
// constant, column read, challenge read, or binary operation.
type kind int

const (
	kindBConst kind = iota
	kindXConst
	kindInput
	kindChallenge
	kindBinOp
)

// Node is one vertex of a constraint circuit. Nodes are owned exclusively by
// the Builder that created them; a Node's id is unique within its builder
// and is never reused, even after Substitute orphans a node.
type Node struct {
	id   int
	kind kind

	bconst    field.Element
	xconst    xfield.XFieldElement
	input     InputIndicator
	challenge int

	op          BinOp
	left, right *Node

	// visited is not read or written by any function in this package;
	// CountNodes and AssertUniqueIDs track visited nodes in maps instead.
	visited int
}

// ID returns the node's builder-unique identifier.
func (n *Node) ID() int { return n.id }

// IsZero reports whether this node is literally the constant zero; it does
// not attempt to prove that a composite expression always evaluates to
// zero.
func (n *Node) IsZero() bool {
	switch n.kind {
	case kindBConst:
		return n.bconst.IsZero()
	case kindXConst:
		return n.xconst.IsZero()
	default:
		return false
	}
}

// IsOne reports whether this node is literally the constant one.
func (n *Node) IsOne() bool {
	switch n.kind {
	case kindBConst:
		return n.bconst.Equal(field.One)
	case kindXConst:
		return n.xconst.IsOne()
	default:
		return false
	}
}

// Degree returns the degree of the multivariate polynomial this node
// represents. Inputs are degree 1. Challenges are degree 0: they are
// indeterminates fixed by the verifier before the witness polynomials are
// built, so they never contribute to the degree of the resulting
// polynomial.
func (n *Node) Degree() int {
	if n.IsZero() {
		return -1
	}
	switch n.kind {
	case kindBConst, kindXConst, kindChallenge:
		return 0
	case kindInput:
		return 1
	case kindBinOp:
		dl, dr := n.left.Degree(), n.right.Degree()
		switch n.op {
		case OpAdd, OpSub:
			return max(dl, dr)
		case OpMul:
			if dl == -1 || dr == -1 {
				return -1
			}
			return dl + dr
		}
	}
	panic("circuit: node has no recognized kind")
}

// EvaluatesToBaseElement reports whether this node's subtree only ever
// touches base-field constants and base-table inputs - i.e. it could be
// assigned to a new base column rather than an extension column during
// degree lowering.
func (n *Node) EvaluatesToBaseElement() bool {
	switch n.kind {
	case kindBConst:
		return true
	case kindXConst:
		return false
	case kindInput:
		return n.input.IsBaseColumn()
	case kindChallenge:
		return false
	case kindBinOp:
		return n.left.EvaluatesToBaseElement() && n.right.EvaluatesToBaseElement()
	}
	return false
}

// Evaluate computes the node's value given row data and sampled challenges.
// base and ext supply, per InputIndicator, the value of a base or extension
// column respectively; challenges supplies the value of a Challenge leaf by
// id.
func (n *Node) Evaluate(base, ext func(InputIndicator) xfield.XFieldElement, challenges func(int) xfield.XFieldElement) xfield.XFieldElement {
	switch n.kind {
	case kindBConst:
		return n.bconst.Lift()
	case kindXConst:
		return n.xconst
	case kindInput:
		if n.input.IsBaseColumn() {
			return base(n.input)
		}
		return ext(n.input)
	case kindChallenge:
		return challenges(n.challenge)
	case kindBinOp:
		lv := n.left.Evaluate(base, ext, challenges)
		rv := n.right.Evaluate(base, ext, challenges)
		return n.op.Apply(lv, rv)
	}
	panic("circuit: node has no recognized kind")
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// String renders the node for debugging; it does not attempt the
// reference's "print without parentheses for single terms" polish beyond a
// trivial leaf case.
func (n *Node) String() string {
	switch n.kind {
	case kindBConst:
		return fmt.Sprintf("%d", n.bconst.Value())
	case kindXConst:
		return fmt.Sprintf("%v", n.xconst)
	case kindInput:
		return n.input.String()
	case kindChallenge:
		return fmt.Sprintf("challenge[%d]", n.challenge)
	case kindBinOp:
		return fmt.Sprintf("(%s %s %s)", n.left, n.op, n.right)
	}
	return "?"
}
