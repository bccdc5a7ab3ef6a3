package circuit

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/xfield"
)

// Builder owns every Node it has ever constructed for one table's
// multicircuit. It is never shared across executions or across tables: each
// table gets its own Builder.
type Builder struct {
	nodes  []*Node
	consed map[string][]*Node
	nextID int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{consed: make(map[string][]*Node)}
}

// GetNodeByID returns the node with the given id, or nil if none exists
// (e.g. it was never built, or it has been replaced - note that
// Substitute does not remove the orphaned node from the builder's arena,
// so this only ever returns nil for an id that was never allocated).
func (b *Builder) GetNodeByID(id int) *Node {
	for _, n := range b.nodes {
		if n.id == id {
			return n
		}
	}
	return nil
}

func (b *Builder) alloc(n *Node) *Node {
	n.id = b.nextID
	b.nextID++
	b.nodes = append(b.nodes, n)
	return n
}

// BConst returns the node for a base-field constant, allocating it if this
// exact constant hasn't been built before.
func (b *Builder) BConst(v field.Element) *Node {
	key := fmt.Sprintf("b:%d", v.Value())
	if n := b.lookup(key); n != nil {
		return n
	}
	n := b.alloc(&Node{kind: kindBConst, bconst: v})
	b.insert(key, n)
	return n
}

// XConst returns the node for an extension-field constant. An XConst whose
// value actually lies in the base field is silently lowered to the
// equivalent BConst.
func (b *Builder) XConst(v xfield.XFieldElement) *Node {
	if base, ok := v.ToBase(); ok {
		return b.BConst(base)
	}
	key := fmt.Sprintf("x:%v", v)
	if n := b.lookup(key); n != nil {
		return n
	}
	n := b.alloc(&Node{kind: kindXConst, xconst: v})
	b.insert(key, n)
	return n
}

// Input returns the node reading the given column.
func (b *Builder) Input(ii InputIndicator) *Node {
	key := fmt.Sprintf("i:%v", ii)
	if n := b.lookup(key); n != nil {
		return n
	}
	n := b.alloc(&Node{kind: kindInput, input: ii})
	b.insert(key, n)
	return n
}

// Challenge returns the node reading the given Fiat-Shamir challenge.
func (b *Builder) Challenge(id int) *Node {
	key := fmt.Sprintf("c:%d", id)
	if n := b.lookup(key); n != nil {
		return n
	}
	n := b.alloc(&Node{kind: kindChallenge, challenge: id})
	b.insert(key, n)
	return n
}

// binOpKey produces a hash-cons key for a BinOp node. + and × are
// commutative, so their two children are canonicalized by id order before
// hashing; this is what makes a freshly built a+b unify with a
// previously-built b+a.
func binOpKey(op BinOp, l, r *Node) string {
	if op == OpAdd || op == OpMul {
		if l.id > r.id {
			l, r = r, l
		}
	}
	return fmt.Sprintf("%d:%d:%d", op, l.id, r.id)
}

// BinOp returns the node for `l op r`, reusing an existing node if this
// exact (commutativity-normalized) expression has already been built.
func (b *Builder) BinOp(op BinOp, l, r *Node) *Node {
	key := binOpKey(op, l, r)
	if n := b.lookup(key); n != nil {
		return n
	}
	n := b.alloc(&Node{kind: kindBinOp, op: op, left: l, right: r})
	b.insert(key, n)
	return n
}

func (b *Builder) Add(l, r *Node) *Node { return b.BinOp(OpAdd, l, r) }
func (b *Builder) Sub(l, r *Node) *Node { return b.BinOp(OpSub, l, r) }
func (b *Builder) Mul(l, r *Node) *Node { return b.BinOp(OpMul, l, r) }

func (b *Builder) lookup(key string) *Node {
	bucket := b.consed[key]
	if len(bucket) == 0 {
		return nil
	}
	return bucket[0]
}

func (b *Builder) insert(key string, n *Node) {
	b.consed[key] = append(b.consed[key], n)
}

// Substitute rewrites every edge in the builder's arena that points to the
// node with id oldID so that it points to newNode instead. The old node
// itself is left in place (and reachable via GetNodeByID) for traceability,
// but becomes otherwise unreferenced once every caller has replaced its own
// copy of the pointer. Builder callers that hold their own slice of roots
// (e.g. a multicircuit) must replace any root equal to oldID themselves -
// Substitute only fixes internal BinOp edges, since it has no notion of
// which Nodes are "roots".
func (b *Builder) Substitute(oldID int, newNode *Node) {
	for _, n := range b.nodes {
		if n.kind != kindBinOp {
			continue
		}
		if n.left.id == oldID {
			n.left = newNode
		}
		if n.right.id == oldID {
			n.right = newNode
		}
	}
}

// AssertUniqueIDs panics if any two nodes reachable from roots share an id.
// A collision here is a programmer bug in how the circuit was built, not a
// recoverable runtime condition, so it aborts rather than returning an
// error.
func AssertUniqueIDs(roots []*Node) {
	seen := make(map[int]*Node)
	var visit func(n *Node)
	visit = func(n *Node) {
		if other, ok := seen[n.id]; ok {
			if other != n {
				panic(fmt.Sprintf("circuit: duplicate node id %d", n.id))
			}
			return
		}
		seen[n.id] = n
		if n.kind == kindBinOp {
			visit(n.left)
			visit(n.right)
		}
	}
	for _, r := range roots {
		visit(r)
	}
}

// CountNodes returns the number of distinct nodes reachable from the given
// roots.
func CountNodes(roots []*Node) int {
	seen := make(map[int]bool)
	var visit func(n *Node)
	visit = func(n *Node) {
		if seen[n.id] {
			return
		}
		seen[n.id] = true
		if n.kind == kindBinOp {
			visit(n.left)
			visit(n.right)
		}
	}
	for _, r := range roots {
		visit(r)
	}
	return len(seen)
}
