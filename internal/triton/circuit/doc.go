// Package circuit implements the constraint-circuit DAG compiler used to
// represent and lower the AIR polynomials of every table in the Triton VM.
//
// A multicircuit is a set of roots sharing one arena of nodes, owned by a
// single Builder. Nodes are hash-consed: constructing an expression that is
// structurally identical to one that already exists (up to commutativity of
// + and ×) returns the existing node instead of a new one. Two passes run
// over a multicircuit before it becomes part of an AIR: constant folding,
// which simplifies additive/multiplicative identities to a fixed point, and
// degree lowering, which introduces auxiliary columns so that every root and
// every emitted substitution constraint has degree at most the target.
package circuit
