package protocols

import (
	"fmt"
	"math/big"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"triton/internal/triton/core"
	"triton/internal/triton/utils"
)

// FRIQueryPhase implements the FRI-QUERY phase from TR17-134: rather than
// recomputing the folding consistency check at every point of every layer
// (which is what full verification does), the verifier spot-checks a small
// number of randomly sampled indices. Soundness comes from the fact that a
// maliciously folded codeword disagrees with a correctly folded one on a
// constant fraction of points, so repetitionParam independent samples drive
// the cheating probability down exponentially.
type FRIQueryPhase struct {
	field           *core.Field
	rate            *core.FieldElement
	eta             int
	repetitionParam int
}

// NewFRIQueryPhase creates a new FRI query phase with the given subspace
// dimension eta and number of independent query repetitions.
func NewFRIQueryPhase(field *core.Field, rate *core.FieldElement, eta, repetitionParam int) *FRIQueryPhase {
	return &FRIQueryPhase{
		field:           field,
		rate:            rate,
		eta:             eta,
		repetitionParam: repetitionParam,
	}
}

// QueryResult records which indices were sampled and whether every sampled
// folding step checked out.
type QueryResult struct {
	Indices  []int
	Verified bool
}

// Query samples repetitionParam random indices into the first layer's domain
// and checks the folding relation at each sampled index through every layer
// of the proof, halving the index alongside the domain at each step.
func (qp *FRIQueryPhase) Query(proof *FRIProof, channel *utils.Channel) (*QueryResult, error) {
	if proof == nil || len(proof.Layers) == 0 {
		return nil, fmt.Errorf("cannot query an empty FRI proof")
	}

	firstDomainSize := len(proof.Layers[0].Domain)
	if firstDomainSize == 0 {
		return nil, fmt.Errorf("first layer has an empty domain")
	}

	indices := make([]int, qp.repetitionParam)
	for i := range indices {
		idx := channel.ReceiveRandomInt(big.NewInt(0), big.NewInt(int64(firstDomainSize)))
		indices[i] = int(idx.Int64())
	}

	for _, idx := range indices {
		pos := idx
		for l := 0; l < len(proof.Layers)-1; l++ {
			current := proof.Layers[l]
			domainSize := len(current.Domain)
			if domainSize == 0 {
				return nil, fmt.Errorf("layer %d has an empty domain", l)
			}
			halfSize := domainSize / 2
			if halfSize == 0 {
				break
			}
			pos = pos % halfSize
			if err := verifyQueriedFoldStep(current, proof.Layers[l+1], pos); err != nil {
				return &QueryResult{Indices: indices, Verified: false}, fmt.Errorf(
					"query at index %d failed at layer %d: %w", idx, l, err)
			}
		}
	}

	return &QueryResult{Indices: indices, Verified: true}, nil
}

// verifyQueriedFoldStep re-derives the folded value at pos from the current
// layer's two coset points and compares it against what the next layer
// actually committed to, the same relation verifyFoldingConsistency checks
// for every point, restricted here to a single sampled position.
func verifyQueriedFoldStep(current, next FRILayer, pos int) error {
	halfSize := len(current.Domain) / 2
	if pos >= halfSize || pos >= len(next.Function) {
		return fmt.Errorf("sampled index %d out of range for domain of size %d", pos, len(current.Domain))
	}

	fPoint1 := current.Function[pos]
	fPoint2 := current.Function[pos+halfSize]
	x := current.Domain[pos]

	two := field.New(2)
	sum := fPoint1.Add(fPoint2)
	firstTerm := sum.Mul(two.Inverse())

	diff := fPoint1.Sub(fPoint2)
	twoX := x.Mul(two)
	secondTerm := current.Challenge.Mul(diff.Mul(twoX.Inverse()))

	expected := firstTerm.Add(secondTerm)
	if !next.Function[pos].Equal(expected) {
		return fmt.Errorf("folded value mismatch at index %d: expected %s, got %s",
			pos, expected.String(), next.Function[pos].String())
	}
	return nil
}
