package circuit

// LowerToDegree rewrites a multicircuit so that every root has degree at
// most targetDegree, introducing auxiliary base/extension columns as
// needed. It returns the (possibly replaced) roots together with the
// substitution constraints `newColumn - substitutedExpression = 0` that
// must be added to the AIR, split by whether the new column is a base or
// an extension column. baseColOffset/extColOffset are the number of
// base/extension columns already allocated by the table, so new column
// indices continue from there.
func LowerToDegree(b *Builder, roots []*Node, targetDegree int, baseColOffset, extColOffset int) (newRoots, baseConstraints, extConstraints []*Node) {
	if targetDegree <= 1 {
		panic("circuit: target degree must be greater than 1")
	}
	roots = append([]*Node(nil), roots...)
	if len(roots) == 0 {
		return roots, nil, nil
	}

	for multicircuitDegree(roots) > targetDegree {
		chosenID := pickNodeToSubstitute(roots, targetDegree)
		chosen := b.GetNodeByID(chosenID)

		var newInput InputIndicator
		isBase := chosen.EvaluatesToBaseElement()
		if isBase {
			newInput = SingleRowIndicator{Base: true, Column: baseColOffset + len(baseConstraints)}
		} else {
			newInput = SingleRowIndicator{Base: false, Column: extColOffset + len(extConstraints)}
		}
		newVar := b.Input(newInput)

		b.Substitute(chosenID, newVar)

		substitution := b.Sub(newVar, chosen)
		if isBase {
			baseConstraints = append(baseConstraints, substitution)
		} else {
			extConstraints = append(extConstraints, substitution)
		}

		for i, root := range roots {
			if root.id == chosenID {
				roots[i] = newVar
			}
		}
	}

	return roots, baseConstraints, extConstraints
}

func multicircuitDegree(roots []*Node) int {
	d := -1
	for _, r := range roots {
		if rd := r.Degree(); rd > d {
			d = rd
		}
	}
	return d
}

// allNodesInMulticircuit returns every node reachable from roots, with
// duplicates - i.e. once per edge that reaches it, not once overall. This is
// distinct from the builder's unique node set: the duplicates are what let
// pickNodeToSubstitute count occurrences.
func allNodesInMulticircuit(roots []*Node) []*Node {
	var out []*Node
	var visit func(n *Node)
	visit = func(n *Node) {
		out = append(out, n)
		if n.kind == kindBinOp {
			visit(n.left)
			visit(n.right)
		}
	}
	for _, r := range roots {
		visit(r)
	}
	return out
}

// pickNodeToSubstitute deterministically chooses which node to hoist into a
// new column next:
//  1. nodes reachable from any root with degree > targetDegree
//  2. their descendants with degree in (1, targetDegree]
//  3. keep the most frequently occurring of those
//  4. keep the maximum-degree ones among those
//  5. pick the lowest id
func pickNodeToSubstitute(roots []*Node, targetDegree int) int {
	allUnique := uniqueByID(allNodesInMulticircuit(roots))

	var highDegree []*Node
	for _, n := range allUnique {
		if n.Degree() > targetDegree {
			highDegree = append(highDegree, n)
		}
	}
	if len(highDegree) == 0 {
		panic("circuit: lower_to_degree invariant violated - no node exceeds target degree")
	}

	// Step 2: descendants (with duplicates, so step 3 can count
	// occurrences) of the high-degree nodes, restricted to degree in
	// (1, targetDegree].
	var lowDegree []*Node
	for _, n := range allNodesInMulticircuit(highDegree) {
		d := n.Degree()
		if d > 1 && d <= targetDegree {
			lowDegree = append(lowDegree, n)
		}
	}
	if len(lowDegree) == 0 {
		panic("circuit: could not lower degree of circuit to target degree - this is a bug")
	}

	counts := make(map[int]int)
	for _, n := range lowDegree {
		counts[n.id]++
	}
	maxCount := 0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}

	var candidates []*Node
	seen := make(map[int]bool)
	for _, n := range lowDegree {
		if counts[n.id] == maxCount && !seen[n.id] {
			seen[n.id] = true
			candidates = append(candidates, n)
		}
	}

	maxDegree := -1
	for _, n := range candidates {
		if d := n.Degree(); d > maxDegree {
			maxDegree = d
		}
	}
	var best *Node
	for _, n := range candidates {
		if n.Degree() != maxDegree {
			continue
		}
		if best == nil || n.id < best.id {
			best = n
		}
	}
	return best.id
}

func uniqueByID(nodes []*Node) []*Node {
	seen := make(map[int]bool)
	var out []*Node
	for _, n := range nodes {
		if !seen[n.id] {
			seen[n.id] = true
			out = append(out, n)
		}
	}
	return out
}
