package livegraph

// Dependency resolution: cycle detection and deterministic topological
// ordering over a chain's registered operators. Edges run from each
// input (producer) to the operator that reads it (consumer). Input
// references whose name is not registered in the chain are foreign and
// ignored, not treated as errors.

// Three-color marks for cycle detection.
type mark uint8

const (
	markWhite mark = iota // unvisited
	markGray              // on the current DFS path
	markBlack             // fully explored
)

// detectCycle runs a depth-first traversal with three-color marking over
// all registered operators. A back-edge into a gray node signals a
// cycle; the returned witness lists the names along it, ending with a
// repeat of the first ("a", "b", "a"). Returns nil when acyclic.
//
// names carries the chain's insertion order so the traversal, and
// therefore the reported witness, is deterministic.
func detectCycle(names []string, ops map[string]Operator) []string {
	marks := make(map[string]mark, len(names))
	var stack []string
	var witness []string

	var visit func(name string) bool
	visit = func(name string) bool {
		marks[name] = markGray
		stack = append(stack, name)

		op := ops[name]
		for i := 0; i < op.InputCount(); i++ {
			in := op.Input(i)
			if in == nil {
				continue
			}
			src := in.Name()
			if _, registered := ops[src]; !registered {
				continue // foreign reference
			}
			switch marks[src] {
			case markGray:
				// Back-edge: slice the witness out of the DFS stack.
				for j, n := range stack {
					if n == src {
						witness = append(append(witness, stack[j:]...), src)
						break
					}
				}
				return true
			case markWhite:
				if visit(src) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		marks[name] = markBlack
		return false
	}

	for _, name := range names {
		if marks[name] == markWhite {
			if visit(name) {
				return witness
			}
		}
	}
	return nil
}

// computeOrder runs Kahn's algorithm and returns a full topological
// order. The ready queue is seeded with all in-degree-0 operators in
// insertion order (first added, first ready), and dependents are
// discovered in input-slot order, so a fixed construction sequence
// always yields the identical order.
//
// In-degree counts only edges whose source is itself registered. When
// the final order is shorter than the node count an unreachable cycle
// exists and a CycleError is returned; callers must leave any previously
// published order untouched.
func computeOrder(names []string, ops map[string]Operator) ([]Operator, error) {
	if path := detectCycle(names, ops); path != nil {
		return nil, &CycleError{Nodes: path}
	}

	indeg := make(map[string]int, len(names))
	dependents := make(map[string][]string, len(names))

	for _, name := range names {
		op := ops[name]
		for i := 0; i < op.InputCount(); i++ {
			in := op.Input(i)
			if in == nil {
				continue
			}
			src := in.Name()
			if _, registered := ops[src]; !registered {
				continue
			}
			indeg[name]++
			dependents[src] = append(dependents[src], name)
		}
	}

	queue := make([]string, 0, len(names))
	for _, name := range names {
		if indeg[name] == 0 {
			queue = append(queue, name)
		}
	}

	order := make([]Operator, 0, len(names))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, ops[name])
		for _, dep := range dependents[name] {
			indeg[dep]--
			if indeg[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != len(names) {
		// An order shorter than the node count means a cycle survived
		// detectCycle, which should not happen.
		return nil, &CycleError{}
	}
	return order, nil
}

// partitionOrder splits a validated full order into the Visual and Audio
// sub-orders in a single walk, preserving relative order. Audio-kind
// operators go to the Audio domain; everything else is Visual.
func partitionOrder(full []Operator) (visual, audio []Operator) {
	for _, op := range full {
		if op.Kind() == KindAudio {
			audio = append(audio, op)
		} else {
			visual = append(visual, op)
		}
	}
	return visual, audio
}
