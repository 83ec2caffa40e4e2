// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Strongly connected components of a graph using Kosaraju's
// algorithm.

package util

// The graph's nodes are 0 through count-1 and 'edges' returns the
// nodes that a node has an edge to.  Returns the strongly connected
// components in topological order: if there is an edge from a node
// in one component to a node in another, the first component comes
// before the second.

func StronglyConnectedComponents(count int, edges func(int) []int) [][]int {
	children := make([][]int, count)
	parents := make([][]int, count)
	for node := 0; node < count; node++ {
		for _, child := range edges(node) {
			children[node] = append(children[node], child)
			parents[child] = append(parents[child], node)
		}
	}

	seen := make([]bool, count)
	order := make([]int, 0, count)
	for node := 0; node < count; node++ {
		visitPostorder(node, children, seen, func(n int) { order = append(order, n) })
	}

	clear(seen)
	result := [][]int{}
	for i := len(order) - 1; 0 <= i; i-- {
		component := []int{}
		visitPostorder(order[i], parents, seen, func(n int) { component = append(component, n) })
		if 0 < len(component) {
			result = append(result, component)
		}
	}
	return result
}

func visitPostorder(node int, edges [][]int, seen []bool, visit func(int)) {
	var recur func(int)
	recur = func(node int) {
		if seen[node] {
			return
		}
		seen[node] = true
		for _, next := range edges[node] {
			recur(next)
		}
		visit(node)
	}
	recur(node)
}
