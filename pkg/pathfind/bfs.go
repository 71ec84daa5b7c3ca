// Package pathfind finds shortest routes through the room graph.
package pathfind

import (
	"context"
	"errors"
)

// ErrNoPath is returned when the goal cannot be reached from the start.
var ErrNoPath = errors.New("pathfind: no path")

// Search runs a breadth-first search from start, calling expand to get the
// neighbours of a node, until goal accepts a node. It returns the nodes of
// a shortest path from start to that node inclusive.
func Search[N comparable](ctx context.Context, start N, expand func(context.Context, N) ([]N, error), goal func(N) bool) ([]N, error) {
	if goal(start) {
		return []N{start}, nil
	}
	parent := map[N]N{}
	seen := map[N]bool{start: true}
	frontier := []N{start}

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		node := frontier[0]
		frontier = frontier[1:]

		next, err := expand(ctx, node)
		if err != nil {
			return nil, err
		}
		for _, n := range next {
			if seen[n] {
				continue
			}
			seen[n] = true
			parent[n] = node
			if goal(n) {
				return backtrack(parent, start, n), nil
			}
			frontier = append(frontier, n)
		}
	}
	return nil, ErrNoPath
}

func backtrack[N comparable](parent map[N]N, start, end N) []N {
	path := []N{end}
	for n := end; n != start; {
		n = parent[n]
		path = append(path, n)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
