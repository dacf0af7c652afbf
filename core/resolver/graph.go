package resolver

import (
	"fmt"

	"provisioner/core/provision"
)

// sortDefinitions orders definitions so that every definition follows its
// dependencies. Ties keep declaration order, so the result is deterministic.
func sortDefinitions(targetID string, defs []Definition) ([]Definition, error) {
	byID := make(map[string]Definition, len(defs))
	for _, d := range defs {
		if d.ID() == "" {
			return nil, &provision.ConfigurationError{TargetID: targetID, Reason: "definition without id"}
		}
		if _, dup := byID[d.ID()]; dup {
			return nil, &provision.ConfigurationError{TargetID: targetID, Reason: fmt.Sprintf("duplicate definition %q", d.ID())}
		}
		byID[d.ID()] = d
	}

	inDegree := make(map[string]int, len(defs))
	dependents := make(map[string][]string, len(defs))
	for _, d := range defs {
		for _, dep := range d.DependsOn() {
			if _, ok := byID[dep]; !ok {
				return nil, &provision.ConfigurationError{
					TargetID: targetID,
					Reason:   fmt.Sprintf("definition %q depends on unknown definition %q", d.ID(), dep),
				}
			}
			inDegree[d.ID()]++
			dependents[dep] = append(dependents[dep], d.ID())
		}
	}

	// Kahn's algorithm, always taking the earliest declared ready definition.
	done := make(map[string]bool, len(defs))
	sorted := make([]Definition, 0, len(defs))
	for len(sorted) < len(defs) {
		progressed := false
		for _, d := range defs {
			if done[d.ID()] || inDegree[d.ID()] > 0 {
				continue
			}
			done[d.ID()] = true
			sorted = append(sorted, d)
			for _, dependent := range dependents[d.ID()] {
				inDegree[dependent]--
			}
			progressed = true
			break
		}
		if !progressed {
			return nil, &provision.CycleError{TargetID: targetID, DefinitionIDs: findCycle(defs, done)}
		}
	}
	return sorted, nil
}

// findCycle walks the unsorted definitions depth first and returns the first cycle
// found, closed by repeating its first id.
func findCycle(defs []Definition, done map[string]bool) []string {
	byID := make(map[string]Definition, len(defs))
	for _, d := range defs {
		byID[d.ID()] = d
	}

	const (
		unvisited = iota
		onStack
		finished
	)
	state := make(map[string]int, len(defs))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = onStack
		stack = append(stack, id)
		for _, dep := range byID[id].DependsOn() {
			if done[dep] {
				continue
			}
			switch state[dep] {
			case onStack:
				for i, s := range stack {
					if s == dep {
						cycle = append(append([]string(nil), stack[i:]...), dep)
						return true
					}
				}
			case unvisited:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = finished
		return false
	}

	for _, d := range defs {
		if !done[d.ID()] && state[d.ID()] == unvisited && visit(d.ID()) {
			return cycle
		}
	}
	return nil
}
