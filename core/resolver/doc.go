// Package resolver evaluates a per-target set of attribute definitions against a
// source entity and produces the desired ProvisionedObject.
//
// Definitions form a DAG through their dependencies. The DAG is validated once,
// when the Resolver is built: unknown dependencies and a missing identifier
// definition are ConfigurationErrors, cycles are CycleErrors. Resolve then
// evaluates every definition exactly once per call, in topological order, and
// hands each definition the memoized values of its dependencies.
//
// A definition whose dependencies include one with no values yields no values
// itself. The identifier definition uses this to express participation: gate it
// on a filter definition and an entity that no longer matches the filter resolves
// to no object at all, which the diff engine turns into a Delete.
//
// Mappings bind definitions to target attributes or references, each with its own
// attribute mode. Reference values are object ids, or raw values to be looked up
// in the target when the mapping declares a Lookup.
package resolver
