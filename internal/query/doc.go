// Package query is the reactive query layer over projected tables.
//
// A Spec selects rows from one table, filters them with a predicate, orders
// them and optionally limits them. Specs are validated against the table
// schema registry before they run, so an unknown column is an error at
// subscribe time rather than an empty result later.
//
// SEALED INTERFACES:
//
// Predicate is sealed with a marker method. Only Eq, IsNull, NotNull, In
// and And implement it, so evaluation is an exhaustive type switch.
//
// SUBSCRIPTIONS:
//
// Hub fans commits out to subscriptions. Each commit that touches a table
// re-runs every subscription on that table against the post-commit state
// and queues the result; a per-subscription goroutine delivers results in
// commit order. Result rows are detached copies, never live table rows.
package query
