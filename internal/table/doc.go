// Package table is the table schema registry and the in-memory projection
// state of a store.
//
// Tables hold one map per projection keyed by primary key. Rows expose
// their columns by name so the query layer can filter and order them
// against the registered schemas. Only materializers mutate Tables.
package table
