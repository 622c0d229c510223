// Package dag holds the directed graph used to validate constructor
// dependencies before any unit is instantiated. Nodes are identified by
// string IDs; an edge from A to B records that B depends on A.
//
// The graph keeps insertion order for nodes and edges so that cycle reports
// are stable across runs.
package dag
