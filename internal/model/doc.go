// Package model defines the entity shapes of the canon graph: nodes, edges,
// their shared metadata record, and the graph container.
//
// Nodes are a tagged union. Each node kind has its own content struct
// implementing the sealed Content interface, and PrimaryText is an exhaustive
// switch over those kinds.
//
// Entities round-trip through JSON as
//
//	{"id": ..., "type": ..., "content": {...}, "metadata": {...}}
//
// which is also the shape hashed by the version package.
package model
