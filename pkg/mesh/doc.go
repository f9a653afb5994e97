// Package mesh defines the polygonal surface model used by the landmark
// engine. A surface has a stable vertex index space [0, N), a cell-to-vertex
// incidence relation and a table of named per-point scalar arrays with a
// display binding (active scalars + scalar coloring).
package mesh
