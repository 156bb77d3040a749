// Package ldf holds the immutable description of a LIN cluster: nodes,
// signals with their encodings, frames and schedule tables.
//
// Descriptions are loaded from a YAML rendering of an LDF file with Load or
// Parse and validated once; lookups by frame id, frame name and table name
// are safe for concurrent use afterwards.
package ldf
