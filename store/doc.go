// Package store holds the terminal and pass-through stages that persist or
// collect records: CSV and gob writers, a gob reader that turns a stored
// file back into a source, an in-memory column cache and a plain-text dump.
//
// Every writer is a pass-through stage: records flow on unchanged after
// being written, so stores can be chained with further stages.
package store
