// Package catalog defines the external collaborator spec §1/§6 puts out
// of the engine's core scope: the table-name -> file-name -> schema-
// version bookkeeping. Spec.md only fixes the contract; this package
// also supplies an in-process implementation so the rest of the engine
// has something to run against.
package catalog

import "github.com/relstore/pagedengine/internal/value"

// Catalog is the contract every record file and query operator relies
// on (spec §6):
//
//	current_version(table) -> int
//	attributes_for(table, version) -> ordered attribute list
//	stamp_on_insert(table, rid, version) — called after a successful
//	  insert whenever version != 1
//	is_system(file) -> bool — disables version translation for the
//	  catalog's own backing files
type Catalog interface {
	CurrentVersion(table string) (int, error)
	AttributesFor(table string, version int) (value.Descriptor, error)
	StampOnInsert(table string, rid value.RID, version int) error
	IsSystem(file string) bool
}
