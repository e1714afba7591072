// Package schema provides the entity metadata consumed by the ORQL parser
// and the lowering compiler.
//
// The package is the foundational layer: orql, querysql and compiler import
// schema; schema imports nothing internal.
//
// A Registry is built once from a set of EntityDef values (usually compiled
// from CUE files, see CompileEntity) and is read-only afterwards. Callers
// only ever see it through the Lookup interface, so tests can supply fixture
// registries without global state.
//
// Naming conventions applied at registration:
//   - entity, column and association names are NFC-normalised
//   - a missing table name defaults to the underscored entity name
//   - a missing storage field defaults to the underscored column name
//   - a missing id column defaults to "id"
//   - foreign keys default to "<underscored name>_id" following the
//     association direction (see AssociationDef)
package schema
