package schema

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileEntity parses a CUE value into an EntityDef.
//
// The CUE value should be the entity struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`entity: User: { columns: { id: {}, name: {} } }`)
//	def, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.User")))
//
// Columns may be written as structs ({field: "role_id", refKey: true}) or as
// a bare string naming the storage field.
func CompileEntity(v cue.Value) (*EntityDef, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &EntityDef{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		def.Name = labels[len(labels)-1].String()
	}

	var err error
	if def.Table, err = optionalString(v, "table"); err != nil {
		return nil, err
	}
	if def.ID, err = optionalString(v, "id"); err != nil {
		return nil, err
	}

	columnsVal := v.LookupPath(cue.ParsePath("columns"))
	if !columnsVal.Exists() {
		return nil, &CompileError{
			Field:   "columns",
			Message: "columns are required",
			Pos:     v.Pos(),
		}
	}
	if def.Columns, err = parseColumns(columnsVal); err != nil {
		return nil, err
	}

	assocVal := v.LookupPath(cue.ParsePath("associations"))
	if assocVal.Exists() {
		if def.Associations, err = parseAssociations(assocVal); err != nil {
			return nil, err
		}
	}

	return def, nil
}

// parseColumns extracts columns in declaration order.
func parseColumns(v cue.Value) ([]ColumnDef, error) {
	var columns []ColumnDef

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		col := ColumnDef{Name: iter.Label()}
		colVal := iter.Value()

		// Shorthand: name: "field_name"
		if field, err := colVal.String(); err == nil {
			col.Field = field
			columns = append(columns, col)
			continue
		}

		if col.Field, err = optionalString(colVal, "field"); err != nil {
			return nil, err
		}
		if col.RefKey, err = optionalBool(colVal, "refKey"); err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}

	return columns, nil
}

// parseAssociations extracts associations in declaration order.
func parseAssociations(v cue.Value) ([]AssociationDef, error) {
	var assocs []AssociationDef

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Label()
		av := iter.Value()
		a := AssociationDef{Name: name}

		typeVal := av.LookupPath(cue.ParsePath("type"))
		if !typeVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("associations.%s.type", name),
				Message: "association type is required",
				Pos:     av.Pos(),
			}
		}
		typeName, err := typeVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if a.Type, err = ParseAssociationType(typeName); err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("associations.%s.type", name),
				Message: err.Error(),
				Pos:     typeVal.Pos(),
			}
		}

		refVal := av.LookupPath(cue.ParsePath("ref"))
		if !refVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("associations.%s.ref", name),
				Message: "association ref is required",
				Pos:     av.Pos(),
			}
		}
		if a.Ref, err = refVal.String(); err != nil {
			return nil, formatCUEError(err)
		}

		if a.Required, err = optionalBool(av, "required"); err != nil {
			return nil, err
		}
		if a.RefKey, err = optionalString(av, "refKey"); err != nil {
			return nil, err
		}
		if a.Middle, err = optionalString(av, "middle"); err != nil {
			return nil, err
		}
		if a.MiddleKey, err = optionalString(av, "middleKey"); err != nil {
			return nil, err
		}
		if a.RefMiddleKey, err = optionalString(av, "refMiddleKey"); err != nil {
			return nil, err
		}

		assocs = append(assocs, a)
	}

	return assocs, nil
}

func optionalString(v cue.Value, path string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, path string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// CompileError represents a schema compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
