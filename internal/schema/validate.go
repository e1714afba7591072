package schema

import (
	"fmt"
	"strings"
)

// Validation error codes (E100-E199)
const (
	ErrEntityNameEmpty    = "E101" // entity name is required
	ErrDuplicateEntity    = "E102" // entity declared twice
	ErrNoColumns          = "E103" // entity must declare columns
	ErrDuplicateName      = "E104" // duplicate column/association name
	ErrMissingIDColumn    = "E105" // id column not among columns
	ErrInvalidAssociation = "E110" // unknown association type
	ErrUnknownRef         = "E111" // association target not declared
	ErrMissingMiddle      = "E112" // belongsToMany without middle table
	ErrMissingRefKey      = "E113" // association key could not be derived
	ErrNameCollision      = "E114" // association name shadows a column
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Entity  string `json:"entity"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("[%s] %s.%s: %s", e.Code, e.Entity, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a set of entity definitions.
// Returns all errors found (does not fail-fast).
//
// Definitions are expected to have defaults applied; NewRegistry does that
// before calling Validate.
func Validate(defs []EntityDef) []ValidationError {
	var errs []ValidationError

	declared := make(map[string]bool, len(defs))
	for i, def := range defs {
		if strings.TrimSpace(def.Name) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("entities[%d].name", i),
				Message: "entity name is required",
				Code:    ErrEntityNameEmpty,
			})
			continue
		}
		if declared[def.Name] {
			errs = append(errs, ValidationError{
				Entity:  def.Name,
				Field:   "name",
				Message: fmt.Sprintf("duplicate entity %q", def.Name),
				Code:    ErrDuplicateEntity,
			})
		}
		declared[def.Name] = true
	}

	for _, def := range defs {
		if def.Name == "" {
			continue
		}
		errs = append(errs, validateEntity(def, declared)...)
	}

	return errs
}

func validateEntity(def EntityDef, declared map[string]bool) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Entity:  def.Name,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
		})
	}

	if len(def.Columns) == 0 {
		add("columns", ErrNoColumns, "at least one column is required")
	}

	columns := make(map[string]bool, len(def.Columns))
	for i, c := range def.Columns {
		if columns[c.Name] {
			add(fmt.Sprintf("columns[%d]", i), ErrDuplicateName, "duplicate column %q", c.Name)
		}
		columns[c.Name] = true
	}

	if len(def.Columns) > 0 && !columns[def.ID] {
		add("id", ErrMissingIDColumn, "id column %q is not declared", def.ID)
	}

	assocs := make(map[string]bool, len(def.Associations))
	for i, a := range def.Associations {
		field := fmt.Sprintf("associations[%d]", i)
		if assocs[a.Name] {
			add(field, ErrDuplicateName, "duplicate association %q", a.Name)
		}
		assocs[a.Name] = true

		if columns[a.Name] {
			add(field, ErrNameCollision, "association %q shadows a column of the same name", a.Name)
		}

		if _, ok := associationTypeNames[a.Type]; !ok {
			add(field+".type", ErrInvalidAssociation, "invalid association type %d", int(a.Type))
			continue
		}

		if !declared[a.Ref] {
			add(field+".ref", ErrUnknownRef, "association %q references unknown entity %q", a.Name, a.Ref)
		}

		switch a.Type {
		case BelongsToMany:
			if a.Middle == "" {
				add(field+".middle", ErrMissingMiddle, "belongsToMany association %q requires a middle table", a.Name)
			}
			if a.MiddleKey == "" || a.RefMiddleKey == "" {
				add(field, ErrMissingRefKey, "belongsToMany association %q requires middle keys", a.Name)
			}
		default:
			if a.RefKey == "" {
				add(field+".refKey", ErrMissingRefKey, "association %q requires a reference key", a.Name)
			}
		}
	}

	return errs
}
