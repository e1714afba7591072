package store

import (
	"fmt"
	"strings"

	"github.com/roach88/orql/internal/orql"
	"github.com/roach88/orql/internal/querysql"
	"github.com/roach88/orql/internal/schema"
)

// level is one entity level of the item tree with the result columns that
// belong to it.
type level struct {
	item     *orql.RefItem
	path     string
	fields   []field
	idIndex  int // -1 when the id column is not selected
	children []*level
}

type field struct {
	key   string // column name, used as the object key
	index int    // position in the result row
}

func newLevel(item *orql.RefItem, path string, byPath map[string]*level) *level {
	lv := &level{item: item, path: path, idIndex: -1}
	byPath[path] = lv
	for _, child := range item.Children {
		ref, ok := child.(*orql.RefItem)
		if !ok {
			continue
		}
		lv.children = append(lv.children, newLevel(ref, path+querysql.PathSeparator+ref.Name, byPath))
	}
	return lv
}

// Shape nests flat result rows into the shape of root. columns are the
// result column names as rendered ("<path>.<field>").
//
// The result is a []map[string]any for an array-shaped root and a
// map[string]any, or nil when no row matched, for an object-shaped root.
func Shape(root *orql.RefItem, columns []string, rows [][]any) (any, error) {
	if root == nil || root.Schema == nil {
		return nil, fmt.Errorf("shape: root has no schema")
	}

	byPath := map[string]*level{}
	top := newLevel(root, root.Schema.Table, byPath)

	for i, name := range columns {
		cut := strings.LastIndex(name, querysql.PathSeparator)
		if cut < 0 {
			return nil, fmt.Errorf("shape: column %q is not path qualified", name)
		}
		path, fieldName := name[:cut], name[cut+1:]
		lv, ok := byPath[path]
		if !ok {
			return nil, fmt.Errorf("shape: column %q has unknown path %q", name, path)
		}
		col, ok := columnByField(lv.item.Schema, fieldName)
		if !ok {
			return nil, fmt.Errorf("shape: entity %q has no field %q", lv.item.Schema.Name, fieldName)
		}
		if col == lv.item.Schema.ID() {
			lv.idIndex = i
		}
		lv.fields = append(lv.fields, field{key: col.Name, index: i})
	}

	objs := top.build(rows, true)
	if root.IsArray() {
		return objs, nil
	}
	if len(objs) == 0 {
		return nil, nil
	}
	return objs[0], nil
}

func columnByField(s *schema.Schema, name string) (*schema.Column, bool) {
	for _, c := range s.Columns() {
		if c.Field == name {
			return c, true
		}
	}
	return nil, false
}

// build groups rows by this level's identity, in order of first appearance,
// and recurses into each group for the child levels.
func (lv *level) build(rows [][]any, root bool) []map[string]any {
	out := []map[string]any{}
	var order []string
	groups := map[string][][]any{}

	for _, row := range rows {
		if !root && lv.absent(row) {
			continue
		}
		k := lv.key(row)
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], row)
	}

	for _, k := range order {
		g := groups[k]
		obj := make(map[string]any, len(lv.fields)+len(lv.children))
		for _, f := range lv.fields {
			obj[f.key] = g[0][f.index]
		}
		for _, c := range lv.children {
			sub := c.build(g, false)
			switch {
			case c.item.IsArray():
				obj[c.item.Name] = sub
			case len(sub) > 0:
				obj[c.item.Name] = sub[0]
			default:
				obj[c.item.Name] = nil
			}
		}
		out = append(out, obj)
	}
	return out
}

// absent reports whether row is the unmatched side of a left join for this
// level.
func (lv *level) absent(row []any) bool {
	if len(lv.fields) == 0 {
		return false
	}
	for _, f := range lv.fields {
		if row[f.index] != nil {
			return false
		}
	}
	return true
}

func (lv *level) key(row []any) string {
	if lv.idIndex >= 0 {
		return fmt.Sprintf("%T:%v", row[lv.idIndex], row[lv.idIndex])
	}
	parts := make([]string, len(lv.fields))
	for i, f := range lv.fields {
		parts[i] = fmt.Sprintf("%T:%v", row[f.index], row[f.index])
	}
	return strings.Join(parts, "\x00")
}
