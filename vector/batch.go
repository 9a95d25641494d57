package vector

import (
	"fmt"
	"strings"

	"fortio.org/safecast"
	"github.com/dianpeng/colgen/types"
)

// MaxBatchSize is bounded by the 16 bits selection vector.
const MaxBatchSize = 1 << 16

type Field struct {
	Name string
	Type types.MajorType
}

type Schema struct {
	Fields []Field
}

func NewSchema(fields ...Field) *Schema {
	return &Schema{
		Fields: fields,
	}
}

// ParseSchema parses "name:type[?], ..." where a trailing '?' marks the
// column nullable, ie "a:bigint, b:varchar?".
func ParseSchema(s string) (*Schema, error) {
	out := &Schema{}
	for idx, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("schema: field %d(%s) must be name:type", idx, part)
		}
		name := strings.ToLower(strings.TrimSpace(kv[0]))
		tn := strings.TrimSpace(kv[1])
		mode := types.Required
		if strings.HasSuffix(tn, "?") {
			mode = types.Optional
			tn = strings.TrimSuffix(tn, "?")
		}
		minor, err := types.ParseMinorType(tn)
		if err != nil {
			return nil, fmt.Errorf("schema: field %s: %w", name, err)
		}
		if _, ok := out.Index(name); ok {
			return nil, fmt.Errorf("schema: field %s is defined twice", name)
		}
		out.Fields = append(out.Fields, Field{
			Name: name,
			Type: types.MajorType{Minor: minor, Mode: mode},
		})
	}
	if len(out.Fields) == 0 {
		return nil, fmt.Errorf("schema: no field")
	}
	return out, nil
}

func (self *Schema) Index(name string) (int, bool) {
	for idx, f := range self.Fields {
		if f.Name == name {
			return idx, true
		}
	}
	return -1, false
}

func (self *Schema) Len() int { return len(self.Fields) }

func (self *Schema) String() string {
	parts := make([]string, 0, len(self.Fields))
	for _, f := range self.Fields {
		q := ""
		if f.Type.IsNullable() {
			q = "?"
		}
		parts = append(parts, fmt.Sprintf("%s:%s%s", f.Name, f.Type.Minor, q))
	}
	return strings.Join(parts, ", ")
}

// Batch is a set of equally sized columns.
type Batch struct {
	Schema  *Schema
	Columns []Vector
}

func NewBatch(schema *Schema, capacity int) *Batch {
	b := &Batch{
		Schema:  schema,
		Columns: make([]Vector, 0, len(schema.Fields)),
	}
	for _, f := range schema.Fields {
		b.Columns = append(b.Columns, MustNew(f.Type, capacity))
	}
	return b
}

func (self *Batch) RecordCount() int {
	if len(self.Columns) == 0 {
		return 0
	}
	return self.Columns[0].Len()
}

func (self *Batch) Reset() {
	for _, c := range self.Columns {
		c.Reset()
	}
}

// Export flattens the batch into the layout generated code binds against:
// slot 2*i holds column i's values and slot 2*i+1 its validity ([]bool or
// nil for required columns).
func (self *Batch) Export() []interface{} {
	out := make([]interface{}, 0, 2*len(self.Columns))
	for _, c := range self.Columns {
		out = append(out, c.Values())
		if v := c.Validity(); v != nil {
			out = append(out, v)
		} else {
			out = append(out, nil)
		}
	}
	return out
}

// ValuesSlot and ValiditySlot return the Export positions of a column.
func ValuesSlot(column int) int   { return 2 * column }
func ValiditySlot(column int) int { return 2*column + 1 }

// SelectionVector2 holds the surviving row indexes of a filtered batch.
type SelectionVector2 struct {
	scratch []int
	sel     []uint16
}

func NewSelectionVector2(capacity int) *SelectionVector2 {
	return &SelectionVector2{
		scratch: make([]int, capacity),
		sel:     make([]uint16, 0, capacity),
	}
}

// Scratch returns a buffer of at least n slots that the filter writes
// row indexes into before Commit narrows them.
func (self *SelectionVector2) Scratch(n int) []int {
	if cap(self.scratch) < n {
		self.scratch = make([]int, n)
	}
	return self.scratch[:n]
}

// Commit keeps the first count entries of the scratch buffer.
func (self *SelectionVector2) Commit(count int) error {
	self.sel = self.sel[:0]
	for _, idx := range self.scratch[:count] {
		v, err := safecast.Conv[uint16](idx)
		if err != nil {
			return fmt.Errorf("selection vector: row index %d: %w", idx, err)
		}
		self.sel = append(self.sel, v)
	}
	return nil
}

func (self *SelectionVector2) Count() int        { return len(self.sel) }
func (self *SelectionVector2) Index(i int) int   { return int(self.sel[i]) }
func (self *SelectionVector2) Indexes() []uint16 { return self.sel }
