package vector

import (
	"fmt"

	"github.com/dianpeng/colgen/types"
)

// Vector is one column of a record batch. Values returns the backing slice
// ([]int64, []int32, []float32, []float64, []bool or []string) and Validity
// the per row "is set" flags, nil for required columns. Both slices are
// handed to generated code as is, so they are never copied.
type Vector interface {
	Type() types.MajorType
	Len() int
	Values() interface{}
	Validity() []bool
	IsNull(i int) bool
	Get(i int) interface{}
	Reset()
}

type Element interface {
	int64 | int32 | float32 | float64 | bool | string
}

// Column is the only Vector implementation, specialized per element type.
type Column[T Element] struct {
	typ    types.MajorType
	values []T
	valid  []bool
}

func newColumn[T Element](t types.MajorType, capacity int) *Column[T] {
	c := &Column[T]{
		typ:    t,
		values: make([]T, 0, capacity),
	}
	if t.IsNullable() {
		c.valid = make([]bool, 0, capacity)
	}
	return c
}

func (self *Column[T]) Type() types.MajorType { return self.typ }
func (self *Column[T]) Len() int              { return len(self.values) }
func (self *Column[T]) Values() interface{}   { return self.values }
func (self *Column[T]) Validity() []bool      { return self.valid }
func (self *Column[T]) Slice() []T            { return self.values }

func (self *Column[T]) IsNull(i int) bool {
	if self.valid == nil {
		return false
	}
	return !self.valid[i]
}

func (self *Column[T]) Get(i int) interface{} {
	if self.IsNull(i) {
		return nil
	}
	return self.values[i]
}

func (self *Column[T]) Append(v T) {
	self.values = append(self.values, v)
	if self.valid != nil {
		self.valid = append(self.valid, true)
	}
}

// AppendNull appends an unset slot. Appending null to a required column is
// a caller bug.
func (self *Column[T]) AppendNull() {
	if self.valid == nil {
		panic("vector: null appended to a required column")
	}
	var zero T
	self.values = append(self.values, zero)
	self.valid = append(self.valid, false)
}

func (self *Column[T]) Reset() {
	self.values = self.values[:0]
	if self.valid != nil {
		self.valid = self.valid[:0]
	}
}

// New allocates an empty column for the major type.
func New(t types.MajorType, capacity int) (Vector, error) {
	switch t.Minor {
	case types.BigInt:
		return newColumn[int64](t, capacity), nil
	case types.Int:
		return newColumn[int32](t, capacity), nil
	case types.Float4:
		return newColumn[float32](t, capacity), nil
	case types.Float8:
		return newColumn[float64](t, capacity), nil
	case types.Bit:
		return newColumn[bool](t, capacity), nil
	case types.VarChar:
		return newColumn[string](t, capacity), nil
	default:
		return nil, fmt.Errorf("vector: unsupported type %s", t)
	}
}

// MustNew is New for statically known types.
func MustNew(t types.MajorType, capacity int) Vector {
	v, err := New(t, capacity)
	if err != nil {
		panic(err.Error())
	}
	return v
}
