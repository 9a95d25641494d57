package cg

import (
	"github.com/dave/jennifer/jen"
	"github.com/dianpeng/colgen/types"
)

// HoldingContainer is the result of translating one expression: a value
// expression plus, for nullable results, a validity expression. Both are
// rebuilt on every access so callers may embed them anywhere. Reads are
// tracked so that locals nobody reads can be marked used at flush time.
type HoldingContainer struct {
	t     types.MajorType
	value func() *jen.Statement
	isSet func() *jen.Statement

	valueRead bool
	setRead   bool
}

func newHolder(
	t types.MajorType,
	value func() *jen.Statement,
	isSet func() *jen.Statement,
) *HoldingContainer {
	if isSet == nil {
		t = t.AsRequired()
	}
	return &HoldingContainer{
		t:     t,
		value: value,
		isSet: isSet,
	}
}

// localHolder reads the local variables name and setName
func localHolder(t types.MajorType, name string, setName string) *HoldingContainer {
	var isSet func() *jen.Statement
	if setName != "" {
		isSet = func() *jen.Statement { return jen.Id(setName) }
	}
	return newHolder(
		t,
		func() *jen.Statement { return jen.Id(name) },
		isSet,
	)
}

func (self *HoldingContainer) Value() *jen.Statement {
	self.valueRead = true
	return self.value()
}

// IsSet is the validity expression, the literal true for required values
func (self *HoldingContainer) IsSet() *jen.Statement {
	if self.isSet == nil {
		return jen.True()
	}
	self.setRead = true
	return self.isSet()
}

func (self *HoldingContainer) MajorType() types.MajorType { return self.t }
func (self *HoldingContainer) IsOptional() bool           { return self.isSet != nil }

// IsRead tells whether anything consumed the value expression
func (self *HoldingContainer) IsRead() bool { return self.valueRead }
