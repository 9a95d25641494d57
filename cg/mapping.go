package cg

import (
	"fmt"
)

// BlockType is a method placement slot
type BlockType int

const (
	BlockSetup BlockType = iota
	BlockEval
	BlockReset
	BlockCleanup
)

// blockOrder is the order units are flushed in
var blockOrder = []BlockType{
	BlockSetup,
	BlockEval,
	BlockReset,
	BlockCleanup,
}

func (self BlockType) String() string {
	switch self {
	case BlockSetup:
		return "setup"
	case BlockEval:
		return "eval"
	case BlockReset:
		return "reset"
	case BlockCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}

// GeneratorMapping maps every slot to a hook method name, an empty name
// means the slot has no method.
type GeneratorMapping struct {
	Setup   string
	Eval    string
	Reset   string
	Cleanup string
}

func (self *GeneratorMapping) MethodName(t BlockType) string {
	switch t {
	case BlockSetup:
		return self.Setup
	case BlockEval:
		return self.Eval
	case BlockReset:
		return self.Reset
	default:
		return self.Cleanup
	}
}

// MappingSet tells the translator where statements go and how variables
// are named. ReadIndex and WriteIndex are the row index variables of the
// eval method, Incoming and Outgoing the batch parameters of the setup
// method.
//
// The active slot is a cursor: moving it only affects later emissions.
type MappingSet struct {
	ReadIndex  string
	WriteIndex string
	Incoming   string
	Outgoing   string

	mappings []*GeneratorMapping
	current  int
	block    BlockType
}

func NewMappingSet(
	readIndex string,
	writeIndex string,
	incoming string,
	outgoing string,
	mappings ...*GeneratorMapping,
) *MappingSet {
	return &MappingSet{
		ReadIndex:  readIndex,
		WriteIndex: writeIndex,
		Incoming:   incoming,
		Outgoing:   outgoing,
		mappings:   mappings,
		block:      BlockEval,
	}
}

// DefaultMapping returns a fresh mapping set using the conventional
// DoSetup/DoEval/DoReset/DoCleanup hook names.
func DefaultMapping() *MappingSet {
	return NewMappingSet(
		"inIndex",
		"outIndex",
		"incoming",
		"outgoing",
		&GeneratorMapping{
			Setup:   "DoSetup",
			Eval:    "DoEval",
			Reset:   "DoReset",
			Cleanup: "DoCleanup",
		},
	)
}

func (self *MappingSet) SetBlock(t BlockType) { self.block = t }
func (self *MappingSet) Block() BlockType     { return self.block }

func (self *MappingSet) Mapping() *GeneratorMapping {
	return self.mappings[self.current]
}

// MethodName resolves a slot through the current generator mapping
func (self *MappingSet) MethodName(t BlockType) string {
	return self.Mapping().MethodName(t)
}

func (self *MappingSet) CurrentMethod() string {
	return self.MethodName(self.block)
}

// EnterChild moves to the next generator mapping, used when a nested
// evaluation targets a different set of methods.
func (self *MappingSet) EnterChild() error {
	if self.current+1 >= len(self.mappings) {
		return fmt.Errorf("mapping set has no child mapping after %d", self.current)
	}
	self.current++
	return nil
}

func (self *MappingSet) ExitChild() error {
	if self.current == 0 {
		return fmt.Errorf("mapping set is already at its root mapping")
	}
	self.current--
	return nil
}

func (self *MappingSet) validate(sig *Signature) error {
	if len(self.mappings) == 0 {
		return &ConfigurationError{Msg: "mapping set has no generator mapping"}
	}
	for _, m := range self.mappings {
		for _, b := range blockOrder {
			n := m.MethodName(b)
			if n == "" {
				continue
			}
			if _, ok := sig.Hook(n); !ok {
				continue
			}
			if b == BlockSetup && self.Incoming != "" && !sig.param(n, self.Incoming) {
				return &ConfigurationError{
					Msg: fmt.Sprintf("setup method %s has no parameter %s", n, self.Incoming),
				}
			}
			if b == BlockEval && self.ReadIndex != "" && !sig.param(n, self.ReadIndex) {
				return &ConfigurationError{
					Msg: fmt.Sprintf("eval method %s has no parameter %s", n, self.ReadIndex),
				}
			}
		}
	}
	return nil
}
