package fn

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dave/jennifer/jen"
	"github.com/dianpeng/colgen/types"
)

// NullHandling tells the translator who deals with null arguments.
type NullHandling int

const (
	// NullIfNull functions produce null as soon as one argument is null, and
	// their body only runs once every argument is known to be set.
	NullIfNull NullHandling = iota

	// Internal functions see the validity of their arguments and always
	// produce a value.
	Internal
)

// Input is one evaluated argument as seen by a function body. Every call
// returns a fresh statement so a body may use an input more than once.
type Input interface {
	Value() *jen.Statement
	IsSet() *jen.Statement
	MajorType() types.MajorType
}

// Body emits the statements computing the outputs. out holds the names of
// the local variables, one per Output, the body must assign.
type Body func(in []Input, out []string) []jen.Code

type Output struct {
	Name string
	Type types.MinorType
}

type Descriptor struct {
	Name         string
	Args         []types.MinorType
	Outputs      []Output
	NullHandling NullHandling
	Body         Body
}

// OutputIndex resolves a selected output name, empty means the first one
func (self *Descriptor) OutputIndex(name string) (int, bool) {
	if name == "" {
		return 0, len(self.Outputs) > 0
	}
	for idx, o := range self.Outputs {
		if o.Name == name {
			return idx, true
		}
	}
	return -1, false
}

func (self *Descriptor) signature() string {
	parts := make([]string, 0, len(self.Args))
	for _, a := range self.Args {
		parts = append(parts, a.String())
	}
	return fmt.Sprintf("%s(%s)", self.Name, strings.Join(parts, ", "))
}

func (self *Descriptor) match(args []types.MajorType) bool {
	if len(args) != len(self.Args) {
		return false
	}
	for idx, a := range args {
		if a.Minor != self.Args[idx] {
			return false
		}
	}
	return true
}

// Registry is the function catalog consulted while translating calls.
// Overloads are resolved on the exact minor types of the arguments, callers
// insert casts beforehand. A Registry is read only once it is shared.
type Registry struct {
	funcs map[string][]*Descriptor
}

func NewRegistry() *Registry {
	return &Registry{
		funcs: make(map[string][]*Descriptor),
	}
}

func (self *Registry) Register(d *Descriptor) error {
	if d.Name == "" || d.Body == nil || len(d.Outputs) == 0 {
		return fmt.Errorf("function %q: name, body and at least one output are required", d.Name)
	}
	for _, x := range self.funcs[d.Name] {
		if len(x.Args) != len(d.Args) {
			continue
		}
		same := true
		for idx := range x.Args {
			if x.Args[idx] != d.Args[idx] {
				same = false
				break
			}
		}
		if same {
			return fmt.Errorf("function %s is registered twice", d.signature())
		}
	}
	self.funcs[d.Name] = append(self.funcs[d.Name], d)
	return nil
}

func (self *Registry) MustRegister(d *Descriptor) {
	if err := self.Register(d); err != nil {
		panic(err.Error())
	}
}

func (self *Registry) Lookup(name string, args []types.MajorType) (*Descriptor, bool) {
	for _, d := range self.funcs[name] {
		if d.match(args) {
			return d, true
		}
	}
	return nil, false
}

// Has tells whether any overload of name exists
func (self *Registry) Has(name string) bool {
	return len(self.funcs[name]) > 0
}

// Overloads returns the argument lists registered under name
func (self *Registry) Overloads(name string) [][]types.MinorType {
	out := [][]types.MinorType{}
	for _, d := range self.funcs[name] {
		out = append(out, d.Args)
	}
	return out
}

func (self *Registry) Names() []string {
	out := make([]string, 0, len(self.funcs))
	for n := range self.funcs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
