package cg

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync/atomic"

	"github.com/dave/jennifer/jen"
)

// TypeRef names a Go type by import path and identifier
type TypeRef struct {
	Path string
	Name string
}

func (self TypeRef) String() string {
	return fmt.Sprintf("%s.%s", self.Path, self.Name)
}

type Param struct {
	Name string
	Type jen.Code
}

// Method is one method of a generated unit. Results hold types only.
type Method struct {
	Name    string
	Params  []Param
	Results []jen.Code
}

// Signature lists what a generated unit exposes. Hooks are the methods the
// template calls back into, they are filled through the mapping slots and
// rendered in order. Entries are the execution interface methods, the
// template implements them and the generated unit exports one top level
// function per entry so the host can reach them without reflection.
type Signature struct {
	Hooks   []Method
	Entries []Method
}

func (self *Signature) Hook(name string) (*Method, bool) {
	for idx := range self.Hooks {
		if self.Hooks[idx].Name == name {
			return &self.Hooks[idx], true
		}
	}
	return nil, false
}

func (self *Signature) param(method, name string) bool {
	m, ok := self.Hook(method)
	if !ok {
		return false
	}
	for _, p := range m.Params {
		if p.Name == name {
			return true
		}
	}
	return false
}

// TemplateDescriptor is the static description of one algorithm template.
// It is shared by every CodeGenerator built for the template and is read
// only, except for the sequence counter.
type TemplateDescriptor struct {
	// Interface is the simple name of the execution interface, it prefixes
	// every generated unit name.
	Interface string

	// Template is the type the generated unit embeds, or is merged with.
	Template TypeRef

	Signature *Signature

	// HooksField is the template field holding the hooks implementation.
	// The generated constructor points it back at the generated value.
	HooksField string

	// Source holds the template package sources under SourceDir.
	Source    fs.FS
	SourceDir string

	seq atomic.Int64
}

// NextSequence returns 0, 1, 2 ... and is safe for concurrent use
func (self *TemplateDescriptor) NextSequence() int64 {
	return self.seq.Add(1) - 1
}

func (self *TemplateDescriptor) validate() error {
	if self == nil {
		return &ConfigurationError{Msg: "nil template descriptor"}
	}
	if self.Interface == "" {
		return &ConfigurationError{Msg: "template descriptor has no interface"}
	}
	if self.Template.Name == "" || self.Template.Path == "" {
		return &ConfigurationError{
			Msg: fmt.Sprintf("descriptor %s has no template type", self.Interface),
		}
	}
	if self.Signature == nil || len(self.Signature.Hooks) == 0 {
		return &ConfigurationError{
			Msg: fmt.Sprintf("descriptor %s has no hook signature", self.Interface),
		}
	}
	return nil
}

// TemplateSources returns the .go files of the template package, tests
// excluded, keyed by base name.
func (self *TemplateDescriptor) TemplateSources() (map[string][]byte, error) {
	if self.Source == nil {
		return nil, &ConfigurationError{
			Msg: fmt.Sprintf("descriptor %s has no template source", self.Interface),
		}
	}
	names, err := fs.Glob(self.Source, self.SourceDir+"/*.go")
	if err != nil {
		return nil, err
	}

	out := make(map[string][]byte)
	for _, n := range names {
		if strings.HasSuffix(n, "_test.go") {
			continue
		}
		data, err := fs.ReadFile(self.Source, n)
		if err != nil {
			return nil, err
		}
		out[path.Base(n)] = data
	}
	if len(out) == 0 {
		return nil, &ConfigurationError{
			Msg: fmt.Sprintf("descriptor %s: no template source under %s", self.Interface, self.SourceDir),
		}
	}
	return out, nil
}
