package cg

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/dave/jennifer/jen"
	"github.com/dianpeng/colgen/fn"
	"github.com/dianpeng/colgen/options"
	"go.uber.org/zap"
)

const (
	// GeneratedPackage is the import path every generated unit lives in
	GeneratedPackage = "github.com/dianpeng/colgen/generated"

	GeneratedPackageName = "generated"

	// GenericName replaces the unit name in the generified source
	GenericName = "GenericGenerated"
)

type Option func(*CodeGenerator)

func WithLogger(l *zap.Logger) Option {
	return func(self *CodeGenerator) {
		if l != nil {
			self.log = l
		}
	}
}

// CodeGenerator drives the specialization of one template: it owns the
// root unit, decides between the plain Go and the merge strategy, renders
// the unit tree and keeps the rendered and generified sources.
//
// A CodeGenerator is used by a single goroutine.
type CodeGenerator struct {
	def      *TemplateDescriptor
	registry *fn.Registry
	opts     *options.OptionSet
	log      *zap.Logger
	mapping  *MappingSet

	name  string
	root  *ClassGenerator
	names map[string]int

	capable bool
	prefer  bool
	plain   bool

	generating bool
	generated  bool
	source     string
	generic    string
}

// NewCodeGenerator uses the default mapping set
func NewCodeGenerator(
	def *TemplateDescriptor,
	registry *fn.Registry,
	opts *options.OptionSet,
	o ...Option,
) (*CodeGenerator, error) {
	return NewCodeGeneratorWithMapping(DefaultMapping(), def, registry, opts, o...)
}

func NewCodeGeneratorWithMapping(
	mapping *MappingSet,
	def *TemplateDescriptor,
	registry *fn.Registry,
	opts *options.OptionSet,
	o ...Option,
) (*CodeGenerator, error) {
	if err := def.validate(); err != nil {
		return nil, err
	}
	if mapping == nil {
		return nil, &ConfigurationError{Msg: "nil mapping set"}
	}
	if err := mapping.validate(def.Signature); err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, &ConfigurationError{Msg: "nil function registry"}
	}

	// the sequence is only consumed once the inputs are known to be valid
	seq := def.NextSequence()

	self := &CodeGenerator{
		def:      def,
		registry: registry,
		opts:     opts,
		log:      zap.NewNop(),
		mapping:  mapping,
		name:     fmt.Sprintf("%sGen%d", def.Interface, seq),
		names:    make(map[string]int),
		prefer:   opts.Bool(options.PreferPlainGo),
	}
	for _, x := range o {
		x(self)
	}
	self.root = newClassGenerator(self, nil, self.name, def.Signature)

	self.log.Debug("code generator created",
		zap.String("class", self.name),
		zap.String("template", def.Template.String()),
		zap.Bool("prefer_plain_go", self.prefer),
	)
	return self, nil
}

func (self *CodeGenerator) Root() *ClassGenerator           { return self.root }
func (self *CodeGenerator) Definition() *TemplateDescriptor { return self.def }
func (self *CodeGenerator) Registry() *fn.Registry          { return self.registry }
func (self *CodeGenerator) Options() *options.OptionSet     { return self.opts }
func (self *CodeGenerator) Logger() *zap.Logger             { return self.log }
func (self *CodeGenerator) MappingSet() *MappingSet         { return self.mapping }
func (self *CodeGenerator) ClassName() string               { return self.name }
func (self *CodeGenerator) IsGenerated() bool               { return self.generated }
func (self *CodeGenerator) MaterializedClassName() string   { return GeneratedPackage + "." + self.name }
func (self *CodeGenerator) EntryFunc(method string) string  { return self.name + method }
func (self *CodeGenerator) ConstructorFunc() string         { return self.name + "New" }
func (self *CodeGenerator) ReleaseFunc() string             { return self.name + "Release" }
func (self *CodeGenerator) BindFunc(method string) string   { return self.name + "Bind" + method }

// SetMappingSet switches the mapping used by later emissions, every
// expression translated afterwards reads its own index and batch names.
func (self *CodeGenerator) SetMappingSet(m *MappingSet) error {
	if self.generating {
		return &StateError{Msg: "set mapping set after generate"}
	}
	if m == nil {
		return &ConfigurationError{Msg: "nil mapping set"}
	}
	if err := m.validate(self.def.Signature); err != nil {
		return err
	}
	self.mapping = m
	return nil
}

// InChildMapping runs emit with the mapping set moved to its next generator
// mapping and moves it back afterwards. Nested units declaring hooks of
// their own are filled this way.
func (self *CodeGenerator) InChildMapping(emit func() error) error {
	if err := self.mapping.EnterChild(); err != nil {
		return &ConfigurationError{Msg: err.Error()}
	}
	defer self.mapping.ExitChild()
	return emit()
}

// PlainGoCapable records whether the generated unit can be compiled on its
// own next to the template, ie it touches no unexported template member.
func (self *CodeGenerator) PlainGoCapable(flag bool) {
	if self.generating {
		self.log.Warn("plain go capability changed after generate, ignored",
			zap.String("class", self.name))
		return
	}
	self.capable = flag
}

func (self *CodeGenerator) PreferPlainGo(flag bool) {
	if self.generating {
		self.log.Warn("plain go preference changed after generate, ignored",
			zap.String("class", self.name))
		return
	}
	self.prefer = flag
}

// IsPlainGo is true when the unit is both capable of and preferred for
// the plain Go strategy. The answer is frozen by Generate.
func (self *CodeGenerator) IsPlainGo() bool {
	if self.generating {
		return self.plain
	}
	return self.capable && self.prefer
}

func (self *CodeGenerator) nextName(prefix string) string {
	n := self.names[prefix]
	self.names[prefix] = n + 1
	return fmt.Sprintf("%s%d", prefix, n)
}

// Generate flushes and renders the unit tree. It runs once, a second call
// returns a StateError whatever the outcome of the first one.
func (self *CodeGenerator) Generate() error {
	if self.generating {
		return &StateError{Msg: fmt.Sprintf("%s is already generated", self.name)}
	}
	self.generating = true
	self.plain = self.capable && self.prefer

	if self.plain {
		t := self.def.Template
		self.root.embed = &t
	}

	if err := self.root.flush(); err != nil {
		return err
	}

	f := jen.NewFilePathName(GeneratedPackage, GeneratedPackageName)
	f.HeaderComment("Code generated by colgen. DO NOT EDIT.")
	self.root.render(f)
	self.renderTable(f)

	buf := &bytes.Buffer{}
	if err := f.Render(buf); err != nil {
		self.log.Error("cannot render generated unit",
			zap.String("class", self.name),
			zap.Error(err),
		)
		return &InternalError{Err: err}
	}

	self.source = buf.String()
	self.generic = strings.ReplaceAll(self.source, self.name, GenericName)
	self.generated = true

	self.log.Debug("unit generated",
		zap.String("class", self.name),
		zap.Bool("plain_go", self.plain),
		zap.Int("size", len(self.source)),
	)
	return nil
}

// renderTable emits the function table of the root unit: a constructor
// returning a handle, a release function, and per entry method a function
// forwarding to the instance behind the handle plus a binder returning a
// closure over that instance. Released handles are reused by later
// constructions.
func (self *CodeGenerator) renderTable(f *jen.File) {
	name := self.name
	mu := name + "Mu"
	list := name + "Instances"
	free := name + "Free"
	get := name + "Get"

	f.Var().Defs(
		jen.Id(mu).Qual("sync", "Mutex"),
		jen.Id(list).Index().Op("*").Id(name),
		jen.Id(free).Index().Int(),
	)

	ctor := []jen.Code{
		jen.Id(Receiver).Op(":=").Op("&").Id(name).Values(),
	}
	if self.def.HooksField != "" {
		ctor = append(ctor, jen.Id(Receiver).Dot(self.def.HooksField).Op("=").Id(Receiver))
	}
	ctor = append(ctor,
		jen.Id(mu).Dot("Lock").Call(),
		jen.Defer().Id(mu).Dot("Unlock").Call(),
		jen.If(jen.Id("n").Op(":=").Len(jen.Id(free)), jen.Id("n").Op(">").Lit(0)).Block(
			jen.Id("h").Op(":=").Id(free).Index(jen.Id("n").Op("-").Lit(1)),
			jen.Id(free).Op("=").Id(free).Index(jen.Empty(), jen.Id("n").Op("-").Lit(1)),
			jen.Id(list).Index(jen.Id("h")).Op("=").Id(Receiver),
			jen.Return(jen.Id("h")),
		),
		jen.Id(list).Op("=").Append(jen.Id(list), jen.Id(Receiver)),
		jen.Return(jen.Len(jen.Id(list)).Op("-").Lit(1)),
	)
	f.Func().Id(self.ConstructorFunc()).Params().Int().Block(ctor...)

	f.Func().Id(get).Params(jen.Id("h").Int()).Op("*").Id(name).Block(
		jen.Id(mu).Dot("Lock").Call(),
		jen.Defer().Id(mu).Dot("Unlock").Call(),
		jen.Return(jen.Id(list).Index(jen.Id("h"))),
	)

	f.Func().Id(self.ReleaseFunc()).Params(jen.Id("h").Int()).Block(
		jen.Id(mu).Dot("Lock").Call(),
		jen.Defer().Id(mu).Dot("Unlock").Call(),
		jen.If(jen.Id("h").Op("<").Lit(0).Op("||").Id("h").Op(">=").Len(jen.Id(list)).Op("||").Id(list).Index(jen.Id("h")).Op("==").Nil()).Block(
			jen.Return(),
		),
		jen.Id(list).Index(jen.Id("h")).Op("=").Nil(),
		jen.Id(free).Op("=").Append(jen.Id(free), jen.Id("h")),
	)

	for _, m := range self.def.Signature.Entries {
		args := make([]jen.Code, 0, len(m.Params))
		for _, p := range m.Params {
			args = append(args, jen.Id(p.Name))
		}
		forward := func(target jen.Code) jen.Code {
			call := jen.Add(target).Dot(m.Name).Call(args...)
			if len(m.Results) > 0 {
				return jen.Return(call)
			}
			return call
		}

		in := append([]jen.Code{jen.Id("h").Int()}, params(m.Params)...)
		s := jen.Func().Id(self.EntryFunc(m.Name)).Params(in...)
		results(s, m.Results).Block(forward(jen.Id(get).Call(jen.Id("h"))))
		f.Add(s)

		// the closure type of the binder and the closure itself
		sig := results(jen.Func().Params(params(m.Params)...), m.Results)
		lit := results(jen.Func().Params(params(m.Params)...), m.Results).Block(forward(jen.Id("inst")))
		f.Func().Id(self.BindFunc(m.Name)).Params(jen.Id("h").Int()).Add(sig).Block(
			jen.Id("inst").Op(":=").Id(get).Call(jen.Id("h")),
			jen.Return(lit),
		)
	}
}

func (self *CodeGenerator) GeneratedCode() (string, error) {
	if !self.generated {
		return "", &StateError{Msg: fmt.Sprintf("%s is not generated", self.name)}
	}
	return self.source, nil
}

// GenerifiedCode is the rendered source with the unit name replaced by
// GenericName, two generators producing the same logic share it.
func (self *CodeGenerator) GenerifiedCode() (string, error) {
	if !self.generated {
		return "", &StateError{Msg: fmt.Sprintf("%s is not generated", self.name)}
	}
	return self.generic, nil
}

// Equal compares the template identity and the generified source. The
// name substitution is textual, it is good enough as a cache key and
// nothing more.
func (self *CodeGenerator) Equal(other *CodeGenerator) bool {
	if other == nil || !self.generated || !other.generated {
		return false
	}
	return self.def == other.def && self.generic == other.generic
}

// Hash digests the template identity and the generified source. It is
// stable across processes, the disk cache names its entries after it.
func (self *CodeGenerator) Hash() uint64 {
	d := xxhash.New()
	d.WriteString(self.def.Interface)
	d.WriteString("\x00")
	d.WriteString(self.def.Template.String())
	d.WriteString("\x00")
	d.WriteString(self.generic)
	return d.Sum64()
}
