package compile

import (
	"bytes"
	"context"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/printer"
	"go/scanner"
	"go/token"
	"sort"
	"strconv"
	"sync"

	"github.com/dianpeng/colgen/cg"
	"github.com/traefik/yaegi/interp"
	"go.uber.org/zap"
)

// templateUnit is the parsed template package. It is shared by every merge
// of the same descriptor and never modified.
type templateUnit struct {
	fset  *token.FileSet
	files []*ast.File
}

// MergeBackend merges the template and the generated unit member wise into
// one type before loading it: the template type takes the generated name,
// its fields come first, a generated method replaces the template method
// of the same name.
type MergeBackend struct {
	log *zap.Logger

	mu     sync.Mutex
	parsed map[*cg.TemplateDescriptor]*templateUnit
}

func NewMergeBackend(o ...Option) *MergeBackend {
	return &MergeBackend{
		log:    newConfig(o).log,
		parsed: make(map[*cg.TemplateDescriptor]*templateUnit),
	}
}

func (self *MergeBackend) template(def *cg.TemplateDescriptor) (*templateUnit, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	if tu, ok := self.parsed[def]; ok {
		return tu, nil
	}

	src, err := def.TemplateSources()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(src))
	for n := range src {
		names = append(names, n)
	}
	sort.Strings(names)

	tu := &templateUnit{fset: token.NewFileSet()}
	for _, n := range names {
		f, err := parser.ParseFile(tu.fset, n, src[n], parser.SkipObjectResolution)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", def.Template, err)
		}
		tu.files = append(tu.files, f)
	}
	self.parsed[def] = tu

	self.log.Debug("template parsed",
		zap.String("template", def.Template.String()),
		zap.Int("files", len(names)),
	)
	return tu, nil
}

// Merged returns the single source file the backend loads for g
func (self *MergeBackend) Merged(g *cg.CodeGenerator) (string, error) {
	src, err := g.GeneratedCode()
	if err != nil {
		return "", err
	}
	tu, err := self.template(g.Definition())
	if err != nil {
		return "", err
	}
	merged, err := merge(tu, g.Definition().Template.Name, g.ClassName(), []byte(src))
	if err != nil {
		return "", &LoadError{Class: g.ClassName(), Err: err}
	}
	return string(merged), nil
}

func (self *MergeBackend) Compile(ctx context.Context, g *cg.CodeGenerator) (*Class, error) {
	src, err := self.Merged(g)
	if err != nil {
		return nil, err
	}
	return load(ctx, g, interp.Options{}, src, self.log)
}

func receiverName(fd *ast.FuncDecl) string {
	if fd.Recv == nil || len(fd.Recv.List) == 0 {
		return ""
	}
	t := fd.Recv.List[0].Type
	if s, ok := t.(*ast.StarExpr); ok {
		t = s.X
	}
	if id, ok := t.(*ast.Ident); ok {
		return id.Name
	}
	return ""
}

// topLevel lists the package level names a declaration introduces,
// methods excluded.
func topLevel(decl ast.Decl) []string {
	out := []string{}
	switch d := decl.(type) {
	case *ast.FuncDecl:
		if d.Recv == nil {
			out = append(out, d.Name.Name)
		}
	case *ast.GenDecl:
		for _, s := range d.Specs {
			switch x := s.(type) {
			case *ast.TypeSpec:
				out = append(out, x.Name.Name)
			case *ast.ValueSpec:
				for _, n := range x.Names {
					if n.Name != "_" {
						out = append(out, n.Name)
					}
				}
			}
		}
	}
	return out
}

// rename replaces every identifier token from by to
func rename(src []byte, from, to string) []byte {
	if from == to {
		return src
	}
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(src))

	var s scanner.Scanner
	s.Init(file, src, nil, 0)

	out := &bytes.Buffer{}
	last := 0
	for {
		pos, tok, lit := s.Scan()
		if tok == token.EOF {
			break
		}
		if tok == token.IDENT && lit == from {
			off := file.Offset(pos)
			out.Write(src[last:off])
			out.WriteString(to)
			last = off + len(from)
		}
	}
	out.Write(src[last:])
	return out.Bytes()
}

type mergeWriter struct {
	buf *bytes.Buffer
	err error
}

func (self *mergeWriter) node(fset *token.FileSet, n interface{}) []byte {
	if self.err != nil {
		return nil
	}
	b := &bytes.Buffer{}
	if err := printer.Fprint(b, fset, n); err != nil {
		self.err = err
	}
	return b.Bytes()
}

func (self *mergeWriter) fields(fset *token.FileSet, list *ast.FieldList) {
	if list == nil {
		return
	}
	for _, f := range list.List {
		for idx, n := range f.Names {
			if idx > 0 {
				self.buf.WriteString(", ")
			}
			self.buf.WriteString(n.Name)
		}
		if len(f.Names) > 0 {
			self.buf.WriteString(" ")
		}
		self.buf.Write(self.node(fset, f.Type))
		if f.Tag != nil {
			self.buf.WriteString(" ")
			self.buf.WriteString(f.Tag.Value)
		}
		self.buf.WriteString("\n")
	}
}

// decl writes d, skipping imports and the declaration of the type from.
// Every identifier from is written as to.
func (self *mergeWriter) decl(fset *token.FileSet, d ast.Decl, from, to string) {
	gd, ok := d.(*ast.GenDecl)
	if !ok {
		self.buf.Write(rename(self.node(fset, d), from, to))
		self.buf.WriteString("\n\n")
		return
	}
	if gd.Tok == token.IMPORT {
		return
	}

	split := false
	if gd.Tok == token.TYPE {
		for _, s := range gd.Specs {
			if s.(*ast.TypeSpec).Name.Name == from {
				split = true
			}
		}
	}
	if !split {
		self.buf.Write(rename(self.node(fset, d), from, to))
		self.buf.WriteString("\n\n")
		return
	}

	for _, s := range gd.Specs {
		if s.(*ast.TypeSpec).Name.Name == from {
			continue
		}
		self.buf.WriteString("type ")
		self.buf.Write(rename(self.node(fset, s), from, to))
		self.buf.WriteString("\n\n")
	}
}

func structOf(files []*ast.File, name string) (*ast.StructType, bool) {
	for _, f := range files {
		for _, d := range f.Decls {
			gd, ok := d.(*ast.GenDecl)
			if !ok || gd.Tok != token.TYPE {
				continue
			}
			for _, s := range gd.Specs {
				ts := s.(*ast.TypeSpec)
				if ts.Name.Name != name {
					continue
				}
				st, ok := ts.Type.(*ast.StructType)
				return st, ok
			}
		}
	}
	return nil, false
}

func collectImports(files []*ast.File, into map[string]string) {
	for _, f := range files {
		for _, im := range f.Imports {
			p, err := strconv.Unquote(im.Path.Value)
			if err != nil {
				continue
			}
			alias := ""
			if im.Name != nil {
				alias = im.Name.Name
			}
			if _, ok := into[p]; !ok {
				into[p] = alias
			}
		}
	}
}

// merge produces one source file holding the template package renamed to
// className and the generated unit. Comments are dropped.
func merge(tu *templateUnit, templateName string, className string, generated []byte) ([]byte, error) {
	gfset := token.NewFileSet()
	gf, err := parser.ParseFile(gfset, className+".go", generated, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parse generated unit: %w", err)
	}
	genFiles := []*ast.File{gf}

	tmplStruct, ok := structOf(tu.files, templateName)
	if !ok {
		return nil, fmt.Errorf("template type %s is not a struct", templateName)
	}
	genStruct, ok := structOf(genFiles, className)
	if !ok {
		return nil, fmt.Errorf("generated type %s is not a struct", className)
	}

	shadow := map[string]bool{}
	defined := map[string]bool{}
	for _, d := range gf.Decls {
		if fd, ok := d.(*ast.FuncDecl); ok && receiverName(fd) == className {
			shadow[fd.Name.Name] = true
		}
		for _, n := range topLevel(d) {
			defined[n] = true
		}
	}
	for _, f := range tu.files {
		for _, d := range f.Decls {
			for _, n := range topLevel(d) {
				if n == templateName {
					continue
				}
				if defined[n] || n == className {
					return nil, fmt.Errorf("%s is declared by both the template and the generated unit", n)
				}
			}
		}
	}

	imports := map[string]string{}
	collectImports(genFiles, imports)
	collectImports(tu.files, imports)
	paths := make([]string, 0, len(imports))
	for p := range imports {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	buf := &bytes.Buffer{}
	w := &mergeWriter{buf: buf}

	fmt.Fprintf(buf, "// Code generated by colgen. DO NOT EDIT.\n\npackage %s\n\n", gf.Name.Name)
	if len(paths) > 0 {
		buf.WriteString("import (\n")
		for _, p := range paths {
			if a := imports[p]; a != "" {
				fmt.Fprintf(buf, "%s %q\n", a, p)
			} else {
				fmt.Fprintf(buf, "%q\n", p)
			}
		}
		buf.WriteString(")\n\n")
	}

	fmt.Fprintf(buf, "type %s struct {\n", className)
	{
		b := &bytes.Buffer{}
		tw := &mergeWriter{buf: b}
		tw.fields(tu.fset, tmplStruct.Fields)
		if tw.err != nil {
			return nil, tw.err
		}
		buf.Write(rename(b.Bytes(), templateName, className))
	}
	w.fields(gfset, genStruct.Fields)
	buf.WriteString("}\n\n")

	for _, f := range tu.files {
		for _, d := range f.Decls {
			if fd, ok := d.(*ast.FuncDecl); ok && receiverName(fd) == templateName && shadow[fd.Name.Name] {
				continue
			}
			w.decl(tu.fset, d, templateName, className)
		}
	}
	for _, d := range gf.Decls {
		w.decl(gfset, d, className, className)
	}

	if w.err != nil {
		return nil, w.err
	}
	out, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("merged unit: %w", err)
	}
	return out, nil
}
