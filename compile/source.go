package compile

import (
	"context"
	"sync"
	"testing/fstest"

	"github.com/dianpeng/colgen/cg"
	"github.com/traefik/yaegi/interp"
	"go.uber.org/zap"
)

// gopath is the root of the in memory GOPATH template packages live in
const gopath = "_pkg"

// SourceBackend loads plain Go units. The rendered unit embeds the
// template type and imports its package, which the interpreter resolves
// from an in memory GOPATH holding the template sources.
type SourceBackend struct {
	log *zap.Logger

	mu   sync.Mutex
	tree map[*cg.TemplateDescriptor]fstest.MapFS
}

func NewSourceBackend(o ...Option) *SourceBackend {
	return &SourceBackend{
		log:  newConfig(o).log,
		tree: make(map[*cg.TemplateDescriptor]fstest.MapFS),
	}
}

func (self *SourceBackend) filesystem(def *cg.TemplateDescriptor) (fstest.MapFS, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	if fs, ok := self.tree[def]; ok {
		return fs, nil
	}
	src, err := def.TemplateSources()
	if err != nil {
		return nil, err
	}

	fs := fstest.MapFS{}
	for name, data := range src {
		fs[gopath+"/src/"+def.Template.Path+"/"+name] = &fstest.MapFile{Data: data}
	}
	self.tree[def] = fs
	return fs, nil
}

func (self *SourceBackend) Compile(ctx context.Context, g *cg.CodeGenerator) (*Class, error) {
	src, err := g.GeneratedCode()
	if err != nil {
		return nil, err
	}
	if !g.IsPlainGo() {
		return nil, &cg.StateError{Msg: g.ClassName() + " is not a plain go unit"}
	}
	fs, err := self.filesystem(g.Definition())
	if err != nil {
		return nil, err
	}
	return load(ctx, g, interp.Options{
		GoPath:               "./" + gopath,
		SourcecodeFilesystem: fs,
	}, src, self.log)
}
