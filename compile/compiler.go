package compile

import (
	"context"

	"github.com/dianpeng/colgen/cg"
	"go.uber.org/zap"
)

// Compiler dispatches a generated unit to the backend matching the
// strategy frozen by its Generate call.
type Compiler struct {
	log    *zap.Logger
	merge  *MergeBackend
	source *SourceBackend
}

func NewCompiler(o ...Option) *Compiler {
	return &Compiler{
		log:    newConfig(o).log,
		merge:  NewMergeBackend(o...),
		source: NewSourceBackend(o...),
	}
}

func (self *Compiler) Merge() *MergeBackend   { return self.merge }
func (self *Compiler) Source() *SourceBackend { return self.source }

func (self *Compiler) Select(g *cg.CodeGenerator) Backend {
	if g.IsPlainGo() {
		return self.source
	}
	return self.merge
}

func (self *Compiler) Compile(ctx context.Context, g *cg.CodeGenerator) (*Class, error) {
	if !g.IsGenerated() {
		return nil, &cg.StateError{Msg: g.ClassName() + " is compiled before generate"}
	}
	self.log.Debug("compile unit",
		zap.String("class", g.ClassName()),
		zap.Bool("plain_go", g.IsPlainGo()),
	)
	return self.Select(g).Compile(ctx, g)
}
