package exec

import (
	"github.com/dianpeng/colgen/compile"
	"github.com/dianpeng/colgen/fn"
	"github.com/dianpeng/colgen/options"
	"go.uber.org/zap"
)

// Env bundles what building an operator needs. One Env is shared by every
// operator of a process so that equal units are compiled once.
type Env struct {
	Registry *fn.Registry
	Options  *options.OptionSet
	Compiler *compile.Compiler
	Cache    *compile.Cache
	Log      *zap.Logger
}

// NewEnv uses the builtin function catalog. When codegen.persist_dir is
// set rendered units are also written there.
func NewEnv(opts *options.OptionSet, log *zap.Logger) (*Env, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts == nil {
		opts = options.Default()
	}

	var disk *compile.DiskCache
	if dir := opts.String(options.PersistDir); dir != "" {
		d, err := compile.OpenDiskCache(dir)
		if err != nil {
			return nil, err
		}
		disk = d
	}

	compiler := compile.NewCompiler(compile.WithLogger(log))
	return &Env{
		Registry: fn.Builtin(),
		Options:  opts,
		Compiler: compiler,
		Cache:    compile.NewCache(compiler, disk, compile.WithLogger(log)),
		Log:      log,
	}, nil
}
