package compile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dianpeng/colgen/cg"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type cacheKey struct {
	def     *cg.TemplateDescriptor
	plain   bool
	generic string
}

// Cache keeps loaded classes by template identity and generified source,
// generators producing the same logic share one class. Concurrent misses
// on the same key compile once.
type Cache struct {
	backend Backend
	disk    *DiskCache
	log     *zap.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	classes map[cacheKey]*Class
}

// NewCache wraps backend, disk may be nil
func NewCache(backend Backend, disk *DiskCache, o ...Option) *Cache {
	return &Cache{
		backend: backend,
		disk:    disk,
		log:     newConfig(o).log,
		classes: make(map[cacheKey]*Class),
	}
}

func (self *Cache) Len() int {
	self.mu.RLock()
	defer self.mu.RUnlock()
	return len(self.classes)
}

func (self *Cache) lookup(key cacheKey) (*Class, bool) {
	self.mu.RLock()
	defer self.mu.RUnlock()
	c, ok := self.classes[key]
	return c, ok
}

func (self *Cache) Get(ctx context.Context, g *cg.CodeGenerator) (*Class, error) {
	generic, err := g.GenerifiedCode()
	if err != nil {
		return nil, err
	}
	iface := g.Definition().Interface
	key := cacheKey{
		def:     g.Definition(),
		plain:   g.IsPlainGo(),
		generic: generic,
	}

	if c, ok := self.lookup(key); ok {
		CacheLookups.WithLabelValues(iface, "hit").Inc()
		self.log.Debug("class cache hit",
			zap.String("class", g.ClassName()),
			zap.String("cached", c.Name),
		)
		return c, nil
	}
	CacheLookups.WithLabelValues(iface, "miss").Inc()

	flight := fmt.Sprintf("%p/%t/%s", key.def, key.plain, key.generic)
	v, err, _ := self.group.Do(flight, func() (interface{}, error) {
		if c, ok := self.lookup(key); ok {
			return c, nil
		}

		start := time.Now()
		c, err := self.backend.Compile(ctx, g)
		CompileDuration.WithLabelValues(iface, strategy(key.plain)).Observe(time.Since(start).Seconds())
		if err != nil {
			CompileErrors.WithLabelValues(iface).Inc()
			return nil, err
		}

		self.mu.Lock()
		self.classes[key] = c
		self.mu.Unlock()

		self.persist(g, c)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Class), nil
}

func (self *Cache) persist(g *cg.CodeGenerator, c *Class) {
	if self.disk == nil {
		return
	}
	src, _ := g.GeneratedCode()
	generic, _ := g.GenerifiedCode()

	err := self.disk.Put(&Payload{
		Interface: g.Definition().Interface,
		Class:     g.ClassName(),
		PlainGo:   c.Plain,
		Hash:      g.Hash(),
		Source:    src,
		Generic:   generic,
		Loaded:    c.Source,
		Created:   time.Now(),
	})
	if err != nil {
		self.log.Warn("cannot persist generated unit",
			zap.String("class", g.ClassName()),
			zap.String("dir", self.disk.Dir()),
			zap.Error(err),
		)
	}
}
