package compile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// bump when Payload changes
const diskSchemaVersion uint16 = 1

// DiskCache keeps rendered units on disk so they can be inspected after
// the process is gone. It is safe for concurrent use, a nil DiskCache
// stores nothing.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

type Payload struct {
	Schema uint16

	Interface string
	Class     string
	PlainGo   bool
	Hash      uint64

	Source  string
	Generic string
	// Loaded is the source the backend evaluated, the merged file for
	// merged units.
	Loaded string

	Created time.Time
}

func OpenDiskCache(dir string) (*DiskCache, error) {
	if dir == "" {
		return nil, fmt.Errorf("disk cache needs a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

func (self *DiskCache) Dir() string { return self.dir }

func (self *DiskCache) pathFor(hash uint64) string {
	return filepath.Join(self.dir, "units", fmt.Sprintf("%016x.mp", hash))
}

func (self *DiskCache) Put(p *Payload) error {
	if self == nil {
		return nil
	}
	self.mu.Lock()
	defer self.mu.Unlock()

	p.Schema = diskSchemaVersion
	path := self.pathFor(p.Hash)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "tmp-*")
	if err != nil {
		return err
	}

	if err := msgpack.NewEncoder(f).Encode(p); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	// atomic replace
	return os.Rename(f.Name(), path)
}

// Get loads the payload stored under hash. Payloads of another schema are
// reported as missing.
func (self *DiskCache) Get(hash uint64) (*Payload, bool, error) {
	if self == nil {
		return nil, false, nil
	}
	self.mu.RLock()
	defer self.mu.RUnlock()

	f, err := os.Open(self.pathFor(hash))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	out := &Payload{}
	if err := msgpack.NewDecoder(f).Decode(out); err != nil {
		return nil, false, err
	}
	if out.Schema != diskSchemaVersion {
		return nil, false, nil
	}
	return out, true, nil
}

// DropAll removes every stored unit
func (self *DiskCache) DropAll() error {
	if self == nil {
		return nil
	}
	self.mu.Lock()
	defer self.mu.Unlock()
	return os.RemoveAll(filepath.Join(self.dir, "units"))
}
