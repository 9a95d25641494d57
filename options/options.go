package options

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	PreferPlainGo  = "codegen.prefer_plain_go"
	PersistDir     = "codegen.persist_dir"
	BatchSize      = "exec.batch_size"
	FieldSeparator = "scan.field_separator"
	SkipHeader     = "scan.skip_header"
)

var defaults = map[string]interface{}{
	PreferPlainGo:  false,
	PersistDir:     "",
	BatchSize:      4096,
	FieldSeparator: "",
	SkipHeader:     false,
}

// OptionSet is a read only key/value view of the runtime options. Updates
// go through With, which returns a new set.
type OptionSet struct {
	values map[string]interface{}
}

func Default() *OptionSet {
	return &OptionSet{
		values: map[string]interface{}{},
	}
}

// Keys returns every known option name, sorted
func Keys() []string {
	out := make([]string, 0, len(defaults))
	for k := range defaults {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (self *OptionSet) lookup(key string) interface{} {
	if self != nil {
		if v, ok := self.values[key]; ok {
			return v
		}
	}
	return defaults[key]
}

func (self *OptionSet) Bool(key string) bool {
	v, _ := self.lookup(key).(bool)
	return v
}

func (self *OptionSet) Int(key string) int {
	v, _ := self.lookup(key).(int)
	return v
}

func (self *OptionSet) String(key string) string {
	v, _ := self.lookup(key).(string)
	return v
}

// With returns a copy of the set with key overridden. The value must have
// the Go type of the key's default.
func (self *OptionSet) With(key string, value interface{}) (*OptionSet, error) {
	def, ok := defaults[key]
	if !ok {
		return nil, fmt.Errorf("option %s: unknown key", key)
	}
	if fmt.Sprintf("%T", def) != fmt.Sprintf("%T", value) {
		return nil, fmt.Errorf("option %s: expect %T, got %T", key, def, value)
	}

	out := Default()
	if self != nil {
		for k, v := range self.values {
			out.values[k] = v
		}
	}
	out.values[key] = value
	return out, nil
}

func (self *OptionSet) MustWith(key string, value interface{}) *OptionSet {
	o, err := self.With(key, value)
	if err != nil {
		panic(err.Error())
	}
	return o
}

// fileConfig is the on disk layout, shared by the YAML and TOML loaders
type fileConfig struct {
	Codegen struct {
		PreferPlainGo *bool   `yaml:"prefer_plain_go" toml:"prefer_plain_go"`
		PersistDir    *string `yaml:"persist_dir" toml:"persist_dir"`
	} `yaml:"codegen" toml:"codegen"`

	Exec struct {
		BatchSize *int `yaml:"batch_size" toml:"batch_size"`
	} `yaml:"exec" toml:"exec"`

	Scan struct {
		FieldSeparator *string `yaml:"field_separator" toml:"field_separator"`
		SkipHeader     *bool   `yaml:"skip_header" toml:"skip_header"`
	} `yaml:"scan" toml:"scan"`
}

type override struct {
	key string
	v   interface{}
}

func (self *fileConfig) apply(o *OptionSet) (*OptionSet, error) {
	set := []override{}

	if self.Codegen.PreferPlainGo != nil {
		set = append(set, override{PreferPlainGo, *self.Codegen.PreferPlainGo})
	}
	if self.Codegen.PersistDir != nil {
		set = append(set, override{PersistDir, *self.Codegen.PersistDir})
	}
	if self.Exec.BatchSize != nil {
		if *self.Exec.BatchSize <= 0 {
			return nil, fmt.Errorf("option %s: must be positive", BatchSize)
		}
		set = append(set, override{BatchSize, *self.Exec.BatchSize})
	}
	if self.Scan.FieldSeparator != nil {
		set = append(set, override{FieldSeparator, *self.Scan.FieldSeparator})
	}
	if self.Scan.SkipHeader != nil {
		set = append(set, override{SkipHeader, *self.Scan.SkipHeader})
	}

	var err error
	for _, s := range set {
		if o, err = o.With(s.key, s.v); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Parse decodes an option document, format is "yaml" or "toml"
func Parse(data []byte, format string) (*OptionSet, error) {
	cfg := &fileConfig{}

	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML options: %w", err)
		}
		break
	case "toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML options: %w", err)
		}
		break
	default:
		return nil, fmt.Errorf("unknown option format %q", format)
	}

	return cfg.apply(Default())
}

// Load reads an option file, the format is picked by extension
func Load(path string) (*OptionSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read options: %w", err)
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	o, err := Parse(data, ext)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return o, nil
}
