package scan

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/benhoyt/goawk/interp"
	"github.com/benhoyt/goawk/parser"
	"github.com/dianpeng/colgen/options"
	"github.com/dianpeng/colgen/vector"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// unit separator, never part of a field split by awk
const sep = "\x1f"

// splitter prints the record number then every field, joined by sep, so
// field splitting follows awk's FS rules including the default blank
// splitting. Blank records are dropped.
const splitter = `
NR > skip && NF > 0 {
	line = NR
	for (i = 1; i <= NF; i++) {
		line = line "\037" $i
	}
	print line
}
`

// Reader turns delimited text into batches of the schema. A missing or
// empty field is null for a nullable column, an empty string for a
// required varchar column and an error otherwise.
type Reader struct {
	schema    *vector.Schema
	fs        string
	skip      int
	batchSize int
	log       *zap.Logger
	prog      *parser.Program
}

func NewReader(
	schema *vector.Schema,
	opts *options.OptionSet,
	log *zap.Logger,
) (*Reader, error) {
	if schema == nil || schema.Len() == 0 {
		return nil, fmt.Errorf("scan: empty schema")
	}
	if opts == nil {
		opts = options.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}

	prog, err := parser.ParseProgram([]byte(splitter), nil)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	skip := 0
	if opts.Bool(options.SkipHeader) {
		skip = 1
	}
	return &Reader{
		schema:    schema,
		fs:        opts.String(options.FieldSeparator),
		skip:      skip,
		batchSize: opts.Int(options.BatchSize),
		log:       log,
		prog:      prog,
	}, nil
}

func (self *Reader) Schema() *vector.Schema { return self.schema }

func (self *Reader) ReadFile(ctx context.Context, path string) ([]*vector.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return self.Read(ctx, f)
}

// Read consumes in entirely. The awk splitter and the conversion into
// columns run concurrently, connected by a pipe.
func (self *Reader) Read(ctx context.Context, in io.Reader) ([]*vector.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vars := []string{"skip", strconv.Itoa(self.skip)}
	if self.fs != "" {
		vars = append(vars, "FS", self.fs)
	}

	pr, pw := io.Pipe()
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		awk, err := interp.New(self.prog)
		if err != nil {
			pw.CloseWithError(err)
			return err
		}
		_, err = awk.Execute(&interp.Config{
			Stdin:        in,
			Output:       pw,
			Vars:         vars,
			NoExec:       true,
			NoFileWrites: true,
			NoFileReads:  true,
		})
		if err != nil {
			err = fmt.Errorf("scan: split: %w", err)
		}
		pw.CloseWithError(err)
		return err
	})

	var out []*vector.Batch
	eg.Go(func() error {
		b, err := self.collect(ctx, pr)
		if err != nil {
			// unblocks the splitter
			pr.CloseWithError(err)
			return err
		}
		out = b
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	rows := 0
	for _, b := range out {
		rows += b.RecordCount()
	}
	self.log.Debug("input scanned",
		zap.Int("rows", rows),
		zap.Int("batches", len(out)),
		zap.String("schema", self.schema.String()),
	)
	return out, nil
}

func (self *Reader) collect(ctx context.Context, in io.Reader) ([]*vector.Batch, error) {
	out := []*vector.Batch{}
	cur := vector.NewBatch(self.schema, self.batchSize)

	s := bufio.NewScanner(in)
	s.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for s.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, fields, _ := strings.Cut(s.Text(), sep)
		if err := self.appendRow(cur, fields); err != nil {
			return nil, fmt.Errorf("scan: line %s: %w", line, err)
		}
		if cur.RecordCount() == self.batchSize {
			out = append(out, cur)
			cur = vector.NewBatch(self.schema, self.batchSize)
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if cur.RecordCount() > 0 {
		out = append(out, cur)
	}
	return out, nil
}

func (self *Reader) appendRow(b *vector.Batch, text string) error {
	fields := strings.Split(text, sep)
	for idx, f := range self.schema.Fields {
		raw := ""
		if idx < len(fields) {
			raw = fields[idx]
		}
		if err := appendField(b.Columns[idx], f, raw); err != nil {
			return err
		}
	}
	return nil
}

func appendField(col vector.Vector, f vector.Field, raw string) error {
	if raw == "" && f.Type.IsNullable() {
		return appendNull(col)
	}

	var err error
	switch c := col.(type) {
	case *vector.Column[string]:
		c.Append(raw)
		return nil
	case *vector.Column[int64]:
		var v int64
		if v, err = strconv.ParseInt(raw, 10, 64); err == nil {
			c.Append(v)
		}
	case *vector.Column[int32]:
		var v int64
		if v, err = strconv.ParseInt(raw, 10, 32); err == nil {
			c.Append(int32(v))
		}
	case *vector.Column[float32]:
		var v float64
		if v, err = strconv.ParseFloat(raw, 32); err == nil {
			c.Append(float32(v))
		}
	case *vector.Column[float64]:
		var v float64
		if v, err = strconv.ParseFloat(raw, 64); err == nil {
			c.Append(v)
		}
	case *vector.Column[bool]:
		var v bool
		if v, err = strconv.ParseBool(raw); err == nil {
			c.Append(v)
		}
	default:
		return fmt.Errorf("column %s: unsupported vector %T", f.Name, col)
	}
	if err != nil {
		return fmt.Errorf("column %s(%s): %w", f.Name, f.Type, err)
	}
	return nil
}

func appendNull(col vector.Vector) error {
	switch c := col.(type) {
	case *vector.Column[string]:
		c.AppendNull()
	case *vector.Column[int64]:
		c.AppendNull()
	case *vector.Column[int32]:
		c.AppendNull()
	case *vector.Column[float32]:
		c.AppendNull()
	case *vector.Column[float64]:
		c.AppendNull()
	case *vector.Column[bool]:
		c.AppendNull()
	default:
		return fmt.Errorf("unsupported vector %T", col)
	}
	return nil
}
