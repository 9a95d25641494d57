package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dianpeng/colgen/vector"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

// widest cell printed, longer values are truncated
const maxCellWidth = 40

var headColor = color.New(color.Bold)

type table struct {
	head  []string
	rows  [][]string
	width []int
}

func newTable(schema *vector.Schema) *table {
	t := &table{}
	for _, f := range schema.Fields {
		t.head = append(t.head, f.Name)
		t.width = append(t.width, runewidth.StringWidth(f.Name))
	}
	return t
}

func cell(v interface{}) string {
	if v == nil {
		return "null"
	}
	s := fmt.Sprint(v)
	if runewidth.StringWidth(s) > maxCellWidth {
		return runewidth.Truncate(s, maxCellWidth, "...")
	}
	return s
}

func (self *table) add(b *vector.Batch, row int) {
	r := make([]string, len(b.Columns))
	for idx, col := range b.Columns {
		r[idx] = cell(col.Get(row))
		if w := runewidth.StringWidth(r[idx]); w > self.width[idx] {
			self.width[idx] = w
		}
	}
	self.rows = append(self.rows, r)
}

func (self *table) line(w io.Writer, cells []string, c *color.Color) {
	parts := make([]string, len(cells))
	for idx, s := range cells {
		parts[idx] = runewidth.FillRight(s, self.width[idx])
	}
	text := strings.TrimRight(strings.Join(parts, " | "), " ")
	if c != nil {
		c.Fprintln(w, text)
	} else {
		fmt.Fprintln(w, text)
	}
}

func (self *table) print(w io.Writer) {
	self.line(w, self.head, headColor)
	sep := make([]string, len(self.width))
	for idx, n := range self.width {
		sep[idx] = strings.Repeat("-", n)
	}
	fmt.Fprintln(w, strings.Join(sep, "-+-"))
	for _, r := range self.rows {
		self.line(w, r, nil)
	}
	fmt.Fprintf(w, "(%d rows)\n", len(self.rows))
}
