// Package filterer is the row filter skeleton. The generated unit supplies
// the Hooks, the template drives the row loop.
package filterer

type Hooks interface {
	DoSetup(incoming []interface{})
	DoEval(inIndex int) bool
}

type Template struct {
	Hooks Hooks
}

func (self *Template) Setup(incoming []interface{}) {
	self.Hooks.DoSetup(incoming)
}

// FilterBatch writes the indexes of the selected rows into sel, which has
// room for recordCount entries, and returns how many were selected.
func (self *Template) FilterBatch(recordCount int, sel []int) int {
	n := 0
	for i := 0; i < recordCount; i++ {
		if self.Hooks.DoEval(i) {
			sel[n] = i
			n++
		}
	}
	return n
}
