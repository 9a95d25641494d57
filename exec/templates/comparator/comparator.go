// Package comparator is the skeleton comparing one row of a left batch
// against one row of a right batch on a list of keys.
package comparator

type Hooks interface {
	DoSetup(left []interface{}, right []interface{})
	DoEval(leftIndex int, rightIndex int) (int, bool)
}

type Template struct {
	Hooks Hooks
}

func (self *Template) Setup(left []interface{}, right []interface{}) {
	self.Hooks.DoSetup(left, right)
}

// Compare returns the order of the two rows, the second result is false
// when a key is null on either side.
func (self *Template) Compare(leftIndex int, rightIndex int) (int, bool) {
	return self.Hooks.DoEval(leftIndex, rightIndex)
}

// flip reverses the order of a descending key
func (self *Template) flip(c int) int {
	return -c
}
