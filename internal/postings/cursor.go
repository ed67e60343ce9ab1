package postings

import "math"

// State is the position of a Cursor within its list.
type State int

const (
	Unpositioned State = iota
	Positioned
	Exhausted
)

func (s State) String() string {
	switch s {
	case Unpositioned:
		return "unpositioned"
	case Positioned:
		return "positioned"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Cursor walks an InvertedList forward only. It also exposes a location
// cursor over the positions of the current posting; the location cursor
// restarts at the first position whenever the document cursor moves.
type Cursor struct {
	list  *InvertedList
	state State
	idx   int
	loc   int
}

func NewCursor(list *InvertedList) *Cursor {
	if list == nil {
		list = NewInvertedList("", "")
	}
	return &Cursor{list: list, idx: -1}
}

func (c *Cursor) List() *InvertedList {
	return c.list
}

func (c *Cursor) State() State {
	return c.state
}

// HasMatch reports whether the cursor is positioned on a posting. An
// unpositioned cursor is moved onto the first posting.
func (c *Cursor) HasMatch() bool {
	if c.state == Unpositioned {
		c.moveTo(0)
	}
	return c.state == Positioned
}

// DocID is valid only while HasMatch is true.
func (c *Cursor) DocID() int {
	return c.list.Postings[c.idx].DocID
}

// Posting is valid only while HasMatch is true.
func (c *Cursor) Posting() Posting {
	return c.list.Postings[c.idx]
}

func (c *Cursor) Advance() {
	switch c.state {
	case Unpositioned:
		c.moveTo(0)
	case Positioned:
		c.moveTo(c.idx + 1)
	}
}

// AdvanceTo moves to the first posting with docid >= target. A cursor
// already at or past target does not move.
func (c *Cursor) AdvanceTo(target int) {
	if c.state == Exhausted {
		return
	}
	i := c.idx
	if c.state == Unpositioned {
		i = 0
	}
	for i < len(c.list.Postings) && c.list.Postings[i].DocID < target {
		i++
	}
	c.moveTo(i)
}

// AdvancePast moves to the first posting with docid > target.
func (c *Cursor) AdvancePast(target int) {
	if target == math.MaxInt {
		c.moveTo(len(c.list.Postings))
		return
	}
	c.AdvanceTo(target + 1)
}

func (c *Cursor) moveTo(i int) {
	if i == c.idx && c.state == Positioned {
		return
	}
	if i >= len(c.list.Postings) {
		c.state = Exhausted
		c.idx = len(c.list.Postings)
		return
	}
	c.state = Positioned
	c.idx = i
	c.loc = 0
}

// LocHasMatch reports whether the location cursor of the current posting
// still points at a position.
func (c *Cursor) LocHasMatch() bool {
	return c.state == Positioned && c.loc < len(c.list.Postings[c.idx].Positions)
}

// Loc is valid only while LocHasMatch is true.
func (c *Cursor) Loc() int {
	return c.list.Postings[c.idx].Positions[c.loc]
}

func (c *Cursor) LocAdvance() {
	if c.LocHasMatch() {
		c.loc++
	}
}

// LocAdvancePast moves the location cursor to the first position > target.
func (c *Cursor) LocAdvancePast(target int) {
	for c.LocHasMatch() && c.Loc() <= target {
		c.loc++
	}
}
