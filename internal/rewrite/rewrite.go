// Package rewrite applies byte-range edits to source text.
//
// Edits are either insertions at an offset or replacements of a range whose
// current text is checked. Overlapping edits are rejected when they are
// added; an insertion touching a replacement boundary is not an overlap.
// Apply works right to left so earlier offsets stay valid.
package rewrite

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirkon/rbtree"
)

var (
	// ErrOverlap is returned when an edit intersects one already recorded.
	ErrOverlap = errors.New("overlapping edit")

	// ErrRange is returned for offsets outside the source.
	ErrRange = errors.New("edit out of range")

	// ErrMismatch is returned when a replacement's expected text differs
	// from the source.
	ErrMismatch = errors.New("replaced text mismatch")
)

// Edit is one text operation. Start == End marks an insertion.
type Edit struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Old   string `json:"old,omitempty"`
	New   string `json:"new"`

	seq int
}

// IsInsert reports whether e inserts text without replacing any.
func (e *Edit) IsInsert() bool {
	return e.Start == e.End
}

// Cmp orders edits for the interval tree. Overlapping edits compare equal,
// so InsertReturn hands back the conflicting edit.
func (e *Edit) Cmp(other *Edit) int {
	if e.Start < other.End && other.Start < e.End {
		return 0
	}
	switch {
	case e.Start != other.Start:
		return sign(e.Start - other.Start)
	case e.End != other.End:
		return sign(e.End - other.End)
	}
	return sign(e.seq - other.seq)
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}

func (e *Edit) String() string {
	if e.IsInsert() {
		return fmt.Sprintf("insert@%d %q", e.Start, e.New)
	}
	return fmt.Sprintf("replace[%d,%d) %q -> %q", e.Start, e.End, e.Old, e.New)
}

// Set collects non-overlapping edits against one source.
type Set struct {
	src   []byte
	tree  *rbtree.Tree[*Edit]
	edits []*Edit
}

// NewSet creates an empty edit set for src.
func NewSet(src []byte) *Set {
	return &Set{
		src:  src,
		tree: rbtree.New[*Edit](),
	}
}

// Insert records text to be inserted at offset.
func (s *Set) Insert(offset int, text string) error {
	return s.add(&Edit{Start: offset, End: offset, New: text})
}

// Replace records the replacement of [start,end) whose current content must
// be old.
func (s *Set) Replace(start, end int, old, text string) error {
	return s.add(&Edit{Start: start, End: end, Old: old, New: text})
}

func (s *Set) add(e *Edit) error {
	if e.Start < 0 || e.End > len(s.src) || e.Start > e.End {
		return fmt.Errorf("%w: %s (source is %d bytes)", ErrRange, e, len(s.src))
	}
	if !e.IsInsert() && string(s.src[e.Start:e.End]) != e.Old {
		return fmt.Errorf("%w: %s found %q", ErrMismatch, e, s.src[e.Start:e.End])
	}
	e.seq = len(s.edits)
	if prev := s.tree.InsertReturn(e); prev != e {
		return fmt.Errorf("%w: %s conflicts with %s", ErrOverlap, e, prev)
	}
	s.edits = append(s.edits, e)
	return nil
}

// Len returns the number of recorded edits.
func (s *Set) Len() int {
	return len(s.edits)
}

// Edits returns the recorded edits ordered by position. Insertions at the
// same offset keep the order they were added in.
func (s *Set) Edits() []Edit {
	sorted := make([]*Edit, len(s.edits))
	copy(sorted, s.edits)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Cmp(sorted[j]) < 0
	})
	out := make([]Edit, len(sorted))
	for i, e := range sorted {
		out[i] = *e
	}
	return out
}

// Apply returns the source with every edit applied.
func (s *Set) Apply() []byte {
	return Apply(s.src, s.Edits())
}

// Apply applies position-ordered, non-overlapping edits to src, right to left.
func Apply(src []byte, edits []Edit) []byte {
	out := make([]byte, len(src))
	copy(out, src)
	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		tail := append([]byte(e.New), out[e.End:]...)
		out = append(out[:e.Start], tail...)
	}
	return out
}
