package rewrite

import (
	"errors"
	"reflect"
	"testing"

	"github.com/sirkon/deepequal"
)

func TestApplyInsertAndReplace(t *testing.T) {
	src := []byte("int x = a + b;\n")
	s := NewSet(src)

	if err := s.Insert(0, "{"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Replace(8, 13, "a + b", "(tmp)"); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := s.Insert(14, "}"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got := string(s.Apply())
	want := "{int x = (tmp);}\n"
	if got != want {
		t.Fatalf("Apply() = %q, want %q", got, want)
	}
}

func TestInsertionsAtSameOffsetKeepOrder(t *testing.T) {
	src := []byte("x;")
	s := NewSet(src)
	for _, text := range []string{"a", "b", "c"} {
		if err := s.Insert(0, text); err != nil {
			t.Fatalf("insert %q: %v", text, err)
		}
	}
	if got := string(s.Apply()); got != "abcx;" {
		t.Fatalf("Apply() = %q, want %q", got, "abcx;")
	}
}

func TestInsertionAtReplacementBoundary(t *testing.T) {
	src := []byte("foo(bar);")
	s := NewSet(src)
	if err := s.Replace(4, 7, "bar", "(tmp)"); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := s.Insert(4, "<"); err != nil {
		t.Fatalf("insert at start boundary: %v", err)
	}
	if err := s.Insert(7, ">"); err != nil {
		t.Fatalf("insert at end boundary: %v", err)
	}
	if got := string(s.Apply()); got != "foo(<(tmp)>);" {
		t.Fatalf("Apply() = %q", got)
	}
}

func TestOverlapRejected(t *testing.T) {
	src := []byte("a + b + c")
	cases := []struct {
		name  string
		start int
		end   int
		old   string
	}{
		{"same range", 0, 5, "a + b"},
		{"partial overlap", 4, 9, "b + c"},
		{"contained", 4, 5, "b"},
		{"insertion inside", 2, 2, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSet(src)
			if err := s.Replace(0, 5, "a + b", "t"); err != nil {
				t.Fatalf("first replace: %v", err)
			}
			var err error
			if tc.start == tc.end {
				err = s.Insert(tc.start, "x")
			} else {
				err = s.Replace(tc.start, tc.end, tc.old, "y")
			}
			if !errors.Is(err, ErrOverlap) {
				t.Fatalf("expected ErrOverlap, got %v", err)
			}
			if s.Len() != 1 {
				t.Fatalf("rejected edit was recorded: %d edits", s.Len())
			}
		})
	}
}

func TestReplaceChecksOldText(t *testing.T) {
	s := NewSet([]byte("abc"))
	if err := s.Replace(0, 2, "xy", "z"); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}
	if err := s.Insert(4, "z"); !errors.Is(err, ErrRange) {
		t.Fatalf("expected ErrRange, got %v", err)
	}
}

func TestEditsOrdered(t *testing.T) {
	src := []byte("0123456789")
	s := NewSet(src)
	_ = s.Replace(6, 8, "67", "X")
	_ = s.Insert(2, "I")
	_ = s.Replace(2, 4, "23", "Y")

	want := []Edit{
		{Start: 2, End: 2, New: "I", seq: 1},
		{Start: 2, End: 4, Old: "23", New: "Y", seq: 2},
		{Start: 6, End: 8, Old: "67", New: "X", seq: 0},
	}
	got := s.Edits()
	if !reflect.DeepEqual(want, got) {
		deepequal.SideBySide(t, "edits", want, got)
		t.FailNow()
	}
	if string(Apply(src, got)) != "01IY45X89" {
		t.Fatalf("Apply() = %q", Apply(src, got))
	}
}
