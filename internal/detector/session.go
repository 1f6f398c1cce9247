// Package detector selects the N-th safely instrumentable scalar expression
// of a C translation unit and plans the edits that capture its value.
//
// A Session walks every function of the main file in source order, filters
// expressions through the validity rules, counts the accepted candidates and
// latches the one whose ordinal matches the requested instance. Once the walk
// is over the latched candidate is rewritten: its value is stored in a fresh
// temporary that a guarded printf (or abort) reports exactly once.
package detector

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robert-at-pretension-io/exprdetect/internal/cast"
	"github.com/robert-at-pretension-io/exprdetect/internal/rewrite"
)

// Reserved name families. Generated code only ever declares names with these
// prefixes, and expressions referring to them are never candidates.
const (
	TmpPrefix     = "__creduce_expr_tmp_"
	PrintedPrefix = "__creduce_printed_"
	CheckedPrefix = "__creduce_checked_"

	// ValueTag prefixes the line printed by the instrumentation.
	ValueTag = "creduce_value"
)

var (
	// ErrMaxInstance is returned when the requested instance exceeds the
	// number of candidates. No edits are produced.
	ErrMaxInstance = errors.New("max instance exceeded")

	// ErrUnsupportedDialect is returned, wrapped together with
	// ErrMaxInstance, for sources the detector does not analyze.
	ErrUnsupportedDialect = errors.New("unsupported dialect")

	// ErrInternal reports disagreement between counting and selection.
	ErrInternal = errors.New("internal invariant violation")

	// ErrOptions is returned for option combinations that cannot run.
	ErrOptions = errors.New("invalid options")
)

// Mode selects what the instrumentation does with the captured value.
type Mode int

const (
	// ModePrint prints the value with printf.
	ModePrint Mode = iota
	// ModeCheck calls abort when the value differs from a reference.
	ModeCheck
)

func (m Mode) String() string {
	switch m {
	case ModePrint:
		return "print"
	case ModeCheck:
		return "check"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	switch m {
	case ModePrint, ModeCheck:
		return []byte(m.String()), nil
	}
	return nil, fmt.Errorf("unknown mode %d", int(m))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "print":
		*m = ModePrint
	case "check":
		*m = ModeCheck
	default:
		return fmt.Errorf("unknown mode %q (want print or check)", text)
	}
	return nil
}

// Options parameterize one session.
type Options struct {
	// Instance is the 1-based ordinal of the candidate to rewrite.
	Instance int

	Mode Mode

	// Reference is the literal the value is compared against in check mode.
	Reference string

	// Replacement, when non-empty, replaces the selected expression
	// verbatim instead of instrumenting it.
	Replacement string

	// FireInstance is the guard counter value at which the report fires.
	FireInstance int

	// QueryOnly counts candidates without selecting one.
	QueryOnly bool
}

func (o Options) validate() error {
	if o.QueryOnly {
		return nil
	}
	if o.Instance < 1 {
		return fmt.Errorf("%w: instance must be >= 1, got %d", ErrOptions, o.Instance)
	}
	if o.FireInstance < 0 {
		return fmt.Errorf("%w: fire instance must be >= 0, got %d", ErrOptions, o.FireInstance)
	}
	if o.Mode == ModeCheck && o.Replacement == "" && strings.TrimSpace(o.Reference) == "" {
		return fmt.Errorf("%w: check mode needs a reference value", ErrOptions)
	}
	return nil
}

// State is the session's progress.
type State int

const (
	StateCollecting State = iota
	StateFound
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateCollecting:
		return "collecting"
	case StateFound:
		return "found"
	case StateExhausted:
		return "exhausted"
	}
	return "invalid"
}

// Candidate is one accepted expression together with its context.
type Candidate struct {
	Ordinal int
	Func    *cast.Func
	Stmt    *cast.Stmt
	Expr    *cast.Expr
}

// Result is the outcome of a session.
type Result struct {
	// Instances is the number of candidates found.
	Instances int

	// Candidates lists every accepted candidate in ordinal order.
	Candidates []Candidate

	// Selected is the latched candidate; nil in query mode.
	Selected *Candidate

	// Edits are the planned edits in position order.
	Edits []rewrite.Edit

	// Output is the source with Edits applied.
	Output []byte
}

// Session holds all state of one pass over one translation unit.
type Session struct {
	tu   *cast.TranslationUnit
	opts Options

	state      State
	count      int
	latched    *Candidate
	candidates []Candidate

	// per-function state
	fn        *cast.Func
	invalid   map[*cast.Stmt]map[*cast.Expr]bool
	unique    map[*cast.Stmt][]*cast.Expr
	tmpVars   map[*cast.Stmt][]*cast.Decl
	processed map[*cast.Decl]*cast.Expr
}

// New creates a session for tu.
func New(tu *cast.TranslationUnit, opts Options) *Session {
	return &Session{tu: tu, opts: opts}
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Count returns the number of candidates accepted so far.
func (s *Session) Count() int {
	return s.count
}

// Collect walks the translation unit once. It is a no-op after the first
// call.
func (s *Session) Collect() {
	if s.state == StateExhausted {
		return
	}
	s.walk()
	s.state = StateExhausted
}

// Run collects candidates and plans the edits for the requested instance.
func (s *Session) Run() (*Result, error) {
	if err := s.opts.validate(); err != nil {
		return nil, err
	}
	s.Collect()

	res := &Result{
		Instances:  s.count,
		Candidates: s.candidates,
	}
	if s.opts.QueryOnly {
		return res, nil
	}
	if !s.tu.Supported {
		return res, fmt.Errorf("%w: %w: %s", ErrMaxInstance, ErrUnsupportedDialect, s.tu.Language)
	}
	if s.opts.Instance > s.count {
		return res, fmt.Errorf("%w: instance %d requested, %d candidates", ErrMaxInstance, s.opts.Instance, s.count)
	}
	if s.latched == nil || s.latched.Ordinal != s.opts.Instance {
		return res, fmt.Errorf("%w: instance %d not latched among %d candidates", ErrInternal, s.opts.Instance, s.count)
	}

	set := rewrite.NewSet(s.tu.Source)
	if err := s.emit(set); err != nil {
		return res, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	res.Selected = s.latched
	res.Edits = set.Edits()
	res.Output = set.Apply()
	return res, nil
}

// accept records an accepted candidate and latches it when its ordinal is
// the requested one.
func (s *Session) accept(st *cast.Stmt, e *cast.Expr) {
	s.count++
	c := Candidate{Ordinal: s.count, Func: s.fn, Stmt: st, Expr: e}
	s.candidates = append(s.candidates, c)
	if s.latched == nil && !s.opts.QueryOnly && s.count == s.opts.Instance {
		s.latched = &c
		s.state = StateFound
	}
}
