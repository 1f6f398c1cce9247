// Package runner drives one expression-detector pass over one file: read,
// parse, detect, re-check, write.
package runner

// =============================================================================
// RUNNER PHILOSOPHY: NEVER HAND THE DRIVER A BROKEN FILE
// =============================================================================
//
// The runner sits between the front end, the detector and the reduction
// driver. Its job is to:
// 1. Parse the input and run one detector session on it
// 2. Re-parse the rewritten source before it touches the disk
// 3. Write the result atomically and report what was done
//
// IMPORTANT: The runner should NOT patch up detector output!
//
// If the rewritten source fails to parse, that's a sign that either:
// - The FRONT END lowered a construct wrongly (fix internal/frontend first!)
// - The EMITTER planned a bad edit (fix internal/detector second!)
//
// The CUE validator (internal/validator) checks the report against the
// contract the driver parses. If validation fails, the contract is broken -
// fix the source, don't suppress the error.
// =============================================================================

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/robert-at-pretension-io/exprdetect/internal/cast"
	"github.com/robert-at-pretension-io/exprdetect/internal/config"
	"github.com/robert-at-pretension-io/exprdetect/internal/detector"
	"github.com/robert-at-pretension-io/exprdetect/internal/frontend"
	"github.com/robert-at-pretension-io/exprdetect/internal/validator"
)

// Report statuses.
const (
	StatusOK          = "ok"
	StatusMaxInstance = "max-instance"
	StatusQuery       = "query"
)

// StdoutPath names standard output in Report.Output.
const StdoutPath = "-"

// Report is the machine-readable summary of one run, validated against the
// CUE #Result definition.
type Report struct {
	File      string    `json:"file"`
	Status    string    `json:"status"`
	Instances int       `json:"instances"`
	Instance  int       `json:"instance,omitempty"`
	Mode      string    `json:"mode,omitempty"`
	Selected  *Selected `json:"selected,omitempty"`
	Edits     int       `json:"edits"`
	Output    string    `json:"output,omitempty"`
}

// Selected describes the instrumented expression.
type Selected struct {
	Ordinal    int    `json:"ordinal"`
	Function   string `json:"function"`
	Line       int    `json:"line"`
	Column     int    `json:"column"`
	Expression string `json:"expression"`
	Type       string `json:"type"`
	Format     string `json:"format"`
	Statement  string `json:"statement"`
}

// Runner runs the pass with one configuration.
type Runner struct {
	// Configuration loaded from expr_detect.json or built from flags
	Config *config.Config

	// Dir anchors a relative timing path; empty means the working directory
	Dir string

	// Verbose enables progress lines on Stderr
	Verbose bool

	// JSONOutput marks runs whose report is printed as JSON
	JSONOutput bool

	// Stdout receives the rewritten source when no output path is set
	Stdout io.Writer

	// Stderr receives progress lines
	Stderr io.Writer

	parser    *frontend.Parser
	validator *validator.Validator
}

// New creates a Runner writing to the process's standard streams.
func New(cfg *config.Config) *Runner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Runner{
		Config: cfg,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

func (r *Runner) logf(format string, args ...any) {
	if !r.Verbose || r.Stderr == nil {
		return
	}
	fmt.Fprintf(r.Stderr, format, args...)
}

func (r *Runner) cparser() *frontend.Parser {
	if r.parser == nil {
		r.parser = frontend.New()
	}
	return r.parser
}

func (r *Runner) contract() (*validator.Validator, error) {
	if r.validator == nil {
		v, err := validator.New()
		if err != nil {
			return nil, err
		}
		r.validator = v
	}
	return r.validator, nil
}

// Run processes path. A max-instance outcome returns the report together
// with an error wrapping detector.ErrMaxInstance; nothing is written then.
func (r *Runner) Run(ctx context.Context, path string) (*Report, error) {
	start := time.Now()
	timing := newTimingRecorder(start, r.resolveTimingPath())
	defer timing.Close()
	if err := timing.Err(); err != nil {
		r.logf("warning: timing log disabled: %v\n", err)
	}

	report, err := r.run(ctx, path, timing)

	status := "ok"
	if err != nil {
		status = "error"
	}
	timing.RecordStage("total", start, time.Since(start), status)
	r.logf("Done in %v\n", time.Since(start).Round(time.Millisecond))
	return report, err
}

func (r *Runner) run(ctx context.Context, path string, timing *timingRecorder) (*Report, error) {
	var src []byte
	err := timing.stage("read", func() error {
		var err error
		src, err = os.ReadFile(path)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if r.Verbose {
		if sum, err := hashFile(path); err == nil {
			r.logf("Read %s (%d bytes, sha256 %s)\n", path, len(src), sum[:12])
		}
	}

	var tu *cast.TranslationUnit
	err = timing.stage("parse", func() error {
		var err error
		tu, err = r.cparser().Parse(ctx, path, src, r.Config.Language)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.logf("Parsed %s: %s, %d functions, %d syntax errors\n", path, tu.Language, len(tu.Funcs), tu.SyntaxErrors)

	opts := r.Config.Options()
	var res *detector.Result
	detectStart := time.Now()
	res, err = detector.New(tu, opts).Run()
	detectStatus := "ok"
	if err != nil {
		detectStatus = "error"
	}
	timing.RecordFile("detect", path, detectStatus, detectStart, time.Since(detectStart))

	report := &Report{File: path}
	if res != nil {
		report.Instances = res.Instances
	}
	switch {
	case err == nil && opts.QueryOnly:
		report.Status = StatusQuery
		r.logf("Found %d instances\n", report.Instances)
		return r.checkReport(report)
	case errors.Is(err, detector.ErrMaxInstance):
		report.Status = StatusMaxInstance
		report.Instance = opts.Instance
		report.Mode = opts.Mode.String()
		r.logf("Instance %d out of range (%d instances)\n", opts.Instance, report.Instances)
		if _, verr := r.checkReport(report); verr != nil {
			return nil, verr
		}
		return report, err
	case err != nil:
		return nil, err
	}

	report.Status = StatusOK
	report.Instance = opts.Instance
	report.Mode = opts.Mode.String()
	report.Selected = describe(tu, res.Selected)
	report.Edits = len(res.Edits)
	r.logf("Instance %d: %s in %s at %d:%d, %d edits\n",
		report.Selected.Ordinal, report.Selected.Expression, report.Selected.Function,
		report.Selected.Line, report.Selected.Column, report.Edits)

	err = timing.stage("check", func() error {
		return r.cparser().CheckRewrite(ctx, tu, res.Output)
	})
	if err != nil {
		return nil, err
	}

	dest := r.Config.OutputPath(path)
	report.Output = dest
	if dest == "" {
		report.Output = StdoutPath
	}
	if _, err := r.checkReport(report); err != nil {
		return nil, err
	}

	err = timing.stage("write", func() error {
		if dest == "" {
			_, err := r.Stdout.Write(res.Output)
			return err
		}
		return writeFileAtomic(dest, res.Output)
	})
	if err != nil {
		return nil, fmt.Errorf("writing %s: %w", report.Output, err)
	}
	if dest != "" {
		r.logf("Wrote %s\n", dest)
	}
	return report, nil
}

// checkReport validates the report against the #Result contract. A
// violation is an internal error: the driver would misread the report.
func (r *Runner) checkReport(report *Report) (*Report, error) {
	v, err := r.contract()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", detector.ErrInternal, err)
	}
	if err := v.ValidateResult(report); err != nil {
		for _, msg := range v.ValidationErrors(validator.ResultDef, report) {
			r.logf("  %s\n", msg)
		}
		return nil, fmt.Errorf("%w: %w", detector.ErrInternal, err)
	}
	return report, nil
}

func describe(tu *cast.TranslationUnit, c *detector.Candidate) *Selected {
	if c == nil {
		return nil
	}
	sel := &Selected{
		Ordinal:    c.Ordinal,
		Line:       c.Expr.Range.Line,
		Column:     c.Expr.Range.Column,
		Expression: tu.Text(c.Expr.Range),
		Type:       c.Expr.Type.Spelling(),
		Format:     detector.FormatSpec(c.Expr.Type),
		Statement:  c.Stmt.Kind.String(),
	}
	if c.Func != nil {
		sel.Function = c.Func.Name
	}
	return sel
}

// writeFileAtomic replaces path through a temporary file in the same
// directory, keeping the mode of an existing file.
func writeFileAtomic(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*"+filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("temp output file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write output file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("chmod output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename output file: %w", err)
	}
	return nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
