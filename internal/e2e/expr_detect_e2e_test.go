package e2e

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strconv"
	"testing"

	"github.com/sirkon/deepequal"

	"github.com/robert-at-pretension-io/exprdetect/internal/facts"
	"github.com/robert-at-pretension-io/exprdetect/internal/policy"
	"github.com/robert-at-pretension-io/exprdetect/internal/runner"
)

func TestExprDetectE2E_Testdata(t *testing.T) {
	repoRoot := findRepoRoot(t)
	bin := buildBinary(t, repoRoot, "expr-detect")

	home := t.TempDir()
	env := append(os.Environ(),
		"HOME="+home,
		"XDG_CONFIG_HOME="+filepath.Join(home, ".config"),
		"EXPR_DETECT_TIMING=",
		"EXPR_DETECT_TIMING_JSONL=",
	)

	sources, err := filepath.Glob(filepath.Join(repoRoot, "testdata", "c", "*.[ci]"))
	if err != nil || len(sources) == 0 {
		t.Fatalf("no testdata sources: %v", err)
	}

	for _, src := range sources {
		t.Run(filepath.Base(src), func(t *testing.T) {
			query, code := runJSON(t, bin, env, home, "-query", "-json", src)
			if code != 0 || query.Status != runner.StatusQuery {
				t.Fatalf("query failed: exit %d, %+v", code, query)
			}
			if query.Instances == 0 {
				t.Fatalf("no instances in %s", src)
			}

			again, _ := runJSON(t, bin, env, home, "-query", "-json", src)
			if !reflect.DeepEqual(query, again) {
				deepequal.SideBySide(t, "query", query, again)
				t.FailNow()
			}

			out := filepath.Join(t.TempDir(), "out"+filepath.Ext(src))
			for i := 1; i <= query.Instances; i++ {
				for _, mode := range [][]string{
					{"-mode", "print"},
					{"-mode", "check", "-reference", "0"},
				} {
					args := append([]string{"-json", "-instance", strconv.Itoa(i), "-o", out}, mode...)
					report, code := runJSON(t, bin, env, home, append(args, src)...)
					if code != 0 {
						t.Fatalf("instance %d %v: exit %d", i, mode, code)
					}
					if report.Selected == nil || report.Selected.Ordinal != i {
						t.Fatalf("instance %d: unexpected selection %+v", i, report.Selected)
					}
					if report.Selected.Function == "helper" {
						t.Fatalf("instance %d selected a function from an included header", i)
					}
				}
			}

			report, code := runJSON(t, bin, env, home, "-json", "-instance", strconv.Itoa(query.Instances+1), "-o", out, src)
			if code != 2 || report.Status != runner.StatusMaxInstance || report.Edits != 0 {
				t.Fatalf("out of range: exit %d, %+v", code, report)
			}
		})
	}
}

func TestExprFactsE2E_Testdata(t *testing.T) {
	repoRoot := findRepoRoot(t)
	bin := buildBinary(t, repoRoot, "expr-facts")
	home := t.TempDir()
	dir := filepath.Join(repoRoot, "testdata", "c")

	violations := filepath.Join(home, "violations.json")
	cmd := exec.Command(bin, "-check", "-violations", violations, dir)
	cmd.Dir = home
	cmd.Env = append(os.Environ(), "HOME="+home)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("expr-facts failed: %v\nstderr:\n%s", err, stderr.String())
	}

	var tables facts.Tables
	if err := json.Unmarshal(stdout.Bytes(), &tables); err != nil {
		t.Fatalf("parse facts: %v\n%s", err, stdout.String())
	}
	// default globs pick up .c files only
	if len(tables.Files) != 2 {
		t.Fatalf("expected 2 files, got %+v", tables.Files)
	}
	if len(tables.Candidates) == 0 {
		t.Fatalf("expected candidate rows")
	}

	raw, err := os.ReadFile(violations)
	if err != nil {
		t.Fatalf("read violations: %v", err)
	}
	var result policy.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("parse violations: %v\n%s", err, raw)
	}
	if result.Summary.Errors != 0 {
		t.Fatalf("unexpected rule errors: %+v", result.Violations)
	}
}

func runJSON(t *testing.T, bin string, env []string, dir string, args ...string) (runner.Report, int) {
	t.Helper()

	cmd := exec.Command(bin, args...)
	cmd.Env = env
	cmd.Dir = dir
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	code := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			t.Fatalf("expr-detect %v: %v", args, err)
		}
		code = exitErr.ExitCode()
	}

	var report runner.Report
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("parse JSON output for %v: %v\nstdout:\n%s\nstderr:\n%s", args, err, stdout.String(), stderr.String())
	}
	return report, code
}

func buildBinary(t *testing.T, repoRoot, name string) string {
	t.Helper()
	binPath := filepath.Join(t.TempDir(), name)
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/"+name)
	cmd.Dir = repoRoot
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("build %s failed: %v\n%s", name, err, string(out))
	}
	return binPath
}

func findRepoRoot(t *testing.T) string {
	t.Helper()
	start, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			if _, err := os.Stat(filepath.Join(dir, "testdata", "c")); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("repo root not found from %s", start)
		}
		dir = parent
	}
}
