package facts

import "strconv"

// Delta captures added and removed fact rows between two snapshots.
type Delta struct {
	Added   Tables `json:"added"`
	Removed Tables `json:"removed"`
}

// ComputeDelta computes row-level additions and removals between two snapshots.
func ComputeDelta(prev, next Tables) Delta {
	return Delta{
		Added:   diffTables(prev, next),
		Removed: diffTables(next, prev),
	}
}

func diffTables(from, to Tables) Tables {
	out := emptyTables()

	out.Files = diffRows(from.Files, to.Files, func(r FileRow) string {
		return r.Path + "|" + r.Language + "|" + boolKey(r.Supported) + "|" + intKey(r.Instances) + "|" + intKey(r.SyntaxErrors)
	})
	out.Functions = diffRows(from.Functions, to.Functions, func(r FunctionRow) string {
		return r.Name + "|" + r.File + "|" + intKey(r.Line) + "|" + boolKey(r.InMain) + "|" + intKey(r.Candidates)
	})
	// keyed by position and text; ordinals shift between snapshots
	out.Candidates = diffRows(from.Candidates, to.Candidates, func(r CandidateRow) string {
		return r.File + "|" + r.Function + "|" + intKey(r.Line) + "|" + intKey(r.Column) + "|" + r.Expr + "|" + r.Type
	})
	out.Includes = diffRows(from.Includes, to.Includes, func(r IncludeRow) string {
		return r.File + "|" + r.Path + "|" + boolKey(r.Angled) + "|" + intKey(r.Line)
	})

	return out
}

func diffRows[T any](from, to []T, key func(T) string) []T {
	fromSet := make(map[string]T, len(from))
	for _, row := range from {
		fromSet[key(row)] = row
	}
	var diff []T
	for _, row := range to {
		rowKey := key(row)
		if _, ok := fromSet[rowKey]; !ok {
			diff = append(diff, row)
		}
	}
	if diff == nil {
		diff = []T{}
	}
	return diff
}

func boolKey(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func intKey(v int) string {
	return strconv.Itoa(v)
}
