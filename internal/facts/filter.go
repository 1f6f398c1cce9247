package facts

// FilterTablesByFiles returns a new Tables object containing only rows whose file
// or path is present in the provided file set.
func FilterTablesByFiles(tables Tables, files map[string]bool) Tables {
	if len(files) == 0 {
		return emptyTables()
	}
	out := emptyTables()

	for _, row := range tables.Files {
		if files[row.Path] {
			out.Files = append(out.Files, row)
		}
	}
	for _, row := range tables.Functions {
		if files[row.File] {
			out.Functions = append(out.Functions, row)
		}
	}
	for _, row := range tables.Candidates {
		if files[row.File] {
			out.Candidates = append(out.Candidates, row)
		}
	}
	for _, row := range tables.Includes {
		if files[row.File] {
			out.Includes = append(out.Includes, row)
		}
	}

	return out
}

// FilterCandidatesByFunction keeps only the candidate and function rows of
// the named function.
func FilterCandidatesByFunction(tables Tables, name string) Tables {
	out := tables
	out.Functions = []FunctionRow{}
	out.Candidates = []CandidateRow{}
	for _, row := range tables.Functions {
		if row.Name == name {
			out.Functions = append(out.Functions, row)
		}
	}
	for _, row := range tables.Candidates {
		if row.Function == name {
			out.Candidates = append(out.Candidates, row)
		}
	}
	return out
}

// FilterDeltaByFiles returns a new Delta containing only rows for the specified files.
func FilterDeltaByFiles(delta Delta, files map[string]bool) Delta {
	if len(files) == 0 {
		return Delta{
			Added:   emptyTables(),
			Removed: emptyTables(),
		}
	}
	return Delta{
		Added:   FilterTablesByFiles(delta.Added, files),
		Removed: FilterTablesByFiles(delta.Removed, files),
	}
}
