package validator

// =============================================================================
// VALIDATOR PHILOSOPHY: CRASH EARLY, CRASH LOUD
// =============================================================================
//
// The CUE validator is the contract guard between expr-detect and the
// reduction driver that calls it.
//
// WHY THIS EXISTS:
// The driver bisects on exit codes and parses the JSON report. If a field is
// renamed or a status string drifts:
// - The driver reads a zero value
// - It keeps asking for instances that no longer exist
// - The reduction silently stops making progress
//
// With validation:
// - Immediate failure with a clear error
// - "field not allowed" or "conflicting values" tells you exactly what's wrong
// - Fix the schema or the code, no guessing
//
// WHEN VALIDATION FAILS:
// 1. DON'T suppress the error or add a workaround
// 2. DON'T add fields to schema.cue without understanding why
// 3. DO trace back: front end bug? detector bug? report assembly bug?
// =============================================================================

import (
	"embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaFS embed.FS

// Definitions in schema.cue.
const (
	ConfigDef = "#Config"
	ResultDef = "#Result"
	FactsDef  = "#FactTables"
	DeltaDef  = "#FactDelta"
)

// Validator validates data against the CUE schema contract.
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// New creates a new Validator with the embedded CUE schema
func New() (*Validator, error) {
	ctx := cuecontext.New()

	schemaBytes, err := schemaFS.ReadFile("schema.cue")
	if err != nil {
		return nil, fmt.Errorf("loading embedded schema: %w", err)
	}

	schema := ctx.CompileBytes(schemaBytes)
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling schema: %w", schema.Err())
	}

	return &Validator{
		ctx:    ctx,
		schema: schema,
	}, nil
}

// ValidateConfig checks pass options.
func (v *Validator) ValidateConfig(cfg interface{}) error {
	return v.Validate(ConfigDef, cfg)
}

// ValidateResult checks the JSON report of a run.
func (v *Validator) ValidateResult(result interface{}) error {
	return v.Validate(ResultDef, result)
}

// ValidateFacts checks candidate fact tables.
func (v *Validator) ValidateFacts(tables interface{}) error {
	return v.Validate(FactsDef, tables)
}

// Validate marshals data to JSON and checks it against the definition def.
// Returns nil if valid, or a detailed error explaining what failed.
func (v *Validator) Validate(def string, data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling data to JSON: %w", err)
	}
	return v.ValidateJSON(def, jsonBytes)
}

// ValidateJSON validates JSON bytes directly against the definition def.
func (v *Validator) ValidateJSON(def string, jsonBytes []byte) error {
	unified, err := v.unify(def, jsonBytes)
	if err != nil {
		return err
	}
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("%s schema validation failed: %w", def, err)
	}
	return nil
}

// ValidationErrors returns detailed information about all validation errors
func (v *Validator) ValidationErrors(def string, data interface{}) []string {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return []string{fmt.Sprintf("marshal error: %v", err)}
	}

	unified, err := v.unify(def, jsonBytes)
	if err != nil {
		return []string{err.Error()}
	}

	err = unified.Validate()
	if err == nil {
		return nil
	}

	var errs []string
	for _, e := range errors.Errors(err) {
		errs = append(errs, e.Error())
	}
	return errs
}

func (v *Validator) unify(def string, jsonBytes []byte) (cue.Value, error) {
	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("compiling JSON as CUE: %w", dataValue.Err())
	}

	defValue := v.schema.LookupPath(cue.ParsePath(def))
	if defValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("looking up %s definition: %w", def, defValue.Err())
	}

	return defValue.Unify(dataValue), nil
}
