package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/wasmstack/internal/analysis"
)

// RunRecord is the stored summary of one analysis run.
type RunRecord struct {
	ID              string
	Module          string
	ContentHash     string
	Strict          bool
	AnalysisVersion string
	ToolVersion     string
	FunctionCount   int
	FailedCount     int
	MaxDepth        int
}

// FunctionRecord is the stored outcome of one function within a run.
// ErrorCode is empty when the function passed.
type FunctionRecord struct {
	Index        int
	Name         string
	Signature    string
	MaxDepth     int
	ContentHash  string
	ErrorCode    string
	ErrorPC      int
	ErrorMessage string
}

// OK reports whether the function passed.
func (f FunctionRecord) OK() bool {
	return f.ErrorCode == ""
}

// ReadRun retrieves a run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, module, content_hash, strict, analysis_version, tool_version, function_count, failed_count, max_depth
		FROM runs
		WHERE id = ?
	`, id)
	return scanRun(row)
}

// ListRuns returns all runs ordered by id. UUIDv7 IDs make this creation order.
func (s *Store) ListRuns(ctx context.Context) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, module, content_hash, strict, analysis_version, tool_version, function_count, failed_count, max_depth
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	if runs == nil {
		runs = []RunRecord{}
	}
	return runs, nil
}

// FindRunByHash returns the earliest run with the given content hash.
// found is false if no run matches.
func (s *Store) FindRunByHash(ctx context.Context, hash string) (run RunRecord, found bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, module, content_hash, strict, analysis_version, tool_version, function_count, failed_count, max_depth
		FROM runs
		WHERE content_hash = ?
		ORDER BY id COLLATE BINARY ASC
		LIMIT 1
	`, hash)
	run, err = scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, false, nil
	}
	if err != nil {
		return RunRecord{}, false, err
	}
	return run, true, nil
}

// ReadFunctions returns the functions of a run in module order.
func (s *Store) ReadFunctions(ctx context.Context, runID string) ([]FunctionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, name, signature, max_depth, content_hash, error_code, error_pc, error_message
		FROM functions
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query functions: %w", err)
	}
	defer rows.Close()

	var fns []FunctionRecord
	for rows.Next() {
		var f FunctionRecord
		var errCode, errMsg sql.NullString
		var errPC sql.NullInt64
		if err := rows.Scan(
			&f.Index, &f.Name, &f.Signature, &f.MaxDepth, &f.ContentHash,
			&errCode, &errPC, &errMsg,
		); err != nil {
			return nil, fmt.Errorf("scan function: %w", err)
		}
		f.ErrorCode = errCode.String
		f.ErrorPC = int(errPC.Int64)
		f.ErrorMessage = errMsg.String
		fns = append(fns, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate functions: %w", err)
	}

	if fns == nil {
		fns = []FunctionRecord{}
	}
	return fns, nil
}

// ReadSteps returns the recorded trace of one function ordered by pc.
func (s *Store) ReadSteps(ctx context.Context, runID string, funcIdx int) ([]analysis.Step, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pc, instr, inputs, outputs, depth, open_blocks, stack, dead
		FROM steps
		WHERE run_id = ? AND func_idx = ?
		ORDER BY pc ASC
	`, runID, funcIdx)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var steps []analysis.Step
	for rows.Next() {
		var st analysis.Step
		var inputs, outputs string
		var stack []byte
		var dead int
		if err := rows.Scan(
			&st.PC, &st.Instr, &inputs, &outputs, &st.Depth, &st.OpenBlocks, &stack, &dead,
		); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if st.Inputs, err = parseTypes(inputs); err != nil {
			return nil, fmt.Errorf("step pc %d: %w", st.PC, err)
		}
		if st.Outputs, err = parseTypes(outputs); err != nil {
			return nil, fmt.Errorf("step pc %d: %w", st.PC, err)
		}
		if st.Stack, err = unmarshalStack(stack); err != nil {
			return nil, fmt.Errorf("step pc %d: %w", st.PC, err)
		}
		st.Dead = dead != 0
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}

	if steps == nil {
		steps = []analysis.Step{}
	}
	return steps, nil
}

// ReadHooks returns the hook signatures of a run ordered by key.
func (s *Store) ReadHooks(ctx context.Context, runID string) ([]analysis.HookSignature, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key
		FROM hooks
		WHERE run_id = ?
		ORDER BY key COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query hooks: %w", err)
	}
	defer rows.Close()

	var hooks []analysis.HookSignature
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan hook: %w", err)
		}
		h, ok := analysis.ParseHookKey(key)
		if !ok {
			return nil, fmt.Errorf("malformed hook key %q", key)
		}
		hooks = append(hooks, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hooks: %w", err)
	}

	if hooks == nil {
		hooks = []analysis.HookSignature{}
	}
	return hooks, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var r RunRecord
	var strict int
	err := row.Scan(
		&r.ID, &r.Module, &r.ContentHash, &strict, &r.AnalysisVersion, &r.ToolVersion,
		&r.FunctionCount, &r.FailedCount, &r.MaxDepth,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, err
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("scan run: %w", err)
	}
	r.Strict = strict != 0
	return r, nil
}
