package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/wasmstack/internal/analysis"
	"github.com/roach88/wasmstack/internal/wasm"
)

// WriteRun persists an analysis run with its functions, steps, and hooks in
// one transaction.
//
// Uses ON CONFLICT(id) DO NOTHING on the run row for idempotency: if a run
// with the same ID exists, nothing is written and inserted is false.
// Runs are immutable, so a second write never updates the first.
func (s *Store) WriteRun(ctx context.Context, res *analysis.ModuleResult) (inserted bool, err error) {
	if res == nil {
		return false, fmt.Errorf("write run: nil result")
	}
	if res.RunID == "" {
		return false, fmt.Errorf("write run: empty run id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, module, content_hash, strict, analysis_version, tool_version, function_count, failed_count, max_depth)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		res.RunID,
		res.Module,
		res.ContentHash,
		boolToInt(res.Strict),
		res.AnalysisVersion,
		wasm.ToolVersion,
		len(res.Functions),
		len(res.Failed()),
		res.MaxDepth(),
	)
	if err != nil {
		return false, fmt.Errorf("write run: insert run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write run: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Run already recorded.
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("write run: commit (existing): %w", err)
		}
		return false, nil
	}

	for _, fr := range res.Functions {
		if err := writeFunction(ctx, tx, res.RunID, fr); err != nil {
			return false, fmt.Errorf("write run: %w", err)
		}
	}

	for _, h := range res.Hooks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO hooks (run_id, key, instr)
			VALUES (?, ?, ?)
			ON CONFLICT(run_id, key) DO NOTHING
		`, res.RunID, h.Key(), h.Instr); err != nil {
			return false, fmt.Errorf("write run: insert hook %s: %w", h.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("write run: commit: %w", err)
	}
	return true, nil
}

func writeFunction(ctx context.Context, tx *sql.Tx, runID string, fr *analysis.FunctionResult) error {
	var errCode, errMsg sql.NullString
	var errPC sql.NullInt64
	if fr.Err != nil {
		errCode = sql.NullString{String: string(fr.Err.Code), Valid: true}
		errMsg = sql.NullString{String: fr.Err.Error(), Valid: true}
		errPC = sql.NullInt64{Int64: int64(fr.Err.PC), Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO functions
		(run_id, idx, name, signature, max_depth, content_hash, error_code, error_pc, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		fr.Index,
		fr.Name,
		fr.Type.String(),
		fr.MaxDepth,
		fr.ContentHash,
		errCode,
		errPC,
		errMsg,
	)
	if err != nil {
		return fmt.Errorf("insert function %q: %w", fr.Name, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO steps
		(run_id, func_idx, pc, instr, inputs, outputs, depth, open_blocks, stack, dead)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare steps: %w", err)
	}
	defer stmt.Close()

	for _, st := range fr.Steps {
		stack, err := marshalStack(st.Stack)
		if err != nil {
			return fmt.Errorf("function %q pc %d: %w", fr.Name, st.PC, err)
		}
		if _, err := stmt.ExecContext(ctx,
			runID,
			fr.Index,
			st.PC,
			st.Instr,
			formatTypes(st.Inputs),
			formatTypes(st.Outputs),
			st.Depth,
			st.OpenBlocks,
			stack,
			boolToInt(st.Dead),
		); err != nil {
			return fmt.Errorf("insert step %q pc %d: %w", fr.Name, st.PC, err)
		}
	}
	return nil
}
