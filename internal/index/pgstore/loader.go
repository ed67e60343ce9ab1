package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/index"
	qerrors "github.com/Adithya-Monish-Kumar-K/qryeval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/qryeval/pkg/postgres"
)

// Import indexes a JSON-lines corpus into the store's tables inside one
// transaction, assigning docids after the highest existing one. Rows are
// bulk-loaded with COPY.
func Import(ctx context.Context, client *postgres.Client, r io.Reader) (int, error) {
	var count int
	err := client.InTx(ctx, func(tx *sql.Tx) error {
		var next int
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(docid) + 1, 0) FROM documents`).Scan(&next); err != nil {
			return fmt.Errorf("reading next docid: %w", err)
		}

		docs, err := tx.PrepareContext(ctx, pq.CopyIn("documents", "docid", "external_id"))
		if err != nil {
			return fmt.Errorf("preparing documents copy: %w", err)
		}
		var lengths [][]any
		var rows [][]any
		count, err = index.ReadJSONL(r, func(doc index.Document) error {
			if doc.ID == "" {
				return fmt.Errorf("%w: document id is empty", qerrors.ErrInvalidInput)
			}
			docID := next
			next++
			if _, err := docs.ExecContext(ctx, docID, doc.ID); err != nil {
				return fmt.Errorf("copying document %q: %w", doc.ID, err)
			}
			for field, ft := range index.Analyze(doc) {
				lengths = append(lengths, []any{field, docID, ft.Length})
				for term, positions := range ft.Terms {
					rows = append(rows, []any{term, field, docID, pq.Array(toInt64(positions))})
				}
			}
			return nil
		})
		if err != nil {
			docs.Close()
			return err
		}
		if err := flushCopy(ctx, docs); err != nil {
			return err
		}
		if err := copyRows(ctx, tx, pq.CopyIn("field_lengths", "field", "docid", "length"), lengths); err != nil {
			return err
		}
		return copyRows(ctx, tx, pq.CopyIn("postings", "term", "field", "docid", "positions"), rows)
	})
	if err != nil {
		return 0, fmt.Errorf("importing corpus: %w", err)
	}
	return count, nil
}

func copyRows(ctx context.Context, tx *sql.Tx, stmt string, rows [][]any) error {
	copyStmt, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("preparing copy: %w", err)
	}
	for _, row := range rows {
		if _, err := copyStmt.ExecContext(ctx, row...); err != nil {
			copyStmt.Close()
			return fmt.Errorf("copying row: %w", err)
		}
	}
	return flushCopy(ctx, copyStmt)
}

// flushCopy sends the buffered COPY data; an Exec without arguments ends it.
func flushCopy(ctx context.Context, stmt *sql.Stmt) error {
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("finishing copy: %w", err)
	}
	return stmt.Close()
}

func toInt64(positions []int) []int64 {
	out := make([]int64, len(positions))
	for i, p := range positions {
		out[i] = int64(p)
	}
	return out
}
