package merge

import (
	"context"
	"database/sql"
	"fmt"
)

// WriteFunc is a callback that performs database writes inside a transaction.
type WriteFunc func(ctx context.Context, tx *sql.Tx) error

// BatchWriter buffers write operations and flushes them in fixed-size chunks,
// each chunk inside one transaction. A chunk either fully commits or the
// flush fails; chunks committed before a failure stay committed. The writer
// is synchronous: Submit reports the flush error of the chunk it completed,
// which lets the caller abort the run at the chunk boundary.
type BatchWriter struct {
	db      *sql.DB
	buf     []WriteFunc
	cap     int
	closed  bool
	applied int
}

// NewBatchWriter creates a BatchWriter flushing every chunkSize submissions.
func NewBatchWriter(db *sql.DB, chunkSize int) *BatchWriter {
	if chunkSize <= 0 {
		chunkSize = 10
	}
	return &BatchWriter{
		db:  db,
		buf: make([]WriteFunc, 0, chunkSize),
		cap: chunkSize,
	}
}

// Submit enqueues a write function, flushing if the chunk is full.
func (bw *BatchWriter) Submit(ctx context.Context, w WriteFunc) error {
	if bw.closed {
		return ErrBatchWriterClosed
	}
	bw.buf = append(bw.buf, w)
	if len(bw.buf) >= bw.cap {
		return bw.Flush(ctx)
	}
	return nil
}

// Flush commits the buffered writes as one transaction.
func (bw *BatchWriter) Flush(ctx context.Context) error {
	if len(bw.buf) == 0 {
		return nil
	}
	batch := bw.buf
	bw.buf = make([]WriteFunc, 0, bw.cap)

	if err := bw.executeBatch(ctx, batch); err != nil {
		return err
	}
	bw.applied += len(batch)
	return nil
}

func (bw *BatchWriter) executeBatch(ctx context.Context, batch []WriteFunc) error {
	// No DB configured (testing): run callbacks without a transaction.
	if bw.db == nil {
		for _, w := range batch {
			if err := w(ctx, nil); err != nil {
				return err
			}
		}
		return nil
	}

	tx, err := bw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	for _, w := range batch {
		if err := w(ctx, tx); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch (%d items): %w", len(batch), err)
	}
	return nil
}

// Applied returns the number of writes committed so far.
func (bw *BatchWriter) Applied() int { return bw.applied }

// Close flushes any remaining writes and stops accepting submissions.
func (bw *BatchWriter) Close(ctx context.Context) error {
	if bw.closed {
		return ErrBatchWriterClosed
	}
	bw.closed = true
	return bw.Flush(ctx)
}

var ErrBatchWriterClosed = &BatchWriterError{"batch writer closed"}

type BatchWriterError struct{ msg string }

func (e *BatchWriterError) Error() string { return e.msg }
