package dataset

import (
	"database/sql"
	"errors"
)

// Reader iterates over stored records one row at a time. Running out of rows
// is the normal end of iteration, not an error:
//
//	r, err := store.Records(ctx, "")
//	...
//	defer r.Close()
//	for r.Next() {
//		rec := r.Record()
//		...
//	}
//	if err := r.Err(); err != nil {
//		...
//	}
type Reader struct {
	rows *sql.Rows
	cur  Record
	err  error
	done bool
}

// Next advances to the next record, reporting false once the rows are
// exhausted or a row fails to decode.
func (r *Reader) Next() bool {
	if r.done {
		return false
	}
	if !r.rows.Next() {
		r.finish(r.rows.Err())
		return false
	}

	var blob []byte
	if err := r.rows.Scan(&blob); err != nil {
		r.finish(err)
		return false
	}
	rec, err := UnmarshalRecord(blob)
	if err != nil {
		r.finish(err)
		return false
	}
	r.cur = rec
	return true
}

// Record returns the record Next advanced to
func (r *Reader) Record() Record {
	return r.cur
}

// Err returns the error that stopped iteration, if any
func (r *Reader) Err() error {
	return r.err
}

// NextBatch returns up to n records. A short batch means the reader is
// exhausted; an empty batch with a nil error is the end.
func (r *Reader) NextBatch(n int) ([]Record, error) {
	batch := make([]Record, 0, n)
	for len(batch) < n && r.Next() {
		batch = append(batch, r.cur)
	}
	return batch, r.err
}

// Close releases the underlying rows. It is safe to call more than once.
func (r *Reader) Close() error {
	r.done = true
	return r.rows.Close()
}

func (r *Reader) finish(err error) {
	r.done = true
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		r.err = err
	}
	r.rows.Close()
}
