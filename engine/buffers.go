package engine

import (
	"fmt"
	"sync"

	"github.com/Konsultn-Engineering/microrm/database"
	"github.com/Konsultn-Engineering/microrm/schema"
)

type ScanBuffers struct {
	vals []any
	ptrs []any
}

// Reset clears the buffers for reuse
func (sb *ScanBuffers) Reset() {
	sb.vals = sb.vals[:0]
	sb.ptrs = sb.ptrs[:0]
}

// EnsureCapacity grows buffers if needed
func (sb *ScanBuffers) EnsureCapacity(size int) {
	if cap(sb.vals) < size {
		sb.vals = make([]any, 0, size)
		sb.ptrs = make([]any, 0, size)
	}
}

// Prepare sets up size nil values and pointers to them for rows.Scan.
func (sb *ScanBuffers) Prepare(size int) {
	sb.Reset()
	sb.EnsureCapacity(size)

	for len(sb.vals) < size {
		sb.vals = append(sb.vals, nil)
		sb.ptrs = append(sb.ptrs, nil)
	}

	for i := range sb.vals {
		sb.ptrs[i] = &sb.vals[i]
	}
}

var scanPool = sync.Pool{
	New: func() any {
		return &ScanBuffers{
			vals: make([]any, 0, 20),
			ptrs: make([]any, 0, 20),
		}
	},
}

// readRows scans rows one at a time and hands each to fn. The Row's values
// are only valid until fn returns. It returns the number of rows read.
func readRows(rows database.Rows, fn func(schema.Row) error) (int, error) {
	columns, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("failed to read result columns: %w", err)
	}

	buf := scanPool.Get().(*ScanBuffers)
	defer scanPool.Put(buf)

	n := 0
	for rows.Next() {
		buf.Prepare(len(columns))
		if err := rows.Scan(buf.ptrs...); err != nil {
			return n, err
		}
		if err := fn(schema.Row{Columns: columns, Values: buf.vals}); err != nil {
			return n, err
		}
		n++
	}
	return n, rows.Err()
}
