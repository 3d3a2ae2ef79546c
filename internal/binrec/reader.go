// Package binrec reads the packed binary time-series files produced by the
// solver.  A file is a sequence of fixed-size records with no framing; the
// layout of one record is described by a format string using the characters
// 'i' (int32), 'f' (float32), and 'd' (float64), e.g. "iffffdddd".
package binrec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

var fieldSizes = map[byte]int{
	'i': 4,
	'f': 4,
	'd': 8,
}

// RecordSize returns the size in bytes of one record with the given format.
func RecordSize(format string) (int, error) {
	if format == "" {
		return 0, errors.New("record format must not be empty")
	}
	n := 0
	for i := 0; i < len(format); i++ {
		size, ok := fieldSizes[format[i]]
		if !ok {
			return 0, fmt.Errorf("unknown format character %q (supported: i, f, d)", format[i])
		}
		n += size
	}
	return n, nil
}

// Uniform builds a format string of n identical fields, e.g. Uniform(3, 'd')
// is "ddd".
func Uniform(n int, prec byte) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("column count must be positive, got %d", n)
	}
	if _, ok := fieldSizes[prec]; !ok {
		return "", fmt.Errorf("unknown precision character %q (supported: i, f, d)", prec)
	}
	return strings.Repeat(string(prec), n), nil
}

// Reader decodes records one at a time.  All values are widened to float64.
type Reader struct {
	r       *bufio.Reader
	format  string
	recSize int
	buf     []byte
}

// NewReader wraps r with a record decoder for the given format.
func NewReader(r io.Reader, format string) (*Reader, error) {
	size, err := RecordSize(format)
	if err != nil {
		return nil, err
	}
	return &Reader{
		r:       bufio.NewReader(r),
		format:  format,
		recSize: size,
		buf:     make([]byte, size),
	}, nil
}

// Columns returns the number of fields per record.
func (r *Reader) Columns() int { return len(r.format) }

// Size returns the size in bytes of one record.
func (r *Reader) Size() int { return r.recSize }

// Read decodes the next record.  It returns io.EOF once no full record
// remains; a trailing partial record is discarded.
func (r *Reader) Read() ([]float64, error) {
	if _, err := io.ReadFull(r.r, r.buf); err != nil {
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}

	rec := make([]float64, len(r.format))
	off := 0
	for i := 0; i < len(r.format); i++ {
		switch r.format[i] {
		case 'i':
			rec[i] = float64(int32(binary.LittleEndian.Uint32(r.buf[off:])))
			off += 4
		case 'f':
			rec[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(r.buf[off:])))
			off += 4
		case 'd':
			rec[i] = math.Float64frombits(binary.LittleEndian.Uint64(r.buf[off:]))
			off += 8
		}
	}
	return rec, nil
}

// ReadAll decodes up to limit records (all records when limit <= 0).
func (r *Reader) ReadAll(limit int) ([][]float64, error) {
	var rows [][]float64
	for limit <= 0 || len(rows) < limit {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// ReadFile decodes up to limit records from the named file.
func ReadFile(name, format string, limit int) ([][]float64, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := NewReader(f, format)
	if err != nil {
		return nil, err
	}
	return r.ReadAll(limit)
}
