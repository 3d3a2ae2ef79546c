// Package table reads and writes the fixed-width spreadsheet format used by
// the solver toolchain.  A full file looks like
//
//	# comment / description lines
//	$
//	          item1          item2
//	   1.000000e+00   2.000000e+00
//
// Lines starting with '#' are comments and '$' separates the preamble from
// the data.  Every cell is CellWidth characters wide.
package table

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/renameio/v2"
)

// CellWidth is the fixed width of every header and data cell.
const CellWidth = 15

// Table holds the parsed contents of a spreadsheet file.
type Table struct {
	Items []string
	Rows  [][]float64
}

// Column returns the data column with the given header item.
func (t *Table) Column(item string) ([]float64, error) {
	for c, name := range t.Items {
		if name != item {
			continue
		}
		col := make([]float64, len(t.Rows))
		for r, row := range t.Rows {
			col[r] = row[c]
		}
		return col, nil
	}
	return nil, fmt.Errorf("no column %q in table (have %v)", item, t.Items)
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int { return len(t.Rows) }

// Write outputs a full spreadsheet with a comment preamble.  description may
// span multiple lines; each becomes its own comment line.  An existing file
// is never overwritten.
func Write(name string, items []string, rows [][]float64, description string) error {
	if err := validate(name, items, rows); err != nil {
		return err
	}

	var sb strings.Builder
	now := time.Now()
	fmt.Fprintf(&sb, "# mytools \n")
	fmt.Fprintf(&sb, "# Date: %d/%d/%d \n", now.Year(), int(now.Month()), now.Day())
	fmt.Fprintf(&sb, "# Time: %d:%d \n", now.Hour(), now.Minute())
	if description != "" {
		for _, line := range strings.Split(description, "\n") {
			fmt.Fprintf(&sb, "# %s \n", line)
		}
	}
	sb.WriteString("$ \n")
	dump(&sb, items, rows)

	return renameio.WriteFile(name, []byte(sb.String()), 0o644)
}

// WriteLite outputs just the header row and the data, no preamble.  An
// existing file is never overwritten.
func WriteLite(name string, items []string, rows [][]float64) error {
	if err := validate(name, items, rows); err != nil {
		return err
	}
	var sb strings.Builder
	dump(&sb, items, rows)
	return renameio.WriteFile(name, []byte(sb.String()), 0o644)
}

func validate(name string, items []string, rows [][]float64) error {
	if _, err := os.Stat(name); err == nil {
		return fmt.Errorf("file %s already exists", name)
	}
	for r, row := range rows {
		if len(row) != len(items) {
			return fmt.Errorf("row %d has %d values but there are %d items", r, len(row), len(items))
		}
	}
	for _, item := range items {
		if len(item) > CellWidth-1 {
			return fmt.Errorf("item %q is longer than %d characters", item, CellWidth-1)
		}
	}
	return nil
}

func dump(sb *strings.Builder, items []string, rows [][]float64) {
	for _, item := range items {
		sb.WriteString(strings.Repeat(" ", CellWidth-len(item)))
		sb.WriteString(item)
	}
	sb.WriteByte('\n')

	format := fmt.Sprintf("%%%d.%de", CellWidth, CellWidth/2-1)
	for _, row := range rows {
		for _, v := range row {
			fmt.Fprintf(sb, format, v)
		}
		sb.WriteByte('\n')
	}
}

// Read parses a spreadsheet file.  Works for both the full format (comment
// preamble terminated by a '$' line) and the lite format with no preamble.
// A comment preamble without its '$' separator is an error; a file with
// neither comments nor a '$' is read as the lite format.
func Read(name string) (*Table, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		t          Table
		sawData    bool
		sawDollar  bool
		sawComment bool
	)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#"):
			sawComment = true
			continue
		case strings.HasPrefix(line, "$"):
			// restart: anything read so far was preamble
			t = Table{}
			sawData = false
			sawDollar = true
			continue
		}

		fields := strings.Fields(line)
		if !sawData {
			t.Items = fields
			sawData = true
			continue
		}
		if len(fields) != len(t.Items) {
			return nil, fmt.Errorf("row %d has %d cells, header has %d", len(t.Rows)+1, len(fields), len(t.Items))
		}
		row := make([]float64, len(fields))
		for c, cell := range fields {
			if row[c], err = strconv.ParseFloat(cell, 64); err != nil {
				return nil, fmt.Errorf("invalid value %q at row %d: %w", cell, len(t.Rows)+1, err)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if sawComment && !sawDollar {
		return nil, fmt.Errorf("spreadsheet format error in %s: comment preamble without a '$' separator", name)
	}
	if !sawData {
		return nil, fmt.Errorf("no data found in %s", name)
	}
	return &t, nil
}
