package grid

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Grid holds the axes of a rectilinear grid.
type Grid struct {
	X, Y, Z []float64
}

// Counts returns the number of points along each axis.
func (g Grid) Counts() (nx, ny, nz int) {
	return len(g.X), len(g.Y), len(g.Z)
}

// Points returns the total number of grid points.
func (g Grid) Points() int {
	return len(g.X) * len(g.Y) * len(g.Z)
}

// ReadAxis reads one grid axis from a plain text file of whitespace-separated
// floating point values, one or more per line.
func ReadAxis(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var vals []float64
	sc := bufio.NewScanner(f)
	sc.Split(bufio.ScanWords)
	for sc.Scan() {
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q in %s: %w", sc.Text(), path, err)
		}
		vals = append(vals, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("axis file %s is empty", path)
	}
	return vals, nil
}

// ReadDir reads the grid axes from files named "x", "y", and "z" in dir.
func ReadDir(dir string) (Grid, error) {
	var (
		g   Grid
		err error
	)
	if g.X, err = ReadAxis(filepath.Join(dir, "x")); err != nil {
		return Grid{}, fmt.Errorf("unable to read x axis: %w", err)
	}
	if g.Y, err = ReadAxis(filepath.Join(dir, "y")); err != nil {
		return Grid{}, fmt.Errorf("unable to read y axis: %w", err)
	}
	if g.Z, err = ReadAxis(filepath.Join(dir, "z")); err != nil {
		return Grid{}, fmt.Errorf("unable to read z axis: %w", err)
	}
	return g, nil
}
