package binrec

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pack appends values to buf in little-endian order following format.
func pack(t *testing.T, buf *bytes.Buffer, format string, values ...float64) {
	t.Helper()
	require.Len(t, values, len(format))
	for i := 0; i < len(format); i++ {
		var err error
		switch format[i] {
		case 'i':
			err = binary.Write(buf, binary.LittleEndian, int32(values[i]))
		case 'f':
			err = binary.Write(buf, binary.LittleEndian, float32(values[i]))
		case 'd':
			err = binary.Write(buf, binary.LittleEndian, values[i])
		default:
			t.Fatalf("bad test format char %q", format[i])
		}
		require.NoError(t, err)
	}
}

func TestRecordSize(t *testing.T) {
	type testCase struct {
		format  string
		want    int
		wantErr bool
	}
	cases := []testCase{
		{format: "ddd", want: 24},
		{format: "iffffdddd", want: 52},
		{format: "", wantErr: true},
		{format: "dx", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.format, func(t *testing.T) {
			got, err := RecordSize(tc.format)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestUniform(t *testing.T) {
	f, err := Uniform(4, 'd')
	require.NoError(t, err)
	assert.Equal(t, "dddd", f)

	_, err = Uniform(0, 'd')
	assert.Error(t, err)
	_, err = Uniform(3, 'x')
	assert.Error(t, err)
}

func TestReadUniform(t *testing.T) {
	var buf bytes.Buffer
	for v := 1.0; v <= 9.0; v++ {
		pack(t, &buf, "d", v)
	}

	format, err := Uniform(3, 'd')
	require.NoError(t, err)
	r, err := NewReader(&buf, format)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Columns())
	assert.Equal(t, 24, r.Size())

	rows, err := r.ReadAll(0)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []float64{1, 2, 3}, rows[0])
	assert.Equal(t, []float64{7, 8, 9}, rows[2])
}

func TestReadTruncated(t *testing.T) {
	var buf bytes.Buffer
	for v := 1.0; v <= 9.0; v++ {
		pack(t, &buf, "d", v)
	}

	r, err := NewReader(&buf, "ddd")
	require.NoError(t, err)
	rows, err := r.ReadAll(2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []float64{4, 5, 6}, rows[1])
}

func TestReadMixedFormat(t *testing.T) {
	var buf bytes.Buffer
	pack(t, &buf, "ifd", 7, 1.5, 2.25)
	pack(t, &buf, "ifd", -3, -0.5, 1e10)

	r, err := NewReader(&buf, "ifd")
	require.NoError(t, err)

	rec, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 1.5, 2.25}, rec)

	rec, err = r.Read()
	require.NoError(t, err)
	assert.Equal(t, -3.0, rec[0])
	assert.InDelta(t, -0.5, rec[1], 1e-7)
	assert.Equal(t, 1e10, rec[2])

	_, err = r.Read()
	assert.Equal(t, io.EOF, err)
}

func TestPartialTrailingRecordDiscarded(t *testing.T) {
	var buf bytes.Buffer
	pack(t, &buf, "dd", 1, 2)
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, 3.0)) // half a record

	r, err := NewReader(&buf, "dd")
	require.NoError(t, err)
	rows, err := r.ReadAll(0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestReadFile(t *testing.T) {
	var buf bytes.Buffer
	pack(t, &buf, "ff", float64(float32(math.Pi)), 2)

	name := filepath.Join(t.TempDir(), "test.bin")
	require.NoError(t, os.WriteFile(name, buf.Bytes(), 0o644))

	rows, err := ReadFile(name, "ff", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, math.Pi, rows[0][0], 1e-6)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.bin"), "ff", 0)
	assert.Error(t, err)
}
