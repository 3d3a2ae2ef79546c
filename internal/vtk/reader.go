package vtk

import (
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/chenyongxin/mytools/internal/grid"
)

// Rectilinear holds the contents of a parsed .vtr file.
type Rectilinear struct {
	Grid      grid.Grid
	PointData []grid.Field
	CellData  []grid.Field
}

// PointField returns the named point field.
func (r *Rectilinear) PointField(name string) (grid.Field, error) {
	for _, f := range r.PointData {
		if f.Name == name {
			return f, nil
		}
	}
	return grid.Field{}, fmt.Errorf("no point field %q in file (have %v)", name, fieldNames(r.PointData))
}

func fieldNames(fields []grid.Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// dataArrayInfo captures the attributes of one <DataArray> header entry.
type dataArrayInfo struct {
	name    string
	dtype   string
	offset  int
	numComp int
}

const appendedMarker = `<AppendedData encoding="raw">`

// ReadRectilinear parses a .vtr file written with raw appended binary data,
// the inverse of WriteRectilinear.  Both Float32 and Float64 payload blocks
// are accepted.
func ReadRectilinear(path string) (*Rectilinear, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// The appended payload is arbitrary binary, so the file as a whole is
	// not well-formed XML.  Split at the AppendedData element and parse
	// only the header part with the XML decoder.
	markerAt := bytes.Index(raw, []byte(appendedMarker))
	if markerAt < 0 {
		return nil, fmt.Errorf("%s: no raw appended data section found", path)
	}
	underscoreAt := bytes.IndexByte(raw[markerAt:], '_')
	if underscoreAt < 0 {
		return nil, fmt.Errorf("%s: malformed appended data section", path)
	}
	header := raw[:markerAt]
	payload := raw[markerAt+underscoreAt+1:]

	var (
		coords    []dataArrayInfo
		pointData []dataArrayInfo
		cellData  []dataArrayInfo
		section   string
		isVTR     bool
	)
	dec := xml.NewDecoder(bytes.NewReader(header))
	for {
		tok, err := dec.Token()
		if err != nil {
			break // header is an unterminated XML fragment, EOF is expected
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "VTKFile":
				if attrValue(el, "type") != "RectilinearGrid" {
					return nil, fmt.Errorf("%s: not a rectilinear grid file (type=%q)", path, attrValue(el, "type"))
				}
				isVTR = true
			case "Coordinates", "PointData", "CellData":
				section = el.Name.Local
			case "DataArray":
				info, err := parseDataArray(el)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", path, err)
				}
				switch section {
				case "Coordinates":
					coords = append(coords, info)
				case "PointData":
					pointData = append(pointData, info)
				case "CellData":
					cellData = append(cellData, info)
				}
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "Coordinates", "PointData", "CellData":
				section = ""
			}
		}
	}
	if !isVTR {
		return nil, fmt.Errorf("%s: missing VTKFile element", path)
	}
	if len(coords) != 3 {
		return nil, fmt.Errorf("%s: expected 3 coordinate arrays, found %d", path, len(coords))
	}

	var out Rectilinear
	axes := make([][]float64, 3)
	for i, info := range coords {
		vals, err := decodeBlock(payload, info)
		if err != nil {
			return nil, fmt.Errorf("%s: coordinate %q: %w", path, info.name, err)
		}
		axes[i] = vals
	}
	out.Grid = grid.Grid{X: axes[0], Y: axes[1], Z: axes[2]}

	for _, info := range pointData {
		f, err := decodeField(payload, info)
		if err != nil {
			return nil, fmt.Errorf("%s: point field %q: %w", path, info.name, err)
		}
		out.PointData = append(out.PointData, f)
	}
	for _, info := range cellData {
		f, err := decodeField(payload, info)
		if err != nil {
			return nil, fmt.Errorf("%s: cell field %q: %w", path, info.name, err)
		}
		out.CellData = append(out.CellData, f)
	}
	return &out, nil
}

func attrValue(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func parseDataArray(el xml.StartElement) (dataArrayInfo, error) {
	info := dataArrayInfo{
		name:    attrValue(el, "Name"),
		dtype:   attrValue(el, "type"),
		numComp: 1,
	}
	if format := attrValue(el, "format"); format != "appended" {
		return info, fmt.Errorf("data array %q has unsupported format %q", info.name, format)
	}
	off, err := strconv.Atoi(attrValue(el, "offset"))
	if err != nil {
		return info, fmt.Errorf("data array %q has invalid offset: %w", info.name, err)
	}
	info.offset = off
	if nc := attrValue(el, "NumberOfComponents"); nc != "" {
		if info.numComp, err = strconv.Atoi(nc); err != nil || info.numComp < 1 {
			return info, fmt.Errorf("data array %q has invalid component count %q", info.name, nc)
		}
	}
	return info, nil
}

// decodeBlock reads one length-prefixed block from the payload region.
func decodeBlock(payload []byte, info dataArrayInfo) ([]float64, error) {
	var width int
	switch info.dtype {
	case "Float32":
		width = 4
	case "Float64":
		width = 8
	default:
		return nil, fmt.Errorf("unsupported data type %q", info.dtype)
	}
	if info.offset+4 > len(payload) {
		return nil, fmt.Errorf("offset %d out of range", info.offset)
	}
	nbytes := int(int32(binary.LittleEndian.Uint32(payload[info.offset:])))
	start := info.offset + 4
	if nbytes < 0 || start+nbytes > len(payload) {
		return nil, fmt.Errorf("block of %d bytes at offset %d out of range", nbytes, info.offset)
	}
	if nbytes%width != 0 {
		return nil, fmt.Errorf("block size %d is not a multiple of the %d-byte value width", nbytes, width)
	}

	vals := make([]float64, nbytes/width)
	for i := range vals {
		if width == 4 {
			vals[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[start+4*i:])))
		} else {
			vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(payload[start+8*i:]))
		}
	}
	return vals, nil
}

// decodeField decodes a block and de-interleaves its per-point component
// tuples into a Field.
func decodeField(payload []byte, info dataArrayInfo) (grid.Field, error) {
	vals, err := decodeBlock(payload, info)
	if err != nil {
		return grid.Field{}, err
	}
	if len(vals)%info.numComp != 0 {
		return grid.Field{}, fmt.Errorf("%d values do not divide into %d components", len(vals), info.numComp)
	}
	n := len(vals) / info.numComp
	f := grid.Field{Name: info.name, Comps: make([][]float64, info.numComp)}
	for c := range f.Comps {
		f.Comps[c] = make([]float64, n)
	}
	for p := 0; p < n; p++ {
		for c := 0; c < info.numComp; c++ {
			f.Comps[c][p] = vals[p*info.numComp+c]
		}
	}
	return f, nil
}
