package fields

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/ghodss/yaml"

	"github.com/notargets/fvcore/dimensions"
	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/types"
)

type Format uint8

const (
	Text   Format = iota // YAML
	Binary               // magic, YAML header, little endian float64 cell values
)

func (f Format) String() string {
	if f == Binary {
		return "binary"
	}
	return "text"
}

// ParseFormat accepts "text" (or "ascii") and "binary"
func ParseFormat(s string) (Format, error) {
	switch s {
	case "text", "ascii", "":
		return Text, nil
	case "binary":
		return Binary, nil
	}
	return Text, fmt.Errorf("unknown field format %q, valid formats are: text, binary", s)
}

var binaryMagic = [4]byte{'F', 'V', 'C', 'F'}

const binaryVersion uint32 = 1

type fieldFile struct {
	Name       string          `json:"name"`
	Class      string          `json:"class"`
	Dimensions string          `json:"dimensions"`
	Time       float64         `json:"time"`
	Internal   any             `json:"internalField,omitempty"`
	Boundary   map[string]Dict `json:"boundaryField"`
}

func header[T types.Value[T]](f *VolField[T]) *fieldFile {
	ff := &fieldFile{
		Name:       f.name,
		Class:      types.Zero[T]().TypeName(),
		Dimensions: f.dims.String(),
		Time:       f.mesh.Time().Value,
		Boundary:   make(map[string]Dict, len(f.boundary)),
	}
	for _, pf := range f.boundary {
		ff.Boundary[pf.Patch().Name] = pf.Dict()
	}
	return ff
}

// WriteVolField writes the cell values, dimensions and boundary conditions
// of f. Values are written with the shortest representation that reads back
// to the same float64.
func WriteVolField[T types.Value[T]](w io.Writer, f *VolField[T], format Format) (err error) {
	ff := header(f)
	if format == Text {
		ff.Internal = EncodeValues(f.internal)
		var data []byte
		if data, err = yaml.Marshal(ff); err != nil {
			return
		}
		_, err = w.Write(data)
		return
	}
	var hdr []byte
	if hdr, err = yaml.Marshal(ff); err != nil {
		return
	}
	flat := types.Flatten(f.internal)
	for _, v := range []any{binaryMagic, binaryVersion, uint32(len(hdr))} {
		if err = binary.Write(w, binary.LittleEndian, v); err != nil {
			return
		}
	}
	if _, err = w.Write(hdr); err != nil {
		return
	}
	if err = binary.Write(w, binary.LittleEndian, uint64(len(flat))); err != nil {
		return
	}
	return binary.Write(w, binary.LittleEndian, flat)
}

// ReadVolField reads a field written by WriteVolField in either format. The
// boundary conditions are created but not evaluated.
func ReadVolField[T types.Value[T]](r io.Reader, m *mesh.Mesh) (f *VolField[T], err error) {
	var (
		br    = bufio.NewReader(r)
		ff    fieldFile
		cells []T
	)
	magic, _ := br.Peek(len(binaryMagic))
	if bytes.Equal(magic, binaryMagic[:]) {
		if cells, err = readBinary[T](br, &ff); err != nil {
			return
		}
	} else {
		var data []byte
		if data, err = io.ReadAll(br); err != nil {
			return
		}
		if err = yaml.Unmarshal(data, &ff); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		if ff.Internal == nil {
			return nil, fmt.Errorf("%w: field %s has no internalField", ErrFormat, ff.Name)
		}
		if cells, err = DecodeValues[T](ff.Internal, m.NCells()); err != nil {
			return nil, fmt.Errorf("%w: field %s internalField: %v", ErrFormat, ff.Name, err)
		}
	}
	if tn := types.Zero[T]().TypeName(); ff.Class != tn {
		return nil, fmt.Errorf("%w: field %s holds %s values, reading %s", ErrFormat, ff.Name, ff.Class, tn)
	}
	var dims dimensions.Set
	if dims, err = dimensions.Parse(ff.Dimensions); err != nil {
		return nil, fmt.Errorf("%w: field %s: %v", ErrFormat, ff.Name, err)
	}
	return New(ff.Name, m, dims, cells, ff.Boundary)
}

func readBinary[T types.Value[T]](r io.Reader, ff *fieldFile) (cells []T, err error) {
	var (
		magic   [4]byte
		version uint32
		hdrLen  uint32
		n       uint64
	)
	for _, v := range []any{&magic, &version, &hdrLen} {
		if err = binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
	}
	if version != binaryVersion {
		return nil, fmt.Errorf("%w: binary version %d, expected %d", ErrFormat, version, binaryVersion)
	}
	hdr := make([]byte, hdrLen)
	if _, err = io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrFormat, err)
	}
	if err = yaml.Unmarshal(hdr, ff); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrFormat, err)
	}
	if err = binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if n%uint64(types.NComponents[T]()) != 0 {
		return nil, fmt.Errorf("%w: %d components do not make whole %s values", ErrFormat, n, ff.Class)
	}
	flat := make([]float64, n)
	if err = binary.Read(r, binary.LittleEndian, flat); err != nil {
		return nil, fmt.Errorf("%w: cell values: %v", ErrFormat, err)
	}
	return types.Unflatten[T](flat), nil
}

func WriteVolFieldFile[T types.Value[T]](path string, f *VolField[T], format Format) (err error) {
	var file *os.File
	if file, err = os.Create(path); err != nil {
		return
	}
	w := bufio.NewWriter(file)
	if err = WriteVolField(w, f, format); err != nil {
		file.Close()
		return
	}
	if err = w.Flush(); err != nil {
		file.Close()
		return
	}
	return file.Close()
}

func ReadVolFieldFile[T types.Value[T]](path string, m *mesh.Mesh) (*VolField[T], error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadVolField[T](file, m)
}
