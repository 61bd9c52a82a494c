package fields

import (
	"fmt"
	"sort"

	"github.com/notargets/fvcore/types"
)

// Dict is the parameter dictionary of one boundary condition, as decoded
// from YAML: numbers are float64 and lists are []any
type Dict map[string]any

func (d Dict) Type() string {
	s, _ := d["type"].(string)
	return s
}

// Keys returns the sorted keys of d
func (d Dict) Keys() (keys []string) {
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return
}

// EncodeValues renders a list of values the way DecodeValues reads them: a
// single value when all entries are equal, otherwise one entry per item.
// Scalars are plain numbers, other types are lists of components.
func EncodeValues[T types.Value[T]](vals []T) any {
	uniform := len(vals) > 0
	for i := 1; i < len(vals) && uniform; i++ {
		for c := 0; c < vals[0].NComponents(); c++ {
			if vals[i].Component(c) != vals[0].Component(c) {
				uniform = false
				break
			}
		}
	}
	if uniform {
		return encodeValue(vals[0])
	}
	list := make([]any, len(vals))
	for i, v := range vals {
		list[i] = encodeValue(v)
	}
	return list
}

func encodeValue[T types.Value[T]](v T) any {
	if v.NComponents() == 1 {
		return v.Component(0)
	}
	cmpts := make([]float64, v.NComponents())
	for c := range cmpts {
		cmpts[c] = v.Component(c)
	}
	return cmpts
}

// DecodeValues expands a uniform value or a per item list into n values
func DecodeValues[T types.Value[T]](raw any, n int) (vals []T, err error) {
	var (
		ncmpt = types.NComponents[T]()
	)
	if v, ok := decodeValue[T](raw); ok {
		vals = make([]T, n)
		for i := range vals {
			vals[i] = v
		}
		return
	}
	list, ok := raw.([]any)
	if !ok {
		if fl, isFloats := raw.([]float64); isFloats && ncmpt == 1 {
			list = make([]any, len(fl))
			for i, f := range fl {
				list[i] = f
			}
		} else {
			return nil, fmt.Errorf("cannot read %T as %s values", raw, types.Zero[T]().TypeName())
		}
	}
	if len(list) != n {
		return nil, fmt.Errorf("have %d %s values, need %d", len(list), types.Zero[T]().TypeName(), n)
	}
	vals = make([]T, n)
	for i, item := range list {
		if vals[i], ok = decodeValue[T](item); !ok {
			return nil, fmt.Errorf("item %d: cannot read %v as %s", i, item, types.Zero[T]().TypeName())
		}
	}
	return
}

func decodeValue[T types.Value[T]](raw any) (v T, ok bool) {
	var (
		ncmpt = v.NComponents()
	)
	switch r := raw.(type) {
	case float64:
		if ncmpt == 1 {
			return v.WithComponent(0, r), true
		}
	case int:
		if ncmpt == 1 {
			return v.WithComponent(0, float64(r)), true
		}
	case []float64:
		if len(r) == ncmpt && ncmpt > 1 {
			for c, x := range r {
				v = v.WithComponent(c, x)
			}
			return v, true
		}
	case []any:
		if len(r) != ncmpt || ncmpt == 1 {
			return
		}
		for c, x := range r {
			f, isNum := toFloat(x)
			if !isNum {
				return v, false
			}
			v = v.WithComponent(c, f)
		}
		return v, true
	}
	return
}

func toFloat(x any) (float64, bool) {
	switch f := x.(type) {
	case float64:
		return f, true
	case int:
		return float64(f), true
	}
	return 0, false
}

// EncodeFloats and DecodeFloats handle per face scalar coefficients such as
// mixed value fractions
func EncodeFloats(vals []float64) any {
	return EncodeValues(types.Scalars(vals))
}

func DecodeFloats(raw any, n int) ([]float64, error) {
	s, err := DecodeValues[types.Scalar](raw, n)
	if err != nil {
		return nil, err
	}
	return types.Float64s(s), nil
}
