package schemes

import (
	"errors"
	"fmt"
	"sort"
)

// Section maps term keys such as "div(phi,U)" to scheme specifications. The
// "default" entry applies to unlisted terms, a default of "none" disables
// it.
type Section map[string]string

// Dictionary is the scheme configuration of a case
type Dictionary struct {
	Ddt           Section `json:"ddtSchemes"`
	Grad          Section `json:"gradSchemes"`
	Div           Section `json:"divSchemes"`
	SnGrad        Section `json:"snGradSchemes"`
	Laplacian     Section `json:"laplacianSchemes"`
	Interpolation Section `json:"interpolationSchemes"`
}

// DefaultDictionary is a second order setup for well behaved meshes
func DefaultDictionary() Dictionary {
	return Dictionary{
		Ddt:           Section{"default": "Euler"},
		Grad:          Section{"default": "Gauss linear"},
		Div:           Section{"default": "Gauss linear"},
		SnGrad:        Section{"default": "corrected"},
		Laplacian:     Section{"default": "Gauss linear corrected"},
		Interpolation: Section{"default": "linear"},
	}
}

func (d Dictionary) sections() []struct {
	kind    Kind
	section Section
} {
	return []struct {
		kind    Kind
		section Section
	}{
		{KindDdt, d.Ddt},
		{KindGrad, d.Grad},
		{KindDiv, d.Div},
		{KindSnGrad, d.SnGrad},
		{KindLaplacian, d.Laplacian},
		{KindInterpolation, d.Interpolation},
	}
}

// Schemes resolves the scheme of every operator term of a case. It also
// owns the geometric cache the schemes share.
type Schemes struct {
	dict  Dictionary
	Cache *Cache
}

// New validates every entry of d by constructing its scheme, so that an
// unknown name fails before any evaluation
func New(d Dictionary) (s *Schemes, err error) {
	for _, sec := range d.sections() {
		keys := make([]string, 0, len(sec.section))
		for k := range sec.section {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			spec := sec.section[key]
			if key == "default" && spec == "none" {
				continue
			}
			if err = validate(sec.kind, key, spec); err != nil {
				return nil, err
			}
		}
	}
	return &Schemes{dict: d, Cache: NewCache()}, nil
}

func validate(kind Kind, key, spec string) (err error) {
	switch kind {
	case KindDdt:
		_, err = Ddts.New(spec)
	case KindGrad:
		_, err = Grads.New(spec)
	case KindDiv:
		_, err = Divs.New(spec)
	case KindSnGrad:
		_, err = SnGrads.New(spec)
	case KindLaplacian:
		_, err = Laplacians.New(spec)
	case KindInterpolation:
		_, err = Interpolations.New(spec)
	}
	return withKey(err, kind, key)
}

func withKey(err error, kind Kind, key string) error {
	if err == nil {
		return nil
	}
	var use *UnknownSchemeError
	if errors.As(err, &use) {
		use.Key = key
		return err
	}
	return fmt.Errorf("%s scheme for %s: %w", kind, key, err)
}

func (s *Schemes) Dictionary() Dictionary { return s.dict }

// spec finds the entry for key, falling back to the default
func spec(sec Section, kind Kind, key string) (string, error) {
	if v, ok := sec[key]; ok {
		return v, nil
	}
	if v, ok := sec["default"]; ok && v != "none" {
		return v, nil
	}
	return "", fmt.Errorf("%w: no %s scheme for %s and no default", ErrNoScheme, kind, key)
}

func resolve[C any](r *Registry[C], sec Section, key string) (c C, err error) {
	var (
		str string
	)
	if str, err = spec(sec, r.Kind(), key); err != nil {
		return
	}
	c, err = r.New(str)
	err = withKey(err, r.Kind(), key)
	return
}

func (s *Schemes) Ddt(key string) (Ddt, error)       { return resolve(Ddts, s.dict.Ddt, key) }
func (s *Schemes) Grad(key string) (Grad, error)     { return resolve(Grads, s.dict.Grad, key) }
func (s *Schemes) Div(key string) (Div, error)       { return resolve(Divs, s.dict.Div, key) }
func (s *Schemes) SnGrad(key string) (SnGrad, error) { return resolve(SnGrads, s.dict.SnGrad, key) }

func (s *Schemes) Laplacian(key string) (Laplacian, error) {
	return resolve(Laplacians, s.dict.Laplacian, key)
}

func (s *Schemes) Interpolation(key string) (Interpolation, error) {
	return resolve(Interpolations, s.dict.Interpolation, key)
}
