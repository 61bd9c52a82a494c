// Package schemes holds the numerical schemes of the finite volume operators
// and the registries that resolve them from their configuration strings,
// such as "Gauss linear corrected" or "bounded Gauss limitedLinear 1".
package schemes

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind is the operator a scheme discretises
type Kind string

const (
	KindDdt           Kind = "ddt"
	KindGrad          Kind = "grad"
	KindDiv           Kind = "div"
	KindSnGrad        Kind = "snGrad"
	KindLaplacian     Kind = "laplacian"
	KindInterpolation Kind = "interpolation"
)

var (
	ErrUnknownScheme = errors.New("unknown scheme")
	ErrSyntax        = errors.New("malformed scheme specification")
	ErrNoScheme      = errors.New("no scheme configured")
)

// UnknownSchemeError names the token that did not resolve and the schemes
// that would have
type UnknownSchemeError struct {
	Kind  Kind
	Token string
	Key   string // term being resolved, e.g. div(phi,U)
	Valid []string
}

func (e *UnknownSchemeError) Error() string {
	var (
		key string
	)
	if e.Key != "" {
		key = " for " + e.Key
	}
	return fmt.Sprintf("unknown %s scheme %q%s, valid %s schemes are: %s",
		e.Kind, e.Token, key, e.Kind, strings.Join(e.Valid, ", "))
}

func (e *UnknownSchemeError) Unwrap() error { return ErrUnknownScheme }

// Tokens is the word stream of a scheme specification. Composite schemes
// read their arguments from the same stream.
type Tokens struct {
	src  string
	toks []string
	pos  int
}

func Tokenize(spec string) *Tokens {
	return &Tokens{src: spec, toks: strings.Fields(spec)}
}

func (ts *Tokens) Next() (string, error) {
	if ts.pos >= len(ts.toks) {
		return "", fmt.Errorf("%w: %q ends early", ErrSyntax, ts.src)
	}
	ts.pos++
	return ts.toks[ts.pos-1], nil
}

func (ts *Tokens) Peek() (string, bool) {
	if ts.pos >= len(ts.toks) {
		return "", false
	}
	return ts.toks[ts.pos], true
}

// Float reads a numeric coefficient
func (ts *Tokens) Float() (v float64, err error) {
	var (
		tok string
	)
	if tok, err = ts.Next(); err != nil {
		return
	}
	if v, err = strconv.ParseFloat(tok, 64); err != nil {
		return 0, fmt.Errorf("%w: %q in %q is not a number", ErrSyntax, tok, ts.src)
	}
	return
}

// Coefficient reads a number in [0,1]
func (ts *Tokens) Coefficient(name string) (v float64, err error) {
	if v, err = ts.Float(); err != nil {
		return
	}
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("%w: %s coefficient %g in %q must lie in [0,1]", ErrSyntax, name, v, ts.src)
	}
	return
}

func (ts *Tokens) Done() bool { return ts.pos >= len(ts.toks) }

func (ts *Tokens) String() string { return ts.src }

// Constructor parses the arguments of a scheme, the scheme name itself has
// already been consumed. Constructors never touch a mesh.
type Constructor[C any] func(ts *Tokens) (C, error)

// Registry maps scheme names to constructors for one operator kind. It is
// filled during init and only read afterwards.
type Registry[C any] struct {
	kind  Kind
	ctors map[string]Constructor[C]
}

var registries = make(map[Kind]interface{ Names() []string })

func NewRegistry[C any](kind Kind) *Registry[C] {
	r := &Registry[C]{kind: kind, ctors: make(map[string]Constructor[C])}
	registries[kind] = r
	return r
}

func (r *Registry[C]) Kind() Kind { return r.kind }

func (r *Registry[C]) Register(name string, c Constructor[C]) {
	if _, present := r.ctors[name]; present {
		panic(fmt.Errorf("%s scheme %s registered twice", r.kind, name))
	}
	r.ctors[name] = c
}

func (r *Registry[C]) Lookup(name string) (Constructor[C], error) {
	c, ok := r.ctors[name]
	if !ok {
		return nil, &UnknownSchemeError{Kind: r.kind, Token: name, Valid: r.Names()}
	}
	return c, nil
}

func (r *Registry[C]) Names() (names []string) {
	for name := range r.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

// Parse reads a scheme name and its arguments from ts
func (r *Registry[C]) Parse(ts *Tokens) (s C, err error) {
	var (
		name string
		c    Constructor[C]
	)
	if name, err = ts.Next(); err != nil {
		return
	}
	if c, err = r.Lookup(name); err != nil {
		return
	}
	return c(ts)
}

// New resolves a complete scheme specification
func (r *Registry[C]) New(spec string) (s C, err error) {
	ts := Tokenize(spec)
	if s, err = r.Parse(ts); err != nil {
		return
	}
	if !ts.Done() {
		tok, _ := ts.Peek()
		return s, fmt.Errorf("%w: unexpected %q after %s scheme in %q", ErrSyntax, tok, r.kind, spec)
	}
	return
}

// Kinds lists the operator kinds that have a registry
func Kinds() (kinds []Kind) {
	for k := range registries {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return
}

// Names lists the schemes registered for kind
func Names(kind Kind) []string {
	if r, ok := registries[kind]; ok {
		return r.Names()
	}
	return nil
}

// Lookup reports whether name is a registered scheme of kind
func Lookup(kind Kind, name string) error {
	for _, n := range Names(kind) {
		if n == name {
			return nil
		}
	}
	return &UnknownSchemeError{Kind: kind, Token: name, Valid: Names(kind)}
}
