// Package dimensions tags field values with their physical dimensions so that
// operators can reject physically meaningless combinations at setup time.
package dimensions

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/unit"
)

// Base dimension positions within a Set
const (
	Mass = iota
	Length
	Time
	Temperature
	Moles
	Current
	LuminousIntensity
	nDimensions
)

// Order of the base dimensions, mapped onto gonum's unit package
var baseDims = [nDimensions]unit.Dimension{
	unit.MassDim,
	unit.LengthDim,
	unit.TimeDim,
	unit.TemperatureDim,
	unit.MoleDim,
	unit.CurrentDim,
	unit.LuminousIntensityDim,
}

// Exponents closer than this are considered equal
const tolerance = 1.e-10

var (
	ErrMismatch = errors.New("dimensions: mismatched dimensions")
	ErrSyntax   = errors.New("dimensions: invalid dimension set")
)

// Checking switches dimension checking on and off for the whole process
var Checking = true

// Set holds the exponents of the seven base dimensions. Exponents are
// float64 so rational powers such as sqrt(m) can be represented.
type Set [nDimensions]float64

var (
	Dimensionless  = Set{}
	DimMass        = Set{Mass: 1}
	DimLength      = Set{Length: 1}
	DimTime        = Set{Time: 1}
	DimTemperature = Set{Temperature: 1}
	DimArea        = Set{Length: 2}
	DimVolume      = Set{Length: 3}
	DimVelocity    = Set{Length: 1, Time: -1}
	DimDensity     = Set{Mass: 1, Length: -3}
	DimVolFlux     = Set{Length: 3, Time: -1}
	DimKinVisc     = Set{Length: 2, Time: -1}
)

// FromUnit builds a Set from any gonum dimensioned quantity, e.g.
// FromUnit(unit.Length(1)) or FromUnit(unit.New(1, unit.Dimensions{...}))
func FromUnit(u unit.Uniter) (s Set, err error) {
	for d, power := range u.Unit().Dimensions() {
		idx := -1
		for i, bd := range baseDims {
			if bd == d {
				idx = i
				break
			}
		}
		if idx < 0 {
			err = fmt.Errorf("%w: dimension %v has no finite-volume equivalent", ErrSyntax, d)
			return
		}
		s[idx] = float64(power)
	}
	return
}

func (s Set) Mul(o Set) (r Set) {
	for i := range s {
		r[i] = s[i] + o[i]
	}
	return
}

func (s Set) Div(o Set) (r Set) {
	for i := range s {
		r[i] = s[i] - o[i]
	}
	return
}

func (s Set) Pow(p float64) (r Set) {
	for i := range s {
		r[i] = p * s[i]
	}
	return
}

func (s Set) Equal(o Set) bool {
	for i := range s {
		if math.Abs(s[i]-o[i]) > tolerance {
			return false
		}
	}
	return true
}

func (s Set) Dimensionless() bool { return s.Equal(Dimensionless) }

// Check returns an error wrapping ErrMismatch that names both operands when
// the sets differ and checking is enabled
func Check(op, lhsName string, lhs Set, rhsName string, rhs Set) error {
	if !Checking || lhs.Equal(rhs) {
		return nil
	}
	return fmt.Errorf("%w for operation %s: %s %v and %s %v",
		ErrMismatch, op, lhsName, lhs, rhsName, rhs)
}

// String formats the set as "[0 1 -1 0 0 0 0]"
func (s Set) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, e := range s {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatFloat(e, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}

// Symbol formats the set with SI symbols, e.g. "m s^-1"
func (s Set) Symbol() string {
	var parts []string
	for i, e := range s {
		switch {
		case e == 0:
			continue
		case e == 1:
			parts = append(parts, baseDims[i].String())
		default:
			parts = append(parts, baseDims[i].String()+"^"+strconv.FormatFloat(e, 'g', -1, 64))
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

// Parse reads the format produced by String. Fewer than seven exponents are
// accepted, missing trailing exponents are zero.
func Parse(str string) (s Set, err error) {
	var (
		trimmed = strings.TrimSpace(str)
	)
	if !strings.HasPrefix(trimmed, "[") || !strings.HasSuffix(trimmed, "]") {
		err = fmt.Errorf("%w: %q is not bracketed", ErrSyntax, str)
		return
	}
	fields := strings.Fields(trimmed[1 : len(trimmed)-1])
	if len(fields) > nDimensions {
		err = fmt.Errorf("%w: %q has %d exponents, at most %d allowed",
			ErrSyntax, str, len(fields), nDimensions)
		return
	}
	for i, f := range fields {
		if s[i], err = strconv.ParseFloat(f, 64); err != nil {
			err = fmt.Errorf("%w: %q: %v", ErrSyntax, str, err)
			return
		}
	}
	return
}

// FromSlice converts an exponent list (as read from YAML) into a Set
func FromSlice(exps []float64) (s Set, err error) {
	if len(exps) > nDimensions {
		err = fmt.Errorf("%w: %d exponents, at most %d allowed", ErrSyntax, len(exps), nDimensions)
		return
	}
	copy(s[:], exps)
	return
}
