package schemes

import "fmt"

// Div is a convection scheme: the face value of the convected field comes
// from the interpolation, bounded schemes subtract div(flux)*field so the
// operator stays bounded while the flux is not yet conservative
type Div interface {
	Name() string
	Interpolation() Interpolation
	Bounded() bool
}

var Divs = NewRegistry[Div](KindDiv)

func init() {
	Divs.Register("Gauss", func(ts *Tokens) (Div, error) {
		interp, err := Interpolations.Parse(ts)
		if err != nil {
			return nil, err
		}
		return gaussDiv{interp: interp}, nil
	})
	Divs.Register("bounded", func(ts *Tokens) (Div, error) {
		d, err := Divs.Parse(ts)
		if err != nil {
			return nil, err
		}
		return boundedDiv{Div: d}, nil
	})
}

type gaussDiv struct {
	interp Interpolation
}

func (d gaussDiv) Name() string                 { return "Gauss " + d.interp.Name() }
func (d gaussDiv) Interpolation() Interpolation { return d.interp }
func (gaussDiv) Bounded() bool                  { return false }

type boundedDiv struct {
	Div
}

func (d boundedDiv) Name() string { return "bounded " + d.Div.Name() }
func (boundedDiv) Bounded() bool  { return true }

// Laplacian interpolates the diffusivity to the faces and multiplies it with
// the face normal gradient
type Laplacian interface {
	Name() string
	Interpolation() Interpolation
	SnGrad() SnGrad
}

var Laplacians = NewRegistry[Laplacian](KindLaplacian)

func init() {
	Laplacians.Register("Gauss", func(ts *Tokens) (Laplacian, error) {
		interp, err := Interpolations.Parse(ts)
		if err != nil {
			return nil, err
		}
		if interp.NeedsFlux() {
			return nil, fmt.Errorf("%w: diffusivity cannot use the flux dependent %s interpolation in %q",
				ErrSyntax, interp.Name(), ts)
		}
		sn, err := SnGrads.Parse(ts)
		if err != nil {
			return nil, err
		}
		return gaussLaplacian{interp: interp, snGrad: sn}, nil
	})
}

type gaussLaplacian struct {
	interp Interpolation
	snGrad SnGrad
}

func (l gaussLaplacian) Name() string {
	return "Gauss " + l.interp.Name() + " " + l.snGrad.Name()
}

func (l gaussLaplacian) Interpolation() Interpolation { return l.interp }
func (l gaussLaplacian) SnGrad() SnGrad               { return l.snGrad }
