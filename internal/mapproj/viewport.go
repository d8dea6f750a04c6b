package mapproj

import (
	"errors"
	"fmt"
)

// ScaleMethod selects how the visible window is sized from the available
// screen area.
type ScaleMethod string

const (
	// ConstantScale sizes the window from the screen area alone.
	ConstantScale ScaleMethod = "constantScale"
	// WithWidth pins the window width to the base map width / scale factor.
	WithWidth ScaleMethod = "withWidth"
	// WithHeight pins the window height to the base map height / scale factor.
	WithHeight ScaleMethod = "withHeight"
	// Fit pins whichever dimension keeps the base map letterboxed in the screen.
	Fit ScaleMethod = "fit"
)

// constantScaleMultiplier converts screen units to map units for ConstantScale.
const constantScaleMultiplier = 3

// ErrInvalidScaleMethod is returned for a scale method outside the known set.
var ErrInvalidScaleMethod = errors.New("invalid scale method")

// ParseScaleMethod validates a configured scale method name.
func ParseScaleMethod(s string) (ScaleMethod, error) {
	switch m := ScaleMethod(s); m {
	case ConstantScale, WithWidth, WithHeight, Fit:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidScaleMethod, s)
	}
}

// Options describe the view requested by a display.
type Options struct {
	ScaleFactor float64
	ScaleMethod ScaleMethod
	FocusLat    float64
	FocusLong   float64

	HideKey bool
	// KeyXMult and KeyYMult place the key inside the window: 0 is the
	// left/top edge, 1 the right/bottom edge.
	KeyXMult float64
	KeyYMult float64
	// KeySize is the key's size in screen units at scale factor 1.
	KeySize Size
}

// Legend is where the key is drawn inside the viewport.
type Legend struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	// Scale keeps the key the same size on screen at every zoom level.
	Scale float64 `json:"scale"`
}

// Viewport is the window of the base map to display.
type Viewport struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	// Legend is nil when the key is hidden.
	Legend *Legend `json:"legend,omitempty"`
}

// ViewBox formats the viewport as an SVG viewBox value.
func (v Viewport) ViewBox() string {
	return fmt.Sprintf("%v %v %v %v", v.X, v.Y, v.Width, v.Height)
}

// ComputeViewport centres a window on the focus point and sizes it according
// to the scale method. base is the full map size, available the screen area.
func ComputeViewport(opts Options, base, available Size) (Viewport, error) {
	size, err := Dimensions(base, opts.ScaleMethod, opts.ScaleFactor, available)
	if err != nil {
		return Viewport{}, err
	}

	focus := ProjectToMap(opts.FocusLat, opts.FocusLong, base)
	vp := Viewport{
		X:      focus.X - size.Width/2,
		Y:      focus.Y - size.Height/2,
		Width:  size.Width,
		Height: size.Height,
	}
	if !opts.HideKey {
		inv := 1 / opts.ScaleFactor
		vp.Legend = &Legend{
			X:     vp.X + (size.Width-opts.KeySize.Width*inv)*opts.KeyXMult,
			Y:     vp.Y + (size.Height-opts.KeySize.Height*inv)*opts.KeyYMult,
			Scale: inv,
		}
	}
	return vp, nil
}

// Dimensions returns the window size in map units for a scale method.
func Dimensions(base Size, method ScaleMethod, scaleFactor float64, available Size) (Size, error) {
	var out Size
	switch method {
	case ConstantScale:
		out.Width = available.Width / scaleFactor * constantScaleMultiplier
		out.Height = available.Height / scaleFactor * constantScaleMultiplier
	case WithWidth:
		out.Width = base.Width / scaleFactor
		out.Height = out.Width * available.Height / available.Width
	case WithHeight:
		out.Height = base.Height / scaleFactor
		out.Width = out.Height * available.Width / available.Height
	case Fit:
		if available.Width/base.Width < available.Height/base.Height {
			out.Width = base.Width / scaleFactor
			out.Height = out.Width * available.Height / available.Width
		} else {
			out.Height = base.Height / scaleFactor
			out.Width = out.Height * available.Width / available.Height
		}
	default:
		return Size{}, fmt.Errorf("%w: %q", ErrInvalidScaleMethod, string(method))
	}
	return out, nil
}
