// Copyright 2026 The avicap Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package colormap

import "math"

// IndexToYUVFunc converts a palette index to luma and chroma.
// Luma is in the range 0 to 1, chroma roughly -0.5 to 0.5.
type IndexToYUVFunc func(color byte, ntsc bool) (y, u, v float32)

// DisplayParameters color correction applied when building a colormap.
type DisplayParameters struct {
	Brightness float32 `yaml:"brightness"`
	Contrast   float32 `yaml:"contrast"`
	Gamma      float32 `yaml:"gamma"`
	HueShift   float32 `yaml:"hueShift"` // Degrees.
	Saturation float32 `yaml:"saturation"`

	RedBrightness   float32 `yaml:"redBrightness"`
	RedContrast     float32 `yaml:"redContrast"`
	RedGamma        float32 `yaml:"redGamma"`
	GreenBrightness float32 `yaml:"greenBrightness"`
	GreenContrast   float32 `yaml:"greenContrast"`
	GreenGamma      float32 `yaml:"greenGamma"`
	BlueBrightness  float32 `yaml:"blueBrightness"`
	BlueContrast    float32 `yaml:"blueContrast"`
	BlueGamma       float32 `yaml:"blueGamma"`

	// IndexToYUV defaults to ChipIndexToYUV.
	IndexToYUV IndexToYUVFunc `yaml:"-"`
}

// DefaultDisplayParameters returns neutral display parameters.
func DefaultDisplayParameters() DisplayParameters {
	return DisplayParameters{
		Contrast:      1,
		Gamma:         1,
		Saturation:    1,
		RedContrast:   1,
		RedGamma:      1,
		GreenContrast: 1,
		GreenGamma:    1,
		BlueContrast:  1,
		BlueGamma:     1,
		IndexToYUV:    ChipIndexToYUV,
	}
}

func orOne(v float32) float32 {
	if v == 0 {
		return 1
	}
	return v
}

// WithDefaults returns a copy where every zero contrast, gamma and
// saturation value is replaced by the neutral value 1. A negative
// saturation is clamped to 0 and gives a monochrome picture.
func (dp DisplayParameters) WithDefaults() DisplayParameters {
	out := dp
	out.Contrast = orOne(dp.Contrast)
	out.Gamma = orOne(dp.Gamma)
	out.Saturation = orOne(dp.Saturation)
	out.RedContrast = orOne(dp.RedContrast)
	out.RedGamma = orOne(dp.RedGamma)
	out.GreenContrast = orOne(dp.GreenContrast)
	out.GreenGamma = orOne(dp.GreenGamma)
	out.BlueContrast = orOne(dp.BlueContrast)
	out.BlueGamma = orOne(dp.BlueGamma)
	if out.IndexToYUV == nil {
		out.IndexToYUV = ChipIndexToYUV
	}
	return out
}

func clamp(v, min, max float32) float32 {
	if v > min {
		if v < max {
			return v
		}
		return max
	}
	return min
}

// Clamped returns a copy with every value limited to its valid range.
func (dp DisplayParameters) Clamped() DisplayParameters {
	out := dp
	out.Brightness = clamp(dp.Brightness, -0.5, 0.5)
	out.Contrast = clamp(dp.Contrast, 0.5, 2)
	out.Gamma = clamp(dp.Gamma, 0.25, 4)
	out.HueShift = clamp(dp.HueShift, -180, 180)
	out.Saturation = clamp(dp.Saturation, 0, 2)

	out.RedBrightness = clamp(dp.RedBrightness, -0.5, 0.5)
	out.RedContrast = clamp(dp.RedContrast, 0.5, 2)
	out.RedGamma = clamp(dp.RedGamma, 0.25, 4)
	out.GreenBrightness = clamp(dp.GreenBrightness, -0.5, 0.5)
	out.GreenContrast = clamp(dp.GreenContrast, 0.5, 2)
	out.GreenGamma = clamp(dp.GreenGamma, 0.25, 4)
	out.BlueBrightness = clamp(dp.BlueBrightness, -0.5, 0.5)
	out.BlueContrast = clamp(dp.BlueContrast, 0.5, 2)
	out.BlueGamma = clamp(dp.BlueGamma, 0.25, 4)

	if out.IndexToYUV == nil {
		out.IndexToYUV = ChipIndexToYUV
	}
	return out
}

// YUVToRGB converts to RGB and applies hue, saturation,
// contrast, brightness and gamma correction.
func (dp DisplayParameters) YUVToRGB(y, u, v float32) (r, g, b float32) {
	hueU := float32(math.Cos(float64(dp.HueShift) * 0.01745329252))
	hueV := float32(math.Sin(float64(dp.HueShift) * 0.01745329252))
	tmpU := ((u * hueU) - (v * hueV)) * dp.Saturation
	tmpV := ((v * hueU) + (u * hueV)) * dp.Saturation

	r = y + tmpV*float32(1.0/0.877)
	g = y + tmpU*float32(-0.114/(0.492*0.587)) + tmpV*float32(-0.299/(0.877*0.587))
	b = y + tmpU*float32(1.0/0.492)

	r = (r-0.5)*(dp.Contrast*dp.RedContrast) + 0.5
	g = (g-0.5)*(dp.Contrast*dp.GreenContrast) + 0.5
	b = (b-0.5)*(dp.Contrast*dp.BlueContrast) + 0.5
	r += dp.Brightness + dp.RedBrightness
	g += dp.Brightness + dp.GreenBrightness
	b += dp.Brightness + dp.BlueBrightness

	r = applyGamma(r, dp.Gamma*dp.RedGamma)
	g = applyGamma(g, dp.Gamma*dp.GreenGamma)
	b = applyGamma(b, dp.Gamma*dp.BlueGamma)
	return r, g, b
}

func applyGamma(c, gamma float32) float32 {
	if math.Abs(float64(gamma-1)) <= 0.01 {
		return c
	}
	if c < 0 {
		c = 0
	}
	return float32(math.Pow(float64(c), float64(1/gamma)))
}
