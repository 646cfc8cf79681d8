// Package visualization renders scan slices to images.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"furnacewear/internal/models"
	"furnacewear/pkg/colormap"
)

// Options controls how slices are drawn.
type Options struct {
	// Width and Height of every slice image in pixels
	Width  int
	Height int

	// PointSize is the side of the square drawn per point, in pixels
	PointSize int

	UseGlobal bool
	Global    colormap.GlobalRange
	Band      colormap.WearBand
}

// DefaultOptions returns 512x512 images with 3 pixel points.
func DefaultOptions() Options {
	return Options{Width: 512, Height: 512, PointSize: 3, Band: colormap.BandAll}
}

var background = color.NRGBA{R: 16, G: 16, B: 16, A: 255}

// Viewer slices one parsed scan along an axis and draws each slice
// colored by thickness.
//
//   - axis "x" selects a profile and projects it onto the z/y plane
//   - axis "y" selects a zone and projects it onto the x/z plane
//   - axis "z" selects one of ProfileCount depth bands and projects it onto the x/y plane
type Viewer struct {
	file *models.ParsedFile
	opts Options

	// lo and hi bound the scan in every dimension
	lo, hi [3]float64
}

// NewViewer creates a viewer for file.
func NewViewer(file *models.ParsedFile, opts Options) *Viewer {
	def := DefaultOptions()
	if opts.Width <= 0 {
		opts.Width = def.Width
	}
	if opts.Height <= 0 {
		opts.Height = def.Height
	}
	if opts.PointSize <= 0 {
		opts.PointSize = def.PointSize
	}
	if opts.Band == "" {
		opts.Band = colormap.BandAll
	}

	v := &Viewer{file: file, opts: opts}
	for d := 0; d < 3; d++ {
		v.lo[d], v.hi[d] = math.Inf(1), math.Inf(-1)
	}
	for _, p := range file.Points {
		for d := 0; d < 3; d++ {
			v.lo[d] = math.Min(v.lo[d], p.Position[d])
			v.hi[d] = math.Max(v.hi[d], p.Position[d])
		}
	}
	return v
}

// sliceCount returns how many positions an axis has.
func sliceCount(axis string) (int, error) {
	switch strings.ToLower(axis) {
	case "x", "z":
		return models.ProfileCount, nil
	case "y":
		return len(models.Zones), nil
	default:
		return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
}

// member reports whether p lies in the slice and returns its plane axes.
func (v *Viewer) member(axis string, position int, p models.SamplePoint) (bool, int, int) {
	switch strings.ToLower(axis) {
	case "x":
		return p.ProfileIndex == position, 2, 1
	case "y":
		return p.Zone == models.Zones[position], 0, 2
	default:
		span := v.hi[2] - v.lo[2]
		band := 0
		if span > 0 {
			band = int((p.Position[2] - v.lo[2]) / span * models.ProfileCount)
		}
		if band >= models.ProfileCount {
			band = models.ProfileCount - 1
		}
		return band == position, 0, 1
	}
}

// ExtractSlice draws the points of one slice. Vertical plane axes grow
// upwards in the image.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	n, err := sliceCount(axis)
	if err != nil {
		return nil, err
	}
	if position >= n {
		return nil, fmt.Errorf("position %d exceeds %d slices along %s", position, n, axis)
	}

	w, h := v.opts.Width, v.opts.Height
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = background.R, background.G, background.B, background.A
	}

	for _, p := range v.file.Points {
		in, u, vv := v.member(axis, position, p)
		if !in {
			continue
		}
		c, ok := colormap.ColorFor(p.Thickness, v.file.MinThickness, v.file.MaxThickness,
			v.opts.UseGlobal, v.opts.Global, v.opts.Band)
		if !ok {
			continue
		}
		px := scaleTo(p.Position[u], v.lo[u], v.hi[u], w)
		py := h - 1 - scaleTo(p.Position[vv], v.lo[vv], v.hi[vv], h)
		v.plot(img, px, py, c.NRGBA())
	}
	return img, nil
}

func scaleTo(value, lo, hi float64, size int) int {
	if hi <= lo {
		return size / 2
	}
	i := int((value - lo) / (hi - lo) * float64(size-1))
	return max(0, min(size-1, i))
}

func (v *Viewer) plot(img *image.NRGBA, x, y int, c color.NRGBA) {
	half := v.opts.PointSize / 2
	for dy := -half; dy < v.opts.PointSize-half; dy++ {
		for dx := -half; dx < v.opts.PointSize-half; dx++ {
			if image.Pt(x+dx, y+dy).In(img.Rect) {
				img.SetNRGBA(x+dx, y+dy, c)
			}
		}
	}
}

// ExtractRegion returns the points inside an axis-aligned box, in input order.
func (v *Viewer) ExtractRegion(lo, hi [3]float64) ([]models.SamplePoint, error) {
	for d := 0; d < 3; d++ {
		if lo[d] > hi[d] {
			return nil, fmt.Errorf("region minimum exceeds maximum on axis %d", d)
		}
	}
	var region []models.SamplePoint
	for _, p := range v.file.Points {
		inside := true
		for d := 0; d < 3; d++ {
			if p.Position[d] < lo[d] || p.Position[d] > hi[d] {
				inside = false
				break
			}
		}
		if inside {
			region = append(region, p)
		}
	}
	return region, nil
}

// SaveSlice saves an extracted slice as a PNG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// SaveSliceSequence extracts and saves every slice along the specified axis,
// returning the number of images written
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) (int, error) {
	n, err := sliceCount(axis)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, err
	}

	base := strings.TrimSuffix(filepath.Base(v.file.Name), filepath.Ext(v.file.Name))
	for pos := 0; pos < n; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return pos, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("%s_slice_%s_%03d.png", base, strings.ToLower(axis), pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return pos, err
		}
	}
	return n, nil
}
