package render

import (
	"bytes"
	"image"
	"image/png"
	"sync"

	"github.com/slicepaint/slicepaint/internal/paint"
	"github.com/slicepaint/slicepaint/pkg/labels"
)

// Rasterizer replays a stroke journal into a mask raster and encodes it. Used
// by the backend to build authoritative snapshots; pixels never painted stay
// fully transparent, which is how clients detect "no data".
type Rasterizer struct {
	bufferPool sync.Pool
}

// NewRasterizer creates a rasterizer with a reusable encode buffer pool.
func NewRasterizer() *Rasterizer {
	return &Rasterizer{
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 32*1024))
			},
		},
	}
}

// Rasterize replays strokes in journal order onto a w x h mask. Each stroke
// fills a centered square with half-extent size/2 (floored); erase strokes
// reset the covered pixels to transparent.
func (r *Rasterizer) Rasterize(w, h int, strokes []paint.Stroke, table *labels.Table) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for _, s := range strokes {
		half := s.Size / 2
		x0, x1 := clampRange(s.X-half, s.X+half, w)
		y0, y1 := clampRange(s.Y-half, s.Y+half, h)

		c := table.Color(s.Label, 255)
		for y := y0; y <= y1; y++ {
			row := img.PixOffset(x0, y)
			for x := x0; x <= x1; x++ {
				if s.Erase {
					img.Pix[row] = 0
					img.Pix[row+1] = 0
					img.Pix[row+2] = 0
					img.Pix[row+3] = 0
				} else {
					img.Pix[row] = c.R
					img.Pix[row+1] = c.G
					img.Pix[row+2] = c.B
					img.Pix[row+3] = c.A
				}
				row += 4
			}
		}
	}
	return img
}

// EncodePNG encodes a mask with the fast PNG encoder.
func (r *Rasterizer) EncodePNG(img image.Image) ([]byte, error) {
	buf := r.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		r.bufferPool.Put(buf)
	}()

	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, img); err != nil {
		return nil, err
	}

	// Copy out; the buffer is reused.
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// TransparentSnapshot encodes a fully transparent w x h mask.
func (r *Rasterizer) TransparentSnapshot(w, h int) ([]byte, error) {
	return r.EncodePNG(image.NewNRGBA(image.Rect(0, 0, w, h)))
}

func clampRange(lo, hi, n int) (int, int) {
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	return lo, hi
}
