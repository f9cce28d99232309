// Package main is the SlicePaint desktop viewer.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"math"
	"os"
	"path/filepath"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/slicepaint/slicepaint/internal/client"
	"github.com/slicepaint/slicepaint/internal/paint"
	"github.com/slicepaint/slicepaint/internal/session"
	"github.com/slicepaint/slicepaint/internal/ui"
	"github.com/slicepaint/slicepaint/internal/window"
	"github.com/slicepaint/slicepaint/pkg/labels"
)

func main() {
	backendURL := flag.String("backend", "http://localhost:8080", "Mask backend base URL")
	segID := flag.String("segmentation", "", "Segmentation ID to open")
	volumeDir := flag.String("volume", "", "Directory of per-slice PNGs (slice_000.png, ...)")
	imgW := flag.Int("width", 256, "Slice width in voxels")
	imgH := flag.Int("height", 256, "Slice height in voxels")
	slices := flag.Int("slices", 64, "Slice count")
	flag.Parse()

	if *segID == "" {
		log.Fatal("a -segmentation ID is required")
	}

	backend := client.New(*backendURL)

	tbl := labels.NewTable()
	tbl.Add("label 1")

	a := app.New()
	w := a.NewWindow("SlicePaint")

	sess := session.New(session.Config{
		Fetcher:   backend,
		Submitter: backend,
		Labels:    tbl,
		SurfaceW:  512,
		SurfaceH:  512,
	})
	defer sess.Close()

	surface := ui.NewPaintSurface(sess)
	sess.SetSegmentation(*segID, *imgW, *imgH)
	sess.SetBrush(paint.Brush{Label: 1, Size: 3})
	sess.SetEnabled(true)
	sess.SetBaseImage(loadBase(*volumeDir, 0, *imgW, *imgH))

	sliceSlider := widget.NewSlider(0, float64(*slices-1))
	sliceSlider.Step = 1
	sliceLabel := widget.NewLabel("Slice 0")
	sliceSlider.OnChanged = func(v float64) {
		idx := int(v)
		sliceLabel.SetText(fmt.Sprintf("Slice %d", idx))
		sess.SetSlice(idx, loadBase(*volumeDir, idx, *imgW, *imgH))
		surface.Refresh()
	}

	brushSlider := widget.NewSlider(1, 15)
	brushSlider.Step = 2
	brushSlider.Value = 3
	eraseCheck := widget.NewCheck("Erase", nil)
	applyBrush := func() {
		sess.SetBrush(paint.Brush{Label: 1, Size: int(brushSlider.Value), Erase: eraseCheck.Checked})
	}
	brushSlider.OnChanged = func(float64) { applyBrush() }
	eraseCheck.OnChanged = func(bool) { applyBrush() }

	maskCheck := widget.NewCheck("Show mask", func(on bool) {
		sess.SetShowMask(on)
		surface.Refresh()
	})
	maskCheck.Checked = true

	controls := container.NewVBox(
		sliceLabel,
		sliceSlider,
		widget.NewLabel("Brush size"),
		brushSlider,
		eraseCheck,
		maskCheck,
	)

	w.SetContent(container.NewBorder(nil, nil, controls, nil, surface))
	w.Resize(fyne.NewSize(800, 560))
	w.ShowAndRun()
}

// loadBase reads the slice raster from the volume directory, falling back to
// a synthetic gradient when no volume is available.
func loadBase(dir string, slice, w, h int) image.Image {
	if dir != "" {
		path := filepath.Join(dir, fmt.Sprintf("slice_%03d.png", slice))
		if f, err := os.Open(path); err == nil {
			defer f.Close()
			if img, err := png.Decode(f); err == nil {
				return img
			}
			log.Printf("[Viewer] bad slice raster %s, using placeholder", path)
		}
	}
	return syntheticSlice(slice, w, h)
}

// syntheticSlice renders a radial gradient whose intensity varies per slice,
// auto-leveled the same way real scan data would be.
func syntheticSlice(slice, w, h int) image.Image {
	values := make([]float64, w*h)
	cx, cy := float64(w)/2, float64(h)/2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d := math.Hypot(float64(x)-cx, float64(y)-cy)
			values[y*w+x] = 1000 - d*4 + float64(slice)*10
		}
	}
	return window.AutoLevel(values).ToGray(values, w, h)
}
