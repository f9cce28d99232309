package reconcile

import (
	"image"
)

// Reason explains a verdict for logging and tests.
type Reason int

const (
	// ReasonNoLocal means there were no local strokes; the snapshot is
	// authoritative by default.
	ReasonNoLocal Reason = iota
	// ReasonServerData means the snapshot contains painted pixels; the merged
	// server state supersedes local strokes.
	ReasonServerData
	// ReasonFalseEmpty means the snapshot was fully transparent while local
	// strokes exist: the serving instance had no record of the paint.
	ReasonFalseEmpty
	// ReasonFetchFailed means the snapshot could not be downloaded or decoded.
	ReasonFetchFailed
)

func (r Reason) String() string {
	switch r {
	case ReasonNoLocal:
		return "no-local-strokes"
	case ReasonServerData:
		return "server-has-data"
	case ReasonFalseEmpty:
		return "false-empty"
	case ReasonFetchFailed:
		return "fetch-failed"
	}
	return "unknown"
}

// Verdict is the verifier's decision for one snapshot.
type Verdict struct {
	// Trust means the snapshot should be rendered as the authoritative mask
	// and, if local strokes exist, the slice's cache entry cleared.
	Trust  bool
	Reason Reason
}

// Verify applies the asymmetric trust policy: a snapshot is only allowed to
// displace local strokes if it demonstrably contains painted data. The backend
// is ephemeral and a request may land on an instance that never saw the paint;
// a false-empty response must not destroy the local record.
func Verify(snapshot image.Image, fetchErr error, localDirty bool) Verdict {
	if fetchErr != nil || snapshot == nil {
		if localDirty {
			return Verdict{Trust: false, Reason: ReasonFetchFailed}
		}
		// Nothing local to protect; nothing to render either.
		return Verdict{Trust: false, Reason: ReasonFetchFailed}
	}
	if !localDirty {
		return Verdict{Trust: true, Reason: ReasonNoLocal}
	}
	if HasPaintedPixel(snapshot) {
		return Verdict{Trust: true, Reason: ReasonServerData}
	}
	return Verdict{Trust: false, Reason: ReasonFalseEmpty}
}

// HasPaintedPixel reports whether any pixel has non-zero alpha. Fast paths
// cover the decoded formats the backend actually serves.
func HasPaintedPixel(img image.Image) bool {
	switch m := img.(type) {
	case *image.RGBA:
		return pixHasAlpha(m.Pix)
	case *image.NRGBA:
		return pixHasAlpha(m.Pix)
	default:
		b := img.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				if _, _, _, a := img.At(x, y).RGBA(); a != 0 {
					return true
				}
			}
		}
		return false
	}
}

func pixHasAlpha(pix []uint8) bool {
	for i := 3; i < len(pix); i += 4 {
		if pix[i] != 0 {
			return true
		}
	}
	return false
}
