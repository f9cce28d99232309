// Package client talks to the mask backend on behalf of a viewer.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client fetches authoritative mask snapshots and submits strokes.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// New creates a client for the backend at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 15 * time.Second},
	}
}

// FetchMask downloads and decodes one slice's authoritative mask. The
// cacheBust token is carried as a query param so intermediaries never serve a
// stale snapshot back into a reconciliation. A decode failure is reported the
// same way as a transport failure; callers must not treat either as "the
// server has no paint".
func (c *Client) FetchMask(ctx context.Context, segID string, slice int, cacheBust string) (image.Image, error) {
	u := fmt.Sprintf("%s/s/%s/slices/%d/mask.png?cb=%s",
		c.baseURL, url.PathEscape(segID), slice, url.QueryEscape(cacheBust))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mask fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("mask fetch failed: status %d", resp.StatusCode)
	}

	img, err := png.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("mask decode failed: %w", err)
	}
	return img, nil
}

// strokePayload mirrors the backend's wire form of a stroke.
type strokePayload struct {
	SliceIndex int  `json:"slice_index"`
	LabelID    int  `json:"label_id"`
	X          int  `json:"x"`
	Y          int  `json:"y"`
	BrushSize  int  `json:"brush_size"`
	Erase      bool `json:"erase"`
}

// PostStroke submits one stroke for persistence. The backend acknowledges
// before rasterizing, so success here only means the stroke is journaled.
func (c *Client) PostStroke(ctx context.Context, segID string, slice int, labelID, x, y, size int, erase bool) error {
	body, err := json.Marshal(strokePayload{
		SliceIndex: slice,
		LabelID:    labelID,
		X:          x,
		Y:          y,
		BrushSize:  size,
		Erase:      erase,
	})
	if err != nil {
		return err
	}

	u := c.baseURL + "/s/" + url.PathEscape(segID) + "/strokes"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("stroke submit failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stroke submit failed: status %d", resp.StatusCode)
	}
	return nil
}

// CacheBustToken derives a fresh token from the wall clock.
func CacheBustToken() string {
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}
