package frameextract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/jmylchreest/hlsthumb/internal/storage"
	"github.com/jmylchreest/hlsthumb/internal/thumbnail"
)

// Placeholder is a FrameExtractor that never touches ffmpeg: it renders a
// flat-color JPEG stamped with the segment name and offset. Used when the
// service config sets ffmpeg.use_placeholder, and in tests that exercise
// the scheduler's emission logic without paying for real decoding.
type Placeholder struct {
	sandbox *storage.Sandbox
	fill    color.RGBA
}

// NewPlaceholder creates a Placeholder extractor publishing into each
// request's OutputDir, or into sandbox when a request has none.
func NewPlaceholder(sandbox *storage.Sandbox) *Placeholder {
	return &Placeholder{sandbox: sandbox, fill: color.RGBA{R: 30, G: 30, B: 30, A: 255}}
}

// Extract implements thumbnail.FrameExtractor.
func (p *Placeholder) Extract(_ context.Context, req thumbnail.ExtractRequest) ([]thumbnail.FrameOutcome, error) {
	width, height := req.Width, req.Height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = width * 9 / 16
	}

	publish := p.sandbox
	if req.OutputDir != "" {
		sb, err := storage.NewSandbox(req.OutputDir)
		if err != nil {
			return nil, fmt.Errorf("opening output dir: %w", err)
		}
		publish = sb
	}

	outcomes := make([]thumbnail.FrameOutcome, len(req.Offsets))
	for i, offset := range req.Offsets {
		label := fmt.Sprintf("%s @ %.3fs", req.SegmentURI, offset)
		data, err := renderFrame(width, height, p.fill, label)
		if err != nil {
			outcomes[i] = thumbnail.FrameOutcome{Index: i, Offset: offset, Err: err}
			continue
		}

		filename := fmt.Sprintf("%s-%d.jpg", req.Basename, i)
		if err := publish.AtomicWrite(filename, data); err != nil {
			outcomes[i] = thumbnail.FrameOutcome{Index: i, Offset: offset, Err: err}
			continue
		}

		outcomes[i] = thumbnail.FrameOutcome{Index: i, Offset: offset, Produced: true, Filename: filename}
	}
	return outcomes, nil
}

func renderFrame(width, height int, fill color.RGBA, label string) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: fill}, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(4, height/2),
	}
	d.DrawString(label)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("encoding placeholder jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
