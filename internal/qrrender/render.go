// Package qrrender draws QR symbols as PNG rasters: a gradient-coloured
// variant that keeps finder patterns in a fixed colour, a plain black on
// white variant, and an optional centred logo on a rounded plate.
//
// Rendering is stateless. A Renderer only holds immutable configuration and
// is safe for concurrent use.
package qrrender

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrRenderFailed wraps encoder failures, the only error that aborts a render.
	ErrRenderFailed = errors.New("render failed")
	// ErrInvalidSize is returned for a non-positive target size.
	ErrInvalidSize = errors.New("target size must be positive")
	// ErrInvalidMargin is returned for a negative quiet-zone margin.
	ErrInvalidMargin = errors.New("margin must not be negative")
	// ErrUnknownMode is returned for a mode outside the defined set.
	ErrUnknownMode = errors.New("unknown render mode")
)

// Mode selects how modules are coloured.
type Mode int

const (
	// ModeColored sweeps the gradient across columns, finders in a fixed colour.
	ModeColored Mode = iota + 1
	// ModePlain draws black modules on white.
	ModePlain
)

func (m Mode) String() string {
	switch m {
	case ModeColored:
		return "colored"
	case ModePlain:
		return "plain"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode maps "colored" or "plain" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "colored", "coloured", "gradient":
		return ModeColored, nil
	case "plain":
		return ModePlain, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Defaults matching the admin service output.
const (
	DefaultSizePx = 1024
	DefaultMargin = 2
)

// Request describes a single render.
type Request struct {
	Content string
	Mode    Mode
	SizePx  int
	Margin  int    // quiet-zone modules on each side
	Logo    []byte // optional, any registered image format
}

// Renderer encodes content and draws it.
type Renderer struct {
	encoder Encoder
	style   Style
	workers int
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithStyle overrides the gradient and finder colours.
func WithStyle(s Style) Option {
	return func(r *Renderer) { r.style = s }
}

// WithWorkers bounds RenderBatch parallelism. Values below one are ignored.
func WithWorkers(n int) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.workers = n
		}
	}
}

// NewRenderer returns a Renderer that encodes with enc.
func NewRenderer(enc Encoder, opts ...Option) *Renderer {
	r := &Renderer{encoder: enc, style: DefaultStyle(), workers: runtime.NumCPU()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Style returns the colours in use.
func (r *Renderer) Style() Style { return r.style }

// Fingerprint identifies the encoder and colours, the renderer settings that
// change output bytes for the same Request.
func (r *Renderer) Fingerprint() string {
	return fmt.Sprintf("%T|%s|%s|%s", r.encoder,
		hexColor(r.style.Gradient.From), hexColor(r.style.Gradient.To), hexColor(r.style.Finder))
}

// Render encodes req.Content and returns PNG bytes of exactly req.SizePx
// square. Only encoding failures, invalid geometry and cancellation fail the
// render; a bad logo is skipped.
func (r *Renderer) Render(ctx context.Context, req Request) ([]byte, error) {
	if req.SizePx <= 0 {
		return nil, ErrInvalidSize
	}
	if req.Margin < 0 {
		return nil, ErrInvalidMargin
	}
	if req.Mode != ModeColored && req.Mode != ModePlain {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(req.Mode))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m, err := r.encoder.Encode(req.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %w", ErrRenderFailed, err)
	}

	var base []byte
	switch req.Mode {
	case ModeColored:
		base, err = RasterizeColored(m, req.SizePx, req.Margin, r.style)
	case ModePlain:
		base, err = RasterizePlain(m, req.SizePx, req.Margin)
	}
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ApplyLogo(base, req.Logo), nil
}

// RenderBatch renders every request with bounded parallelism. Results are in
// request order. The first failure cancels the remaining renders.
func (r *Renderer) RenderBatch(ctx context.Context, reqs []Request) ([][]byte, error) {
	out := make([][]byte, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range reqs {
		i := i
		g.Go(func() error {
			png, err := r.Render(ctx, reqs[i])
			if err != nil {
				return fmt.Errorf("request %d: %w", i, err)
			}
			out[i] = png
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
