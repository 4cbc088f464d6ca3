// Package contactsheet renders a labelled grid of video frames.
package contactsheet

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/user/viteo/pkg/adapters/logger"
	"github.com/user/viteo/pkg/frame"
	"github.com/user/viteo/pkg/ports"
)

// ErrNoFrames is returned when there is nothing to render.
var ErrNoFrames = errors.New("contactsheet: no frames")

// Theme defines the sheet colors and label font.
type Theme struct {
	Background color.Color
	LabelBg    color.Color
	LabelColor color.Color
	FontPath   string
	FontSize   float64
}

// DefaultTheme returns a dark theme.
func DefaultTheme() Theme {
	return Theme{
		Background: color.RGBA{R: 0x18, G: 0x18, B: 0x18, A: 0xff},
		LabelBg:    color.RGBA{R: 0x28, G: 0x28, B: 0x28, A: 0xff},
		LabelColor: color.RGBA{R: 0xf0, G: 0xf0, B: 0xf0, A: 0xff},
		FontSize:   12,
	}
}

// Options controls the grid.
type Options struct {
	Columns     int
	TileWidth   int // tile height follows the frame aspect ratio
	Gap         int
	LabelHeight int // 0 disables labels
	Workers     int // thumbnail workers, 0 = NumCPU
	Theme       Theme
}

// DefaultOptions returns a 4-column sheet with 240 px tiles.
func DefaultOptions() Options {
	return Options{
		Columns:     4,
		TileWidth:   240,
		Gap:         8,
		LabelHeight: 18,
		Theme:       DefaultTheme(),
	}
}

// Layout is the computed geometry of a sheet.
type Layout struct {
	Columns    int
	Rows       int
	TileWidth  int
	TileHeight int
	Gap        int
	LabelH     int
	Width      int
	Height     int
}

// ComputeLayout sizes a sheet for count frames of srcW × srcH.
func ComputeLayout(count, srcW, srcH int, opts Options) Layout {
	cols := opts.Columns
	if cols <= 0 {
		cols = 4
	}
	if count < cols {
		cols = count
	}
	if cols <= 0 {
		cols = 1
	}
	rows := (count + cols - 1) / cols

	tw := opts.TileWidth
	if tw <= 0 {
		tw = srcW
	}
	th := tw
	if srcW > 0 {
		th = srcH * tw / srcW
	}
	if th <= 0 {
		th = 1
	}

	gap := max(opts.Gap, 0)
	labelH := max(opts.LabelHeight, 0)
	return Layout{
		Columns:    cols,
		Rows:       rows,
		TileWidth:  tw,
		TileHeight: th,
		Gap:        gap,
		LabelH:     labelH,
		Width:      cols*tw + (cols+1)*gap,
		Height:     rows*(th+labelH) + (rows+1)*gap,
	}
}

// TileRect returns the image area of tile i.
func (l Layout) TileRect(i int) image.Rectangle {
	col, row := i%l.Columns, i/l.Columns
	x := l.Gap + col*(l.TileWidth+l.Gap)
	y := l.Gap + row*(l.TileHeight+l.LabelH+l.Gap)
	return image.Rect(x, y, x+l.TileWidth, y+l.TileHeight)
}

// Pick returns count frame indices spread evenly over total frames, always
// starting at frame 0.
func Pick(total int64, count int) []int64 {
	if total <= 0 || count <= 0 {
		return nil
	}
	if int64(count) > total {
		count = int(total)
	}
	out := make([]int64, count)
	for i := range out {
		out[i] = int64(i) * total / int64(count)
	}
	return out
}

// Renderer draws contact sheets.
type Renderer struct {
	renderer ports.Renderer
	opts     Options
	logger   ports.Logger
}

// New creates a contact sheet renderer.
func New(renderer ports.Renderer, opts Options, log ports.Logger) *Renderer {
	if log == nil {
		log = logger.NewNoop()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Renderer{
		renderer: renderer,
		opts:     opts,
		logger:   log.WithComponent("contactsheet"),
	}
}

// Render thumbnails frames in parallel and composes them in order.
func (r *Renderer) Render(ctx context.Context, frames []frame.Frame) (image.Image, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	l := ComputeLayout(len(frames), frames[0].Width, frames[0].Height, r.opts)
	r.logger.Debug("Rendering %d frames as %dx%d grid (%dx%d px)", len(frames), l.Columns, l.Rows, l.Width, l.Height)

	thumbs := make([]image.Image, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i := range frames {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			thumbs[i] = r.renderer.ResizeImage(frames[i].Image(), l.TileWidth, l.TileHeight)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("contactsheet: thumbnails: %w", err)
	}

	theme := r.opts.Theme
	canvas := r.renderer.CreateCanvas(l.Width, l.Height, theme.Background)
	for i, img := range thumbs {
		rect := l.TileRect(i)
		canvas.DrawImageScaled(img, rect.Min.X, rect.Min.Y, l.TileWidth, l.TileHeight)
		if l.LabelH == 0 {
			continue
		}
		canvas.DrawRect(rect.Min.X, rect.Max.Y, l.TileWidth, l.LabelH, theme.LabelBg)
		canvas.DrawText(Label(frames[i]), rect.Min.X+l.TileWidth/2, rect.Max.Y+l.LabelH/2, ports.TextStyle{
			FontSize: theme.FontSize,
			FontPath: theme.FontPath,
			Color:    theme.LabelColor,
			Align:    ports.AlignCenter,
		})
	}
	return canvas.ToImage(), nil
}

// Label formats the caption for a frame, e.g. "#000150  5.000s".
func Label(f frame.Frame) string {
	return fmt.Sprintf("#%06d  %.3fs", f.Number, f.Timestamp)
}

// Source is the part of a decode session Collect needs.
type Source interface {
	Position() int64
	SeekFrame(index int64) error
	DecodeNext() (frame.Frame, error)
}

// Collect decodes the frames at indices and returns owned copies. Seeking is skipped
// when an index is already the next frame to decode.
func Collect(ctx context.Context, src Source, indices []int64) ([]frame.Frame, error) {
	out := make([]frame.Frame, 0, len(indices))
	next := src.Position()
	for _, idx := range indices {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if idx != next {
			if err := src.SeekFrame(idx); err != nil {
				return out, fmt.Errorf("contactsheet: seek to frame %d: %w", idx, err)
			}
		}
		f, err := src.DecodeNext()
		if err != nil {
			return out, fmt.Errorf("contactsheet: decode frame %d: %w", idx, err)
		}
		out = append(out, f.Clone())
		next = f.Number + 1
	}
	return out, nil
}
