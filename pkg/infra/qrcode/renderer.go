package qrcode

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/fatih/color"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/image/draw"
	"golang.org/x/term"

	"github.com/m-mizutani/comicdl/pkg/domain/interfaces"
	"github.com/m-mizutani/comicdl/pkg/utils/async"
)

// Below this many glyphs per side the in-site scanner fails to read the code
const minGlyphSize = 60

const (
	lightGlyph = "■"
	darkGlyph  = "　"
)

// TerminalSizeFunc returns the terminal width and height in cells
type TerminalSizeFunc func() (cols, rows int, err error)

// OpenFunc opens path with an external viewer
type OpenFunc func(ctx context.Context, path string) error

// config holds internal renderer configuration
type config struct {
	out       io.Writer
	imagePath string
	size      TerminalSizeFunc
	open      OpenFunc
}

// Option is a functional option for Renderer configuration
type Option func(*config)

// WithWriter sets where glyphs are written
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.out = w
	}
}

// WithImagePath sets the file the QR code image is saved to
func WithImagePath(path string) Option {
	return func(c *config) {
		c.imagePath = path
	}
}

// WithTerminalSize replaces terminal size detection
func WithTerminalSize(f TerminalSizeFunc) Option {
	return func(c *config) {
		c.size = f
	}
}

// WithOpener replaces the external viewer launcher
func WithOpener(f OpenFunc) Option {
	return func(c *config) {
		c.open = f
	}
}

// Renderer draws a QR code with terminal glyphs when the terminal is large
// enough, and hands the saved image to an external viewer otherwise.
type Renderer struct {
	cfg *config
}

var _ interfaces.QRCodeRenderer = (*Renderer)(nil)

// New creates a new Renderer
func New(opts ...Option) *Renderer {
	cfg := &config{
		out:       os.Stdout,
		imagePath: "qrCode.jpg",
		size: func() (int, int, error) {
			return term.GetSize(int(os.Stdout.Fd()))
		},
		open: openWithSystemViewer,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Renderer{cfg: cfg}
}

// Render saves the image and shows it
func (r *Renderer) Render(ctx context.Context, data []byte) error {
	logger := ctxlog.From(ctx)

	if err := os.WriteFile(r.cfg.imagePath, data, 0644); err != nil {
		return goerr.Wrap(err, "failed to save QR code image", goerr.V("path", r.cfg.imagePath))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return goerr.Wrap(err, "failed to decode QR code image", goerr.V("size", len(data)))
	}

	bounds := img.Bounds()
	cols, rows, err := r.cfg.size()
	if err != nil {
		logger.Debug("Terminal size unavailable", "error", err)
		cols, rows = 0, 0
	}

	// A full-width glyph takes two cells; keep one spare column and two rows for prompts
	side := min(bounds.Dx(), cols/2-1, bounds.Dy(), rows-2)
	if side < minGlyphSize {
		path, err := filepath.Abs(r.cfg.imagePath)
		if err != nil {
			return goerr.Wrap(err, "failed to resolve QR code image path", goerr.V("path", r.cfg.imagePath))
		}

		logger.Info("Terminal too small for QR code, opening external viewer",
			"path", path,
			"cols", cols,
			"rows", rows,
		)
		async.Dispatch(ctx, "open-qrcode", func(ctx context.Context) error {
			return r.cfg.open(ctx, path)
		})
		return nil
	}

	logger.Info("Scan the QR code with the comics app: app -> discover -> scan icon at the top right")
	return r.draw(img, side)
}

func (r *Renderer) draw(img image.Image, side int) error {
	scaled := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.NearestNeighbor.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

	bold := color.New(color.Bold)
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			cr, cg, cb, _ := scaled.At(x, y).RGBA()
			glyph := darkGlyph
			if (cr>>8+cg>>8+cb>>8)/3 > 128 {
				glyph = lightGlyph
			}
			if _, err := bold.Fprint(r.cfg.out, glyph); err != nil {
				return goerr.Wrap(err, "failed to write QR code glyph")
			}
		}
		if _, err := io.WriteString(r.cfg.out, "\n"); err != nil {
			return goerr.Wrap(err, "failed to write QR code line")
		}
	}
	return nil
}

func openWithSystemViewer(ctx context.Context, path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.CommandContext(ctx, "cmd", "/c", "start", "", path)
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", path)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", path)
	}

	if out, err := cmd.CombinedOutput(); err != nil {
		return goerr.Wrap(err, "failed to open QR code image", goerr.V("path", path), goerr.V("output", string(out)))
	}
	return nil
}
