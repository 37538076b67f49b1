package render

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"runtime"

	"github.com/chai2010/webp"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/sync/semaphore"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
)

// Format est le format d'encodage demandé par le client.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
	FormatSVG  Format = "svg"
)

// ParseFormat valide un format de sortie (png par défaut).
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "webp":
		return FormatWebP, nil
	case "svg":
		return FormatSVG, nil
	}
	return "", apperr.Newf(apperr.KindValidation, "unsupported format %q", s).
		WithField("format", "UNSUPPORTED", "must be one of png, jpeg, webp, svg")
}

// ContentType retourne le type MIME du format.
func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatWebP:
		return "image/webp"
	case FormatSVG:
		return "image/svg+xml"
	}
	return "image/png"
}

// EncodeOptions paramètre la rastérisation.
type EncodeOptions struct {
	Format        Format
	Width         int
	WebPQuality   int
	WebPLossless  bool
	OptimizeSpeed bool
}

const (
	DefaultWidth       = 1200
	DefaultWebPQuality = 80
	jpegQuality        = 85
)

// Rasterizer borne les encodages concurrents par un sémaphore pondéré.
type Rasterizer struct {
	gate          *semaphore.Weighted
	optimizeSpeed bool
}

// NewRasterizer dimensionne la porte de concurrence (0 = nombre de CPU
// logiques).
func NewRasterizer(maxParallel int, optimizeSpeed bool) *Rasterizer {
	if maxParallel <= 0 {
		maxParallel = runtime.NumCPU()
	}
	return &Rasterizer{
		gate:          semaphore.NewWeighted(int64(maxParallel)),
		optimizeSpeed: optimizeSpeed,
	}
}

// Encode rastérise le SVG à la largeur demandée puis l'encode. L'attente
// de la porte respecte l'échéance de la requête.
func (r *Rasterizer) Encode(ctx context.Context, svgText string, opts EncodeOptions) ([]byte, error) {
	if opts.Format == FormatSVG {
		return []byte(svgText), nil
	}

	if err := r.gate.Acquire(ctx, 1); err != nil {
		return nil, apperr.Wrap(apperr.KindImageRender, "raster gate", err)
	}
	defer r.gate.Release(1)

	img, err := rasterize(svgText, opts.Width)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	switch opts.Format {
	case FormatJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
	case FormatWebP:
		quality := opts.WebPQuality
		if quality < 1 {
			quality = 1
		} else if quality > 100 {
			quality = 100
		}
		err = webp.Encode(&buf, img, &webp.Options{
			Lossless: opts.WebPLossless,
			Quality:  float32(quality),
		})
	default:
		encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
		if r.optimizeSpeed || opts.OptimizeSpeed {
			encoder.CompressionLevel = png.BestSpeed
		}
		err = encoder.Encode(&buf, img)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindImageRender, "encode image", err)
	}
	return buf.Bytes(), nil
}

// rasterize peint le SVG dans un RGBA à la largeur cible, ratio préservé.
func rasterize(svgText string, width int) (image.Image, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader([]byte(svgText)))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindImageRender, "parse svg", err)
	}

	vbW, vbH := icon.ViewBox.W, icon.ViewBox.H
	if vbW <= 0 || vbH <= 0 {
		return nil, apperr.New(apperr.KindImageRender, "svg has no usable viewBox")
	}
	height := int(float64(width) * vbH / vbW)
	if height <= 0 {
		height = 1
	}

	icon.SetTarget(0, 0, float64(width), float64(height))
	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	scanner := rasterx.NewScannerGV(width, height, rgba, rgba.Bounds())
	dasher := rasterx.NewDasher(width, height, scanner)
	icon.Draw(dasher, 1.0)
	return rgba, nil
}
