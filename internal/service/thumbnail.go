package service

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"strings"

	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"
)

const (
	thumbnailEdge = 256
	jpegQuality   = 85
)

// ThumbnailGenerator derives a resized thumbnail from raw image bytes.
// It is a pure transform: nothing escapes its boundary, any internal
// decode or encode problem becomes a nil result.
type ThumbnailGenerator struct {
	log *zap.Logger
}

func NewThumbnailGenerator(log *zap.Logger) *ThumbnailGenerator {
	return &ThumbnailGenerator{log: log}
}

// Generate returns the re-encoded thumbnail, or nil when the extension
// is not a supported image type or the bytes cannot be processed.
func (g *ThumbnailGenerator) Generate(data []byte, extension string) (result []byte) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("Thumbnail generation panicked", zap.Any("panic", r))
			result = nil
		}
	}()

	ext := strings.ToLower(extension)
	if ext == "jpg" {
		ext = "jpeg"
	}
	if ext != "png" && ext != "jpeg" {
		g.log.Info("Thumbnail not needed for extension", zap.String("extension", extension))
		return nil
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		g.log.Error("Failed to decode image",
			zap.String("extension", extension),
			zap.Error(err))
		return nil
	}

	flat := flattenOnWhite(src)
	width, height := targetSize(flat.Bounds().Dx(), flat.Bounds().Dy())
	if width == 0 || height == 0 {
		g.log.Error("Image too narrow to thumbnail",
			zap.Int("width", flat.Bounds().Dx()),
			zap.Int("height", flat.Bounds().Dy()))
		return nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), flat, flat.Bounds(), xdraw.Src, nil)

	var buf bytes.Buffer
	if ext == "jpeg" {
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality})
	} else {
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		g.log.Error("Failed to encode thumbnail", zap.Error(err))
		return nil
	}

	g.log.Info("Thumbnail generated",
		zap.String("format", format),
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Int("size", buf.Len()))

	return buf.Bytes()
}

// targetSize scales the longer edge to exactly thumbnailEdge and the
// shorter one proportionally, floored to an integer.
func targetSize(width, height int) (int, int) {
	if width > height {
		return thumbnailEdge, height * thumbnailEdge / width
	}
	return width * thumbnailEdge / height, thumbnailEdge
}

// flattenOnWhite canonicalizes the color representation: pixels are
// composited onto an opaque white background, so transparency and
// palette modes end up as plain truecolor.
func flattenOnWhite(src image.Image) *image.RGBA {
	bounds := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), src, bounds.Min, draw.Over)
	return out
}
