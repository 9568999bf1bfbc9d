package analyze

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"strings"

	// decoders for local files
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/TobiSchelling/AIAnalyzer/internal/content"
	"github.com/TobiSchelling/AIAnalyzer/internal/llm"
	"github.com/TobiSchelling/AIAnalyzer/internal/logger"
)

const imagePrompt = `Analyze this image.

Image: %s%s

Provide:
1. A description of the main content: scene, objects and people
2. The theme or intent of the image
3. Key visual elements and details, one per line starting with "- "
4. The likely use case or context
5. Technical characteristics such as quality and composition`

// maxImageSide bounds the longest side sent to the vision providers.
const maxImageSide = 2048

// ImageInfo is the basic metadata of a decoded local image.
type ImageInfo struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	Mode   string `json:"mode"`
}

func (i ImageInfo) String() string {
	return fmt.Sprintf("%dx%d, format %s, mode %s", i.Width, i.Height, i.Format, i.Mode)
}

// ImageAnalyzer describes remote or local images through the vision providers.
type ImageAnalyzer struct {
	vision Describer
	images ImageFetcher
}

// NewImageAnalyzer creates an image analyzer.
func NewImageAnalyzer(vision Describer, images ImageFetcher) *ImageAnalyzer {
	return &ImageAnalyzer{vision: vision, images: images}
}

// Analyze implements Analyzer. Content starting with http:// or https:// is
// downloaded; anything else is read as a local path.
func (a *ImageAnalyzer) Analyze(ctx context.Context, req content.Request) content.Result {
	src := strings.TrimSpace(req.Content)
	if isRemote(src) {
		return a.analyzeURL(ctx, src, req.Context)
	}
	return a.analyzeFile(ctx, src, req.Context)
}

func isRemote(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// analyzeURL forwards the downloaded bytes, or the bare URL when the download
// failed, to the vision providers.
func (a *ImageAnalyzer) analyzeURL(ctx context.Context, src, hint string) content.Result {
	logger.Log.Infof("Analyzing image URL: %s", src)

	ref := llm.ImageRef{URL: src}
	data, mime, dlErr := a.images.FetchImage(ctx, src)
	if dlErr == nil {
		ref.Data, ref.MIMEType = data, mime
	} else {
		logger.Log.Warnf("Image download failed, sending URL instead: %v", dlErr)
	}

	meta := map[string]any{"source": "url", "downloaded": dlErr == nil}
	if dlErr == nil {
		meta["mime_type"] = mime
	}

	analysis, err := a.vision.Describe(ctx, fmt.Sprintf(imagePrompt, src, contextLine(hint)), ref)
	confidence := confImageURLOK
	if err != nil {
		if dlErr == nil {
			analysis = fmt.Sprintf("Image analysis: %s\nThe image was downloaded but the vision model could not analyze it: %v", src, err)
			confidence = confImageDegraded
		} else {
			analysis = fmt.Sprintf("Image analysis failed: %s\nThe image could not be downloaded (%v) and the vision model could not analyze the URL: %v", src, dlErr, err)
			confidence = 0
		}
	}

	res := newResult(content.Image, src, analysis, llm.ExtractKeyPoints(analysis), confidence)
	res.Metadata = meta
	return res
}

// analyzeFile decodes a local image, normalizes it to RGB JPEG and embeds it.
// When vision fails the result carries the basic image metadata.
func (a *ImageAnalyzer) analyzeFile(ctx context.Context, path, hint string) content.Result {
	logger.Log.Infof("Analyzing image file: %s", path)

	data, info, err := loadImage(path)
	if err != nil {
		analysis := fmt.Sprintf("Image analysis failed: cannot read %s: %v", path, err)
		return newResult(content.Image, path, analysis, nil, 0)
	}

	meta := map[string]any{"source": "file", "image_info": info}
	ref := llm.ImageRef{Data: data, MIMEType: "image/jpeg"}
	analysis, err := a.vision.Describe(ctx, fmt.Sprintf(imagePrompt, path, contextLine(hint)), ref)
	confidence := confImageFileOK
	if err != nil {
		analysis = fmt.Sprintf("Image analysis failed: %s\nBasic information: %s\nVision error: %v", path, info, err)
		confidence = 0
	}

	res := newResult(content.Image, path, analysis, llm.ExtractKeyPoints(analysis), confidence)
	if err != nil {
		res.KeyPoints = []string{"Image information: " + info.String()}
	}
	res.Metadata = meta
	return res
}

func loadImage(path string) ([]byte, ImageInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ImageInfo{}, err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, ImageInfo{}, fmt.Errorf("decoding image: %w", err)
	}

	b := img.Bounds()
	info := ImageInfo{Width: b.Dx(), Height: b.Dy(), Format: format, Mode: colorMode(img.ColorModel())}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, normalize(img), &jpeg.Options{Quality: 90}); err != nil {
		return nil, info, fmt.Errorf("encoding image: %w", err)
	}
	return buf.Bytes(), info, nil
}

// normalize converts to RGBA on a white background and scales the longest
// side down to maxImageSide.
func normalize(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if longest := max(w, h); longest > maxImageSide {
		w = w * maxImageSide / longest
		h = h * maxImageSide / longest
	}

	dst := image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

func colorMode(m color.Model) string {
	if _, ok := m.(color.Palette); ok {
		return "P"
	}
	switch m {
	case color.RGBAModel, color.NRGBAModel:
		return "RGBA"
	case color.RGBA64Model, color.NRGBA64Model:
		return "RGBA64"
	case color.GrayModel:
		return "L"
	case color.Gray16Model:
		return "I;16"
	case color.YCbCrModel:
		return "RGB"
	case color.CMYKModel:
		return "CMYK"
	case color.AlphaModel, color.Alpha16Model:
		return "A"
	}
	return "unknown"
}
