package uploads

import (
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/jpeg"
	"image/png"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"psibuilder/internal/config"
)

// Kind selects the processing profile for an uploaded image.
type Kind string

const (
	KindProfileImage Kind = "profile"
	KindLogoImage    Kind = "logo"
)

const (
	profileMaxDimension = 1024
	profileJPEGQuality  = 85
	logoMaxDimension    = 512
)

var allowedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// InvalidUploadError indicates the uploaded file was rejected before
// processing (wrong type or too large).
type InvalidUploadError struct {
	Reason string
}

func (e *InvalidUploadError) Error() string {
	return e.Reason
}

// Processor persists resized copies of uploaded images under the configured
// uploads directory and returns their public URLs.
type Processor struct {
	cfg    *config.Config
	logger *slog.Logger
}

func NewProcessor(cfg *config.Config, logger *slog.Logger) *Processor {
	return &Processor{cfg: cfg, logger: logger}
}

// Store validates, resizes and saves an uploaded image. Profile images are
// re-encoded as JPEG with a white background, logos keep transparency as PNG.
// The returned URL is relative to the uploads URL prefix.
func (p *Processor) Store(fileHeader *multipart.FileHeader, kind Kind) (string, error) {
	maxBytes := int64(p.cfg.UploadMaxSizeInMb) * 1024 * 1024
	if fileHeader.Size > maxBytes {
		return "", &InvalidUploadError{Reason: fmt.Sprintf("file exceeds the %dMB limit", p.cfg.UploadMaxSizeInMb)}
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedImageExtensions[ext] {
		return "", &InvalidUploadError{Reason: "unsupported image format, use JPG, PNG or WebP"}
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return "", &InvalidUploadError{Reason: "file is not a valid image"}
	}

	var (
		filename string
		saveErr  error
	)
	switch kind {
	case KindProfileImage:
		filename = uuid.NewString() + ".jpg"
		resized := resizeToFit(img, profileMaxDimension, true)
		saveErr = p.saveJPEG(filename, resized)
	case KindLogoImage:
		filename = uuid.NewString() + ".png"
		resized := resizeToFit(img, logoMaxDimension, false)
		saveErr = p.savePNG(filename, resized)
	default:
		return "", fmt.Errorf("unknown upload kind: %s", kind)
	}
	if saveErr != nil {
		return "", saveErr
	}

	p.logger.Info("Stored uploaded image",
		slog.String("kind", string(kind)),
		slog.String("filename", filename),
		slog.Int64("original_size", fileHeader.Size))

	return p.cfg.UploadsUrlPrefix + "/" + filename, nil
}

// Remove deletes a previously stored upload given its public URL. Unknown or
// already-removed files are not an error.
func (p *Processor) Remove(publicURL string) error {
	if publicURL == "" {
		return nil
	}

	filename := filepath.Base(publicURL)
	if filename == "." || filename == "/" || strings.Contains(filename, "..") {
		return &InvalidUploadError{Reason: "invalid upload path"}
	}

	path := filepath.Join(p.cfg.UploadsDirectory, filename)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove upload: %w", err)
	}
	return nil
}

func (p *Processor) saveJPEG(filename string, img image.Image) error {
	out, err := p.createUploadFile(filename)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: profileJPEGQuality}); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return nil
}

func (p *Processor) savePNG(filename string, img image.Image) error {
	out, err := p.createUploadFile(filename)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := png.Encode(out, img); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return nil
}

func (p *Processor) createUploadFile(filename string) (*os.File, error) {
	if err := os.MkdirAll(p.cfg.UploadsDirectory, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}

	out, err := os.Create(filepath.Join(p.cfg.UploadsDirectory, filename))
	if err != nil {
		return nil, fmt.Errorf("failed to create upload file: %w", err)
	}
	return out, nil
}

// resizeToFit scales the image down so neither dimension exceeds maxDim,
// preserving aspect ratio. When flatten is true the result is composed over a
// white background, which avoids black boxes when JPEG-encoding transparent
// sources.
func resizeToFit(src image.Image, maxDim int, flatten bool) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	nw, nh := w, h
	if w > maxDim || h > maxDim {
		if w >= h {
			nw = maxDim
			nh = int(float64(h) * float64(maxDim) / float64(w))
		} else {
			nh = maxDim
			nw = int(float64(w) * float64(maxDim) / float64(h))
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	if flatten {
		imagedraw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, imagedraw.Src)
	}
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}
