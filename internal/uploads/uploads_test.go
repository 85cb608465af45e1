package uploads

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psibuilder/internal/config"
)

func testProcessor(t *testing.T) (*Processor, *config.Config) {
	t.Helper()
	cfg := &config.Config{
		UploadsDirectory:  t.TempDir(),
		UploadsUrlPrefix:  "/uploads",
		UploadMaxSizeInMb: 1,
	}
	return NewProcessor(cfg, slog.New(slog.NewTextHandler(os.Stderr, nil))), cfg
}

// multipartFile wraps raw bytes in a *multipart.FileHeader the same way
// fiber's FormFile would hand it to a handler.
func multipartFile(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	files := form.File["image"]
	require.Len(t, files, 1)
	return files[0]
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestStoreProfileImage(t *testing.T) {
	processor, cfg := testProcessor(t)

	url, err := processor.Store(multipartFile(t, "avatar.png", pngBytes(t, 40, 20)), KindProfileImage)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, cfg.UploadsUrlPrefix+"/"))
	assert.True(t, strings.HasSuffix(url, ".jpg"), "profile images are re-encoded as JPEG, got %s", url)

	path := filepath.Join(cfg.UploadsDirectory, filepath.Base(url))
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestStoreLogoKeepsPNG(t *testing.T) {
	processor, cfg := testProcessor(t)

	url, err := processor.Store(multipartFile(t, "logo.png", pngBytes(t, 30, 30)), KindLogoImage)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, ".png"))

	_, err = os.Stat(filepath.Join(cfg.UploadsDirectory, filepath.Base(url)))
	require.NoError(t, err)
}

func TestStoreResizesOversizedDimensions(t *testing.T) {
	processor, cfg := testProcessor(t)

	url, err := processor.Store(multipartFile(t, "wide.png", pngBytes(t, profileMaxDimension*2, 100)), KindProfileImage)
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(cfg.UploadsDirectory, filepath.Base(url)))
	require.NoError(t, err)
	defer f.Close()

	stored, _, err := image.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, profileMaxDimension, stored.Bounds().Dx())
	assert.Equal(t, 50, stored.Bounds().Dy())
}

func TestStoreRejectsInvalidUploads(t *testing.T) {
	processor, _ := testProcessor(t)

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := processor.Store(multipartFile(t, "notes.pdf", []byte("%PDF-1.4")), KindProfileImage)
		var invalid *InvalidUploadError
		require.ErrorAs(t, err, &invalid)
		assert.Contains(t, invalid.Reason, "unsupported image format")
	})

	t.Run("corrupt image data", func(t *testing.T) {
		_, err := processor.Store(multipartFile(t, "broken.png", []byte("definitely not a png")), KindProfileImage)
		var invalid *InvalidUploadError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "file is not a valid image", invalid.Reason)
	})

	t.Run("file too large", func(t *testing.T) {
		big := bytes.Repeat([]byte{0xAB}, 1*1024*1024+1)
		_, err := processor.Store(multipartFile(t, "huge.jpg", big), KindProfileImage)
		var invalid *InvalidUploadError
		require.ErrorAs(t, err, &invalid)
		assert.Contains(t, invalid.Reason, "1MB limit")
	})
}

func TestRemove(t *testing.T) {
	processor, cfg := testProcessor(t)

	url, err := processor.Store(multipartFile(t, "avatar.png", pngBytes(t, 10, 10)), KindProfileImage)
	require.NoError(t, err)

	require.NoError(t, processor.Remove(url))
	_, err = os.Stat(filepath.Join(cfg.UploadsDirectory, filepath.Base(url)))
	assert.True(t, os.IsNotExist(err))

	// Removing again, or removing nothing, is fine.
	require.NoError(t, processor.Remove(url))
	require.NoError(t, processor.Remove(""))

	var invalid *InvalidUploadError
	require.ErrorAs(t, processor.Remove("/uploads/.."), &invalid)
}
