package businessflow

import (
	"bytes"
	"image"
	"image/color"
	imagedraw "image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	defaultMaxImageDimension = 2048
	defaultMaxImageBytes     = int64(10 * 1024 * 1024)
	resizedJPEGQuality       = 85
)

var imageContentTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// normalizeImage checks that file is a decodable image and downsizes it to fit maxDim.
// Resized images are re-encoded as JPEG; others keep their original bytes.
func normalizeImage(file ImageFile, maxBytes int64, maxDim int) (ImageFile, error) {
	if maxBytes <= 0 {
		maxBytes = defaultMaxImageBytes
	}
	if maxDim <= 0 {
		maxDim = defaultMaxImageDimension
	}
	if int64(len(file.Content)) > maxBytes {
		return ImageFile{}, ErrImageTooLarge
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(file.Content))
	if err != nil {
		return ImageFile{}, ErrInvalidImage
	}
	contentType, ok := imageContentTypes[format]
	if !ok {
		return ImageFile{}, ErrInvalidImage
	}

	if cfg.Width <= maxDim && cfg.Height <= maxDim {
		return ImageFile{Name: file.Name, ContentType: contentType, Content: file.Content}, nil
	}

	img, _, err := image.Decode(bytes.NewReader(file.Content))
	if err != nil {
		return ImageFile{}, ErrInvalidImage
	}

	buf := &bytes.Buffer{}
	if err := jpeg.Encode(buf, resizeImage(img, maxDim), &jpeg.Options{Quality: resizedJPEGQuality}); err != nil {
		return ImageFile{}, err
	}

	name := strings.TrimSuffix(file.Name, filepath.Ext(file.Name)) + ".jpg"
	return ImageFile{Name: name, ContentType: "image/jpeg", Content: buf.Bytes()}, nil
}

func resizeImage(src image.Image, maxDim int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return src
	}

	var nw, nh int
	if w >= h {
		nw = maxDim
		nh = max(1, int(float64(h)*float64(maxDim)/float64(w)))
	} else {
		nh = maxDim
		nw = max(1, int(float64(w)*float64(maxDim)/float64(h)))
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	imagedraw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, imagedraw.Src)
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}
