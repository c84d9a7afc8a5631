package discovery

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fpang/profile-agent/internal/browser"
	"github.com/rs/zerolog/log"

	// Registers the WebP decoder with image.Decode; the CDN serves WebP to
	// Chrome.
	_ "golang.org/x/image/webp"
)

// MaxImageDimension bounds the longest edge of images sent for classification.
const MaxImageDimension = 1024

const jpegQuality = 85

// imageSelectors locate the primary image of open content, most specific
// first.
var imageSelectors = []string{
	`article div:first-child img`,
	`article img[alt]`,
	`article img[src*="scontent"]`,
	`article img[src*="instagram"]`,
	`article img`,
	`div[role="dialog"] img`,
}

// ErrNoImage is returned when the open content has no fetchable image.
var ErrNoImage = errors.New("no image found")

// Image is a normalized JPEG ready for the classifier.
type Image struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

// fetchScript downloads src with the page's cookies and returns it base64
// encoded.
const fetchScript = `(async (src) => {
	try {
		const res = await fetch(src, {credentials: "include"});
		if (!res.ok) return {data: "", mimeType: "", error: "HTTP " + res.status};
		const blob = await res.blob();
		const buf = new Uint8Array(await blob.arrayBuffer());
		let bin = "";
		for (let i = 0; i < buf.length; i += 0x8000) {
			bin += String.fromCharCode.apply(null, buf.subarray(i, i + 0x8000));
		}
		return {data: btoa(bin), mimeType: blob.type || "image/jpeg", error: ""};
	} catch (e) {
		return {data: "", mimeType: "", error: String(e)};
	}
})(%s)`

// CaptureImage fetches the primary image of the content open on page and
// normalizes it to a JPEG no larger than MaxImageDimension on either edge.
func CaptureImage(ctx context.Context, page browser.Page) (*Image, error) {
	src, err := imageSource(ctx, page)
	if err != nil {
		return nil, err
	}

	var fetched struct {
		Data     string `json:"data"`
		MIMEType string `json:"mimeType"`
		Error    string `json:"error"`
	}
	if err := page.Evaluate(ctx, fmt.Sprintf(fetchScript, jsQuote(src)), &fetched); err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	if fetched.Error != "" {
		return nil, fmt.Errorf("fetch image: %s", fetched.Error)
	}

	raw, err := base64.StdEncoding.DecodeString(fetched.Data)
	if err != nil {
		return nil, fmt.Errorf("decode image payload: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrNoImage
	}

	img, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("sourceType", fetched.MIMEType).
		Int("bytes", len(img.Data)).
		Int("width", img.Width).
		Int("height", img.Height).
		Msg("Image captured")
	return img, nil
}

// Normalize decodes JPEG, PNG, GIF or WebP bytes, downscales to fit
// MaxImageDimension and re-encodes as JPEG.
func Normalize(raw []byte) (*Image, error) {
	src, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := src.Bounds()
	if b.Dx() > MaxImageDimension || b.Dy() > MaxImageDimension {
		src = imaging.Fit(src, MaxImageDimension, MaxImageDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, src, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	nb := src.Bounds()
	return &Image{
		Data:     buf.Bytes(),
		MIMEType: "image/jpeg",
		Width:    nb.Dx(),
		Height:   nb.Dy(),
	}, nil
}

func imageSource(ctx context.Context, page browser.Page) (string, error) {
	for _, sel := range imageSelectors {
		el, err := page.Query(ctx, sel)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}
		src, err := el.Attribute(ctx, "src")
		if err != nil {
			continue
		}
		if strings.HasPrefix(src, "http") {
			return src, nil
		}
	}
	return "", ErrNoImage
}

// jsQuote renders s as a JavaScript string literal.
func jsQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
