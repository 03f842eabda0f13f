package image

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"mime/multipart"

	"github.com/chai2010/webp"
)

// ConvertToWebP decodes an uploaded image and re-encodes it as lossy webp.
// Avatars are stored in one format regardless of what the browser sent.
func ConvertToWebP(file *multipart.FileHeader) (*bytes.Buffer, error) {
	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("could not open file: %v", err)
	}
	defer src.Close()

	img, _, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("could not decode image: %v", err)
	}

	buf := new(bytes.Buffer)
	if err := webp.Encode(buf, img, &webp.Options{Lossless: false, Quality: 85}); err != nil {
		return nil, fmt.Errorf("could not encode webp: %v", err)
	}

	return buf, nil
}
