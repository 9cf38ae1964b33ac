package common

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
)

var ErrNotDataImage = errors.New("not a base64 image")

// DecodeB64Image decodes a base64 image, with or without a data URI header,
// and sniffs its format.
// The returned extension is "jpg", "png" or "gif".
func DecodeB64Image(b64 string) (data []byte, ext string, err error) {
	if i := strings.Index(b64, ";base64,"); strings.HasPrefix(b64, "data:") && i >= 0 {
		b64 = b64[i+len(";base64,"):]
	}
	data, err = base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, "", ErrNotDataImage
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", ErrNotDataImage
	}
	switch format {
	case "jpeg":
		ext = "jpg"
	case "png", "gif":
		ext = format
	default:
		return nil, "", ErrNotDataImage
	}
	return data, ext, nil
}

func ContentTypeForExt(ext string) string {
	switch ext {
	case "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	}
	return "application/octet-stream"
}
