package validation

import (
	"errors"
	"mime/multipart"
	"path/filepath"
	"strings"
)

var (
	ErrFileSize     = errors.New("file size exceeds limit of 5MB")
	ErrFileType     = errors.New("invalid file type. Allowed types: JPG, PNG, WEBP")
	ErrFileRequired = errors.New("no file provided")
)

const MaxImageSize = 5 * 1024 * 1024 // 5MB

var AllowedImageTypes = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

func ValidateImage(file *multipart.FileHeader) error {
	if file == nil {
		return ErrFileRequired
	}

	if file.Size > MaxImageSize {
		return ErrFileSize
	}

	ext := filepath.Ext(strings.ToLower(file.Filename))
	if !AllowedImageTypes[ext] {
		return ErrFileType
	}

	return nil
}
