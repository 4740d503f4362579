package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Validation errors for attachment retrieval. The presentation layer maps
// these to request rejections.
var (
	ErrInvalidSessionID = errors.New("invalid session id")
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrForbiddenType    = errors.New("file type not allowed")
	ErrOutsideRoot      = errors.New("path escapes storage root")
)

var (
	sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)
	filenamePattern  = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// ResolveAttachment validates a session id and filename and returns the
// absolute path of the stored attachment. The character sets are restricted,
// traversal sequences rejected, the extension checked against the image
// allow-list, and the final path confined to the images directory.
func ResolveAttachment(root, sessionID, filename string) (string, error) {
	if !sessionIDPattern.MatchString(sessionID) {
		return "", ErrInvalidSessionID
	}
	if !filenamePattern.MatchString(filename) ||
		strings.Contains(filename, "..") ||
		strings.ContainsAny(filename, `/\`) {
		return "", ErrInvalidFilename
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(filename))] {
		return "", ErrForbiddenType
	}

	base, err := filepath.Abs(filepath.Join(root, "images"))
	if err != nil {
		return "", fmt.Errorf("resolve attachment: %w", err)
	}
	full := filepath.Join(base, sessionID, filename)
	if !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}

	if _, err := os.Stat(full); err != nil {
		return "", fmt.Errorf("resolve attachment: %w", err)
	}
	return full, nil
}
