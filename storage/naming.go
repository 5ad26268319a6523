package storage

import (
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Name prefixes used by the file API and by backends that generate names.
const (
	GeneratedNamePrefix = "file_"
	ImageCategory       = "image"
	FileCategory        = "file"
	AvatarDirectory     = "avatars"
)

// GenerateName returns prefix followed by a random UUID and the extension of
// originalFilename, if it has one.
func GenerateName(prefix, originalFilename string) string {
	return prefix + uuid.NewString() + extensionOf(originalFilename)
}

// CategoryName returns "{category}_{epochMillis}_{originalFilename}".
func CategoryName(category, originalFilename string, now time.Time) string {
	return fmt.Sprintf("%s_%d_%s", category, now.UnixMilli(), originalFilename)
}

// AvatarName returns "avatars/{userID}_{uuid}{ext}".
func AvatarName(userID, originalFilename string) string {
	return path.Join(AvatarDirectory, GenerateName(userID+"_", originalFilename))
}

// generatedName is used by backends when an upload arrives without a name.
func generatedName(contentType string) string {
	ext := ""
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	return GeneratedNamePrefix + uuid.NewString() + ext
}

func extensionOf(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return ""
	}
	return filename[i:]
}
