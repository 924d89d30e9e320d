package catalog

import (
	"net/url"
	"regexp"
	"strings"
)

var driveFilePath = regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`)

// AssetPath resolves a product image reference. Absolute URLs go through
// DriveThumbnailURL; relative paths are rooted and prefixed with basePath.
func AssetPath(path, basePath string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return DriveThumbnailURL(path)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimSuffix(basePath, "/") + path
}

// DriveThumbnailURL rewrites a Google Drive share or download link into a
// directly embeddable thumbnail URL. Other URLs are returned unchanged.
func DriveThumbnailURL(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	if !strings.Contains(u.Hostname(), "drive.google.com") &&
		!strings.Contains(u.Hostname(), "drive.usercontent.google.com") {
		return raw
	}

	fileID := u.Query().Get("id")
	if fileID == "" {
		if m := driveFilePath.FindStringSubmatch(u.Path); m != nil {
			fileID = m[1]
		}
	}
	if fileID == "" {
		return raw
	}
	return "https://drive.google.com/thumbnail?id=" + fileID + "&sz=w1600"
}
