package llm

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// FileFromPath reads a file and packages it as an inline attachment. The MIME
// type comes from the extension, then from content sniffing, then falls back
// to application/octet-stream.
func FileFromPath(path string) (FileRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileRef{}, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	// TypeByExtension can return parameters ("text/plain; charset=utf-8");
	// data URLs want the bare type.
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	return FileRef{
		Filename: filepath.Base(path),
		MIMEType: mimeType,
		DataURL:  fmt.Sprintf("data:%s;base64,%s", mimeType, encoded),
	}, nil
}

// FilesFromPaths reads several files, failing on the first unreadable one.
func FilesFromPaths(paths []string) ([]FileRef, error) {
	files := make([]FileRef, 0, len(paths))
	for _, path := range paths {
		file, err := FileFromPath(path)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}
