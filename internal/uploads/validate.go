package uploads

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/noah-isme/evalmate-go-client/pkg/evalmate"
)

// acceptedKind normalizes a detected MIME type onto the backend's document
// vocabulary. The ingestion pipeline parses PDF, Word documents, and images;
// everything else is rejected before any network call.
func acceptedKind(mime string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(mime))
	if strings.HasPrefix(lower, "image/") {
		return "image", true
	}
	switch lower {
	case "application/pdf":
		return "pdf", true
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/msword":
		return "docx", true
	}
	return lower, false
}

// loadFile reads and validates an upload candidate. It returns the payload
// together with the normalized document kind used for metrics labels.
func (q *Queue) loadFile(path string) (evalmate.UploadFile, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return evalmate.UploadFile{}, "", fmt.Errorf("stat upload file: %w", err)
	}
	if info.Size() > q.maxBytes {
		return evalmate.UploadFile{}, "", fmt.Errorf("%w: %s is %d bytes (limit %d)",
			ErrFileTooLarge, filepath.Base(path), info.Size(), q.maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return evalmate.UploadFile{}, "", fmt.Errorf("read upload file: %w", err)
	}
	if int64(len(data)) > q.maxBytes {
		return evalmate.UploadFile{}, "", fmt.Errorf("%w: %s", ErrFileTooLarge, filepath.Base(path))
	}

	kind, ok := acceptedKind(mimetype.Detect(data).String())
	if !ok {
		return evalmate.UploadFile{}, "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, kind)
	}

	return evalmate.UploadFile{Name: filepath.Base(path), Data: data}, kind, nil
}
