// Package storage validates and persists uploaded profile pictures.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// FilePrefix is prepended to every stored picture name.
const FilePrefix = "profile_picture-"

// ErrUnsupportedType is returned when an upload is not an allowed image.
var ErrUnsupportedType = errors.New("only images allowed")

const maxNameAttempts = 5

var allowedTypes = regexp.MustCompile(`jpeg|jpg|png|jfif`)

// Backend persists picture bytes under a name.
type Backend interface {
	Save(ctx context.Context, name, contentType string, r io.Reader) error
	Remove(ctx context.Context, name string) error
}

// Intake checks uploads against the image allow-list and hands them to a Backend.
type Intake struct {
	backend Backend
	now     func() time.Time
}

// NewIntake creates an intake writing to backend.
func NewIntake(backend Backend) *Intake {
	return &Intake{backend: backend, now: time.Now}
}

// Accept validates fh and stores it, returning the generated file name.
func (in *Intake) Accept(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	contentType := fh.Header.Get("Content-Type")
	if !Allowed(ext, contentType) {
		return "", fmt.Errorf("%w: %q (%s)", ErrUnsupportedType, fh.Filename, contentType)
	}

	stamp := in.now().UnixMilli()
	for attempt := 0; ; attempt++ {
		name := in.fileName(stamp, attempt, ext)
		err := in.save(ctx, fh, name, contentType)
		if err == nil {
			return name, nil
		}
		// Same-millisecond uploads collide; retry under a suffixed name.
		if errors.Is(err, fs.ErrExist) && attempt+1 < maxNameAttempts {
			continue
		}
		return "", fmt.Errorf("save %s: %w", name, err)
	}
}

func (in *Intake) save(ctx context.Context, fh *multipart.FileHeader, name, contentType string) error {
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	return in.backend.Save(ctx, name, contentType, f)
}

// Remove deletes a previously accepted picture.
func (in *Intake) Remove(ctx context.Context, name string) error {
	return in.backend.Remove(ctx, name)
}

// Allowed reports whether both the extension and the declared MIME type
// name an allowed image format.
func Allowed(ext, contentType string) bool {
	return ext != "" && allowedTypes.MatchString(strings.ToLower(ext)) &&
		allowedTypes.MatchString(strings.ToLower(contentType))
}

func (in *Intake) fileName(stamp int64, attempt int, ext string) string {
	if attempt == 0 {
		return fmt.Sprintf("%s%d%s", FilePrefix, stamp, ext)
	}
	return fmt.Sprintf("%s%d-%d%s", FilePrefix, stamp, attempt, ext)
}
