// Package evidence turns raw uploaded image bytes plus caller-declared
// geotag fields into a normalized evidence record. It writes the original
// and a thumbnail under the storage root but never touches the project
// itself; persistence of the record belongs to the project store.
package evidence

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"veriflow-backend/internal/models"
	"veriflow-backend/internal/pkg/apperrors"
)

const (
	thumbnailWidth   = 300
	thumbnailQuality = 70
	thumbnailPrefix  = "thumb-"
	urlPrefix        = "/uploads/"
)

// Upload is the raw file payload handed in by the transport layer.
type Upload struct {
	Filename string
	MimeType string
	Size     int64
	Data     []byte
}

// Fields are the caller-supplied form fields accompanying an upload.
// All of them are optional; coercion failures degrade to null rather
// than rejecting the request.
type Fields struct {
	Latitude    string
	Longitude   string
	Timestamp   string
	Description string
}

// Processor writes evidence files under Root and derives metadata.
// Root must exist before Process is called (created at startup).
type Processor struct {
	Root string
}

// Process validates and stores the upload, derives dimensions and a
// thumbnail, and returns the completed evidence record.
//
// Dimension decoding failure degrades to null width/height, but a failed
// thumbnail aborts the whole operation with a processing error so no
// evidence record without a preview is ever persisted. The already
// written original is left behind as a tolerated orphan.
func (p *Processor) Process(upload *Upload, fields Fields) (*models.EvidenceImage, error) {
	if upload == nil || len(upload.Data) == 0 {
		return nil, apperrors.Validation("No image uploaded")
	}

	storedName := storedFilename(upload.Filename)
	if err := os.WriteFile(filepath.Join(p.Root, storedName), upload.Data, 0o644); err != nil {
		return nil, apperrors.Storage(err)
	}

	thumbName := thumbnailPrefix + storedName
	if err := p.writeThumbnail(upload.Data, thumbName); err != nil {
		log.Error().Err(err).Str("filename", upload.Filename).Msg("thumbnail generation failed")
		return nil, apperrors.Processing("Error uploading image", err)
	}
	thumbURL := urlPrefix + thumbName

	width, height := decodeDimensions(upload.Data)

	img := &models.EvidenceImage{
		ID:           uuid.New(),
		Filename:     storedName,
		URL:          urlPrefix + storedName,
		ThumbnailURL: &thumbURL,
		MimeType:     upload.MimeType,
		SizeBytes:    upload.Size,
		Width:        width,
		Height:       height,
		Latitude:     parseCoordinate(fields.Latitude),
		Longitude:    parseCoordinate(fields.Longitude),
		CapturedAt:   parseTimestamp(fields.Timestamp),
		UploadedAt:   time.Now().UTC(),
	}
	if fields.Description != "" {
		d := fields.Description
		img.Description = &d
	}
	return img, nil
}

// writeThumbnail re-encodes a 300px-wide JPEG preview regardless of the
// source format.
func (p *Processor) writeThumbnail(data []byte, name string) error {
	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return err
	}
	thumb := imaging.Resize(src, thumbnailWidth, 0, imaging.Lanczos)

	f, err := os.Create(filepath.Join(p.Root, name))
	if err != nil {
		return err
	}
	defer f.Close()
	return imaging.Encode(f, thumb, imaging.JPEG, imaging.JPEGQuality(thumbnailQuality))
}

// decodeDimensions reads pixel dimensions from the image header. Returns
// nils on failure; evidence is still useful without dimensions.
func decodeDimensions(data []byte) (*int, *int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, nil
	}
	w, h := cfg.Width, cfg.Height
	return &w, &h
}

// storedFilename builds a collision-resistant stored name from the upload
// timestamp and a random suffix, keeping the original extension.
func storedFilename(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("%d_%09d%s", time.Now().UnixMilli(), rand.Intn(1_000_000_000), ext)
}

func parseCoordinate(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &v
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	// Epoch milliseconds from mobile clients
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		t := time.UnixMilli(ms).UTC()
		return &t
	}
	return nil
}
