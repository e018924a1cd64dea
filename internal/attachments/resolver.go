package attachments

import (
	"fmt"
	"mime"
	"path"
	"strings"
	"unicode/utf8"

	"pagesmith-deployment/internal/logger"
	"pagesmith-deployment/internal/models"

	"github.com/sirupsen/logrus"
)

// Resolver normalizes incoming file references into content the generator
// can consume. Unsupported or corrupt attachments are flagged, never fatal.
type Resolver struct {
	logger *logrus.Entry
}

func NewResolver() *Resolver {
	return &Resolver{logger: logger.WithModule("attachments")}
}

// Resolve classifies each attachment and marks those that need conversion.
// The input slice is returned with MediaKind and NeedsConversion filled in.
func (r *Resolver) Resolve(refs []models.AttachmentRef) []models.AttachmentRef {
	resolved := make([]models.AttachmentRef, 0, len(refs))
	for _, ref := range refs {
		if ref.MediaKind == "" || ref.MediaKind == models.MediaUnknown {
			ref.MediaKind = classify(ref.Name)
		}
		ref.NeedsConversion = needsConversion(ref)
		if ref.NeedsConversion {
			r.logger.WithFields(logrus.Fields{
				"name": ref.Name,
				"kind": ref.MediaKind,
			}).Warn("Attachment needs conversion, excluding content from prompt")
		}
		resolved = append(resolved, ref)
	}
	return resolved
}

// Summaries renders one line per attachment for the generation prompt.
// Textual payloads are inlined; everything else becomes a note so the
// generator knows content was excluded.
func (r *Resolver) Summaries(refs []models.AttachmentRef) []string {
	summaries := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref.NeedsConversion {
			summaries = append(summaries, fmt.Sprintf("Attachment %q (%s): content excluded, unsupported format", ref.Name, ref.MediaKind))
			continue
		}
		switch ref.MediaKind {
		case models.MediaText, models.MediaCSV, models.MediaJSON:
			summaries = append(summaries, fmt.Sprintf("Attachment %q (%s):\n%s", ref.Name, ref.MediaKind, string(ref.Payload)))
		default:
			summaries = append(summaries, fmt.Sprintf("Attachment %q (%s): binary content, %d bytes", ref.Name, ref.MediaKind, len(ref.Payload)))
		}
	}
	return summaries
}

func classify(name string) models.MediaKind {
	ext := strings.ToLower(path.Ext(name))
	switch ext {
	case ".txt", ".md", ".html", ".css", ".js":
		return models.MediaText
	case ".csv":
		return models.MediaCSV
	case ".json":
		return models.MediaJSON
	case ".pdf", ".doc", ".docx":
		return models.MediaDocument
	}
	kind := mime.TypeByExtension(ext)
	switch {
	case strings.HasPrefix(kind, "text/"):
		return models.MediaText
	case strings.HasPrefix(kind, "image/"):
		return models.MediaImage
	case strings.HasPrefix(kind, "audio/"):
		return models.MediaAudio
	case strings.HasPrefix(kind, "video/"):
		return models.MediaVideo
	}
	return models.MediaUnknown
}

func needsConversion(ref models.AttachmentRef) bool {
	switch ref.MediaKind {
	case models.MediaText, models.MediaCSV, models.MediaJSON:
		// Corrupt text payloads are excluded rather than fed to the
		// generator as garbage.
		return !utf8.Valid(ref.Payload)
	case models.MediaImage:
		return false
	case models.MediaAudio, models.MediaVideo, models.MediaDocument, models.MediaUnknown:
		return true
	}
	return true
}
