package upload

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// validate checks type and size before anything is sent and returns the
// resolved content type.
func (c *Coordinator) validate(t Target, f File) (string, error) {
	if len(f.Data) == 0 {
		return "", &Error{Kind: KindValidation, Message: "the selected file is empty"}
	}

	ct := contentType(f)
	allowed, limit := c.cfg.VideoTypes, c.cfg.MaxVideoBytes
	if t.Media == MediaDocument {
		allowed, limit = c.cfg.DocumentTypes, c.cfg.MaxDocumentBytes
	}

	if !typeAllowed(ct, allowed) {
		return "", &Error{
			Kind:    KindUnsupportedType,
			Message: fmt.Sprintf("%s files are not accepted here (allowed: %s)", ct, strings.Join(allowed, ", ")),
		}
	}
	if limit > 0 && int64(len(f.Data)) > limit {
		return "", &Error{
			Kind:    KindTooLarge,
			Message: fmt.Sprintf("file is %s, the limit is %s", humanSize(int64(len(f.Data))), humanSize(limit)),
		}
	}
	return ct, nil
}

// contentType prefers the declared type and sniffs the bytes when the
// browser sent none or a generic one.
func contentType(f File) string {
	declared := f.ContentType
	if mt, _, err := mime.ParseMediaType(declared); err == nil {
		declared = mt
	}
	if declared != "" && declared != "application/octet-stream" {
		return strings.ToLower(declared)
	}
	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(f.Data))
	return sniffed
}

func typeAllowed(ct string, allowed []string) bool {
	for _, pattern := range allowed {
		pattern = strings.ToLower(pattern)
		if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
			if strings.HasPrefix(ct, prefix+"/") {
				return true
			}
			continue
		}
		if ct == pattern {
			return true
		}
	}
	return false
}

// encode builds the transfer payload: base64 file body plus metadata with a
// blake2b-256 checksum of the raw bytes.
func encode(t Target, f File, ct string) Payload {
	sum := blake2b.Sum256(f.Data)
	return Payload{
		EncodedFile: base64.StdEncoding.EncodeToString(f.Data),
		Metadata: Metadata{
			FileName:    f.Name,
			ContentType: ct,
			Size:        int64(len(f.Data)),
			Checksum:    hex.EncodeToString(sum[:]),
			LessonID:    t.LessonID,
			Media:       t.Media,
		},
	}
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
