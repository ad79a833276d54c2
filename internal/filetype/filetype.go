// Package filetype implements spec.md §4.6's file-type detector: a MIME
// sniff over a small header read, downgraded from video to audio when a
// video/* container carries no actual video stream. spec.md §1 lists this
// detector as an external collaborator the core only describes a contract
// for (directory.FileTypeDetector); this package is a concrete, minimal
// implementation of that contract so the CLI has something to wire in
// without a real ffprobe dependency.
package filetype

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/Fl0k3n/kfe/internal/directory"
)

// StreamProber reports whether path's container has a decodable video
// stream, used to downgrade a video/* MIME sniff to FileTypeAudio per
// spec.md §4.6 ("if MIME is video/*, probe for a video stream and
// downgrade to audio if none"). A nil StreamProber skips the downgrade.
type StreamProber interface {
	HasVideoStream(ctx context.Context, path string) (bool, error)
}

// Detector implements directory.FileTypeDetector using net/http's MIME
// sniffer (stdlib, not a corpus dependency — this boundary is explicitly
// external per spec.md §1, so no ecosystem MIME library is wired in here;
// see DESIGN.md).
type Detector struct {
	streams StreamProber
}

// New returns a Detector. streams may be nil.
func New(streams StreamProber) *Detector {
	return &Detector{streams: streams}
}

var _ directory.FileTypeDetector = (*Detector)(nil)

// DetectType implements directory.FileTypeDetector.
func (d *Detector) DetectType(ctx context.Context, absPath string) (directory.FileType, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return directory.TypeOther, fmt.Errorf("open %s: %w", absPath, err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && n == 0 {
		return directory.TypeOther, fmt.Errorf("read %s: %w", absPath, err)
	}
	mime := http.DetectContentType(head[:n])

	switch {
	case strings.HasPrefix(mime, "image/"):
		return directory.TypeImage, nil
	case strings.HasPrefix(mime, "video/"):
		if d.streams != nil {
			hasVideo, probeErr := d.streams.HasVideoStream(ctx, absPath)
			if probeErr == nil && !hasVideo {
				return directory.TypeAudio, nil
			}
		}
		return directory.TypeVideo, nil
	case strings.HasPrefix(mime, "audio/"):
		return directory.TypeAudio, nil
	case strings.HasPrefix(mime, "text/") || mime == "application/pdf":
		return directory.TypeDocument, nil
	default:
		return directory.TypeOther, nil
	}
}
