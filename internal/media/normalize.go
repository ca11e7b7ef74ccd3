// SPDX-License-Identifier: MIT

package media

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mediagate/mediagate/internal/extract"
	"github.com/mediagate/mediagate/internal/registry"
)

// Normalizer finishes extractor output before it leaves the gateway. It
// fills media types, enforces honest size reporting, synthesizes download
// filenames and registers every outbound URL so delivery endpoints can
// address sources by fingerprint.
type Normalizer struct {
	registry *registry.Registry
	logger   zerolog.Logger
}

func NewNormalizer(reg *registry.Registry, logger zerolog.Logger) *Normalizer {
	return &Normalizer{
		registry: reg,
		logger:   logger.With().Str("component", "normalizer").Logger(),
	}
}

// Normalize mutates res in place. It is safe to call on any extractor
// result, including partially filled ones.
func (n *Normalizer) Normalize(ctx context.Context, res *extract.Result) {
	if res == nil {
		return
	}
	author := res.Author
	if author == "" {
		author = res.AuthorUsername
	}
	title := res.Title
	if title == "" {
		title = res.ID
	}
	total := len(res.Items)
	for i := range res.Items {
		item := &res.Items[i]
		if item.Thumbnail != "" {
			item.ThumbnailHash = n.register(ctx, item.Thumbnail)
		}
		for j := range item.Sources {
			n.normalizeSource(ctx, &item.Sources[j], author, res.ContentType, title, item.Index, total)
		}
	}
}

func (n *Normalizer) normalizeSource(ctx context.Context, src *extract.MediaSource, author, contentType, title string, index, total int) {
	ti := Analyze(src.MIME, src.URL)
	if src.MIME == "" {
		src.MIME = ti.MIME
	}
	if src.Extension == "" {
		src.Extension = ti.Extension
	}
	if src.Format == "" {
		switch ti.Container {
		case "hls":
			src.Format = extract.FormatHLS
		case "dash":
			src.Format = extract.FormatDASH
		default:
			src.Format = extract.FormatProgressive
		}
	}

	streaming := src.Format == extract.FormatHLS || src.Format == extract.FormatDASH
	if streaming {
		// A manifest has no honest byte count unless we can project one.
		if est, ok := EstimateSize(int(src.Bitrate), src.Duration); ok {
			src.Size = est
			src.SizeConfidence = SizeEstimated
		} else {
			src.Size = 0
			src.SizeConfidence = ""
		}
	} else if src.Size > 0 && src.SizeConfidence == "" {
		src.SizeConfidence = SizeExact
	}

	if src.Filename == "" {
		src.Filename = BuildFilename(author, contentType, title, src.Quality, src.Extension, index, total)
	}
	if src.URL != "" {
		src.Hash = n.register(ctx, src.URL)
	}
}

func (n *Normalizer) register(ctx context.Context, rawURL string) string {
	if n.registry == nil {
		return ""
	}
	hash, err := n.registry.Add(ctx, rawURL)
	if err != nil {
		n.logger.Warn().Err(err).Str("url", rawURL).Msg("url registration failed")
		return ""
	}
	return hash
}
