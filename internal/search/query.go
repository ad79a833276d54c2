// Package search implements the qualifier DSL that turns a raw search box
// string into a routed, filtered query, plus the two fusion strategies
// (reciprocal rank fusion and weighted-sum rescoring) that combine
// per-dimension result lists into one ranking. Grounded on the original
// engine's SearchQueryParser, generalized from its four-qualifier set to
// the full metric/qualifier surface this engine supports.
package search

import (
	"regexp"
	"strings"

	"github.com/Fl0k3n/kfe/internal/model"
)

// Metric selects which retrieval path a query is routed through.
type Metric int

const (
	MetricHybrid Metric = iota
	MetricCombinedLexical
	MetricCombinedSemantic
	MetricDescriptionLexical
	MetricDescriptionSemantic
	MetricOCRLexical
	MetricOCRSemantic
	MetricTranscriptLexical
	MetricTranscriptSemantic
	MetricClip
)

// ParsedQuery is a raw search string split into its routed, stripped text
// and the filters/metric its qualifiers selected.
type ParsedQuery struct {
	Text            string
	Metric          Metric
	FileType        model.FileType
	HasFileType     bool
	OnlyScreenshot  bool
	NoScreenshots   bool
}

var qualifierRe = regexp.MustCompile(`@(\S+)`)

const (
	qualImage      = "image"
	qualVideo      = "video"
	qualAudio      = "audio"
	qualScreenshot = "ss"
	qualNoShot     = "nss"
	qualLex        = "lex"
	qualSem        = "sem"
	qualDLex       = "dlex"
	qualDSem       = "dsem"
	qualOLex       = "olex"
	qualOSem       = "osem"
	qualTLex       = "tlex"
	qualTSem       = "tsem"
	qualClip       = "clip"
)

// Parse extracts qualifiers from raw, returning the routed query and the
// remaining free text with every `@qualifier` token removed.
func Parse(raw string) ParsedQuery {
	pq := ParsedQuery{Metric: MetricHybrid}

	for _, m := range qualifierRe.FindAllStringSubmatch(raw, -1) {
		switch m[1] {
		case qualImage:
			pq.FileType, pq.HasFileType = model.FileTypeImage, true
		case qualVideo:
			pq.FileType, pq.HasFileType = model.FileTypeVideo, true
		case qualAudio:
			pq.FileType, pq.HasFileType = model.FileTypeAudio, true
		case qualScreenshot:
			pq.OnlyScreenshot = true
		case qualNoShot:
			pq.NoScreenshots = true
		case qualLex:
			pq.Metric = MetricCombinedLexical
		case qualSem:
			pq.Metric = MetricCombinedSemantic
		case qualDLex:
			pq.Metric = MetricDescriptionLexical
		case qualDSem:
			pq.Metric = MetricDescriptionSemantic
		case qualOLex:
			pq.Metric = MetricOCRLexical
		case qualOSem:
			pq.Metric = MetricOCRSemantic
		case qualTLex:
			pq.Metric = MetricTranscriptLexical
		case qualTSem:
			pq.Metric = MetricTranscriptSemantic
		case qualClip:
			pq.Metric = MetricClip
		}
	}

	pq.Text = strings.TrimSpace(qualifierRe.ReplaceAllString(raw, ""))
	return pq
}
