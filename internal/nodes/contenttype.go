package nodes

import (
	"regexp"
	"strings"
)

var timestampLinePattern = regexp.MustCompile(`(?m)^\d{1,2}:\d{2}(:\d{2})?\s*$`)

// detectContentType classifies the ingested source set as "transcript",
// "slides", "mixed", or "document" from filename hints and timestamp
// density, so downstream prompts can be told what shape of material they are
// summarizing. Purely advisory: it never changes RawContent itself.
func detectContentType(names []string, bodies []string) string {
	var hasTranscript, hasSlides bool
	for i, name := range names {
		lower := strings.ToLower(name)
		if strings.Contains(lower, "transcript") || strings.Contains(lower, "lecture") {
			hasTranscript = true
		}
		if strings.HasSuffix(lower, ".pdf") || strings.HasSuffix(lower, ".pptx") {
			hasSlides = true
		}
		if i < len(bodies) && len(timestampLinePattern.FindAllString(bodies[i], 11)) > 10 {
			hasTranscript = true
		}
	}
	switch {
	case hasTranscript && hasSlides:
		return "mixed"
	case hasTranscript:
		return "transcript"
	case hasSlides:
		return "slides"
	default:
		return "document"
	}
}
