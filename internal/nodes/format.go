package nodes

import (
	"path/filepath"
	"strings"
)

// spreadsheetExtensions are rejected outright by ingest_sources.
var spreadsheetExtensions = map[string]bool{
	".xls": true, ".xlsx": true, ".xlsm": true,
}

// imageExtensions route a source through vision-LLM understanding instead of
// a text parser.
var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
}

// canonicalFormat maps a file extension or explicit hint to the canonical
// format identifier collaborators.Registry parsers key on.
func canonicalFormat(hint, path string) string {
	if hint != "" {
		return strings.ToLower(hint)
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return "pdf"
	case ".docx":
		return "docx"
	case ".md", ".markdown":
		return "markdown"
	case ".txt", "":
		return "text"
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return "image"
	default:
		return ext
	}
}

func isSpreadsheet(path string) bool {
	return spreadsheetExtensions[strings.ToLower(filepath.Ext(path))]
}

func isImage(format string) bool {
	if imageExtensions["."+format] {
		return true
	}
	return format == "image"
}
