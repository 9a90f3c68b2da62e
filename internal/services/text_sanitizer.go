package services

import (
	"regexp"
	"strings"
)

var (
	// Keeps \t, \n and \r.
	controlCharsRegex    = regexp.MustCompile(`[\x00-\x08\x0B-\x0C\x0E-\x1F\x7F]`)
	zeroWidthRegex       = regexp.MustCompile(`[\x{200B}-\x{200F}\x{FEFF}]`)
	nbspRegex            = regexp.MustCompile(`\x{00A0}`)
	lineSeparatorRegex   = regexp.MustCompile(`\r\n|[\r\x{2028}\x{2029}\x{0085}]`)
	excessiveSpacesRegex = regexp.MustCompile(`[ \t]{3,}`)
	excessiveNewlines    = regexp.MustCompile(`\n{4,}`)
	htmlTagRegex         = regexp.MustCompile(`<[^>]*>`)
	htmlEntityReplacer   = strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", "\"",
		"&apos;", "'",
		"&#39;", "'",
		"&nbsp;", " ",
	)
)

type TextSanitizer struct{}

func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{}
}

// SanitizeText removes control and invisible characters and collapses
// runs of blanks, keeping line structure so markdown survives.
func (ts *TextSanitizer) SanitizeText(text string) string {
	if text == "" {
		return ""
	}

	sanitized := controlCharsRegex.ReplaceAllString(text, "")
	sanitized = zeroWidthRegex.ReplaceAllString(sanitized, "")
	sanitized = nbspRegex.ReplaceAllString(sanitized, " ")
	sanitized = lineSeparatorRegex.ReplaceAllString(sanitized, "\n")
	sanitized = excessiveSpacesRegex.ReplaceAllString(sanitized, " ")
	sanitized = excessiveNewlines.ReplaceAllString(sanitized, "\n\n\n")

	return strings.TrimSpace(sanitized)
}

// Sanitize strips HTML tags and decodes the common entities.
func (ts *TextSanitizer) Sanitize(text string) string {
	sanitized := htmlTagRegex.ReplaceAllString(text, "")
	sanitized = htmlEntityReplacer.Replace(sanitized)
	return strings.TrimSpace(sanitized)
}

// CountProblems reports how many characters SanitizeText would drop or
// rewrite; used for logging only.
func (ts *TextSanitizer) CountProblems(text string) map[string]int {
	return map[string]int{
		"controlChars":    len(controlCharsRegex.FindAllString(text, -1)),
		"zeroWidthChars":  len(zeroWidthRegex.FindAllString(text, -1)),
		"excessiveSpaces": len(excessiveSpacesRegex.FindAllString(text, -1)),
	}
}

var (
	digitsOnlyRegex  = regexp.MustCompile(`^\d+$`)
	dashesOnlyRegex  = regexp.MustCompile(`^[-\s]+$`)
	pageMarkerRegex  = regexp.MustCompile(`(?i)^(page|p\.|pg\.?)\s*\d+(\s*(of|/)\s*\d+)?$`)
	stampedLineRegex = regexp.MustCompile(`^\w+\s-\s\d{2}/\d{2}/\d{4}\s\d{2}:\d{2}:\d{2}$`)
)

// DropRepeatedLines removes header and footer noise from multi-page text:
// short generic lines (page numbers, rules, timestamps) that appear on more
// than 80% of the pages. Documents with fewer than three pages are
// returned unchanged.
func DropRepeatedLines(pages []string) []string {
	if len(pages) < 3 {
		return pages
	}

	lineCount := make(map[string]int)
	for _, page := range pages {
		seen := map[string]bool{}
		for _, line := range strings.Split(page, "\n") {
			clean := strings.TrimSpace(line)
			if clean == "" || seen[clean] {
				continue
			}
			seen[clean] = true
			lineCount[clean]++
		}
	}

	maxRepetitions := int(float64(len(pages)) * 0.8)
	out := make([]string, len(pages))
	for i, page := range pages {
		lines := strings.Split(page, "\n")
		kept := lines[:0]
		for _, line := range lines {
			clean := strings.TrimSpace(line)
			if lineCount[clean] > maxRepetitions && isGenericLine(clean) {
				continue
			}
			kept = append(kept, line)
		}
		out[i] = strings.TrimSpace(strings.Join(kept, "\n"))
	}
	return out
}

func isGenericLine(line string) bool {
	if line == "" || len(line) >= 20 {
		return false
	}
	return digitsOnlyRegex.MatchString(line) ||
		dashesOnlyRegex.MatchString(line) ||
		pageMarkerRegex.MatchString(line) ||
		stampedLineRegex.MatchString(line)
}
