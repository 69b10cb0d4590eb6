package parser

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/tbxark/actionblock/registry"
)

// DefaultRepairThreshold is how many times an opening marker must repeat,
// with its closing marker absent, before the last copy is taken to be a
// mistyped closing marker.
const DefaultRepairThreshold = 3

var wrapRun = regexp.MustCompile(`[ \t\r]*\n\s*`)

// Normalize repairs known generator mistakes before tokenizing. It runs the
// duplicated-opening-marker repair first so that the repaired pair also gets
// its body collapsed.
func Normalize(reg *registry.Registry, text string, threshold int) string {
	if text == "" {
		return text
	}
	if threshold <= 0 {
		threshold = DefaultRepairThreshold
	}
	defs := reg.All()
	for _, d := range defs {
		if d.SelfClosing() {
			continue
		}
		text = repairDuplicatedOpen(text, d.Open, d.Close, threshold)
	}
	for _, d := range defs {
		if d.SelfClosing() {
			continue
		}
		switch d.Layout {
		case registry.LayoutInline:
			text = collapseBodies(text, d.Open, d.Close, "")
		case registry.LayoutJSON:
			text = collapseBodies(text, d.Open, d.Close, " ")
		}
	}
	return text
}

func repairDuplicatedOpen(text, open, close string, threshold int) string {
	if strings.Contains(text, close) {
		return text
	}
	n := strings.Count(text, open)
	if n < threshold {
		return text
	}
	idx := strings.LastIndex(text, open)
	slog.Debug("Repaired duplicated opening marker", "marker", open, "occurrences", n)
	return text[:idx] + close + text[idx+len(open):]
}

// collapseBodies removes line-wrap artifacts between each opening marker and
// its nearest closing marker. Newline runs become sep and the body is trimmed.
func collapseBodies(text, open, close, sep string) string {
	if !strings.Contains(text, open) || !strings.Contains(text, close) {
		return text
	}
	var sb strings.Builder
	rest := text
	for {
		start := strings.Index(rest, open)
		if start < 0 {
			break
		}
		bodyStart := start + len(open)
		end := strings.Index(rest[bodyStart:], close)
		if end < 0 {
			break
		}
		body := rest[bodyStart : bodyStart+end]
		body = strings.TrimSpace(wrapRun.ReplaceAllString(body, sep))
		sb.WriteString(rest[:bodyStart])
		sb.WriteString(body)
		sb.WriteString(close)
		rest = rest[bodyStart+end+len(close):]
	}
	sb.WriteString(rest)
	return sb.String()
}
