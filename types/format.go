package types

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
)

// CatalogEntry describes one block type to the assistant.
type CatalogEntry struct {
	Type        BlockType
	Open        string
	Close       string
	Description string
	Example     string
	Schema      string
}

// Field is one label/value row of a completed view.
type Field struct {
	Label string
	Value string
}

// FormatFields renders a two-column markdown table, skipping empty values.
func FormatFields(fields []Field) string {
	rows := make([]Field, 0, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f.Value) != "" {
			rows = append(rows, f)
		}
	}
	if len(rows) == 0 {
		return ""
	}
	var buf strings.Builder
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Field", "Value")
	for _, f := range rows {
		_ = table.Append(f.Label, f.Value)
	}
	_ = table.Render()
	return buf.String()
}

// FormatCatalog renders the marker grammar so the assistant can emit blocks.
func FormatCatalog(entries []CatalogEntry) string {
	if len(entries) == 0 {
		return ""
	}
	var buf strings.Builder
	buf.WriteString("# Interactive blocks:\n")
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Block", "Syntax", "Use")
	for _, e := range entries {
		_ = table.Append(string(e.Type), strings.ReplaceAll(e.Example, "\n", `\n`), e.Description)
	}
	_ = table.Render()
	for _, e := range entries {
		if e.Schema == "" {
			continue
		}
		buf.WriteString(fmt.Sprintf("\n## %s body schema:\n```json\n%s\n```\n", e.Open, e.Schema))
	}
	return buf.String()
}
