package registry

import (
	"encoding/json"
	"log/slog"

	"github.com/eino-contrib/jsonschema"
	"github.com/tbxark/actionblock/types"
)

// Catalog describes every registered block for the assistant system prompt.
func (r *Registry) Catalog() []types.CatalogEntry {
	defs := r.All()
	out := make([]types.CatalogEntry, 0, len(defs))
	for _, d := range defs {
		entry := types.CatalogEntry{
			Type:        d.Type,
			Open:        d.Open,
			Close:       d.Close,
			Description: d.Meta.Description,
			Example:     d.Example,
		}
		if entry.Example == "" {
			entry.Example = d.Open
		}
		if d.Sample != nil && d.Layout == LayoutJSON {
			schema := jsonschema.Reflect(d.Sample)
			schema.Title = d.Meta.Label
			raw, err := json.Marshal(schema)
			if err != nil {
				slog.Warn("Failed to reflect block schema", "type", d.Type, "error", err)
			} else {
				entry.Schema = string(raw)
			}
		}
		out = append(out, entry)
	}
	return out
}

// Prompt renders the catalog as markdown.
func (r *Registry) Prompt() string {
	return types.FormatCatalog(r.Catalog())
}
