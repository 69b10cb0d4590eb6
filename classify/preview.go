package classify

import (
	"github.com/tbxark/actionblock/registry"
	"github.com/tbxark/actionblock/types"
)

// Preview is what a flow author sees for a tagged step.
type Preview struct {
	Tag         string          `json:"tag"`
	BlockType   types.BlockType `json:"block_type"`
	Label       string          `json:"label"`
	Icon        string          `json:"icon,omitempty"`
	Description string          `json:"description"`
	Preview     string          `json:"preview,omitempty"`
	Example     string          `json:"example"`
}

func PreviewTag(reg *registry.Registry, tag string) (*Preview, error) {
	def, err := reg.ByFlowTag(tag)
	if err != nil {
		return nil, err
	}
	return &Preview{
		Tag:         tag,
		BlockType:   def.Type,
		Label:       def.Meta.Label,
		Icon:        def.Meta.Icon,
		Description: def.Meta.Description,
		Preview:     def.Meta.Preview,
		Example:     def.Example,
	}, nil
}

// Previews lists every authorable step in registration order.
func Previews(reg *registry.Registry) []Preview {
	tags := reg.FlowTags()
	out := make([]Preview, 0, len(tags))
	for _, tag := range tags {
		if p, err := PreviewTag(reg, tag); err == nil {
			out = append(out, *p)
		}
	}
	return out
}
