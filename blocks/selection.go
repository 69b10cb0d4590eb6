package blocks

import (
	"context"
	"fmt"
	"strings"

	"github.com/tbxark/actionblock/endpoint"
	"github.com/tbxark/actionblock/registry"
	"github.com/tbxark/actionblock/types"
)

const (
	TypeServiceSelect types.BlockType = "service_select"
	TypeTimeSlot      types.BlockType = "time_slot"
)

type ServiceSelect struct {
	Category string `json:"category"`
}

func (ServiceSelect) BlockType() types.BlockType { return TypeServiceSelect }

type ServiceResult struct {
	ServiceID endpoint.ID `json:"service_id"`
	Name      string      `json:"name"`
	Price     string      `json:"price,omitempty"`
}

func serviceSelectDefinition() registry.Definition {
	return registry.Definition{
		Type:   TypeServiceSelect,
		Open:   "[SERVICE_SELECT]",
		Close:  "[/SERVICE_SELECT]",
		Layout: registry.LayoutInline,
		Parse: func(inner string) types.Payload {
			return ServiceSelect{Category: strings.TrimSpace(inner)}
		},
		Renderer:  serviceRenderer{},
		Endpoints: endpoint.Describe(endpoint.Services),
		Meta: registry.Meta{
			Label:       "Service",
			Icon:        "wrench",
			Description: "Let the customer pick a service. The body is an optional category.",
			Preview:     "List of services with prices",
			FlowTags:    []string{"choose_service"},
			Keywords:    []string{"service", "maintenance", "repair", "package", "price"},
		},
		Example: "[SERVICE_SELECT]maintenance[/SERVICE_SELECT]",
	}
}

type serviceRenderer struct{}

func (serviceRenderer) Render(req *registry.RenderRequest) *types.View {
	if res, ok := decodeRecord[ServiceResult](req.Record); ok {
		return answeredView(req, TypeServiceSelect, "Chosen service",
			types.Field{Label: "Service", Value: res.Name},
			types.Field{Label: "Price", Value: res.Price})
	}
	v := openView(req, TypeServiceSelect, "Choose a service")
	var services []endpoint.Service
	if !fromDraft(req.Draft, "services", &services) {
		v.Controls = []types.Control{button("load", "Show services")}
		return v
	}
	if len(services) == 0 {
		v.Body = "No services are available right now."
		v.Controls = []types.Control{button("load", "Try again")}
		return v
	}
	opts := make([]types.Option, 0, len(services))
	for _, s := range services {
		label := s.Name
		if s.Price != "" {
			label += " (" + s.Price + ")"
		}
		opts = append(opts, types.Option{Value: s.ID.String(), Label: label})
	}
	v.Controls = []types.Control{
		{Name: "service_id", Kind: types.ControlSelect, Label: "Service", Action: "select", Options: opts},
		button("select", "Choose"),
	}
	return v
}

func (serviceRenderer) Submit(ctx context.Context, env *registry.Env, req *registry.RenderRequest, act types.Action) (*registry.Outcome, error) {
	switch act.Name {
	case "load":
		p, _ := req.Payload.(ServiceSelect)
		services, err := env.Backend.ListServices(ctx, p.Category)
		if err != nil {
			return nil, err
		}
		draft, err := draftJSON("services", services)
		if err != nil {
			return nil, err
		}
		return &registry.Outcome{Draft: draft}, nil
	case "select":
		var services []endpoint.Service
		if !fromDraft(req.Draft, "services", &services) {
			return nil, types.Validation("Load the services first.")
		}
		id := act.Value("service_id")
		if id == "" {
			return nil, types.Validation("Choose a service.")
		}
		for _, s := range services {
			if s.ID.String() == id {
				res := ServiceResult{ServiceID: s.ID, Name: s.Name, Price: s.Price}
				return &registry.Outcome{Result: res, Summary: "I'd like the " + s.Name + "."}, nil
			}
		}
		return nil, types.Validation("That service is not available.")
	default:
		return nil, unknownAction(TypeServiceSelect, act)
	}
}

type TimeSlot struct {
	AddressID    string `json:"address_id"`
	ProposalSlug string `json:"proposal_slug"`
}

func (TimeSlot) BlockType() types.BlockType { return TypeTimeSlot }

type TimeSlotResult struct {
	DeliveryWindowID endpoint.ID `json:"delivery_window_id"`
	StartTime        string      `json:"start_time"`
	EndTime          string      `json:"end_time"`
	AddressID        string      `json:"address_id"`
	ProposalSlug     string      `json:"proposal_slug,omitempty"`
}

func timeSlotDefinition() registry.Definition {
	return registry.Definition{
		Type:   TypeTimeSlot,
		Open:   "[TIME_SLOT]",
		Close:  "[/TIME_SLOT]",
		Layout: registry.LayoutInline,
		Parse: func(inner string) types.Payload {
			parts := splitInline(inner, "::", 2)
			return TimeSlot{AddressID: parts[0], ProposalSlug: parts[1]}
		},
		Renderer:  timeSlotRenderer{},
		Endpoints: endpoint.Describe(endpoint.DeliveryWindow),
		Meta: registry.Meta{
			Label:       "Time slot",
			Icon:        "calendar",
			Description: "Let the customer pick a delivery window. Body is addressId::proposalSlug.",
			Preview:     "Available time windows for the address",
			FlowTags:    []string{"choose_time"},
			Keywords:    []string{"time", "slot", "window", "date", "when", "appointment"},
		},
		Example: "[TIME_SLOT]addr123::standard[/TIME_SLOT]",
	}
}

type timeSlotRenderer struct{}

func (timeSlotRenderer) Render(req *registry.RenderRequest) *types.View {
	if res, ok := decodeRecord[TimeSlotResult](req.Record); ok {
		return answeredView(req, TypeTimeSlot, "Chosen time slot",
			types.Field{Label: "From", Value: res.StartTime},
			types.Field{Label: "Until", Value: res.EndTime})
	}
	v := openView(req, TypeTimeSlot, "Pick a time slot")
	var windows []endpoint.Window
	if !fromDraft(req.Draft, "windows", &windows) {
		v.Controls = []types.Control{button("load", "Show available times")}
		return v
	}
	if len(windows) == 0 {
		v.Body = "There are no time slots available for this address."
		v.Controls = []types.Control{button("load", "Try again")}
		return v
	}
	opts := make([]types.Option, 0, len(windows))
	for _, w := range windows {
		opts = append(opts, types.Option{Value: w.ID.String(), Label: windowLabel(w)})
	}
	v.Controls = []types.Control{
		{Name: "delivery_window_id", Kind: types.ControlSelect, Label: "Time slot", Action: "select", Options: opts},
		button("select", "Choose"),
	}
	return v
}

func (timeSlotRenderer) Submit(ctx context.Context, env *registry.Env, req *registry.RenderRequest, act types.Action) (*registry.Outcome, error) {
	p, _ := req.Payload.(TimeSlot)
	switch act.Name {
	case "load":
		if p.AddressID == "" {
			return nil, types.Validation("An address is needed before picking a time slot.")
		}
		windows, err := env.Backend.ListDeliveryWindows(ctx, p.AddressID, p.ProposalSlug)
		if err != nil {
			return nil, err
		}
		draft, err := draftJSON("windows", windows)
		if err != nil {
			return nil, err
		}
		return &registry.Outcome{Draft: draft}, nil
	case "select":
		var windows []endpoint.Window
		if !fromDraft(req.Draft, "windows", &windows) {
			return nil, types.Validation("Load the available times first.")
		}
		id := act.Value("delivery_window_id")
		if id == "" {
			return nil, types.Validation("Choose a time slot.")
		}
		for _, w := range windows {
			if w.ID.String() != id {
				continue
			}
			res := TimeSlotResult{
				DeliveryWindowID: w.ID,
				StartTime:        w.StartTime,
				EndTime:          w.EndTime,
				AddressID:        p.AddressID,
				ProposalSlug:     p.ProposalSlug,
			}
			return &registry.Outcome{Result: res, Summary: "I'll take " + windowLabel(w) + "."}, nil
		}
		return nil, types.Validation("That time slot is no longer available.")
	default:
		return nil, unknownAction(TypeTimeSlot, act)
	}
}

func windowLabel(w endpoint.Window) string {
	if w.Label != "" {
		return w.Label
	}
	return fmt.Sprintf("%s - %s", w.StartTime, w.EndTime)
}
