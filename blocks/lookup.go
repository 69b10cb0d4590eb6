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
	TypePlateLookup   types.BlockType = "plate_lookup"
	TypeAddressLookup types.BlockType = "address_lookup"
)

type PlateLookup struct {
	Plate string `json:"plate"`
}

func (PlateLookup) BlockType() types.BlockType { return TypePlateLookup }

type CarResult struct {
	Plate string `json:"plate"`
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  int    `json:"year,omitempty"`
}

func (c CarResult) describe() string {
	s := strings.TrimSpace(c.Make + " " + c.Model)
	if c.Year > 0 {
		s += fmt.Sprintf(" (%d)", c.Year)
	}
	return s
}

func plateLookupDefinition() registry.Definition {
	return registry.Definition{
		Type:   TypePlateLookup,
		Open:   "[PLATE_LOOKUP]",
		Close:  "[/PLATE_LOOKUP]",
		Layout: registry.LayoutInline,
		Parse: func(inner string) types.Payload {
			return PlateLookup{Plate: strings.ToUpper(strings.TrimSpace(inner))}
		},
		Renderer:  plateRenderer{},
		Endpoints: endpoint.Describe(endpoint.CarLookup),
		Meta: registry.Meta{
			Label:       "License plate",
			Icon:        "car",
			Description: "Look up the customer's car by license plate. The body may hold a plate the customer already gave, or be empty.",
			Preview:     "License plate input with the matching car",
			FlowTags:    []string{"identify_car"},
			Keywords:    []string{"plate", "license", "kenteken", "car", "vehicle"},
		},
		Example: "[PLATE_LOOKUP]AB-123-C[/PLATE_LOOKUP]",
	}
}

type plateRenderer struct{}

func (plateRenderer) Render(req *registry.RenderRequest) *types.View {
	if res, ok := decodeRecord[CarResult](req.Record); ok {
		return answeredView(req, TypePlateLookup, "Your car",
			types.Field{Label: "License plate", Value: res.Plate},
			types.Field{Label: "Car", Value: res.describe()})
	}
	p, _ := req.Payload.(PlateLookup)
	v := openView(req, TypePlateLookup, "Look up your car")
	var car endpoint.Car
	if fromDraft(req.Draft, "car", &car) {
		v.Body = types.FormatFields([]types.Field{
			{Label: "License plate", Value: car.LicensePlate},
			{Label: "Car", Value: carResult(car).describe()},
			{Label: "Fuel", Value: car.Fuel},
		})
		v.Controls = []types.Control{
			button("confirm", "That's my car"),
			input("plate", "Different license plate", "lookup", ""),
			button("lookup", "Look up again"),
		}
		return v
	}
	v.Controls = []types.Control{
		input("plate", "License plate", "lookup", p.Plate),
		button("lookup", "Look up"),
	}
	return v
}

func (plateRenderer) Submit(ctx context.Context, env *registry.Env, req *registry.RenderRequest, act types.Action) (*registry.Outcome, error) {
	switch act.Name {
	case "lookup":
		plate := act.Value("plate")
		if plate == "" {
			if p, ok := req.Payload.(PlateLookup); ok {
				plate = p.Plate
			}
		}
		if !validPlate(plate) {
			return nil, types.Validation("Enter a valid license plate.")
		}
		car, err := env.Backend.LookupCar(ctx, plate)
		if err != nil {
			return nil, err
		}
		draft, err := draftJSON("car", car)
		if err != nil {
			return nil, err
		}
		return &registry.Outcome{Draft: draft}, nil
	case "confirm":
		var car endpoint.Car
		if !fromDraft(req.Draft, "car", &car) {
			return nil, types.Validation("Look up your license plate first.")
		}
		res := carResult(car)
		return &registry.Outcome{
			Result:  res,
			Summary: fmt.Sprintf("My car is a %s with license plate %s.", res.describe(), res.Plate),
		}, nil
	default:
		return nil, unknownAction(TypePlateLookup, act)
	}
}

func carResult(car endpoint.Car) CarResult {
	return CarResult{Plate: car.LicensePlate, Make: car.Make, Model: car.Model, Year: car.Year}
}

func validPlate(plate string) bool {
	compact := strings.NewReplacer("-", "", " ", "").Replace(plate)
	if len(compact) < 4 || len(compact) > 10 {
		return false
	}
	for _, r := range compact {
		if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z') {
			return false
		}
	}
	return true
}

type AddressLookup struct {
	Postcode    string `json:"postcode"`
	HouseNumber string `json:"house_number"`
}

func (AddressLookup) BlockType() types.BlockType { return TypeAddressLookup }

type AddressResult struct {
	AddressID   endpoint.ID `json:"address_id"`
	Street      string      `json:"street"`
	HouseNumber string      `json:"house_number"`
	Postcode    string      `json:"postcode"`
	City        string      `json:"city"`
}

func (a AddressResult) String() string {
	return strings.TrimSpace(fmt.Sprintf("%s %s, %s %s", a.Street, a.HouseNumber, a.Postcode, a.City))
}

func addressLookupDefinition() registry.Definition {
	return registry.Definition{
		Type:   TypeAddressLookup,
		Open:   "[ADDRESS_LOOKUP]",
		Close:  "[/ADDRESS_LOOKUP]",
		Layout: registry.LayoutInline,
		Parse: func(inner string) types.Payload {
			parts := splitInline(inner, "|", 2)
			return AddressLookup{
				Postcode:    strings.ToUpper(strings.ReplaceAll(parts[0], " ", "")),
				HouseNumber: parts[1],
			}
		},
		Renderer:  addressRenderer{},
		Endpoints: endpoint.Describe(endpoint.AddressLookup),
		Meta: registry.Meta{
			Label:       "Address",
			Icon:        "home",
			Description: "Find the customer's address from postcode and house number. Body is postcode|house number, either part may be empty.",
			Preview:     "Postcode and house number inputs",
			FlowTags:    []string{"collect_address"},
			Keywords:    []string{"address", "postcode", "zip", "street", "house"},
		},
		Example: "[ADDRESS_LOOKUP]1234AB|10[/ADDRESS_LOOKUP]",
	}
}

type addressRenderer struct{}

func (addressRenderer) Render(req *registry.RenderRequest) *types.View {
	if res, ok := decodeRecord[AddressResult](req.Record); ok {
		return answeredView(req, TypeAddressLookup, "Your address",
			types.Field{Label: "Address", Value: res.String()})
	}
	p, _ := req.Payload.(AddressLookup)
	v := openView(req, TypeAddressLookup, "Find your address")
	v.Controls = []types.Control{
		input("postcode", "Postcode", "lookup", p.Postcode),
		input("house_number", "House number", "lookup", p.HouseNumber),
		button("lookup", "Find address"),
	}
	return v
}

func (addressRenderer) Submit(ctx context.Context, env *registry.Env, req *registry.RenderRequest, act types.Action) (*registry.Outcome, error) {
	if act.Name != "lookup" {
		return nil, unknownAction(TypeAddressLookup, act)
	}
	p, _ := req.Payload.(AddressLookup)
	postcode := firstNonEmpty(act.Value("postcode"), p.Postcode)
	number := firstNonEmpty(act.Value("house_number"), p.HouseNumber)
	if postcode == "" {
		return nil, types.Validation("Enter your postcode.")
	}
	if number == "" {
		return nil, types.Validation("Enter your house number.")
	}
	addr, err := env.Backend.LookupAddress(ctx, postcode, number)
	if err != nil {
		return nil, err
	}
	res := AddressResult{
		AddressID:   addr.ID,
		Street:      addr.Street,
		HouseNumber: addr.HouseNumber,
		Postcode:    addr.Postcode,
		City:        addr.City,
	}
	return &registry.Outcome{Result: res, Summary: "My address is " + res.String() + "."}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
