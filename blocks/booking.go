package blocks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tbxark/actionblock/action"
	"github.com/tbxark/actionblock/endpoint"
	"github.com/tbxark/actionblock/patch"
	"github.com/tbxark/actionblock/registry"
	"github.com/tbxark/actionblock/types"
)

const (
	TypeBookingSummary     types.BlockType = "booking_summary"
	TypeBookingEdit        types.BlockType = "booking_edit"
	TypeBookingEditConfirm types.BlockType = "booking_edit_confirm"
)

// BookingBody is the JSON body shared by the booking blocks. When the body
// cannot be decoded, Malformed is set and Raw keeps the text as sent.
type BookingBody struct {
	endpoint.Booking
	Raw       string `json:"raw,omitempty"`
	Malformed bool   `json:"malformed,omitempty"`
}

func parseBookingBody(inner string) BookingBody {
	var b endpoint.Booking
	if !decodeJSONBody(inner, &b) {
		return BookingBody{Raw: strings.TrimSpace(inner), Malformed: true}
	}
	return BookingBody{Booking: b}
}

type BookingSummary struct{ BookingBody }

func (BookingSummary) BlockType() types.BlockType { return TypeBookingSummary }

type BookingEdit struct{ BookingBody }

func (BookingEdit) BlockType() types.BlockType { return TypeBookingEdit }

type BookingEditConfirm struct{ BookingBody }

func (BookingEditConfirm) BlockType() types.BlockType { return TypeBookingEditConfirm }

// BookingRecord is stored by all three booking blocks.
type BookingRecord struct {
	endpoint.Booking
	Changed bool `json:"change_requested,omitempty"`
}

func bookingFields(b endpoint.Booking) []types.Field {
	window := ""
	if b.StartTime != "" || b.EndTime != "" {
		window = strings.Trim(b.StartTime+" - "+b.EndTime, " -")
	}
	return []types.Field{
		{Label: "Booking", Value: b.ID.String()},
		{Label: "Service", Value: b.Service},
		{Label: "Price", Value: b.Price},
		{Label: "License plate", Value: b.LicensePlate},
		{Label: "Address", Value: b.Address},
		{Label: "Date", Value: b.Date},
		{Label: "Time", Value: window},
		{Label: "Phone", Value: b.Phone},
		{Label: "Notes", Value: b.Notes},
		{Label: "Status", Value: b.Status},
	}
}

func malformedView(req *registry.RenderRequest, t types.BlockType, title string, body BookingBody) *types.View {
	v := openView(req, t, title)
	v.Body = "```\n" + body.Raw + "\n```"
	return v
}

func answeredBooking(req *registry.RenderRequest, t types.BlockType, title string) (*types.View, bool) {
	rec, ok := decodeRecord[BookingRecord](req.Record)
	if !ok {
		return nil, false
	}
	if rec.Changed {
		return answeredView(req, t, title, types.Field{Label: "Answer", Value: "Change requested"}), true
	}
	return answeredView(req, t, title, bookingFields(rec.Booking)...), true
}

var bookingSample = endpoint.Booking{
	Service:          "Basic service",
	ServiceID:        "svc-basic",
	Price:            "89.00",
	LicensePlate:     "AB-123-C",
	Address:          "Main Street 10, 1234AB Amsterdam",
	AddressID:        "addr123",
	Date:             "2025-01-01",
	DeliveryWindowID: "42",
	StartTime:        "2025-01-01T08:00",
	EndTime:          "2025-01-01T12:00",
}

func bookingSummaryDefinition() registry.Definition {
	return registry.Definition{
		Type:   TypeBookingSummary,
		Open:   "[BOOKING_SUMMARY]",
		Close:  "[/BOOKING_SUMMARY]",
		Layout: registry.LayoutJSON,
		Parse: func(inner string) types.Payload {
			return BookingSummary{parseBookingBody(inner)}
		},
		Renderer:  bookingSummaryRenderer{},
		Endpoints: endpoint.Describe(endpoint.BookingCreate),
		Meta: registry.Meta{
			Label:       "Booking summary",
			Icon:        "clipboard",
			Description: "Show every collected detail and ask the customer to confirm the booking.",
			Preview:     "Booking overview with Confirm and Change buttons",
			FlowTags:    []string{"confirm_booking"},
			Keywords:    []string{"summary", "confirm", "book", "overview"},
		},
		Example: `[BOOKING_SUMMARY]{"service_id":"svc-basic","license_plate":"AB-123-C"}[/BOOKING_SUMMARY]`,
		Sample:  bookingSample,
	}
}

type bookingSummaryRenderer struct{}

func (bookingSummaryRenderer) Render(req *registry.RenderRequest) *types.View {
	if v, ok := answeredBooking(req, TypeBookingSummary, "Booking"); ok {
		return v
	}
	p, _ := req.Payload.(BookingSummary)
	if p.Malformed {
		return malformedView(req, TypeBookingSummary, "Booking summary", p.BookingBody)
	}
	v := openView(req, TypeBookingSummary, "Please check your booking")
	v.Body = types.FormatFields(bookingFields(p.Booking))
	v.Controls = []types.Control{
		button("confirm", "Confirm booking"),
		button("change", "Change something"),
	}
	return v
}

func (bookingSummaryRenderer) Submit(ctx context.Context, env *registry.Env, req *registry.RenderRequest, act types.Action) (*registry.Outcome, error) {
	if act.Name != "confirm" && act.Name != "change" {
		return nil, unknownAction(TypeBookingSummary, act)
	}
	p, _ := req.Payload.(BookingSummary)
	if p.Malformed {
		return nil, types.Validation("This booking summary could not be read.")
	}
	switch act.Name {
	case "confirm":
		res, err := env.Backend.CreateBooking(ctx, p.Booking)
		if err != nil {
			return nil, err
		}
		b := p.Booking
		b.ID, b.Status = res.BookingID, res.Status
		return &registry.Outcome{
			Result:  BookingRecord{Booking: b},
			Summary: fmt.Sprintf("I confirm the booking. My booking number is %s.", b.ID),
		}, nil
	case "change":
		return &registry.Outcome{
			Result:  BookingRecord{Booking: p.Booking, Changed: true},
			Summary: "I'd like to change something in the booking.",
		}, nil
	}
	return nil, unknownAction(TypeBookingSummary, act)
}

// editableFields are the booking fields a customer can change in place.
var editableFields = []struct {
	name  string
	label string
	get   func(endpoint.Booking) string
}{
	{"date", "Date", func(b endpoint.Booking) string { return b.Date }},
	{"delivery_window_id", "Time slot", func(b endpoint.Booking) string { return b.DeliveryWindowID.String() }},
	{"license_plate", "License plate", func(b endpoint.Booking) string { return b.LicensePlate }},
	{"phone", "Phone", func(b endpoint.Booking) string { return b.Phone }},
	{"notes", "Notes", func(b endpoint.Booking) string { return b.Notes }},
}

// editablePaths keeps only the editable fields the booking shape declares.
func editablePaths() map[string]bool {
	known := patch.AllowedSet(patch.TopLevelPaths[endpoint.Booking]())
	paths := make([]string, 0, len(editableFields))
	for _, f := range editableFields {
		if p := "/" + f.name; known[p] {
			paths = append(paths, p)
		}
	}
	return patch.AllowedSet(paths)
}

func bookingEditDefinition() registry.Definition {
	return registry.Definition{
		Type:   TypeBookingEdit,
		Open:   "[BOOKING_EDIT]",
		Close:  "[/BOOKING_EDIT]",
		Layout: registry.LayoutJSON,
		Parse: func(inner string) types.Payload {
			return BookingEdit{parseBookingBody(inner)}
		},
		Renderer: bookingEditRenderer{},
		Meta: registry.Meta{
			Label:       "Edit booking",
			Icon:        "pencil",
			Description: "Let the customer change date, time slot, license plate, phone or notes of an existing booking.",
			Preview:     "Editable booking fields",
			FlowTags:    []string{"edit_booking"},
			Keywords:    []string{"edit", "change", "modify", "reschedule"},
		},
		Example: `[BOOKING_EDIT]{"booking_id":"bk-1","date":"2025-01-01"}[/BOOKING_EDIT]`,
		Sample:  bookingSample,
	}
}

type bookingEditRenderer struct{}

func (bookingEditRenderer) Render(req *registry.RenderRequest) *types.View {
	if v, ok := answeredBooking(req, TypeBookingEdit, "Requested changes"); ok {
		return v
	}
	p, _ := req.Payload.(BookingEdit)
	if p.Malformed {
		return malformedView(req, TypeBookingEdit, "Edit booking", p.BookingBody)
	}
	v := openView(req, TypeBookingEdit, "Edit your booking")
	for _, f := range editableFields {
		v.Controls = append(v.Controls, input(f.name, f.label, "edit", f.get(p.Booking)))
	}
	v.Controls = append(v.Controls, button("edit", "Save changes"))
	return v
}

func (bookingEditRenderer) Submit(_ context.Context, _ *registry.Env, req *registry.RenderRequest, act types.Action) (*registry.Outcome, error) {
	if act.Name != "edit" {
		return nil, unknownAction(TypeBookingEdit, act)
	}
	p, _ := req.Payload.(BookingEdit)
	if p.Malformed {
		return nil, types.Validation("This booking could not be read.")
	}
	current := p.Booking
	changes := map[string]string{}
	for name, value := range act.Values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		changes[name] = value
	}
	for _, f := range editableFields {
		if v, ok := changes[f.name]; ok && v == f.get(current) {
			delete(changes, f.name)
		}
	}
	if len(changes) == 0 {
		return nil, types.Validation("Change at least one field.")
	}
	ops := patch.ReplaceOps(changes)
	if err := patch.ValidatePatchOperations(ops, editablePaths()); err != nil {
		return nil, types.Validation("Some of these fields cannot be changed here.")
	}
	if _, ok := changes["delivery_window_id"]; ok {
		// the old timestamps belong to the previous window
		ops = append(ops,
			patch.Operation{Op: patch.OperationRemove, Path: "/start_time"},
			patch.Operation{Op: patch.OperationRemove, Path: "/end_time"},
		)
	}
	updated, err := patch.ApplyRFC6902(current, ops)
	if err != nil {
		return nil, types.Validation("These changes could not be applied.")
	}

	parts := make([]string, 0, len(changes))
	for _, op := range patch.ReplaceOps(changes) {
		parts = append(parts, fmt.Sprintf("%s to %v", strings.TrimPrefix(op.Path, "/"), op.Value))
	}
	return &registry.Outcome{
		Result:  BookingRecord{Booking: updated},
		Summary: "Please change " + strings.Join(parts, ", ") + ".",
	}, nil
}

func bookingEditConfirmDefinition() registry.Definition {
	return registry.Definition{
		Type:   TypeBookingEditConfirm,
		Open:   "[BOOKING_EDIT_CONFIRM]",
		Close:  "[/BOOKING_EDIT_CONFIRM]",
		Layout: registry.LayoutJSON,
		Parse: func(inner string) types.Payload {
			return BookingEditConfirm{parseBookingBody(inner)}
		},
		Renderer:  bookingEditConfirmRenderer{},
		Endpoints: endpoint.Describe(endpoint.BookingUpdate),
		Meta: registry.Meta{
			Label:       "Confirm booking changes",
			Icon:        "check",
			Description: "Ask the customer to confirm an edited booking. start_time and end_time may be omitted when delivery_window_id refers to a slot picked earlier.",
			Preview:     "Updated booking with a Confirm button",
			FlowTags:    []string{"confirm_edit"},
			Keywords:    []string{"confirm", "update", "changes"},
		},
		Example: `[BOOKING_EDIT_CONFIRM]{"booking_id":"bk-1","delivery_window_id":42}[/BOOKING_EDIT_CONFIRM]`,
		Sample:  bookingSample,
	}
}

type bookingEditConfirmRenderer struct{}

func (bookingEditConfirmRenderer) Render(req *registry.RenderRequest) *types.View {
	if v, ok := answeredBooking(req, TypeBookingEditConfirm, "Updated booking"); ok {
		return v
	}
	p, _ := req.Payload.(BookingEditConfirm)
	if p.Malformed {
		return malformedView(req, TypeBookingEditConfirm, "Confirm changes", p.BookingBody)
	}
	v := openView(req, TypeBookingEditConfirm, "Confirm your changes")
	v.Body = types.FormatFields(bookingFields(p.Booking))
	v.Controls = []types.Control{button("confirm", "Confirm changes")}
	return v
}

func (bookingEditConfirmRenderer) Submit(ctx context.Context, env *registry.Env, req *registry.RenderRequest, act types.Action) (*registry.Outcome, error) {
	if act.Name != "confirm" {
		return nil, unknownAction(TypeBookingEditConfirm, act)
	}
	p, _ := req.Payload.(BookingEditConfirm)
	if p.Malformed {
		return nil, types.Validation("These changes could not be read.")
	}
	b := p.Booking
	if b.ID == "" {
		return nil, types.Validation("This booking has no booking number.")
	}
	if err := recoverWindowTimes(ctx, env.Records, &b); err != nil {
		return nil, err
	}
	res, err := env.Backend.UpdateBooking(ctx, b)
	if err != nil {
		return nil, err
	}
	b.Status = res.Status
	return &registry.Outcome{
		Result:  BookingRecord{Booking: b},
		Summary: fmt.Sprintf("I confirm the changes to booking %s.", b.ID),
	}, nil
}

// recoverWindowTimes fills missing start and end times from the time slot
// record that captured the same delivery window.
func recoverWindowTimes(ctx context.Context, records action.RecordStore, b *endpoint.Booking) error {
	if b.DeliveryWindowID == "" || (b.StartTime != "" && b.EndTime != "") || records == nil {
		return nil
	}
	got, ok, err := action.Borrow(ctx, records, "delivery_window_id", b.DeliveryWindowID.String(), "start_time", "end_time")
	if err != nil {
		return fmt.Errorf("recover window %s: %w", b.DeliveryWindowID, err)
	}
	if !ok {
		slog.Warn("No record carries the delivery window times", "delivery_window_id", b.DeliveryWindowID)
		return nil
	}
	if b.StartTime == "" {
		b.StartTime = got["start_time"]
	}
	if b.EndTime == "" {
		b.EndTime = got["end_time"]
	}
	slog.Debug("Recovered delivery window times", "delivery_window_id", b.DeliveryWindowID)
	return nil
}
