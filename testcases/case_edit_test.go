package testcases

import (
	"context"
	"testing"

	"github.com/tbxark/actionblock/blocks"
	"github.com/tbxark/actionblock/dialogue"
	"github.com/tbxark/actionblock/endpoint"
)

// TestEditBookingRecoversWindowTimes moves a booking to another window. The
// edit drops the old timestamps and the confirmation borrows the new ones
// from the time slot the customer picked earlier.
func TestEditBookingRecoversWindowTimes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fake := endpoint.NewFake()
	gen := dialogue.NewScriptedDialogueGenerator(
		"Which time suits you? [TIME_SLOT]addr123::standard[/TIME_SLOT]",
		`Here is your booking. [BOOKING_EDIT]{"booking_id":"bk-9","delivery_window_id":42,"start_time":"2025-01-01T08:00","end_time":"2025-01-01T12:00"}[/BOOKING_EDIT]`,
		`Please confirm. [BOOKING_EDIT_CONFIRM]{"booking_id":"bk-9","delivery_window_id":43}[/BOOKING_EDIT_CONFIRM]`,
		"Your booking has been moved.",
	)
	flow := NewTestFlow(t, WithBackend(fake), WithGenerator(gen))

	if _, err := flow.SendCustomer(ctx, "I want to reschedule"); err != nil {
		t.Fatalf("send: %v", err)
	}
	slot := OpenBlock(t, flow, blocks.TypeTimeSlot)
	Do(t, flow, slot.Key, "load", nil)
	Do(t, flow, slot.Key, "select", map[string]string{"delivery_window_id": "43"})

	edit := OpenBlock(t, flow, blocks.TypeBookingEdit)
	res := Do(t, flow, edit.Key, "edit", map[string]string{"delivery_window_id": "43"})
	if res.Record.Summary != "Please change delivery_window_id to 43." {
		t.Errorf("unexpected edit summary %q", res.Record.Summary)
	}
	if _, ok := res.Record.Field("start_time"); ok {
		t.Error("edited booking should not keep the old start time")
	}

	confirm := OpenBlock(t, flow, blocks.TypeBookingEditConfirm)
	res = Do(t, flow, confirm.Key, "confirm", nil)
	if res.Reply == nil || res.Reply.Content != "Your booking has been moved." {
		t.Errorf("unexpected reply %+v", res.Reply)
	}

	updated, ok := fake.Bookings["bk-9"]
	if !ok {
		t.Fatal("booking bk-9 was not updated")
	}
	if updated.StartTime != "2025-01-01T13:00" || updated.EndTime != "2025-01-01T17:00" {
		t.Errorf("expected window 43 times, got %s - %s", updated.StartTime, updated.EndTime)
	}
	if fake.Calls(endpoint.BookingUpdate) != 1 {
		t.Errorf("expected one update call, got %d", fake.Calls(endpoint.BookingUpdate))
	}
}
