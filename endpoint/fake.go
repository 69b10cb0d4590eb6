package endpoint

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Fake is an in-process Backend with canned data. It backs the offline demo
// mode and the tests of the block and conversation packages.
type Fake struct {
	mu     sync.Mutex
	calls  map[string]int
	errs   map[string]error
	nextID int

	Cars      map[string]Car
	Addresses map[string]Address
	Catalog   map[string][]Service
	Windows   map[string][]Window
	PinCode   string
	Bookings  map[ID]Booking

	// Gate, when set, is received from before every call returns. Tests use
	// it to hold a call in flight.
	Gate chan struct{}
}

var _ Backend = (*Fake)(nil)

func NewFake() *Fake {
	return &Fake{
		calls: map[string]int{},
		errs:  map[string]error{},
		Cars: map[string]Car{
			"AB123C": {LicensePlate: "AB-123-C", Make: "Volkswagen", Model: "Golf", Year: 2019, Fuel: "petrol"},
		},
		Addresses: map[string]Address{
			"1234AB|10": {ID: "addr123", Street: "Main Street", HouseNumber: "10", Postcode: "1234AB", City: "Amsterdam"},
		},
		Catalog: map[string][]Service{
			"": {
				{ID: "svc-basic", Name: "Basic service", Price: "89.00", DurationMinutes: 60},
				{ID: "svc-major", Name: "Major service", Price: "189.00", DurationMinutes: 120},
			},
		},
		Windows: map[string][]Window{
			"addr123": {
				{ID: "42", StartTime: "2025-01-01T08:00", EndTime: "2025-01-01T12:00", Label: "Wed 08:00-12:00"},
				{ID: "43", StartTime: "2025-01-01T13:00", EndTime: "2025-01-01T17:00", Label: "Wed 13:00-17:00"},
			},
		},
		PinCode:  "123456",
		Bookings: map[ID]Booking{},
	}
}

// FailWith makes every later call to the endpoint return err. A nil err clears it.
func (f *Fake) FailWith(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, name)
		return
	}
	f.errs[name] = err
}

func (f *Fake) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *Fake) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *Fake) enter(ctx context.Context, name string) error {
	f.mu.Lock()
	f.calls[name]++
	err := f.errs[name]
	gate := f.Gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func normalizePlate(plate string) string {
	plate = strings.ToUpper(plate)
	return strings.NewReplacer("-", "", " ", "").Replace(plate)
}

func (f *Fake) LookupCar(ctx context.Context, plate string) (*Car, error) {
	if err := f.enter(ctx, CarLookup); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	car, ok := f.Cars[normalizePlate(plate)]
	if !ok {
		return nil, rejected(CarLookup, "No vehicle found for this license plate.")
	}
	return &car, nil
}

func (f *Fake) LookupAddress(ctx context.Context, postcode, houseNumber string) (*Address, error) {
	if err := f.enter(ctx, AddressLookup); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.ToUpper(strings.ReplaceAll(postcode, " ", "")) + "|" + strings.TrimSpace(houseNumber)
	addr, ok := f.Addresses[key]
	if !ok {
		return nil, rejected(AddressLookup, "Address not found.")
	}
	return &addr, nil
}

func (f *Fake) ListServices(ctx context.Context, category string) ([]Service, error) {
	if err := f.enter(ctx, Services); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if services, ok := f.Catalog[category]; ok {
		return services, nil
	}
	return f.Catalog[""], nil
}

func (f *Fake) ListDeliveryWindows(ctx context.Context, addressID, proposalSlug string) ([]Window, error) {
	if err := f.enter(ctx, DeliveryWindow); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Windows[addressID], nil
}

func (f *Fake) SendPhoneCode(ctx context.Context, phone string) error {
	return f.enter(ctx, PhoneSend)
}

func (f *Fake) VerifyPhoneCode(ctx context.Context, phone, code string) (bool, error) {
	if err := f.enter(ctx, PhoneVerify); err != nil {
		return false, err
	}
	return code == f.PinCode, nil
}

func (f *Fake) CreateBooking(ctx context.Context, booking Booking) (*BookingResult, error) {
	if err := f.enter(ctx, BookingCreate); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	booking.ID = ID(fmt.Sprintf("bk-%d", f.nextID))
	booking.Status = "confirmed"
	f.Bookings[booking.ID] = booking
	return &BookingResult{BookingID: booking.ID, Status: booking.Status}, nil
}

func (f *Fake) UpdateBooking(ctx context.Context, booking Booking) (*BookingResult, error) {
	if err := f.enter(ctx, BookingUpdate); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	booking.Status = "updated"
	f.Bookings[booking.ID] = booking
	return &BookingResult{BookingID: booking.ID, Status: booking.Status}, nil
}
