package endpoint

import (
	"bytes"
	"context"
	"strconv"
	"strings"
)

const (
	CarLookup      = "car-lookup"
	AddressLookup  = "address-lookup"
	Services       = "services"
	DeliveryWindow = "delivery-windows"
	PhoneSend      = "phone-verification-send"
	PhoneVerify    = "phone-verification-verify"
	BookingCreate  = "booking-create"
	BookingUpdate  = "booking-update"
)

// ID is an identifier the backend and the assistant emit either as a JSON
// number or as a string. It is kept as text and encoded back as a number
// when it looks like one.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) >= 2 && data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	*id = ID(string(data))
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return []byte(strconv.Quote(string(id))), nil
}

func (id ID) String() string {
	return string(id)
}

type Car struct {
	LicensePlate string `json:"license_plate"`
	Make         string `json:"make"`
	Model        string `json:"model"`
	Year         int    `json:"year,omitempty"`
	Fuel         string `json:"fuel,omitempty"`
}

type Address struct {
	ID          ID     `json:"address_id"`
	Street      string `json:"street"`
	HouseNumber string `json:"house_number"`
	Postcode    string `json:"postcode"`
	City        string `json:"city"`
}

type Service struct {
	ID              ID     `json:"id"`
	Name            string `json:"name"`
	Price           string `json:"price,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
}

type Window struct {
	ID        ID     `json:"id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Label     string `json:"label,omitempty"`
}

// Booking is the booking shape shared by the create and update endpoints and
// the booking blocks.
type Booking struct {
	ID               ID     `json:"booking_id,omitempty"`
	Address          string `json:"address,omitempty"`
	AddressID        ID     `json:"address_id,omitempty"`
	Service          string `json:"service,omitempty"`
	ServiceID        ID     `json:"service_id,omitempty"`
	Price            string `json:"price,omitempty"`
	LicensePlate     string `json:"license_plate,omitempty"`
	Date             string `json:"date,omitempty"`
	DeliveryWindowID ID     `json:"delivery_window_id,omitempty"`
	StartTime        string `json:"start_time,omitempty"`
	EndTime          string `json:"end_time,omitempty"`
	Phone            string `json:"phone,omitempty"`
	Notes            string `json:"notes,omitempty"`
	Status           string `json:"status,omitempty"`
}

type BookingResult struct {
	BookingID ID     `json:"booking_id"`
	Status    string `json:"status"`
}

// Backend is the opaque service boundary used by network-backed blocks.
type Backend interface {
	LookupCar(ctx context.Context, plate string) (*Car, error)
	LookupAddress(ctx context.Context, postcode, houseNumber string) (*Address, error)
	ListServices(ctx context.Context, category string) ([]Service, error)
	ListDeliveryWindows(ctx context.Context, addressID, proposalSlug string) ([]Window, error)
	SendPhoneCode(ctx context.Context, phone string) error
	VerifyPhoneCode(ctx context.Context, phone, code string) (bool, error)
	CreateBooking(ctx context.Context, booking Booking) (*BookingResult, error)
	UpdateBooking(ctx context.Context, booking Booking) (*BookingResult, error)
}
