package endpoint

import (
	"fmt"
	"net/http"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Descriptor documents one backend function endpoint. The JSON schemas are
// used both as documentation for flow authors and to reject malformed
// responses before they reach a block.
type Descriptor struct {
	Name     string `json:"name"`
	Method   string `json:"method"`
	Path     string `json:"path"`
	Request  string `json:"request_schema"`
	Response string `json:"response_schema"`
}

func (d Descriptor) compileResponse() (*jsonschema.Schema, error) {
	if d.Response == "" {
		return nil, nil
	}
	schema, err := jsonschema.CompileString(d.Name+".response.json", d.Response)
	if err != nil {
		return nil, fmt.Errorf("compile %s response schema: %w", d.Name, err)
	}
	return schema, nil
}

func fn(name string) string {
	return "/functions/v1/" + name
}

var descriptors = map[string]Descriptor{
	CarLookup: {
		Name: CarLookup, Method: http.MethodPost, Path: fn(CarLookup),
		Request:  `{"type":"object","required":["license_plate"],"properties":{"license_plate":{"type":"string"}}}`,
		Response: `{"type":"object","required":["license_plate","make","model"],"properties":{"license_plate":{"type":"string"},"make":{"type":"string"},"model":{"type":"string"},"year":{"type":"integer"}}}`,
	},
	AddressLookup: {
		Name: AddressLookup, Method: http.MethodPost, Path: fn(AddressLookup),
		Request:  `{"type":"object","required":["postcode","house_number"],"properties":{"postcode":{"type":"string"},"house_number":{"type":"string"}}}`,
		Response: `{"type":"object","required":["address_id","street","city"],"properties":{"address_id":{"type":["string","integer"]},"street":{"type":"string"},"city":{"type":"string"}}}`,
	},
	Services: {
		Name: Services, Method: http.MethodPost, Path: fn(Services),
		Request:  `{"type":"object","properties":{"category":{"type":"string"}}}`,
		Response: `{"type":"object","required":["services"],"properties":{"services":{"type":"array","items":{"type":"object","required":["id","name"]}}}}`,
	},
	DeliveryWindow: {
		Name: DeliveryWindow, Method: http.MethodPost, Path: fn(DeliveryWindow),
		Request:  `{"type":"object","required":["address_id"],"properties":{"address_id":{"type":"string"},"proposal_slug":{"type":"string"}}}`,
		Response: `{"type":"object","required":["windows"],"properties":{"windows":{"type":"array","items":{"type":"object","required":["id","start_time","end_time"]}}}}`,
	},
	PhoneSend: {
		Name: PhoneSend, Method: http.MethodPost, Path: fn(PhoneSend),
		Request:  `{"type":"object","required":["phone"],"properties":{"phone":{"type":"string"}}}`,
		Response: `{"type":"object","properties":{"sent":{"type":"boolean"}}}`,
	},
	PhoneVerify: {
		Name: PhoneVerify, Method: http.MethodPost, Path: fn(PhoneVerify),
		Request:  `{"type":"object","required":["phone","code"],"properties":{"phone":{"type":"string"},"code":{"type":"string"}}}`,
		Response: `{"type":"object","required":["verified"],"properties":{"verified":{"type":"boolean"}}}`,
	},
	BookingCreate: {
		Name: BookingCreate, Method: http.MethodPost, Path: fn(BookingCreate),
		Request:  `{"type":"object"}`,
		Response: `{"type":"object","required":["booking_id"],"properties":{"booking_id":{"type":["string","integer"]},"status":{"type":"string"}}}`,
	},
	BookingUpdate: {
		Name: BookingUpdate, Method: http.MethodPost, Path: fn(BookingUpdate),
		Request:  `{"type":"object","required":["booking_id"]}`,
		Response: `{"type":"object","required":["booking_id"],"properties":{"booking_id":{"type":["string","integer"]},"status":{"type":"string"}}}`,
	},
}

// Lookup returns the descriptor of a named endpoint.
func Lookup(name string) (Descriptor, bool) {
	d, ok := descriptors[name]
	return d, ok
}

// Describe returns the descriptors for the given names, skipping unknown ones.
func Describe(names ...string) []Descriptor {
	out := make([]Descriptor, 0, len(names))
	for _, name := range names {
		if d, ok := Lookup(name); ok {
			out = append(out, d)
		}
	}
	return out
}
