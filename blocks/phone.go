package blocks

import (
	"context"
	"strings"
	"unicode"

	"github.com/tbxark/actionblock/action"
	"github.com/tbxark/actionblock/endpoint"
	"github.com/tbxark/actionblock/registry"
	"github.com/tbxark/actionblock/types"
)

const (
	TypePhoneVerify types.BlockType = "phone_verify"

	pinLength = 6
)

type PhoneVerify struct{}

func (PhoneVerify) BlockType() types.BlockType { return TypePhoneVerify }

type PhoneResult struct {
	Phone    string `json:"phone"`
	Verified bool   `json:"verified"`
}

func phoneVerifyDefinition() registry.Definition {
	return registry.Definition{
		Type:      TypePhoneVerify,
		Open:      "[PHONE_VERIFY]",
		Parse:     func(string) types.Payload { return PhoneVerify{} },
		Renderer:  phoneRenderer{},
		Endpoints: endpoint.Describe(endpoint.PhoneSend, endpoint.PhoneVerify),
		Meta: registry.Meta{
			Label:       "Phone verification",
			Icon:        "phone",
			Description: "Ask the customer to verify their phone number with a one-time code.",
			Preview:     "Phone number input, then a 6-digit code",
			FlowTags:    []string{"verify_phone"},
			Keywords:    []string{"phone", "verify", "verification", "code", "sms"},
		},
		Example: "[PHONE_VERIFY]",
	}
}

type phoneRenderer struct{}

func (phoneRenderer) Render(req *registry.RenderRequest) *types.View {
	if res, ok := decodeRecord[PhoneResult](req.Record); ok {
		return answeredView(req, TypePhoneVerify, "Phone verified",
			types.Field{Label: "Phone", Value: res.Phone})
	}
	v := openView(req, TypePhoneVerify, "Verify your phone number")
	saved := req.Prefs[action.PrefVerifiedPhone]
	if phone := req.Draft["phone"]; phone != "" && req.Draft["code_sent"] == "true" {
		v.Body = "We sent a code to " + phone + "."
		v.Controls = []types.Control{
			{Name: "pin", Kind: types.ControlPin, Label: "Verification code", Action: "enter_pin", Length: pinLength},
			button("send_code", "Send a new code"),
		}
		return v
	}
	v.Controls = []types.Control{
		input("phone", "Phone number", "send_code", saved),
		button("send_code", "Send code"),
	}
	if saved != "" {
		v.Controls = append(v.Controls, button("use_saved", "Use "+saved))
	}
	return v
}

func (phoneRenderer) Submit(ctx context.Context, env *registry.Env, req *registry.RenderRequest, act types.Action) (*registry.Outcome, error) {
	switch act.Name {
	case "send_code":
		phone := act.Value("phone")
		if phone == "" {
			phone = req.Draft["phone"]
		}
		phone = normalizePhone(phone)
		if !validPhone(phone) {
			return nil, types.Validation("Enter a valid phone number.")
		}
		if err := env.Backend.SendPhoneCode(ctx, phone); err != nil {
			return nil, err
		}
		return &registry.Outcome{Draft: map[string]string{"phone": phone, "code_sent": "true"}}, nil
	case "enter_pin":
		phone := req.Draft["phone"]
		if phone == "" {
			return nil, types.Validation("Request a code first.")
		}
		pin := act.Value("pin")
		if len(pin) != pinLength || strings.IndexFunc(pin, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0 {
			return nil, types.Validation("Enter the %d-digit code.", pinLength)
		}
		ok, err := env.Backend.VerifyPhoneCode(ctx, phone, pin)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, types.Validation("That code is not correct. Please try again.")
		}
		return verified(phone), nil
	case "use_saved":
		phone := req.Prefs[action.PrefVerifiedPhone]
		if phone == "" {
			return nil, types.Validation("No verified phone number is saved.")
		}
		return verified(phone), nil
	default:
		return nil, unknownAction(TypePhoneVerify, act)
	}
}

func verified(phone string) *registry.Outcome {
	return &registry.Outcome{
		Result:  PhoneResult{Phone: phone, Verified: true},
		Summary: "My phone number " + phone + " is verified.",
		Prefs:   map[string]string{action.PrefVerifiedPhone: phone},
	}
}

func normalizePhone(phone string) string {
	return strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(phone))
}

func validPhone(phone string) bool {
	digits := strings.TrimPrefix(phone, "+")
	if len(digits) < 8 || len(digits) > 15 {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
