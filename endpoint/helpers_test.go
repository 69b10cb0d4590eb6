package endpoint

import "github.com/bytedance/sonic"

func jsonUnmarshal(s string, v any) error {
	return sonic.UnmarshalString(s, v)
}
