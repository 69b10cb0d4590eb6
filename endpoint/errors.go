package endpoint

import "github.com/tbxark/actionblock/types"

func rejected(name, msg string) error {
	return &types.ActionError{Kind: types.KindRejected, Endpoint: name, Status: 404, Message: msg}
}

// Unavailable builds the error a 5xx response maps to.
func Unavailable(name string) error {
	return &types.ActionError{Kind: types.KindUnavailable, Endpoint: name, Status: 503}
}
