package patch

const (
	OperationAdd     = "add"
	OperationRemove  = "remove"
	OperationReplace = "replace"
)

// Operation is one RFC 6902 operation.
type Operation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}
