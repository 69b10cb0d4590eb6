package patch

import "fmt"

// ValidatePatchOperations rejects any operation whose path is outside
// allowedPaths. An empty set allows everything. Paths match exactly.
func ValidatePatchOperations(ops []Operation, allowedPaths map[string]bool) error {
	for i, op := range ops {
		switch op.Op {
		case OperationAdd, OperationRemove, OperationReplace:
		default:
			return fmt.Errorf("operation %d: unsupported op %q", i, op.Op)
		}
		if err := validatePathAllowed(op.Path, allowedPaths); err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
	}
	return nil
}

func AllowedSet(paths []string) map[string]bool {
	out := make(map[string]bool, len(paths))
	for _, p := range paths {
		out[p] = true
	}
	return out
}

func validatePathAllowed(path string, allowedPaths map[string]bool) error {
	if len(allowedPaths) == 0 || allowedPaths[path] {
		return nil
	}
	return fmt.Errorf("path %q is not editable", path)
}
