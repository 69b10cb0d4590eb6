package patch

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	jsonpatch "github.com/evanphx/json-patch/v5"
)

// ApplyRFC6902 applies ops to a copy of current and decodes the result back
// into T.
func ApplyRFC6902[T any](current T, ops []Operation) (T, error) {
	var zero T

	if len(ops) == 0 {
		return current, nil
	}

	currentJSON, err := sonic.Marshal(current)
	if err != nil {
		return zero, fmt.Errorf("failed to marshal current state: %w", err)
	}

	ops = FixOperation(currentJSON, ops)

	patchJSON, err := sonic.Marshal(ops)
	if err != nil {
		return zero, fmt.Errorf("failed to marshal patch operations: %w", err)
	}

	p, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return zero, fmt.Errorf("failed to decode patch: %w", err)
	}

	modifiedJSON, err := p.Apply(currentJSON)
	if err != nil {
		return zero, fmt.Errorf("failed to apply patch: %w", err)
	}

	var result T
	if err := sonic.Unmarshal(modifiedJSON, &result); err != nil {
		return zero, fmt.Errorf("type mismatch: patch would result in invalid type %T: %w", zero, err)
	}

	return result, nil
}

// FixOperation turns a replace of a missing member into an add and drops
// removes of missing members, so omitempty fields can still be edited.
func FixOperation(currentJSON []byte, ops []Operation) []Operation {
	var doc any
	if err := sonic.Unmarshal(currentJSON, &doc); err != nil {
		return ops
	}

	fixed := make([]Operation, 0, len(ops))
	for _, op := range ops {
		switch op.Op {
		case OperationReplace:
			if !pathExists(doc, op.Path) {
				op.Op = OperationAdd
			}
			fixed = append(fixed, op)
		case OperationRemove:
			if pathExists(doc, op.Path) {
				fixed = append(fixed, op)
			}
		default:
			fixed = append(fixed, op)
		}
	}

	return fixed
}

// ReplaceOps builds one replace operation per top-level field, in key order.
func ReplaceOps(fields map[string]string) []Operation {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ops := make([]Operation, 0, len(keys))
	for _, k := range keys {
		ops = append(ops, Operation{Op: OperationReplace, Path: "/" + EscapeToken(k), Value: fields[k]})
	}
	return ops
}

func EscapeToken(token string) string {
	token = strings.ReplaceAll(token, "~", "~0")
	return strings.ReplaceAll(token, "/", "~1")
}

func unescapeToken(token string) string {
	token = strings.ReplaceAll(token, "~1", "/")
	return strings.ReplaceAll(token, "~0", "~")
}

func pathExists(doc any, path string) bool {
	if path == "" {
		return true
	}
	if !strings.HasPrefix(path, "/") {
		return false
	}

	cur := doc
	for _, token := range strings.Split(path[1:], "/") {
		token = unescapeToken(token)
		switch node := cur.(type) {
		case map[string]any:
			value, ok := node[token]
			if !ok {
				return false
			}
			cur = value
		case []any:
			index, err := strconv.Atoi(token)
			if err != nil || index < 0 || index >= len(node) {
				return false
			}
			cur = node[index]
		default:
			return false
		}
	}

	return true
}
