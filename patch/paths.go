package patch

import (
	"reflect"
	"strings"
)

// TopLevelPaths lists the JSON pointer of every exported top-level field of
// struct T, using the json tag name.
func TopLevelPaths[T any]() []string {
	var zero T
	typ := reflect.TypeOf(zero)
	if typ == nil {
		return nil
	}
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil
	}

	paths := make([]string, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		name := jsonFieldName(field)
		if name == "" || name == "-" {
			continue
		}
		paths = append(paths, "/"+EscapeToken(name))
	}
	return paths
}

func jsonFieldName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return field.Name
	}
	return name
}
