package structuredoutput

import (
	"reflect"
	"strings"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
)

// NewResponseFormat creates a ResponseFormat from a struct type.
// Fields may carry `description:"..."` and `enum:"a,b"` tags.
func NewResponseFormat(v interface{}) *interfaces.ResponseFormat {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	return &interfaces.ResponseFormat{
		Name:   t.Name(),
		Schema: objectSchema(t, ""),
	}
}

func objectSchema(t reflect.Type, description string) interfaces.JSONSchema {
	s := interfaces.JSONSchema{
		"type":                 "object",
		"properties":           getJSONSchema(t),
		"required":             getRequiredFields(t),
		"additionalProperties": false,
	}
	if description != "" {
		s["description"] = description
	}
	return s
}

func getJSONSchema(t reflect.Type) map[string]any {
	properties := make(map[string]any)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		jsonTag := fieldName(field)
		if jsonTag == "-" {
			continue
		}
		description := field.Tag.Get("description")

		fieldType := field.Type
		if fieldType.Kind() == reflect.Ptr {
			fieldType = fieldType.Elem()
		}

		switch fieldType.Kind() {
		case reflect.Struct:
			properties[jsonTag] = objectSchema(fieldType, description)
		case reflect.Slice, reflect.Array:
			itemType := fieldType.Elem()
			if itemType.Kind() == reflect.Ptr {
				itemType = itemType.Elem()
			}
			var items any
			if itemType.Kind() == reflect.Struct {
				items = objectSchema(itemType, "")
			} else {
				items = map[string]any{"type": getJSONType(itemType)}
			}
			properties[jsonTag] = map[string]any{
				"type":        "array",
				"description": description,
				"items":       items,
			}
		case reflect.Map:
			properties[jsonTag] = map[string]any{
				"type":        "object",
				"description": description,
				"additionalProperties": map[string]any{
					"type": getJSONType(fieldType.Elem()),
				},
			}
		default:
			prop := map[string]any{
				"type":        getJSONType(fieldType),
				"description": description,
			}
			if enum := field.Tag.Get("enum"); enum != "" {
				values := strings.Split(enum, ",")
				anyValues := make([]any, len(values))
				for j, v := range values {
					anyValues[j] = strings.TrimSpace(v)
				}
				prop["enum"] = anyValues
			}
			properties[jsonTag] = prop
		}
	}
	return properties
}

func fieldName(field reflect.StructField) string {
	name := strings.Split(field.Tag.Get("json"), ",")[0]
	if name == "" {
		return field.Name
	}
	return name
}

func getJSONType(t reflect.Type) string {
	if t.Kind() == reflect.Ptr {
		return getJSONType(t.Elem())
	}

	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct, reflect.Interface:
		return "object"
	default:
		return "string"
	}
}

// getRequiredFields lists every field without omitempty
func getRequiredFields(t reflect.Type) []string {
	required := []string{}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := fieldName(field)
		if name == "-" || strings.Contains(field.Tag.Get("json"), "omitempty") {
			continue
		}
		required = append(required, name)
	}
	return required
}
