package tlv

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Unmarshaler allows custom types to implement their own TLV parsing logic.
type Unmarshaler interface {
	UnmarshalTLV(value []byte) error
}

// Unmarshal decodes raw BER-TLV data and maps it into a target Go struct.
// Fields are matched by `tlv:"..."` struct tags carrying the hex tag number,
// e.g. `tlv:"9F38"`.
func Unmarshal(data []byte, target interface{}) error {
	return UnmarshalNodes(Decode(data), target)
}

// UnmarshalNodes maps a slice of decoded nodes to a target struct. Multiple
// occurrences of the same tag are supported when the target field is a
// slice. A field tagged `tlv:",unknown"` (or named Unknown) collects every
// node no other field consumed.
func UnmarshalNodes(nodes []Node, target interface{}) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("target must be a non-nil pointer")
	}
	v = v.Elem()
	t := v.Type()

	consumed := make(map[int]bool)

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)
		tagConfig := fieldType.Tag.Get("tlv")

		if tagConfig == "" || tagConfig == ",unknown" || fieldType.Name == "Unknown" {
			continue
		}

		fieldTag, err := parseFieldTag(tagConfig)
		if err != nil {
			return fmt.Errorf("field %s: %w", fieldType.Name, err)
		}

		for idx := range nodes {
			if nodes[idx].Tag == fieldTag {
				if err := mapNodeToField(nodes[idx], field); err != nil {
					return err
				}
				consumed[idx] = true
			}
		}
	}

	return collectUnknownNodes(v, t, nodes, consumed)
}

// parseFieldTag extracts the hex tag number from a `tlv:"..."` struct tag,
// ignoring any options after the first comma.
func parseFieldTag(tagConfig string) (uint, error) {
	tagHex := strings.Split(tagConfig, ",")[0]
	n, err := strconv.ParseUint(tagHex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("bad tlv tag %q: %w", tagHex, err)
	}
	return uint(n), nil
}

// mapNodeToField dispatches the node to the appropriate reflection logic.
func mapNodeToField(node Node, field reflect.Value) error {
	// A slice of structs (but not []byte) grows by one element per occurrence.
	if field.Kind() == reflect.Slice && !isByteSlice(field) {
		newElem := reflect.New(field.Type().Elem()).Elem()
		if err := decodeToValue(node, newElem); err != nil {
			return err
		}
		field.Set(reflect.Append(field, newElem))
		return nil
	}

	return decodeToValue(node, field)
}

// decodeToValue handles the leaf-node decoding logic (custom Unmarshaler,
// byte slice, string, nested struct).
func decodeToValue(node Node, field reflect.Value) error {
	if field.CanAddr() {
		if u, ok := field.Addr().Interface().(Unmarshaler); ok {
			return u.UnmarshalTLV(node.Value)
		}
	}

	if isByteSlice(field) {
		field.SetBytes(node.Value)
		return nil
	}

	if field.Kind() == reflect.String {
		field.SetString(hex.EncodeToString(node.Value))
		return nil
	}

	if isStructOrPtrToStruct(field) {
		targetField := getTargetField(field)
		if len(node.Children) > 0 {
			return UnmarshalNodes(node.Children, targetField.Interface())
		}
		return Unmarshal(node.Value, targetField.Interface())
	}

	return nil
}

func collectUnknownNodes(v reflect.Value, t reflect.Type, nodes []Node, consumed map[int]bool) error {
	unknownField, found := findUnknownField(v, t)
	if !found {
		return nil
	}

	var leftovers []Node
	for idx := range nodes {
		if !consumed[idx] {
			leftovers = append(leftovers, nodes[idx])
		}
	}

	if len(leftovers) > 0 && unknownField.CanSet() {
		unknownField.Set(reflect.ValueOf(leftovers))
	}
	return nil
}

func findUnknownField(v reflect.Value, t reflect.Type) (reflect.Value, bool) {
	for i := 0; i < v.NumField(); i++ {
		tag := t.Field(i).Tag.Get("tlv")
		if tag == ",unknown" || t.Field(i).Name == "Unknown" {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func isByteSlice(v reflect.Value) bool {
	return v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8
}

func isStructOrPtrToStruct(v reflect.Value) bool {
	if v.Kind() == reflect.Struct {
		return true
	}
	if v.Kind() == reflect.Ptr && v.Type().Elem().Kind() == reflect.Struct {
		return true
	}
	return false
}

func getTargetField(field reflect.Value) reflect.Value {
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return field
	}
	return field.Addr()
}
