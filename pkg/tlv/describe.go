package tlv

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strings"
)

// DumpNodes renders a decoded forest as an indented tree with one line per
// object: the tag in hex, the registered tag name, and for leaf objects the
// value. Printable ASCII values are shown quoted next to the hex.
func DumpNodes(nodes []Node) string {
	var sb strings.Builder
	writeNodeTree(&sb, nodes, 0)
	return strings.TrimRight(sb.String(), "\n")
}

func writeNodeTree(sb *strings.Builder, nodes []Node, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		if len(n.Children) > 0 {
			fmt.Fprintf(sb, "%s%X %s\n", indent, n.Tag, TagName(n.Tag))
			writeNodeTree(sb, n.Children, depth+1)
			continue
		}
		if len(n.Value) == 0 {
			fmt.Fprintf(sb, "%s%X %s\n", indent, n.Tag, TagName(n.Tag))
			continue
		}
		fmt.Fprintf(sb, "%s%X %s: %s\n", indent, n.Tag, TagName(n.Tag), formatNodeValue(n.Value))
	}
}

func formatNodeValue(value []byte) string {
	hexStr := strings.ToUpper(hex.EncodeToString(value))
	if isPrintableASCII(value) {
		return fmt.Sprintf("%s (%q)", hexStr, string(value))
	}
	return hexStr
}

func isPrintableASCII(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	for _, b := range data {
		if b < 32 || b > 126 {
			return false
		}
	}
	return true
}

// DumpDOL renders a DOL template listing: one line per entry with the tag in
// hex, its registered name, and the byte count the card expects.
func DumpDOL(entries []DOLEntry) string {
	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "%X %s (%d bytes)\n", e.Tag, TagName(e.Tag), e.Length)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// WriteStructFields inspects a struct and writes its fields to the strings.Builder.
// It joins lines with newlines but DOES NOT add a trailing newline, preventing artifacts in strings.Split.
// If the builder is not empty, it prepends a newline to separate this block from previous content.
func WriteStructFields(sb *strings.Builder, prefix string, s interface{}) {
	val := reflect.ValueOf(s)

	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return
		}
		val = val.Elem()
	}

	typ := val.Type()
	var lines []string

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.Uint8 {
			if line := formatByteSliceField(prefix, field, fieldType); line != "" {
				lines = append(lines, line)
			}
			continue
		}

		if field.Type() == reflect.TypeOf([]Node{}) {
			if unknownLines := formatUnknownField(prefix, field); len(unknownLines) > 0 {
				lines = append(lines, unknownLines...)
			}
			continue
		}
	}

	if len(lines) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(strings.Join(lines, "\n"))
	}
}

func formatByteSliceField(prefix string, field reflect.Value, fieldType reflect.StructField) string {
	if field.IsNil() || field.Len() == 0 {
		return ""
	}

	bytesVal := field.Bytes()
	formatTag := fieldType.Tag.Get("fmt")
	tlvTag := fieldType.Tag.Get("tlv")

	name := fieldType.Name
	if tlvTag != "" {
		name = fmt.Sprintf("%s (%s)", name, tlvTag)
	}

	displayVal := formatByteValue(bytesVal, formatTag)
	return fmt.Sprintf("    - %s.%s: %s", prefix, name, displayVal)
}

func formatUnknownField(prefix string, field reflect.Value) []string {
	if field.IsNil() || field.Len() == 0 {
		return nil
	}

	var lines []string
	nodes := field.Interface().([]Node)
	for _, n := range nodes {
		valStr := strings.ToUpper(hex.EncodeToString(n.Value))
		lines = append(lines, fmt.Sprintf("    - %s.Unknown Tag %X: %s", prefix, n.Tag, valStr))
	}
	return lines
}

func formatByteValue(data []byte, format string) string {
	switch format {
	case "ascii":
		return fmt.Sprintf("%X (%q)", data, MakeSafeASCII(data))
	case "int":
		var integer int
		for _, b := range data {
			integer = (integer << 8) | int(b)
		}
		return fmt.Sprintf("%X (Dec: %d)", data, integer)
	default:
		return strings.ToUpper(hex.EncodeToString(data))
	}
}

func MakeSafeASCII(data []byte) string {
	return strings.Map(func(r rune) rune {
		if r >= 32 && r <= 126 {
			return r
		}
		return '.'
	}, string(data))
}
