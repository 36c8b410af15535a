package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// jsonObject is a JSON object with its key order preserved. The flat CSV
// mode discovers columns in first-occurrence order across the whole input,
// so records cannot be decoded into Go maps.
type jsonObject []jsonField

type jsonField struct {
	Key   string
	Value any
}

func (o jsonObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// parseOrderedObject decodes one line as a JSON object, rejecting
// top-level lists and scalars. Numbers stay json.Number so their source
// text survives into the CSV cell.
func parseOrderedObject(line []byte) (jsonObject, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return nil, fmt.Errorf("line must represent a JSON object")
	}
	return decodeOrderedObject(dec)
}

func decodeOrderedObject(dec *json.Decoder) (jsonObject, error) {
	var obj jsonObject
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is not a string")
		}
		value, err := decodeOrderedValue(dec)
		if err != nil {
			return nil, err
		}
		obj = append(obj, jsonField{Key: key, Value: value})
	}
	// consume the closing brace
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeOrderedValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); ok {
		switch delim {
		case '{':
			return decodeOrderedObject(dec)
		case '[':
			var list []any
			for dec.More() {
				item, err := decodeOrderedValue(dec)
				if err != nil {
					return nil, err
				}
				list = append(list, item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			if list == nil {
				list = []any{}
			}
			return list, nil
		}
	}
	return tok, nil
}

// flattenObject converts a record into dot-separated cell values, keeping
// key order. Scalar lists join with ";"; lists holding anything nested
// serialize as an embedded JSON string.
func flattenObject(obj jsonObject) (keys []string, cells map[string]string, err error) {
	cells = make(map[string]string)
	keys, err = flattenInto(obj, "", nil, cells)
	return keys, cells, err
}

func flattenInto(value any, parent string, keys []string, cells map[string]string) ([]string, error) {
	switch v := value.(type) {
	case jsonObject:
		for _, f := range v {
			key := f.Key
			if parent != "" {
				key = parent + "." + f.Key
			}
			var err error
			keys, err = flattenInto(f.Value, key, keys, cells)
			if err != nil {
				return nil, err
			}
		}
		return keys, nil
	case []any:
		if parent == "" {
			return nil, fmt.Errorf("top-level list cannot be flattened")
		}
		cell, err := serializeList(v)
		if err != nil {
			return nil, err
		}
		cells[parent] = cell
		return append(keys, parent), nil
	default:
		if parent == "" {
			return nil, fmt.Errorf("top-level scalar cannot be flattened")
		}
		cells[parent] = scalarString(v)
		return append(keys, parent), nil
	}
}

func serializeList(items []any) (string, error) {
	if isScalarList(items) {
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = scalarString(item)
		}
		return strings.Join(parts, ";"), nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func isScalarList(items []any) bool {
	for _, item := range items {
		switch item.(type) {
		case nil, string, bool, json.Number:
		default:
			return false
		}
	}
	return true
}

func scalarString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case bool:
		if s {
			return "true"
		}
		return "false"
	}
	return fmt.Sprint(v)
}
