// Package evidence normalises uploaded threat data into the canonical text
// embedded in stage instructions: compact JSON with sorted object keys.
package evidence

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/teranos/threatbrief/errors"
)

// Format identifies how raw evidence is encoded
type Format string

const (
	JSON Format = "json"
	CSV  Format = "csv"
	YAML Format = "yaml"
)

// ParseFormat accepts a format name, case-insensitive
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return JSON, nil
	case "csv":
		return CSV, nil
	case "yaml", "yml":
		return YAML, nil
	default:
		return "", errors.NewInputErrorf("unsupported evidence format %q (expected json, csv or yaml)", s)
	}
}

// FormatFromFilename guesses the format from a file extension, defaulting to JSON
func FormatFromFilename(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return CSV
	case ".yaml", ".yml":
		return YAML
	default:
		return JSON
	}
}

// Parse converts raw evidence to canonical text. Whitespace-only input yields "".
func Parse(raw []byte, format Format) (string, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", nil
	}

	var (
		v   interface{}
		err error
	)
	switch format {
	case JSON, "":
		v, err = decodeJSON(raw)
	case CSV:
		v, err = decodeCSV(raw)
	case YAML:
		v, err = decodeYAML(raw)
	default:
		return "", errors.NewInputErrorf("unsupported evidence format %q", format)
	}
	if err != nil {
		return "", err
	}
	return canonical(v)
}

// FromObject canonicalises an already-decoded value (e.g. a request body field)
func FromObject(v interface{}) (string, error) {
	if v == nil {
		return "", nil
	}
	return canonical(v)
}

func decodeJSON(raw []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, errors.MarkParse(errors.Wrap(err, "invalid JSON evidence"))
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.NewParseErrorf("invalid JSON evidence: trailing data after top-level value")
	}
	return v, nil
}

// decodeCSV turns a header row plus records into an array of objects
func decodeCSV(raw []byte) (interface{}, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.MarkParse(errors.Wrap(err, "invalid CSV evidence"))
	}
	header := rows[0]
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if header[i] == "" {
			return nil, errors.NewParseErrorf("invalid CSV evidence: column %d has no header", i+1)
		}
	}

	records := make([]interface{}, 0, len(rows)-1)
	for _, row := range rows[1:] {
		obj := make(map[string]interface{}, len(header))
		for i, h := range header {
			obj[h] = row[i]
		}
		records = append(records, obj)
	}
	return records, nil
}

func decodeYAML(raw []byte) (interface{}, error) {
	var v interface{}
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return nil, errors.MarkParse(errors.Wrap(err, "invalid YAML evidence"))
	}
	return normalizeYAML(v)
}

// normalizeYAML converts yaml.v3 output into JSON-encodable values
func normalizeYAML(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			n, err := normalizeYAML(val)
			if err != nil {
				return nil, err
			}
			t[k] = n
		}
		return t, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			n, err := normalizeYAML(val)
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(k)] = n
		}
		return out, nil
	case []interface{}:
		for i, val := range t {
			n, err := normalizeYAML(val)
			if err != nil {
				return nil, err
			}
			t[i] = n
		}
		return t, nil
	default:
		return v, nil
	}
}

// canonical marshals v compactly. encoding/json sorts map keys.
func canonical(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", errors.MarkParse(errors.Wrap(err, "evidence is not representable as JSON"))
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
