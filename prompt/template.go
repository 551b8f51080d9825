// Package prompt provides placeholder interpolation for stage instructions.
// Templates reference run inputs using {{field}} syntax:
//   - {{threat}} - the threat description
//   - {{evidence}} - the canonical evidence text, verbatim
//   - {{evidence.key}} - a single value from the evidence object
//   - {{role}}, {{goal}} - the assigned role's name and goal
package prompt

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/teranos/threatbrief/errors"
)

// Template represents a parsed instruction template
type Template struct {
	raw      string
	segments []segment
}

// segment represents either a literal string or a placeholder
type segment struct {
	literal    bool
	content    string // for literal: the text; for placeholder: the field path
	isEvidence bool   // true for evidence.* paths
	path       string // the path after "evidence." if isEvidence
}

// Match {{field}} or {{evidence.path}}
var placeholderPattern = regexp.MustCompile(`\{\{([a-zA-Z_][a-zA-Z0-9_.]*)\}\}`)

// ValidFields lists all valid top-level fields that can be interpolated
var ValidFields = map[string]bool{
	"threat":   true,
	"evidence": true,
	"role":     true,
	"goal":     true,
}

// Values are the inputs substituted into a template
type Values struct {
	Threat   string
	Evidence string // canonical JSON text, may be empty
	Role     string
	Goal     string
}

// Parse creates a Template from a raw template string
func Parse(raw string) (*Template, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("empty template")
	}

	t := &Template{raw: raw}

	matches := placeholderPattern.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		t.segments = []segment{{literal: true, content: raw}}
		return t, nil
	}

	var segments []segment
	lastEnd := 0

	for _, match := range matches {
		// match[0]:match[1] is {{field}}, match[2]:match[3] is field
		start, end := match[0], match[1]
		field := raw[match[2]:match[3]]

		if start > lastEnd {
			segments = append(segments, segment{literal: true, content: raw[lastEnd:start]})
		}

		seg, err := parseField(field)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid placeholder {{%s}}", field)
		}
		segments = append(segments, seg)

		lastEnd = end
	}

	if lastEnd < len(raw) {
		segments = append(segments, segment{literal: true, content: raw[lastEnd:]})
	}

	t.segments = segments
	return t, nil
}

// MustParse is Parse for built-in templates known to be valid
func MustParse(raw string) *Template {
	t, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return t
}

func parseField(field string) (segment, error) {
	if strings.HasPrefix(field, "evidence.") {
		path := strings.TrimPrefix(field, "evidence.")
		if path == "" || strings.HasSuffix(path, ".") {
			return segment{}, errors.New("empty evidence path")
		}
		return segment{content: field, isEvidence: true, path: path}, nil
	}

	if !ValidFields[field] {
		return segment{}, errors.Newf("unknown field '%s'", field)
	}
	return segment{content: field}, nil
}

// Execute interpolates the template. {{threat}} and {{evidence}} are inserted
// verbatim with no truncation.
func (t *Template) Execute(v Values) (string, error) {
	var result strings.Builder
	result.Grow(len(t.raw) + len(v.Evidence) + len(v.Threat))

	var evidence interface{}
	var decoded bool

	for _, seg := range t.segments {
		if seg.literal {
			result.WriteString(seg.content)
			continue
		}

		switch {
		case seg.isEvidence:
			if !decoded {
				decoded = true
				if strings.TrimSpace(v.Evidence) != "" {
					if err := json.Unmarshal([]byte(v.Evidence), &evidence); err != nil {
						return "", errors.Wrapf(err, "failed to decode evidence for {{%s}}", seg.content)
					}
				}
			}
			value, err := lookupPath(evidence, seg.path)
			if err != nil {
				return "", errors.Wrapf(err, "failed to get value for {{%s}}", seg.content)
			}
			result.WriteString(value)
		case seg.content == "threat":
			result.WriteString(v.Threat)
		case seg.content == "evidence":
			result.WriteString(v.Evidence)
		case seg.content == "role":
			result.WriteString(v.Role)
		case seg.content == "goal":
			result.WriteString(v.Goal)
		}
	}

	return result.String(), nil
}

// lookupPath navigates a dot-separated path; array elements are addressed by index.
// Missing keys yield "".
func lookupPath(root interface{}, path string) (string, error) {
	parts := strings.Split(path, ".")
	current := root

	for i, part := range parts {
		switch v := current.(type) {
		case map[string]interface{}:
			val, ok := v[part]
			if !ok {
				return "", nil
			}
			current = val
		case []interface{}:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(v) {
				return "", nil
			}
			current = v[idx]
		case nil:
			return "", nil
		default:
			return "", errors.Newf("cannot traverse into non-object at '%s'", strings.Join(parts[:i], "."))
		}
	}

	return valueToString(current), nil
}

func valueToString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// GetPlaceholders returns all placeholder field names in the template
func (t *Template) GetPlaceholders() []string {
	var placeholders []string
	for _, seg := range t.segments {
		if !seg.literal {
			placeholders = append(placeholders, seg.content)
		}
	}
	return placeholders
}

// Raw returns the original template string
func (t *Template) Raw() string {
	return t.raw
}

// ValidateTemplate checks if a template string is valid
func ValidateTemplate(raw string) error {
	_, err := Parse(raw)
	return err
}
