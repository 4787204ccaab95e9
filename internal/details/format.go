package details

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Format renders a live property value the way the detail panes show
// it. Floats keep at most two decimals and at least one.
func Format(v any) string {
	switch value := v.(type) {
	case nil:
		return "-"
	case string:
		return value
	case bool:
		return strconv.FormatBool(value)
	case float64:
		return formatFloat(value)
	case float32:
		return formatFloat(float64(value))
	case int:
		return strconv.Itoa(value)
	case color.RGBA:
		return FormatColor(value)
	case fmt.Stringer:
		return value.String()
	default:
		return fmt.Sprint(value)
	}
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}

// Insets are edge distances, in toolkit units.
type Insets struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

func (i Insets) String() string {
	return strings.Join([]string{
		formatFloat(i.Top), formatFloat(i.Right), formatFloat(i.Bottom), formatFloat(i.Left),
	}, " ")
}

// ParseInsets accepts "all", "vertical horizontal" or
// "top right bottom left", separated by spaces or commas.
func ParseInsets(s string) (Insets, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' })
	values := make([]float64, 0, len(fields))
	for _, field := range fields {
		f, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return Insets{}, fmt.Errorf("invalid insets %q: %w", s, err)
		}
		values = append(values, f)
	}

	switch len(values) {
	case 1:
		return Insets{values[0], values[0], values[0], values[0]}, nil
	case 2:
		return Insets{values[0], values[1], values[0], values[1]}, nil
	case 4:
		return Insets{values[0], values[1], values[2], values[3]}, nil
	default:
		return Insets{}, fmt.Errorf("invalid insets %q: want 1, 2 or 4 values", s)
	}
}

// ParseConstraints splits "key=value; key=value" into a map. Layout and
// grid constraints share this text form.
func ParseConstraints(s string) (map[string]string, error) {
	constraints := make(map[string]string)
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid constraint %q", part)
		}
		constraints[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return constraints, nil
}
