package masking

import "strings"

const maskToken = "****"

var piiKeys = map[string]struct{}{
	"email":     {},
	"phone":     {},
	"full_name": {},
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(value string) string {
	trimmed := strings.TrimSpace(value)
	at := strings.LastIndex(trimmed, "@")
	if at <= 0 {
		return MaskTail(trimmed)
	}
	return trimmed[:1] + maskToken + trimmed[at:]
}

// MaskTail redacts a value while keeping its last four characters.
func MaskTail(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 4 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// MaskPII returns a copy of metadata with personal fields redacted, recursing into nested maps.
func MaskPII(input map[string]any) map[string]any {
	if len(input) == 0 {
		return nil
	}

	out := make(map[string]any, len(input))
	for key, value := range input {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = maskField(key, value)
	}
	return out
}

func maskField(key string, value any) any {
	switch cast := value.(type) {
	case map[string]any:
		return MaskPII(cast)
	case []any:
		items := make([]any, 0, len(cast))
		for _, item := range cast {
			items = append(items, maskField(key, item))
		}
		return items
	case string:
		if _, ok := piiKeys[strings.ToLower(key)]; !ok {
			return cast
		}
		if strings.EqualFold(key, "email") {
			return MaskEmail(cast)
		}
		return MaskTail(cast)
	default:
		return value
	}
}
