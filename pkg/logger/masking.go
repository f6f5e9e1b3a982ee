package logger

import (
	"encoding/json"
	"fmt"
	"strings"
)

type MaskingType string

const (
	MaskingTypeFull    MaskingType = "full"    // "***"
	MaskingTypePartial MaskingType = "partial" // "a*****z"
	MaskingTypeEmail   MaskingType = "email"   // "a***@example.com"
)

type MaskingRule struct {
	Field string      // dot-notation path, e.g. "body.password", "data.*"
	Type  MaskingType // how to mask the value
}

// MaskData applies masking rules to the data
func MaskData(data any, rules []MaskingRule) any {
	if len(rules) == 0 {
		return data
	}

	var dataMap map[string]any

	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return data
	}

	if err := json.Unmarshal(jsonBytes, &dataMap); err != nil {
		return data
	}

	for _, rule := range rules {
		applyMaskingRule(dataMap, strings.Split(rule.Field, "."), rule.Type)
	}

	return dataMap
}

func applyMaskingRule(data any, pathParts []string, maskType MaskingType) {
	if len(pathParts) == 0 {
		return
	}

	currentPart := pathParts[0]
	remainingParts := pathParts[1:]

	switch v := data.(type) {
	case map[string]any:
		if currentPart == "*" {
			for key := range v {
				if len(remainingParts) == 0 {
					v[key] = maskValue(v[key], maskType)
				} else {
					applyMaskingRule(v[key], remainingParts, maskType)
				}
			}
		} else if val, exists := v[currentPart]; exists {
			if len(remainingParts) == 0 {
				v[currentPart] = maskValue(val, maskType)
			} else {
				applyMaskingRule(val, remainingParts, maskType)
			}
		}
	case []any:
		for i := range v {
			applyMaskingRule(v[i], pathParts, maskType)
		}
	}
}

func maskValue(value any, maskType MaskingType) any {
	strValue, ok := value.(string)
	if !ok {
		strValue = fmt.Sprintf("%v", value)
	}

	if strValue == "" {
		return value
	}

	switch maskType {
	case MaskingTypePartial:
		return maskPartial(strValue)
	case MaskingTypeEmail:
		return maskEmail(strValue)
	default:
		return "***"
	}
}

func maskPartial(s string) string {
	length := len(s)
	if length == 0 {
		return ""
	}
	if length <= 3 {
		return "***"
	}
	if length <= 6 {
		return string(s[0]) + "***"
	}
	return string(s[0]) + strings.Repeat("*", length-2) + string(s[length-1])
}

func maskEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***"
	}

	username := parts[0]
	if len(username) <= 1 {
		return "***@" + parts[1]
	}
	return string(username[0]) + "***@" + parts[1]
}
