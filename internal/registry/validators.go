package registry

import "encoding/json"

// IsArray accepts JSON arrays.
func IsArray(data any) bool {
	_, ok := data.([]any)
	return ok
}

// IsObject accepts JSON objects.
func IsObject(data any) bool {
	_, ok := data.(map[string]any)
	return ok
}

// IsString accepts JSON strings.
func IsString(data any) bool {
	_, ok := data.(string)
	return ok
}

// IsNumber accepts JSON numbers.
func IsNumber(data any) bool {
	switch data.(type) {
	case float64, json.Number:
		return true
	}
	return false
}

// IsBool accepts JSON booleans.
func IsBool(data any) bool {
	_, ok := data.(bool)
	return ok
}

// Any accepts every decodable value, including null.
func Any(any) bool {
	return true
}

// ArrayOf accepts arrays whose every element satisfies elem.
func ArrayOf(elem Validator) Validator {
	return func(data any) bool {
		items, ok := data.([]any)
		if !ok {
			return false
		}
		for _, item := range items {
			if !elem(item) {
				return false
			}
		}
		return true
	}
}

// ObjectWithKeys accepts objects that carry every named key.
func ObjectWithKeys(keys ...string) Validator {
	return func(data any) bool {
		obj, ok := data.(map[string]any)
		if !ok {
			return false
		}
		for _, k := range keys {
			if _, ok := obj[k]; !ok {
				return false
			}
		}
		return true
	}
}

// All accepts data that satisfies every validator.
func All(validators ...Validator) Validator {
	return func(data any) bool {
		for _, v := range validators {
			if !v(data) {
				return false
			}
		}
		return true
	}
}

// TypeValidator returns the validator for a JSON type name.
func TypeValidator(name string) (Validator, bool) {
	switch name {
	case "array":
		return IsArray, true
	case "object":
		return IsObject, true
	case "string":
		return IsString, true
	case "number":
		return IsNumber, true
	case "bool", "boolean":
		return IsBool, true
	case "any":
		return Any, true
	}
	return nil, false
}
