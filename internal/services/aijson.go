package services

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// extractJSONObject returns the first complete top-level JSON object in
// text, skipping any prose or code fences around it.
func extractJSONObject(text string) (json.RawMessage, bool) {
	offset := strings.IndexByte(text, '{')
	for offset >= 0 {
		decoder := json.NewDecoder(strings.NewReader(text[offset:]))
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err == nil && len(raw) > 0 && raw[0] == '{' {
			return raw, true
		}
		next := strings.IndexByte(text[offset+1:], '{')
		if next < 0 {
			break
		}
		offset += next + 1
	}
	return nil, false
}

// flexString accepts a JSON string, number or bool. Anything else leaves
// it unset.
type flexString struct {
	Value string
	Set   bool
}

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		text = strings.TrimSpace(text)
		f.Value, f.Set = text, text != ""
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err == nil {
		f.Value, f.Set = number.String(), true
		return nil
	}
	var flag bool
	if err := json.Unmarshal(data, &flag); err == nil {
		f.Value, f.Set = strconv.FormatBool(flag), true
	}
	return nil
}

func (f flexString) Or(fallback string) string {
	if f.Set {
		return f.Value
	}
	return fallback
}

// flexInt accepts a JSON number or a string starting with a number, so
// "90", "90s" and 90.4 all read as 90.
type flexInt struct {
	Value int
	Set   bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var number float64
	if err := json.Unmarshal(data, &number); err == nil {
		f.Value, f.Set = int(math.Round(number)), true
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		if value, ok := leadingNumber(text); ok {
			f.Value, f.Set = int(math.Round(value)), true
		}
	}
	return nil
}

func (f flexInt) Or(fallback int) int {
	if f.Set && f.Value > 0 {
		return f.Value
	}
	return fallback
}

func leadingNumber(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	end := 0
	for end < len(text) && (text[end] >= '0' && text[end] <= '9' || text[end] == '.') {
		end++
	}
	if end == 0 {
		return 0, false
	}
	value, err := strconv.ParseFloat(text[:end], 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
