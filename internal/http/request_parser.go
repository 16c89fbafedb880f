package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// maxBodyBytes caps form and JSON bodies; every form here is a few fields.
const maxBodyBytes = 64 << 10

// RequestBodyParser reads a form-encoded or JSON body once and serves
// sanitized string fields from it.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = fmt.Errorf("request body exceeds %d bytes", maxBodyBytes)
	}
	return p
}

// Parse decodes the body as JSON when it looks like an object, as a form otherwise.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true
	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}
	if trimmed[0] == '{' {
		p.jsonData = make(map[string]any)
		p.err = json.Unmarshal([]byte(trimmed), &p.jsonData)
		return p.err
	}
	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// Get returns a trimmed value; missing keys read as "".
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Raw returns a value without sanitizing, for passwords.
func (p *RequestBodyParser) Raw(key string) string {
	if p.jsonData != nil {
		return stringValue(p.jsonData[key])
	}
	if p.formData != nil {
		return p.formData.Get(key)
	}
	return ""
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParsePeriodParams reads year and month, defaulting each to now. An
// unparsable value is returned as 0 so validation rejects it.
func ParsePeriodParams(get func(string) string, now time.Time) (year, month int) {
	year, month = now.Year(), int(now.Month())
	if v := strings.TrimSpace(get("year")); v != "" {
		year = atoiOrZero(v)
	}
	if v := strings.TrimSpace(get("month")); v != "" {
		month = atoiOrZero(v)
	}
	return year, month
}

// ParseSelection reads the account filter. Absent means every account (nil);
// present but blank means none.
func ParseSelection(query url.Values) []string {
	values, ok := query["account"]
	if !ok {
		return nil
	}
	out := []string{}
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = sanitizeInput(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// sanitizeInput trims whitespace and drops control characters.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' {
			return -1
		}
		return r
	}, s)
}
