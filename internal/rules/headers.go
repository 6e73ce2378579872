package rules

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeRequestHeaders base64-decodes the HTTP request's "request" field
// and parses it as CRLF-separated "Name: Value" lines, matching
// parse_list_crlf.
func DecodeRequestHeaders(encoded string) ([]Header, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("base64 decode request headers: %w", err)
	}
	return parseCRLFHeaders(string(raw)), nil
}

func parseCRLFHeaders(body string) []Header {
	lines := strings.Split(body, "\r\n")
	out := make([]Header, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		out = append(out, Header{
			Name:  strings.TrimSpace(name),
			Value: strings.TrimSpace(value),
		})
	}
	return out
}

// parseCommaHeaders parses a comma-separated "Name: Value, Name: Value"
// list, matching parse_list_comma as used for a rule's "header" and "add"
// fields.
func parseCommaHeaders(field string) []Header {
	if field == "" {
		return nil
	}
	parts := strings.Split(field, ",")
	out := make([]Header, 0, len(parts))
	for _, part := range parts {
		name, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		out = append(out, Header{
			Name:  strings.TrimSpace(name),
			Value: strings.TrimSpace(value),
		})
	}
	return out
}
