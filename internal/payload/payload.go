// Package payload extracts correlation fields from gateway callbacks of
// unknown shape.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// ErrMalformedPayload is returned when no JSON value can be recovered from a body
var ErrMalformedPayload = errors.New("malformed payload")

// Field aliases in priority order. Within one object the first alias present
// with a usable value wins; shallower objects win over deeper ones.
var (
	ReferenceAliases   = []string{"ExternalReference", "external_reference", "externalReference", "reference", "reference_no"}
	ResultCodeAliases  = []string{"ResultCode", "result_code", "resultcode"}
	StatusAliases      = []string{"Status", "status", "status_text", "statusText"}
	CheckoutIDAliases  = []string{"CheckoutRequestID", "checkout_request_id", "CheckoutRequestId"}
	DescriptionAliases = []string{"ResultDesc", "result_desc"}
	ReceiptAliases     = []string{"MpesaReceiptNumber", "mpesa_receipt_number", "provider_reference"}
)

var successStatuses = map[string]bool{
	"success":   true,
	"completed": true,
	"ok":        true,
}

// Document is a decoded callback body
type Document struct {
	root interface{}
	raw  []byte
}

// Extract decodes raw into a Document. A body that is not JSON is scanned for
// its outermost brace-delimited substring, which also covers form-encoded
// bodies carrying the JSON as a value.
func Extract(raw []byte) (Document, error) {
	for _, candidate := range candidates(raw) {
		if v, ok := decode(candidate); ok {
			return Document{root: v, raw: raw}, nil
		}
	}
	return Document{raw: raw}, ErrMalformedPayload
}

// FromValue wraps an already decoded value
func FromValue(v interface{}) Document {
	raw, _ := json.Marshal(v)
	return Document{root: v, raw: raw}
}

// Raw returns the body the document was extracted from
func (d Document) Raw() []byte {
	return d.raw
}

// IsEmpty reports whether the document holds no fields at all
func (d Document) IsEmpty() bool {
	switch v := d.root.(type) {
	case map[string]interface{}:
		return len(v) == 0
	case []interface{}:
		return len(v) == 0
	}
	return true
}

// Keys returns the sorted top-level keys when the document is an object
func (d Document) Keys() []string {
	obj, ok := d.root.(map[string]interface{})
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func candidates(raw []byte) [][]byte {
	trimmed := bytes.TrimSpace(raw)
	out := [][]byte{trimmed}
	if sub := braceSubstring(trimmed); sub != nil {
		out = append(out, sub)
	}
	if unescaped, err := url.QueryUnescape(string(trimmed)); err == nil && unescaped != string(trimmed) {
		if sub := braceSubstring([]byte(unescaped)); sub != nil {
			out = append(out, sub)
		}
	}
	return out
}

func braceSubstring(b []byte) []byte {
	start := bytes.IndexByte(b, '{')
	end := bytes.LastIndexByte(b, '}')
	if start < 0 || end <= start {
		return nil
	}
	return b[start : end+1]
}

func decode(b []byte) (interface{}, bool) {
	if len(b) == 0 {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}

	switch val := v.(type) {
	case map[string]interface{}, []interface{}:
		return val, true
	case string:
		// JSON-encoded JSON
		inner := strings.TrimSpace(val)
		if strings.HasPrefix(inner, "{") || strings.HasPrefix(inner, "[") {
			return decode([]byte(inner))
		}
	}
	return nil, false
}

// Event holds the fields resolved from a callback
type Event struct {
	Reference   string
	ResultCode  string
	Status      string
	CheckoutID  string
	Description string
	Receipt     string
}

// Resolve searches the document for every known field
func Resolve(d Document) Event {
	return Event{
		Reference:   Find(d, ReferenceAliases, asText),
		ResultCode:  Find(d, ResultCodeAliases, asCode),
		Status:      Find(d, StatusAliases, asText),
		CheckoutID:  Find(d, CheckoutIDAliases, asText),
		Description: Find(d, DescriptionAliases, asText),
		Receipt:     Find(d, ReceiptAliases, asText),
	}
}

// HasReference reports whether an external reference was found
func (e Event) HasReference() bool {
	return e.Reference != ""
}

// Succeeded reports whether the gateway reported a completed payment.
// A result code of 0 or a status of success, completed or ok counts as success.
func (e Event) Succeeded() bool {
	if isDigits(e.ResultCode) {
		if code, err := strconv.Atoi(e.ResultCode); err == nil && code == 0 {
			return true
		}
	}
	return successStatuses[strings.ToLower(strings.TrimSpace(e.Status))]
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Matcher converts a candidate value to text, rejecting values of the wrong shape
type Matcher func(v interface{}) (string, bool)

// Find walks the document breadth first and returns the first usable value
// stored under one of aliases. Object keys are visited in sorted order.
func Find(d Document, aliases []string, match Matcher) string {
	if d.root == nil {
		return ""
	}
	queue := []interface{}{d.root}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		switch n := node.(type) {
		case map[string]interface{}:
			for _, alias := range aliases {
				if v, ok := n[alias]; ok {
					if s, ok := match(v); ok {
						return s
					}
				}
			}
			keys := make([]string, 0, len(n))
			for k := range n {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				queue = appendContainer(queue, n[k])
			}
		case []interface{}:
			for _, v := range n {
				queue = appendContainer(queue, v)
			}
		}
	}
	return ""
}

func appendContainer(queue []interface{}, v interface{}) []interface{} {
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return append(queue, v)
	}
	return queue
}

func asText(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		return s, s != ""
	case json.Number:
		return val.String(), true
	}
	return "", false
}

func asCode(v interface{}) (string, bool) {
	switch val := v.(type) {
	case json.Number:
		return val.String(), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case string:
		s := strings.TrimSpace(val)
		return s, s != ""
	}
	return "", false
}
