package riskmatrix

import (
	"encoding/json"
	"net/url"
	"sort"
	"strings"

	"github.com/gowebpki/jcs"
)

// SerializeParams produces the canonical parameter serialization both
// sides of the protocol agree on. GET requests get a sorted, URL-encoded
// query string; every other method gets RFC 8785 canonical JSON of the
// body.
func SerializeParams(method string, params map[string]interface{}) (string, error) {
	if strings.EqualFold(method, "GET") {
		return serializeQueryParams(params), nil
	}
	return serializeBodyParams(params)
}

func serializeQueryParams(params map[string]interface{}) string {
	if len(params) == 0 {
		return ""
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		v := stringifyScalar(params[k])
		pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(v))
	}
	return strings.Join(pairs, "&")
}

func serializeBodyParams(params map[string]interface{}) (string, error) {
	if len(params) == 0 {
		return "{}", nil
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	return string(canonical), nil
}

// stringifyScalar renders a GET query value the way a JS template literal
// would: numbers without trailing zeros, booleans as "true"/"false",
// nil as "". Everything else is rendered as its JSON encoding with any
// surrounding double quotes trimmed.
func stringifyScalar(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		s := string(b)
		return strings.Trim(s, `"`)
	}
}

// CanonicalJSON returns the RFC 8785 canonical JSON encoding of v:
// recursive, object keys sorted, no whitespace.
func CanonicalJSON(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	return string(canonical), nil
}
