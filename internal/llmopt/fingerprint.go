package llmopt

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// Fingerprint computes the cache/dedup key for a request: a hash over
// its kind, model, the sequence of message content strings joined with
// "|", and its canonicalized parameters.
func Fingerprint(req Request) string {
	var contents []string
	for _, m := range req.Messages {
		contents = append(contents, m.Content)
	}

	h := sha256.New()
	h.Write([]byte(string(req.Kind)))
	h.Write([]byte{0})
	h.Write([]byte(req.Model))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(contents, "|")))
	h.Write([]byte{0})
	h.Write([]byte(canonicalParams(req.Parameters)))

	return hex.EncodeToString(h.Sum(nil))
}

func canonicalParams(params map[string]any) string {
	if len(params) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make(map[string]any, len(params))
	for _, k := range keys {
		ordered[k] = params[k]
	}

	data, err := json.Marshal(ordered)
	if err != nil {
		return "{}"
	}
	return string(data)
}
