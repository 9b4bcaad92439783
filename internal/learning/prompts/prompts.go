package prompts

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

type Prompt struct {
	Name       string
	Version    int
	System     string
	User       string
	SchemaName string
	Schema     map[string]any
}

// Fingerprint identifies the rendered prompt; traces carry it instead of the full text.
func (p Prompt) Fingerprint() string {
	h := sha256.Sum256([]byte(
		strings.TrimSpace(p.Name) + "|" +
			strconv.Itoa(p.Version) + "|" +
			strings.TrimSpace(p.System) + "|" +
			strings.TrimSpace(p.User),
	))
	return hex.EncodeToString(h[:])
}
