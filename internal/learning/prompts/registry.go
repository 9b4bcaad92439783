package prompts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

type Template struct {
	Name       PromptName
	Version    int
	SchemaName string
	Schema     func() map[string]any
	System     func(Input) string
	User       func(Input) string
	Validate   Validator

	compiled *jsonschema.Schema
}

var (
	registryMu sync.RWMutex
	registry   = map[PromptName]Template{}
)

// ErrOutputSchema marks model output that does not satisfy the prompt's schema.
var ErrOutputSchema = errors.New("output does not match schema")

func Register(t Template) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[t.Name] = t
}

func lookup(name PromptName) (Template, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	t, ok := registry[name]
	return t, ok
}

// Build returns a Prompt ready to pass to an llm.Completer.
func Build(name PromptName, in Input) (Prompt, error) {
	t, ok := lookup(name)
	if !ok {
		return Prompt{}, fmt.Errorf("unknown prompt: %s", string(name))
	}
	if t.Schema == nil {
		return Prompt{}, fmt.Errorf("prompt %s missing schema", string(name))
	}
	if t.System == nil || t.User == nil {
		return Prompt{}, fmt.Errorf("prompt %s missing system/user renderers", string(name))
	}
	if t.Validate != nil {
		if err := t.Validate(in); err != nil {
			return Prompt{}, fmt.Errorf("%s: %w", string(name), err)
		}
	}
	return Prompt{
		Name:       string(t.Name),
		Version:    t.Version,
		SchemaName: strings.TrimSpace(t.SchemaName),
		Schema:     t.Schema(),
		System:     strings.TrimSpace(t.System(in)),
		User:       strings.TrimSpace(t.User(in)),
	}, nil
}

func Schema(name PromptName) (schemaName string, schema map[string]any, ok bool) {
	t, ok := lookup(name)
	if !ok || t.Schema == nil {
		return "", nil, false
	}
	return t.SchemaName, t.Schema(), true
}

// ValidateOutput checks raw JSON against the compiled schema of name.
// Schema violations wrap ErrOutputSchema.
func ValidateOutput(name PromptName, raw []byte) error {
	t, ok := lookup(name)
	if !ok || t.compiled == nil {
		return fmt.Errorf("unknown prompt: %s", string(name))
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputSchema, err)
	}
	if err := t.compiled.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputSchema, err)
	}
	return nil
}

func compileSchema(name string, schema map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://proofstake.schemas.local/prompts/%s.schema.json", strings.TrimSpace(name))
	if err := c.AddResource(url, bytes.NewReader(b)); err != nil {
		return nil, err
	}
	return c.Compile(url)
}
