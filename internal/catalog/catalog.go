// Package catalog presents a single flat view of every tool exposed by
// every connected provider, and translates between the three name forms
// that appear in planner output, provider wire traffic, and logs.
package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/relaycore/orchestrator/internal/mcp"
)

// Descriptor is the catalog's view of a single tool: the provider it came
// from, its three name forms, and its input schema.
type Descriptor struct {
	ProviderName   string          `json:"provider_name"`
	RawName        string          `json:"raw_name"`
	QualifiedName  string          `json:"qualified_name"`
	LegacyPrefixed string          `json:"legacy_prefixed"`
	Description    string          `json:"description,omitempty"`
	InputSchema    json.RawMessage `json:"input_schema"`
}

// qualify builds the canonical qualified_name: provider__raw_name.
func qualify(provider, raw string) string {
	return provider + "__" + raw
}

// legacyPrefix builds the older provider_raw_name form.
func legacyPrefix(provider, raw string) string {
	return provider + "_" + raw
}

// newDescriptor builds a Descriptor from a provider name and an MCP tool.
func newDescriptor(provider string, tool *mcp.MCPTool) Descriptor {
	return Descriptor{
		ProviderName:   provider,
		RawName:        tool.Name,
		QualifiedName:  qualify(provider, tool.Name),
		LegacyPrefixed: legacyPrefix(provider, tool.Name),
		Description:    tool.Description,
		InputSchema:    json.RawMessage(tool.InputSchema),
	}
}

// Catalog is a read-mostly flat index over every provider's tools. It is
// rebuilt wholesale and swapped in atomically whenever a provider's tool
// list changes, so readers never observe a half-updated view.
type Catalog struct {
	mu sync.RWMutex

	byQualified map[string]Descriptor
	byRaw       map[string][]Descriptor // raw_name -> descriptors (may span providers)
	byLegacy    map[string]Descriptor
	byProvider  map[string][]Descriptor
	ordered     []Descriptor
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		byQualified: make(map[string]Descriptor),
		byRaw:       make(map[string][]Descriptor),
		byLegacy:    make(map[string]Descriptor),
		byProvider:  make(map[string][]Descriptor),
	}
}

// Rebuild replaces the catalog's contents from a manager's current tool
// snapshot. The swap is atomic: readers see either the old or the new
// snapshot, never a partial one.
func (c *Catalog) Rebuild(allTools map[string][]*mcp.MCPTool) {
	byQualified := make(map[string]Descriptor)
	byRaw := make(map[string][]Descriptor)
	byLegacy := make(map[string]Descriptor)
	byProvider := make(map[string][]Descriptor)
	var ordered []Descriptor

	providers := make([]string, 0, len(allTools))
	for p := range allTools {
		providers = append(providers, p)
	}
	sort.Strings(providers)

	for _, provider := range providers {
		tools := allTools[provider]
		descs := make([]Descriptor, 0, len(tools))
		for _, tool := range tools {
			d := newDescriptor(provider, tool)
			byQualified[d.QualifiedName] = d
			byRaw[d.RawName] = append(byRaw[d.RawName], d)
			byLegacy[d.LegacyPrefixed] = d
			descs = append(descs, d)
			ordered = append(ordered, d)
		}
		byProvider[provider] = descs
	}

	c.mu.Lock()
	c.byQualified = byQualified
	c.byRaw = byRaw
	c.byLegacy = byLegacy
	c.byProvider = byProvider
	c.ordered = ordered
	c.mu.Unlock()
}

// Resolve normalizes any of the three observed name forms (optionally
// paired with an explicit provider hint) to a single descriptor. It tries,
// in order: qualified_name, legacy_prefixed, provider+raw_name, and
// (only when unambiguous) bare raw_name.
func (c *Catalog) Resolve(provider, name string) (Descriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if d, ok := c.byQualified[name]; ok {
		return d, true
	}
	if d, ok := c.byLegacy[name]; ok {
		return d, true
	}
	if provider != "" {
		if d, ok := c.byQualified[qualify(provider, name)]; ok {
			return d, true
		}
	}
	if candidates, ok := c.byRaw[name]; ok {
		if provider != "" {
			for _, d := range candidates {
				if d.ProviderName == provider {
					return d, true
				}
			}
		}
		if len(candidates) == 1 {
			return candidates[0], true
		}
	}
	return Descriptor{}, false
}

// ListAllTools returns every descriptor in the catalog, ordered by
// provider then raw name.
func (c *Catalog) ListAllTools() []Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Descriptor, len(c.ordered))
	copy(result, c.ordered)
	return result
}

// ListFrom restricts the listing to the given providers.
func (c *Catalog) ListFrom(providers []string) []Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []Descriptor
	for _, p := range providers {
		result = append(result, c.byProvider[p]...)
	}
	return result
}

// Providers returns the set of provider names currently represented.
func (c *Catalog) Providers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.byProvider))
	for p := range c.byProvider {
		names = append(names, p)
	}
	sort.Strings(names)
	return names
}

// Summary returns a compact, human-readable description of every tool
// from the given providers (all providers if nil), one line per tool.
func (c *Catalog) Summary(providers []string) string {
	descs := c.listForSummary(providers)

	var b strings.Builder
	for _, d := range descs {
		b.WriteString(fmt.Sprintf("%s: %s\n", d.QualifiedName, d.Description))
	}
	return b.String()
}

func (c *Catalog) listForSummary(providers []string) []Descriptor {
	if providers == nil {
		return c.ListAllTools()
	}
	return c.ListFrom(providers)
}

// DetailedTool is the full-schema view used when the planner needs to
// construct arguments for one tool.
type DetailedTool struct {
	Descriptor
	Required        []string       `json:"required"`
	Optional        []string       `json:"optional"`
	ExampleArgument map[string]any `json:"example_argument"`
}

// Detailed returns the full schema view (required/optional parameter
// names and a generated example argument object) for tools from the
// given providers.
func (c *Catalog) Detailed(providers []string) []DetailedTool {
	descs := c.listForSummary(providers)
	result := make([]DetailedTool, 0, len(descs))
	for _, d := range descs {
		result = append(result, detailFor(d))
	}
	return result
}

func detailFor(d Descriptor) DetailedTool {
	var schema struct {
		Properties map[string]schemaProp `json:"properties"`
		Required   []string              `json:"required"`
	}
	_ = json.Unmarshal(d.InputSchema, &schema)

	required := make(map[string]bool, len(schema.Required))
	for _, r := range schema.Required {
		required[r] = true
	}

	var optional []string
	example := make(map[string]any, len(schema.Properties))
	for name, prop := range schema.Properties {
		if !required[name] {
			optional = append(optional, name)
		}
		example[name] = exampleValue(name, prop)
	}
	sort.Strings(optional)

	return DetailedTool{
		Descriptor:      d,
		Required:        schema.Required,
		Optional:        optional,
		ExampleArgument: example,
	}
}

type schemaProp struct {
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Enum        []any           `json:"enum"`
	Default     json.RawMessage `json:"default"`
}

// exampleValue picks the best available example for a property: the
// first enum value, the schema default, or a description-based
// placeholder, falling back to a type-appropriate zero value.
func exampleValue(name string, prop schemaProp) any {
	if len(prop.Enum) > 0 {
		return prop.Enum[0]
	}
	if len(prop.Default) > 0 {
		var v any
		if err := json.Unmarshal(prop.Default, &v); err == nil {
			return v
		}
	}
	if prop.Description != "" {
		return fmt.Sprintf("<%s: %s>", name, prop.Description)
	}

	switch prop.Type {
	case "string":
		return fmt.Sprintf("<%s>", name)
	case "number", "integer":
		return 0
	case "boolean":
		return false
	case "array":
		return []any{}
	case "object":
		return map[string]any{}
	default:
		return fmt.Sprintf("<%s>", name)
	}
}
