package catalog

import (
	"encoding/json"
	"testing"

	"github.com/relaycore/orchestrator/internal/mcp"
)

func sampleTools() map[string][]*mcp.MCPTool {
	return map[string][]*mcp.MCPTool{
		"filesystem": {
			{
				Name:        "read_file",
				Description: "Read a file from disk",
				InputSchema: json.RawMessage(`{
					"type":"object",
					"properties":{
						"path":{"type":"string","description":"file path"},
						"encoding":{"type":"string","enum":["utf8","binary"]}
					},
					"required":["path"]
				}`),
			},
		},
		"playwright": {
			{Name: "navigate", Description: "Navigate to a URL", InputSchema: json.RawMessage(`{"type":"object","properties":{"url":{"type":"string"}},"required":["url"]}`)},
		},
	}
}

func TestRebuildAndListAllTools(t *testing.T) {
	c := New()
	c.Rebuild(sampleTools())

	all := c.ListAllTools()
	if len(all) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(all))
	}
}

func TestResolveQualifiedName(t *testing.T) {
	c := New()
	c.Rebuild(sampleTools())

	d, ok := c.Resolve("", "filesystem__read_file")
	if !ok {
		t.Fatal("expected resolve by qualified name")
	}
	if d.RawName != "read_file" || d.ProviderName != "filesystem" {
		t.Errorf("unexpected descriptor: %+v", d)
	}
}

func TestResolveLegacyPrefixed(t *testing.T) {
	c := New()
	c.Rebuild(sampleTools())

	d, ok := c.Resolve("", "filesystem_read_file")
	if !ok {
		t.Fatal("expected resolve by legacy prefixed name")
	}
	if d.QualifiedName != "filesystem__read_file" {
		t.Errorf("expected qualified name filesystem__read_file, got %s", d.QualifiedName)
	}
}

func TestResolveRawNameWithProviderHint(t *testing.T) {
	c := New()
	c.Rebuild(sampleTools())

	d, ok := c.Resolve("filesystem", "read_file")
	if !ok {
		t.Fatal("expected resolve by provider+raw")
	}
	if d.QualifiedName != "filesystem__read_file" {
		t.Errorf("unexpected descriptor: %+v", d)
	}
}

func TestResolveUnambiguousBareRawName(t *testing.T) {
	c := New()
	c.Rebuild(sampleTools())

	d, ok := c.Resolve("", "navigate")
	if !ok {
		t.Fatal("expected resolve of unambiguous bare raw name")
	}
	if d.ProviderName != "playwright" {
		t.Errorf("expected playwright provider, got %s", d.ProviderName)
	}
}

func TestResolveAmbiguousRawNameRequiresProvider(t *testing.T) {
	tools := map[string][]*mcp.MCPTool{
		"a": {{Name: "search", InputSchema: json.RawMessage(`{}`)}},
		"b": {{Name: "search", InputSchema: json.RawMessage(`{}`)}},
	}
	c := New()
	c.Rebuild(tools)

	if _, ok := c.Resolve("", "search"); ok {
		t.Fatal("expected ambiguous bare raw name to fail without a provider hint")
	}
	if d, ok := c.Resolve("a", "search"); !ok || d.ProviderName != "a" {
		t.Fatal("expected disambiguation via provider hint to succeed")
	}
}

func TestResolveNotFound(t *testing.T) {
	c := New()
	c.Rebuild(sampleTools())

	if _, ok := c.Resolve("", "nonexistent"); ok {
		t.Fatal("expected resolve of unknown tool to fail")
	}
}

func TestListFromRestrictsToProviders(t *testing.T) {
	c := New()
	c.Rebuild(sampleTools())

	subset := c.ListFrom([]string{"playwright"})
	if len(subset) != 1 || subset[0].ProviderName != "playwright" {
		t.Errorf("expected only playwright tools, got %+v", subset)
	}
}

func TestProviders(t *testing.T) {
	c := New()
	c.Rebuild(sampleTools())

	providers := c.Providers()
	if len(providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(providers))
	}
}

func TestSummaryIncludesDescriptions(t *testing.T) {
	c := New()
	c.Rebuild(sampleTools())

	summary := c.Summary(nil)
	if summary == "" {
		t.Fatal("expected non-empty summary")
	}
}

func TestDetailedRequiredAndExample(t *testing.T) {
	c := New()
	c.Rebuild(sampleTools())

	detailed := c.Detailed([]string{"filesystem"})
	if len(detailed) != 1 {
		t.Fatalf("expected 1 detailed tool, got %d", len(detailed))
	}

	d := detailed[0]
	if len(d.Required) != 1 || d.Required[0] != "path" {
		t.Errorf("expected required=[path], got %v", d.Required)
	}
	if len(d.Optional) != 1 || d.Optional[0] != "encoding" {
		t.Errorf("expected optional=[encoding], got %v", d.Optional)
	}

	if v, ok := d.ExampleArgument["encoding"]; !ok || v != "utf8" {
		t.Errorf("expected example encoding to use first enum value, got %v", v)
	}
	if v, ok := d.ExampleArgument["path"]; !ok {
		t.Errorf("expected example path to be present, got %v", v)
	}
}

func TestRebuildIsAtomicSwap(t *testing.T) {
	c := New()
	c.Rebuild(sampleTools())
	firstLen := len(c.ListAllTools())

	c.Rebuild(map[string][]*mcp.MCPTool{
		"filesystem": {{Name: "write_file", InputSchema: json.RawMessage(`{}`)}},
	})

	second := c.ListAllTools()
	if len(second) != 1 {
		t.Fatalf("expected catalog to fully replace contents, got %d tools (was %d)", len(second), firstLen)
	}
	if second[0].RawName != "write_file" {
		t.Errorf("expected write_file after rebuild, got %s", second[0].RawName)
	}
}
