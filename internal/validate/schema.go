package validate

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

type schemaShape struct {
	Type       string                `json:"type"`
	Properties map[string]schemaProp `json:"properties"`
	Required   []string              `json:"required"`
}

type schemaProp struct {
	Type string `json:"type"`
	Enum []any  `json:"enum"`
}

// SchemaValidator resolves each call's descriptor from the catalog,
// autocorrects missing required parameters by renaming a synonym or
// best-scoring candidate key, and enforces declared type and enum
// constraints on whatever parameters the schema knows about.
type SchemaValidator struct {
	catalog  Catalog
	compiled sync.Map // raw schema bytes (as string) -> *jsonschema.Schema
}

// NewSchemaValidator creates the schema validator against cat.
func NewSchemaValidator(cat Catalog) *SchemaValidator {
	return &SchemaValidator{catalog: cat}
}

// compiledSchema compiles (and caches) a tool's declared input schema so
// the structural checks the hand-rolled type/enum pass above doesn't
// cover (patterns, nested objects, formats) still surface as warnings.
// A schema that fails to compile is treated as advisory-only and simply
// skipped, since the autocorrect pass above already enforces the parts
// of the contract the pipeline can't afford to get wrong.
func (v *SchemaValidator) compiledSchema(raw json.RawMessage) (*jsonschema.Schema, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	key := string(raw)
	if cached, ok := v.compiled.Load(key); ok {
		return cached.(*jsonschema.Schema), true
	}

	schema, err := jsonschema.CompileString(key, key)
	if err != nil {
		return nil, false
	}
	v.compiled.Store(key, schema)
	return schema, true
}

// toSchemaInterface round-trips params through JSON so jsonschema sees
// the same decoded shape (json.Number-free, plain float64/map/slice)
// it validates elsewhere.
func toSchemaInterface(params map[string]any) any {
	encoded, err := json.Marshal(params)
	if err != nil {
		return params
	}
	var decoded any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return params
	}
	return decoded
}

func (v *SchemaValidator) Name() string { return "schema" }

func (v *SchemaValidator) Validate(calls []ToolCall) Result {
	result := Result{Valid: true}
	corrected := make([]ToolCall, len(calls))

	for i, call := range calls {
		desc, ok := v.catalog.Resolve(call.Provider, call.Tool)
		if !ok {
			result.addError(i, fmt.Sprintf("unknown tool %q for provider %q", call.Tool, call.Provider), v.suggestToolName(call.Provider, call.Tool))
			corrected[i] = call
			continue
		}

		call.Provider = desc.ProviderName
		call.Tool = desc.QualifiedName
		call.RawName = desc.RawName

		var shape schemaShape
		if len(desc.InputSchema) > 0 {
			if err := json.Unmarshal(desc.InputSchema, &shape); err != nil {
				shape = schemaShape{}
			}
		}

		params := call.Parameters
		if params == nil {
			params = map[string]any{}
		}

		available := make([]string, 0, len(params))
		for k := range params {
			available = append(available, k)
		}

		for _, req := range shape.Required {
			if _, present := params[req]; present {
				continue
			}

			if renamed := v.renameBySynonym(params, available, req, i, &result); renamed {
				continue
			}
			if match, _, ok := bestMatch(req, available); ok {
				params[req] = params[match]
				delete(params, match)
				result.addWarning(i, fmt.Sprintf("renamed parameter %q to required %q", match, req), "")
				continue
			}

			result.addError(i, fmt.Sprintf("missing required parameter %q", req), "")
		}

		for key, val := range params {
			prop, known := shape.Properties[key]
			if !known {
				continue
			}
			if prop.Type != "" && !typeMatches(prop.Type, val) {
				result.addError(i, fmt.Sprintf("parameter %q expected type %q", key, prop.Type), "")
				continue
			}
			if len(prop.Enum) > 0 && !enumContains(prop.Enum, val) {
				result.addError(i, fmt.Sprintf("parameter %q must be one of %v", key, prop.Enum), "")
			}
		}

		if schema, ok := v.compiledSchema(desc.InputSchema); ok {
			if err := schema.Validate(toSchemaInterface(params)); err != nil {
				result.addWarning(i, fmt.Sprintf("schema validation: %v", err), "")
			}
		}

		call.Parameters = params
		corrected[i] = call
	}

	if result.Valid {
		result.CorrectedCalls = corrected
	}
	return result
}

func (v *SchemaValidator) renameBySynonym(params map[string]any, available []string, required string, callIndex int, result *Result) bool {
	for _, have := range available {
		if !synonymOf(required, have) {
			continue
		}
		params[required] = params[have]
		delete(params, have)
		result.addWarning(callIndex, fmt.Sprintf("renamed parameter %q to required %q", have, required), "")
		return true
	}
	return false
}

func (v *SchemaValidator) suggestToolName(provider, tool string) string {
	var list []string
	var descriptors = v.catalog.ListAllTools()
	if provider != "" {
		descriptors = v.catalog.ListFrom([]string{provider})
	}
	for _, d := range descriptors {
		list = append(list, d.QualifiedName)
	}
	if match, _, ok := bestMatch(tool, list); ok {
		return match
	}
	return ""
}

func typeMatches(schemaType string, val any) bool {
	switch schemaType {
	case "string":
		_, ok := val.(string)
		return ok
	case "number", "integer":
		switch val.(type) {
		case float64, int, int64:
			return true
		default:
			return false
		}
	case "boolean":
		_, ok := val.(bool)
		return ok
	case "object":
		_, ok := val.(map[string]any)
		return ok
	case "array":
		_, ok := val.([]any)
		return ok
	default:
		return true
	}
}

func enumContains(enum []any, val any) bool {
	for _, e := range enum {
		if fmt.Sprintf("%v", e) == fmt.Sprintf("%v", val) {
			return true
		}
	}
	return false
}
