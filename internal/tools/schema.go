package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Search argument limits.
const (
	MaxBatchQueries         = 5
	MaxDomainFilters        = 20
	MinResults              = 1
	MaxResultsLimit         = 20
	DefaultMaxResults       = 10
	DefaultMaxTokensPerPage = 1024

	maxSafeInteger = 1 << 53
)

// FieldType selects how a field is decoded and how it is described in the
// discovery document.
type FieldType int

const (
	FieldString FieldType = iota
	FieldInteger
	FieldStringList
	// FieldQuery accepts either one string or a bounded list of strings.
	FieldQuery
)

// Field is one declared search argument. The slice returned by SearchFields
// is the only definition of the argument shape: Validate and Document both
// walk it.
type Field struct {
	Name        string
	Description string
	Type        FieldType
	Required    bool

	// Integer bounds and default. Maximum <= 0 means unbounded.
	Default int
	Minimum int
	Maximum int

	// List bounds. MaxItems <= 0 means unbounded.
	MinItems int
	MaxItems int

	// NonEmpty rejects empty strings (and empty list items).
	NonEmpty bool

	set func(p *Params, v fieldValue)
}

type fieldValue struct {
	str   string
	num   int
	list  []string
	query Query
}

var searchFields = []Field{
	{
		Name:        "query",
		Description: "Search query, or a list of up to 5 queries to run as one batch",
		Type:        FieldQuery,
		Required:    true,
		NonEmpty:    true,
		MinItems:    1,
		MaxItems:    MaxBatchQueries,
		set:         func(p *Params, v fieldValue) { p.Query = v.query },
	},
	{
		Name:        "max_results",
		Description: "Maximum number of results to return per query (1-20)",
		Type:        FieldInteger,
		Default:     DefaultMaxResults,
		Minimum:     MinResults,
		Maximum:     MaxResultsLimit,
		set:         func(p *Params, v fieldValue) { p.MaxResults = v.num },
	},
	{
		Name:        "max_tokens_per_page",
		Description: "Maximum number of tokens of page content to extract per result",
		Type:        FieldInteger,
		Default:     DefaultMaxTokensPerPage,
		Minimum:     1,
		set:         func(p *Params, v fieldValue) { p.MaxTokensPerPage = v.num },
	},
	{
		Name:        "country",
		Description: "ISO 3166-1 alpha-2 country code used to localize results (e.g. US, GB, DE)",
		Type:        FieldString,
		set:         func(p *Params, v fieldValue) { p.Country = v.str },
	},
	{
		Name:        "search_domain_filter",
		Description: "Restrict results to these domains (at most 20)",
		Type:        FieldStringList,
		MaxItems:    MaxDomainFilters,
		set:         func(p *Params, v fieldValue) { p.DomainFilter = v.list },
	},
}

// SearchFields returns a copy of the declared search arguments.
func SearchFields() []Field {
	out := make([]Field, len(searchFields))
	copy(out, searchFields)
	return out
}

// Query is either a single search string or a batch of them.
type Query struct {
	texts []string
	batch bool
}

// SingleQuery returns a one-string query.
func SingleQuery(text string) Query {
	return Query{texts: []string{text}}
}

// BatchQuery returns a multi-query batch. Batch formatting is used even for
// a batch of one.
func BatchQuery(texts ...string) Query {
	cp := make([]string, len(texts))
	copy(cp, texts)
	return Query{texts: cp, batch: true}
}

func (q Query) IsBatch() bool { return q.batch }

// Texts returns the query strings in input order.
func (q Query) Texts() []string {
	cp := make([]string, len(q.texts))
	copy(cp, q.texts)
	return cp
}

// Text returns the single query string, or the first query of a batch.
func (q Query) Text() string {
	if len(q.texts) == 0 {
		return ""
	}
	return q.texts[0]
}

// Len reports how many queries the value carries.
func (q Query) Len() int { return len(q.texts) }

// MarshalJSON encodes a single query as a string and a batch as an array.
func (q Query) MarshalJSON() ([]byte, error) {
	if q.batch {
		return json.Marshal(q.texts)
	}
	return json.Marshal(q.Text())
}

// Params are validated search arguments with defaults applied.
type Params struct {
	Query            Query
	MaxResults       int
	MaxTokensPerPage int
	Country          string
	DomainFilter     []string
}

// Violation is a single failed constraint.
type Violation struct {
	Field   string
	Message string
}

func (v Violation) String() string {
	if v.Field == "" {
		return v.Message
	}
	return v.Field + ": " + v.Message
}

// ValidationError lists every constraint the arguments violated.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return "invalid arguments: " + strings.Join(parts, "; ")
}

// Has reports whether a violation was recorded for field.
func (e *ValidationError) Has(field string) bool {
	for _, v := range e.Violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

// Validate checks args against the declared fields and returns fully
// populated Params. A nil map is treated as an empty argument object.
func Validate(args map[string]any) (Params, error) {
	var (
		p          Params
		violations []Violation
	)
	for _, f := range searchFields {
		raw, present := args[f.Name]
		if !present || raw == nil {
			if f.Required {
				violations = append(violations, Violation{Field: f.Name, Message: "required"})
				continue
			}
			if f.Type == FieldInteger {
				f.set(&p, fieldValue{num: f.Default})
			}
			continue
		}
		v, errs := f.decode(raw)
		if len(errs) > 0 {
			violations = append(violations, errs...)
			continue
		}
		f.set(&p, v)
	}
	if len(violations) > 0 {
		return Params{}, &ValidationError{Violations: violations}
	}
	if err := conformsToDocument(args); err != nil {
		return Params{}, &ValidationError{Violations: []Violation{{Message: err.Error()}}}
	}
	return p, nil
}

func (f Field) decode(raw any) (fieldValue, []Violation) {
	switch f.Type {
	case FieldString:
		s, ok := raw.(string)
		if !ok {
			return fieldValue{}, []Violation{f.typeViolation("string", raw)}
		}
		if f.NonEmpty && s == "" {
			return fieldValue{}, []Violation{{Field: f.Name, Message: "must not be empty"}}
		}
		return fieldValue{str: s}, nil
	case FieldInteger:
		n, ok := asInteger(raw)
		if !ok {
			return fieldValue{}, []Violation{f.typeViolation("integer", raw)}
		}
		if n < f.Minimum {
			return fieldValue{}, []Violation{{Field: f.Name, Message: fmt.Sprintf("must be at least %d, got %d", f.Minimum, n)}}
		}
		if f.Maximum > 0 && n > f.Maximum {
			return fieldValue{}, []Violation{{Field: f.Name, Message: fmt.Sprintf("must be at most %d, got %d", f.Maximum, n)}}
		}
		return fieldValue{num: n}, nil
	case FieldStringList:
		list, errs := f.decodeList(raw, "entry", "entries")
		return fieldValue{list: list}, errs
	case FieldQuery:
		if s, ok := raw.(string); ok {
			if f.NonEmpty && s == "" {
				return fieldValue{}, []Violation{{Field: f.Name, Message: "must not be empty"}}
			}
			return fieldValue{query: SingleQuery(s)}, nil
		}
		if _, ok := asList(raw); !ok {
			return fieldValue{}, []Violation{f.typeViolation("string or array of strings", raw)}
		}
		list, errs := f.decodeList(raw, "query", "queries")
		if len(errs) > 0 {
			return fieldValue{}, errs
		}
		return fieldValue{query: BatchQuery(list...)}, nil
	}
	return fieldValue{}, []Violation{{Field: f.Name, Message: "unsupported field type"}}
}

func (f Field) decodeList(raw any, one, many string) ([]string, []Violation) {
	noun := func(n int) string {
		if n == 1 {
			return one
		}
		return many
	}
	items, ok := asList(raw)
	if !ok {
		return nil, []Violation{f.typeViolation("array of strings", raw)}
	}
	var errs []Violation
	if len(items) < f.MinItems {
		errs = append(errs, Violation{Field: f.Name, Message: fmt.Sprintf("must contain at least %d %s, got %d", f.MinItems, noun(f.MinItems), len(items))})
	}
	if f.MaxItems > 0 && len(items) > f.MaxItems {
		errs = append(errs, Violation{Field: f.Name, Message: fmt.Sprintf("must contain at most %d %s, got %d", f.MaxItems, noun(f.MaxItems), len(items))})
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			errs = append(errs, Violation{Field: fmt.Sprintf("%s[%d]", f.Name, i), Message: fmt.Sprintf("expected string, got %s", jsonTypeName(item))})
			continue
		}
		if f.NonEmpty && s == "" {
			errs = append(errs, Violation{Field: fmt.Sprintf("%s[%d]", f.Name, i), Message: "must not be empty"})
			continue
		}
		out = append(out, s)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

func (f Field) typeViolation(want string, got any) Violation {
	return Violation{Field: f.Name, Message: fmt.Sprintf("expected %s, got %s", want, jsonTypeName(got))}
}

func asList(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func asInteger(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		if math.Trunc(v) != v || math.Abs(v) > maxSafeInteger {
			return 0, false
		}
		return int(v), true
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i), true
		}
		if fl, err := v.Float64(); err == nil && math.Trunc(fl) == fl && math.Abs(fl) <= maxSafeInteger {
			return int(fl), true
		}
	}
	return 0, false
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int32, int64, float64, json.Number:
		return "number"
	case []any, []string:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

// Document projects the declared fields into the JSON-schema document
// advertised through tool discovery.
func Document() map[string]any {
	props := make(map[string]any, len(searchFields))
	var required []string
	for _, f := range searchFields {
		props[f.Name] = f.document()
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func (f Field) document() map[string]any {
	switch f.Type {
	case FieldInteger:
		d := map[string]any{
			"type":        "integer",
			"description": f.Description,
			"default":     f.Default,
			"minimum":     f.Minimum,
		}
		if f.Maximum > 0 {
			d["maximum"] = f.Maximum
		}
		return d
	case FieldStringList:
		return map[string]any{
			"type":        "array",
			"description": f.Description,
			"items":       f.stringSchema(),
			"minItems":    f.MinItems,
			"maxItems":    f.MaxItems,
		}
	case FieldQuery:
		return map[string]any{
			"description": f.Description,
			"oneOf": []any{
				f.stringSchema(),
				map[string]any{
					"type":     "array",
					"items":    f.stringSchema(),
					"minItems": f.MinItems,
					"maxItems": f.MaxItems,
				},
			},
		}
	default:
		d := f.stringSchema()
		d["description"] = f.Description
		return d
	}
}

func (f Field) stringSchema() map[string]any {
	d := map[string]any{"type": "string"}
	if f.NonEmpty {
		d["minLength"] = 1
	}
	return d
}

var compiledDocument = mustCompileDocument()

func mustCompileDocument() *jsonschema.Schema {
	raw, err := json.Marshal(Document())
	if err != nil {
		panic(fmt.Sprintf("marshal search schema: %v", err))
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		panic(fmt.Sprintf("unmarshal search schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("perplexity_search.json", doc); err != nil {
		panic(fmt.Sprintf("add search schema resource: %v", err))
	}
	s, err := c.Compile("perplexity_search.json")
	if err != nil {
		panic(fmt.Sprintf("compile search schema: %v", err))
	}
	return s
}

// conformsToDocument re-checks accepted arguments against the compiled
// discovery document, so the advertised schema and the field validator can
// never disagree silently.
func conformsToDocument(args map[string]any) error {
	// null is accepted as "absent" by the validator.
	present := make(map[string]any, len(args))
	for k, v := range args {
		if v != nil {
			present[k] = v
		}
	}
	raw, err := json.Marshal(present)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	if err := compiledDocument.Validate(inst); err != nil {
		return fmt.Errorf("schema validation failed: %s", err)
	}
	return nil
}
