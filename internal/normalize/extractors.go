// Package normalize converts heterogeneous backend results into canonical documents.
//
// Each canonical field is resolved by an ordered list of extractors tried in
// priority order until one yields a non-empty value.
package normalize

import (
	"errors"
	"fmt"
	"math"
	"path"
	"strconv"
	"strings"

	"github.com/hyperjump/nexus/internal/models"
)

// ErrMalformed is returned when a field is present but has an unexpected shape.
var ErrMalformed = errors.New("malformed field")

// UntitledTitle is used when no title extractor yields a value.
const UntitledTitle = "untitled document"

// Extractor reads one candidate value from a raw result. Extract returns ""
// when the field is absent or empty and an ErrMalformed error when it is
// present with the wrong type.
type Extractor struct {
	Name    string
	Extract func(models.RawResult) (string, error)
}

// TitleExtractors is the title fallback chain.
var TitleExtractors = []Extractor{
	structString("title"),
	structString("name"),
	derivedString("title"),
	derivedString("name"),
	baseName(derivedString("link")),
	baseName(Extractor{Name: "name", Extract: func(r models.RawResult) (string, error) { return r.Name, nil }}),
	{Name: "id", Extract: func(r models.RawResult) (string, error) { return strings.TrimSpace(r.ID), nil }},
}

// ContentExtractors is the content fallback chain: page-anchored extractive
// answers, then snippets, then raw text fields.
var ContentExtractors = []Extractor{
	{Name: "derived.extractive_answers", Extract: extractiveAnswers},
	{Name: "derived.snippets", Extract: snippets},
	derivedString("content"),
	structString("content"),
	structString("text"),
	structString("body"),
}

// URIExtractors is the source URI fallback chain.
var URIExtractors = []Extractor{
	structString("source_uri"),
	structString("uri"),
	{Name: "uri", Extract: func(r models.RawResult) (string, error) { return strings.TrimSpace(r.URI), nil }},
	derivedString("link"),
	derivedString("source_uri"),
	{Name: "name", Extract: func(r models.RawResult) (string, error) { return strings.TrimSpace(r.Name), nil }},
}

// DocTypeExtractors reads the backend's native authority label.
var DocTypeExtractors = []Extractor{
	structString("doc_type"),
	derivedString("doc_type"),
}

// Resolve returns the first non-empty value produced by extractors.
// A malformed field stops resolution with an error naming the extractor.
func Resolve(extractors []Extractor, raw models.RawResult) (string, error) {
	for _, e := range extractors {
		v, err := e.Extract(raw)
		if err != nil {
			return "", fmt.Errorf("%s: %w", e.Name, err)
		}
		if v != "" {
			return v, nil
		}
	}
	return "", nil
}

func structString(key string) Extractor {
	return Extractor{
		Name:    "struct." + key,
		Extract: func(r models.RawResult) (string, error) { return stringField(r.Struct, key) },
	}
}

func derivedString(key string) Extractor {
	return Extractor{
		Name:    "derived." + key,
		Extract: func(r models.RawResult) (string, error) { return stringField(r.Derived, key) },
	}
}

// baseName wraps e to return the last path element of its value,
// e.g. "gs://bucket/circ12.pdf" -> "circ12.pdf".
func baseName(e Extractor) Extractor {
	return Extractor{
		Name: "basename(" + e.Name + ")",
		Extract: func(r models.RawResult) (string, error) {
			v, err := e.Extract(r)
			if err != nil || v == "" {
				return "", err
			}
			b := path.Base(strings.TrimRight(strings.ReplaceAll(v, `\`, "/"), "/"))
			if b == "." || b == "/" || strings.HasSuffix(b, ":") {
				return "", nil
			}
			return b, nil
		},
	}
}

func stringField(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T, want string", ErrMalformed, key, v)
	}
	return strings.TrimSpace(s), nil
}

func listField(m map[string]any, key string) ([]map[string]any, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch list := v.(type) {
	case []map[string]any:
		return list, nil
	case []any:
		out := make([]map[string]any, 0, len(list))
		for i, item := range list {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: %s[%d] is %T, want object", ErrMalformed, key, i, item)
			}
			out = append(out, obj)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s is %T, want list", ErrMalformed, key, v)
	}
}

// extractiveAnswers renders each answer as "[Page N] text", joined by blank lines.
func extractiveAnswers(r models.RawResult) (string, error) {
	answers, err := listField(r.Derived, "extractive_answers")
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(answers))
	for _, a := range answers {
		text, err := stringField(a, "content")
		if err != nil {
			return "", err
		}
		if text == "" {
			continue
		}
		page, err := pageNumber(a["pageNumber"])
		if err != nil {
			return "", err
		}
		if page != "" {
			text = "[Page " + page + "] " + text
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n"), nil
}

func snippets(r models.RawResult) (string, error) {
	items, err := listField(r.Derived, "snippets")
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		text, err := stringField(it, "snippet")
		if err != nil {
			return "", err
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// pageNumber formats the page numbers backends send as ints, JSON floats or strings.
func pageNumber(v any) (string, error) {
	switch n := v.(type) {
	case nil:
		return "", nil
	case int:
		return strconv.Itoa(n), nil
	case int32:
		return strconv.Itoa(int(n)), nil
	case int64:
		return strconv.FormatInt(n, 10), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return "", fmt.Errorf("%w: pageNumber %v is not an integer", ErrMalformed, n)
		}
		return strconv.FormatInt(int64(n), 10), nil
	case string:
		return strings.TrimSpace(n), nil
	default:
		return "", fmt.Errorf("%w: pageNumber is %T", ErrMalformed, v)
	}
}
