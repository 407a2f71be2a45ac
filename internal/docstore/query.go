package docstore

import (
	"reflect"
	"regexp"
	"strings"
	"time"
)

// Query maps dotted field paths to predicates; a document matches when every
// predicate holds. A field missing from the document never matches.
type Query map[string]Predicate

// Matches reports whether doc satisfies every predicate in q.
func (q Query) Matches(doc Document) bool {
	for path, pred := range q {
		value, ok := doc.Get(path)
		if !ok || pred == nil || !pred.match(value) {
			return false
		}
	}
	return true
}

// Predicate tests a single field value.
type Predicate interface {
	match(value any) bool
}

type predicateFunc func(any) bool

func (f predicateFunc) match(v any) bool { return f(v) }

// Eq matches values equal to want after JSON normalisation, so Eq(3) matches
// a stored 3 and Eq(true) a stored true.
func Eq(want any) Predicate {
	normalized, err := normalizeValue(want)
	if err != nil {
		return predicateFunc(func(any) bool { return false })
	}
	return predicateFunc(func(v any) bool {
		return reflect.DeepEqual(v, normalized)
	})
}

// Regex matches string values against re.
func Regex(re *regexp.Regexp) Predicate {
	return predicateFunc(func(v any) bool {
		s, ok := v.(string)
		return ok && re != nil && re.MatchString(s)
	})
}

// Contains matches string values containing substr, ignoring case, and
// arrays holding an element equal to substr.
func Contains(substr string) Predicate {
	lowered := strings.ToLower(substr)
	return predicateFunc(func(v any) bool {
		switch t := v.(type) {
		case string:
			return strings.Contains(strings.ToLower(t), lowered)
		case []any:
			for _, elem := range t {
				if s, ok := elem.(string); ok && s == substr {
					return true
				}
			}
		}
		return false
	})
}

// In matches values equal to any of the candidates.
func In(candidates ...any) Predicate {
	normalized := make([]any, 0, len(candidates))
	for _, c := range candidates {
		if n, err := normalizeValue(c); err == nil {
			normalized = append(normalized, n)
		}
	}
	return predicateFunc(func(v any) bool {
		for _, c := range normalized {
			if reflect.DeepEqual(v, c) {
				return true
			}
		}
		return false
	})
}

// Before matches RFC 3339 timestamp strings strictly earlier than t.
func Before(t time.Time) Predicate {
	return predicateFunc(func(v any) bool {
		s, ok := v.(string)
		if !ok {
			return false
		}
		stored, err := time.Parse(time.RFC3339Nano, s)
		return err == nil && stored.Before(t)
	})
}
