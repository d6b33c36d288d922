package subject

import (
	"fmt"
	"slices"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Placeholders maps placeholder names to token indexes, in pattern order.
type Placeholders = orderedmap.OrderedMap[string, int]

// Pattern is a compiled subject pattern.
type Pattern struct {
	// Raw is the pattern as written, placeholders included.
	Raw string
	// Compiled is the pattern with placeholders replaced by Syntax.MatchOne.
	Compiled string
	// Tokens are the tokens of Compiled.
	Tokens []string
	// Placeholders maps placeholder names to their token index.
	Placeholders *Placeholders
	// Syntax is the syntax the pattern was compiled with.
	Syntax Syntax
}

// Compile tokenizes a pattern and returns its compiled form.
func Compile(pattern string, syntax Syntax) (*Pattern, error) {
	syntax = syntax.orDefault()
	compiled, placeholders, err := Tokenize(pattern, syntax)
	if err != nil {
		return nil, err
	}
	return &Pattern{
		Raw:          pattern,
		Compiled:     compiled,
		Tokens:       strings.Split(compiled, syntax.Separator),
		Placeholders: placeholders,
		Syntax:       syntax,
	}, nil
}

// Names returns the placeholder names in pattern order.
func (p *Pattern) Names() []string {
	names := make([]string, 0, p.Placeholders.Len())
	for pair := p.Placeholders.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Render substitutes placeholder values into the pattern.
func (p *Pattern) Render(values map[string]string, allowPartial bool) (string, error) {
	return Render(p.Tokens, p.Placeholders, values, allowPartial, p.Syntax)
}

// Extract reads placeholder values back from a concrete subject.
func (p *Pattern) Extract(subject string) (map[string]string, error) {
	return Extract(subject, p.Placeholders, p.Syntax)
}

// Match reports whether the concrete subject is matched by the compiled pattern.
func (p *Pattern) Match(subject string) bool {
	return Match(p.Compiled, subject, p.Syntax)
}

// Tokenize replaces every "{name}" placeholder of the pattern with the MatchOne
// token and records the token index of each placeholder.
//
// A placeholder must occupy a whole token, must have a non-empty name and its name
// cannot contain the separator or another brace.
func Tokenize(pattern string, syntax Syntax) (string, *Placeholders, error) {
	syntax = syntax.orDefault()
	placeholders := orderedmap.New[string, int]()

	var b strings.Builder
	b.Grow(len(pattern))
	rest := 0
	for {
		start := strings.IndexByte(pattern[rest:], '{')
		if start < 0 {
			break
		}
		start += rest
		end := strings.IndexByte(pattern[start+1:], '}')
		if end < 0 {
			break
		}
		end += start + 1

		name := pattern[start+1 : end]
		if name == "" {
			return "", nil, &InvalidPatternError{Pattern: pattern, Reason: "placeholder cannot be empty"}
		}
		if strings.Contains(name, syntax.Separator) {
			return "", nil, &InvalidPatternError{Pattern: pattern, Reason: fmt.Sprintf("placeholder name contains %q", syntax.Separator)}
		}
		if start > 0 && !strings.HasSuffix(pattern[:start], syntax.Separator) {
			return "", nil, &InvalidPatternError{Pattern: pattern, Reason: "placeholder must occupy whole token"}
		}
		if end+1 < len(pattern) && !strings.HasPrefix(pattern[end+1:], syntax.Separator) {
			return "", nil, &InvalidPatternError{Pattern: pattern, Reason: "placeholder must occupy whole token"}
		}
		if strings.ContainsAny(name, "{}") {
			return "", nil, &InvalidPatternError{Pattern: pattern, Reason: "placeholder overlaps another brace pair"}
		}

		placeholders.Set(name, strings.Count(pattern[:start], syntax.Separator))
		b.WriteString(pattern[rest:start])
		b.WriteString(syntax.MatchOne)
		rest = end + 1
	}
	b.WriteString(pattern[rest:])
	return b.String(), placeholders, nil
}

// Render substitutes the value of each placeholder in tokens. Values for unknown
// names are ignored. Unless allowPartial is set, every placeholder must receive a
// value; unsubstituted placeholders keep the MatchOne token otherwise.
func Render(tokens []string, placeholders *Placeholders, values map[string]string, allowPartial bool, syntax Syntax) (string, error) {
	syntax = syntax.orDefault()
	out := slices.Clone(tokens)

	var missing []string
	if placeholders != nil {
		for pair := placeholders.Oldest(); pair != nil; pair = pair.Next() {
			value, ok := values[pair.Key]
			if !ok {
				missing = append(missing, pair.Key)
				continue
			}
			if pair.Value < len(out) {
				out[pair.Value] = value
			}
		}
	}
	if !allowPartial && len(missing) > 0 {
		return "", &MissingPlaceholderError{Names: missing}
	}
	return strings.Join(out, syntax.Separator), nil
}

// Extract splits a concrete subject and reads the token of every placeholder.
func Extract(subject string, placeholders *Placeholders, syntax Syntax) (map[string]string, error) {
	syntax = syntax.orDefault()
	if placeholders == nil || placeholders.Len() == 0 {
		return map[string]string{}, nil
	}

	tokens := strings.Split(subject, syntax.Separator)
	values := make(map[string]string, placeholders.Len())
	for pair := placeholders.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value >= len(tokens) {
			return nil, &SubjectTooShortError{Subject: subject, Placeholder: pair.Key, Index: pair.Value}
		}
		values[pair.Key] = tokens[pair.Value]
	}
	return values, nil
}

// Match reports whether a concrete subject is matched by a wildcard pattern.
//
// MatchOne matches exactly one token. MatchAll matches one or more remaining
// tokens and only when it is the last token of the pattern.
func Match(pattern, subject string, syntax Syntax) bool {
	if pattern == "" || subject == "" {
		return false
	}
	if pattern == subject {
		return true
	}
	syntax = syntax.orDefault()

	patternTokens := strings.Split(pattern, syntax.Separator)
	subjectTokens := strings.Split(subject, syntax.Separator)
	for i, token := range patternTokens {
		if token == syntax.MatchAll {
			return i == len(patternTokens)-1 && i < len(subjectTokens)
		}
		if i >= len(subjectTokens) {
			return false
		}
		if token == syntax.MatchOne || token == subjectTokens[i] {
			continue
		}
		return false
	}
	return len(patternTokens) == len(subjectTokens)
}
