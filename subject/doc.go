// Package subject implements the address language used to route events.
//
// A subject is a sequence of tokens joined by a separator ("." by default).
// Patterns may contain two wildcards: MatchOne ("*") matches exactly one token
// and MatchAll (">") matches the rest of a subject when it is the last token.
// Patterns may also contain named placeholders such as "{device}". A placeholder
// occupies a whole token and is compiled to MatchOne, while its name and token
// index are recorded so values can later be rendered into, or extracted from,
// a concrete subject.
//
// Design decisions:
//   - Pure functions: no I/O, no state, no logging. Every failure is a typed error.
//   - Ordered placeholders: placeholder maps keep the order in which names appear
//     in the pattern, so error messages and iteration are deterministic.
//   - Wire compatibility: the default syntax is bit-exact with NATS subjects.
//
// Example usage:
//
//	p, err := subject.Compile("sensors.{location}.{device}.measure", subject.DefaultSyntax())
//	if err != nil {
//	    return err
//	}
//	subj, err := p.Render(map[string]string{"location": "west", "device": "42"}, false)
//	// subj == "sensors.west.42.measure"
//	values, err := p.Extract(subj)
//	// values == map[string]string{"location": "west", "device": "42"}
//	ok := p.Match(subj)
//	// ok == true
package subject
