// Package displayname implements the similarity check a candidate display
// name must pass before the registrar will accept it: the maximum Jaro
// similarity, over four comparison variants, against every display name
// already on file. This is the Go rendering of the registrar's
// display_name challenge handler.
package displayname

import "github.com/w3f/registrar-verifier/core"

// ViolationsCap bounds how many conflicting existing names the engine will
// report, and how many it will even examine: scanning stops the moment the
// cap is reached so a pathological registry can't make one verification
// call scan unboundedly.
const ViolationsCap = 5

// Engine decides whether a candidate display name is too similar to an
// already-registered one.
type Engine struct {
	limit float64
}

// New constructs an Engine with the given similarity threshold. A
// similarity strictly greater than limit counts as a conflict; the
// registrar's configured default is 0.85.
func New(limit float64) *Engine {
	return &Engine{limit: limit}
}

// Violations returns every name in existing that conflicts with candidate,
// in the iteration order existing was supplied in, stopping as soon as
// ViolationsCap conflicts have been found. The caller is responsible for
// excluding the candidate's own prior name from existing if a self-match
// exemption is desired; the engine compares against every name it is
// given, unconditionally.
func (e *Engine) Violations(candidate core.DisplayName, existing []core.DisplayName) []core.DisplayName {
	var violations []core.DisplayName
	for _, name := range existing {
		if similarity(string(candidate), string(name)) > e.limit {
			violations = append(violations, name)
			if len(violations) >= ViolationsCap {
				break
			}
		}
	}
	return violations
}
