// Package replaytest provides test doubles and assertion helpers shared
// by the replay packages' tests: a scriptable fake renderer, page parsing
// shorthands, and embedded-state builders.
//
// Example:
//
//	doc := replaytest.MustParse(t, page)
//	r := replaytest.NewFakeRenderer()
//	r.GateFragment("d1")
//	// ... trigger hydration ...
//	r.OpenGate("d1")
package replaytest
