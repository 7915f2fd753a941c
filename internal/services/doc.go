// Package services defines the shared error taxonomy and context decoration
// used by pipeline stages and their external collaborators. Stage failures are
// tagged with sentinel markers so the orchestrator can classify them (fatal,
// fallback-eligible, retry-eligible) without inspecting error strings.
package services
