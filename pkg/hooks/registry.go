package hooks

import (
	"fmt"

	"github.com/kandev/agentsdk/pkg/streamjson"
)

// MatcherEntry groups the callbacks registered under one matcher pattern
// for an event. The matcher is a regular expression the CLI tests against
// the tool name; the SDK does not re-filter.
type MatcherEntry struct {
	Matcher   string
	Callbacks []Callback

	// TimeoutSeconds, when set, bounds each callback in this entry.
	TimeoutSeconds *int
}

// Registry collects hook registrations before a session starts. It is
// immutable once the session builds its descriptor.
type Registry struct {
	entries map[streamjson.HookEvent][]MatcherEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[streamjson.HookEvent][]MatcherEntry)}
}

// Add appends a matcher entry for an event. Order of registration is
// preserved and reflected in the descriptor sent to the CLI.
func (r *Registry) Add(event streamjson.HookEvent, entry MatcherEntry) {
	r.entries[event] = append(r.entries[event], entry)
}

// On is shorthand for registering callbacks under one matcher.
func (r *Registry) On(event streamjson.HookEvent, matcher string, callbacks ...Callback) {
	r.Add(event, MatcherEntry{Matcher: matcher, Callbacks: callbacks})
}

// Empty reports whether no hooks are registered.
func (r *Registry) Empty() bool {
	return len(r.entries) == 0
}

// Build assigns every callback a stable ID and produces the registration
// descriptor for the initialize request plus the flat dispatch table. A
// callback ID maps to exactly one (event, matcher, callback) position for
// the lifetime of the session.
func (r *Registry) Build() (map[string][]streamjson.HookMatcherDescriptor, map[string]Callback) {
	descriptor := make(map[string][]streamjson.HookMatcherDescriptor)
	table := make(map[string]Callback)

	next := 0
	for _, event := range streamjson.HookEvents() {
		entries, ok := r.entries[event]
		if !ok {
			continue
		}
		matchers := make([]streamjson.HookMatcherDescriptor, 0, len(entries))
		for _, entry := range entries {
			ids := make([]string, 0, len(entry.Callbacks))
			for _, cb := range entry.Callbacks {
				id := fmt.Sprintf("hook_%d", next)
				next++
				table[id] = cb
				ids = append(ids, id)
			}
			matchers = append(matchers, streamjson.HookMatcherDescriptor{
				Matcher:         entry.Matcher,
				HookCallbackIDs: ids,
				Timeout:         entry.TimeoutSeconds,
			})
		}
		descriptor[string(event)] = matchers
	}
	return descriptor, table
}
