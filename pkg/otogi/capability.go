package otogi

import "slices"

// Capability describes what a module can process and what resources it requires.
type Capability struct {
	Name             string
	Description      string
	Interest         InterestSet
	RequiredServices []string
	Metadata         map[string]string
}

// InterestSet describes event selection criteria for capability negotiation.
type InterestSet struct {
	// Kinds restricts delivery to listed event kinds.
	Kinds []EventKind
	// Sources restricts delivery to listed driver instances.
	Sources []EventSource
	// CommandNames restricts command events to listed normalized names.
	CommandNames []string
	// RequireMessage requires a message payload.
	RequireMessage bool
	// RequireCommand requires a command payload.
	RequireCommand bool
	// RequireInteraction requires an interaction payload.
	RequireInteraction bool
}

// Matches reports whether an event satisfies the declared interest set.
func (i InterestSet) Matches(event *Event) bool {
	if event == nil {
		return false
	}
	if len(i.Kinds) > 0 && !slices.Contains(i.Kinds, event.Kind) {
		return false
	}
	if len(i.Sources) > 0 && !sourceMatches(i.Sources, event.Source) {
		return false
	}
	if i.RequireMessage && event.Message == nil {
		return false
	}
	if i.RequireCommand && event.Command == nil {
		return false
	}
	if i.RequireInteraction && event.Interaction == nil {
		return false
	}
	if len(i.CommandNames) > 0 {
		if event.Command == nil {
			return false
		}
		if !slices.Contains(i.CommandNames, normalizeCommandName(event.Command.Name)) {
			return false
		}
	}

	return true
}

// Allows reports whether this interest set can safely satisfy another filter.
//
// A capability allows a filter when the filter is at least as narrow on every
// dimension the capability restricts.
func (i InterestSet) Allows(filter InterestSet) bool {
	if len(i.Kinds) > 0 && !allIncluded(filter.Kinds, i.Kinds) {
		return false
	}
	if len(i.CommandNames) > 0 && !allIncluded(filter.CommandNames, i.CommandNames) {
		return false
	}
	if i.RequireMessage && !filter.RequireMessage {
		return false
	}
	if i.RequireCommand && !filter.RequireCommand {
		return false
	}
	if i.RequireInteraction && !filter.RequireInteraction {
		return false
	}

	return true
}

// sourceMatches reports whether source matches one configured source filter.
// An empty filter platform or ID acts as a wildcard for that field.
func sourceMatches(filters []EventSource, source EventSource) bool {
	for _, filter := range filters {
		if filter.Platform != "" && filter.Platform != source.Platform {
			continue
		}
		if filter.ID != "" && filter.ID != source.ID {
			continue
		}

		return true
	}

	return false
}

// allIncluded reports whether subset is non-empty and fully contained in allowed.
func allIncluded[T comparable](subset, allowed []T) bool {
	if len(subset) == 0 {
		return false
	}
	for _, item := range subset {
		if !slices.Contains(allowed, item) {
			return false
		}
	}

	return true
}
