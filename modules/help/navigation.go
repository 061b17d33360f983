package help

import (
	"fmt"
	"strconv"
	"strings"

	"otogi-helpnav/pkg/otogi"
)

type navigationKind int

const (
	navigationJump navigationKind = iota + 1
	navigationSelect
	navigationCancel
)

// navigation is one decoded user action on a help message.
type navigation struct {
	kind   navigationKind
	target int
}

// parseNavigation decodes an interaction into a navigation action.
//
// Targets are returned as-is, range checks belong to the caller.
func parseNavigation(interaction *otogi.Interaction) (navigation, error) {
	if interaction == nil {
		return navigation{}, fmt.Errorf("%w: nil interaction", ErrMalformedNavigation)
	}

	switch customID := interaction.CustomID; {
	case customID == navigationCancelID:
		return navigation{kind: navigationCancel}, nil
	case customID == navigationSelectID:
		if len(interaction.Values) == 0 || interaction.Values[0] == "" {
			return navigation{}, fmt.Errorf("%w: no value selected", ErrMalformedNavigation)
		}
		target, err := strconv.Atoi(interaction.Values[0])
		if err != nil {
			return navigation{}, fmt.Errorf("%w: select value %q: %w", ErrMalformedNavigation, interaction.Values[0], err)
		}
		return navigation{kind: navigationSelect, target: target}, nil
	case strings.HasPrefix(customID, navigationPrefix):
		raw := strings.TrimPrefix(customID, navigationPrefix)
		target, err := strconv.Atoi(raw)
		if err != nil {
			return navigation{}, fmt.Errorf("%w: button target %q: %w", ErrMalformedNavigation, raw, err)
		}
		return navigation{kind: navigationJump, target: target}, nil
	default:
		return navigation{}, fmt.Errorf("%w: unknown control %q", ErrMalformedNavigation, customID)
	}
}
