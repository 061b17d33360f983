package otogi

import (
	"context"
	"fmt"
)

// CommandCheck is one permission predicate attached to a command.
//
// Check returns false when the actor of event may not use the command.
// Implementations must be safe for concurrent use.
type CommandCheck interface {
	Check(ctx context.Context, event *Event) (bool, error)
}

// CommandCheckFunc adapts a plain function to CommandCheck.
type CommandCheckFunc func(ctx context.Context, event *Event) (bool, error)

// Check calls f.
func (f CommandCheckFunc) Check(ctx context.Context, event *Event) (bool, error) {
	return f(ctx, event)
}

// EvaluateCommandChecks runs checks in order and stops at the first denial or error.
//
// An empty list allows. A non-nil error always comes with false.
func EvaluateCommandChecks(ctx context.Context, checks []CommandCheck, event *Event) (bool, error) {
	for index, check := range checks {
		if check == nil {
			return false, fmt.Errorf("evaluate command check[%d]: nil check", index)
		}
		allowed, err := check.Check(ctx, event)
		if err != nil {
			return false, fmt.Errorf("evaluate command check[%d]: %w", index, err)
		}
		if !allowed {
			return false, nil
		}
	}

	return true, nil
}

// ActorIDCheck allows only actors whose ID is listed.
func ActorIDCheck(actorIDs ...string) CommandCheck {
	allowed := make(map[string]struct{}, len(actorIDs))
	for _, id := range actorIDs {
		if id != "" {
			allowed[id] = struct{}{}
		}
	}

	return CommandCheckFunc(func(_ context.Context, event *Event) (bool, error) {
		if event == nil {
			return false, nil
		}
		_, ok := allowed[event.Actor.ID]

		return ok, nil
	})
}
