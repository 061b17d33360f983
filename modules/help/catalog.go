package help

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"otogi-helpnav/pkg/otogi"
)

const (
	// UncategorizedLabel names the page of commands without a category.
	UncategorizedLabel = "Uncategorized"

	listingNoDescription = "*No description available yet*"
	subcommandsHeader    = "**Subcommands**"
)

// Page is one rendered category of the command reference.
type Page struct {
	// Category is the display name. It is never empty.
	Category string
	// Body holds one line per visible entry, possibly empty.
	Body string
}

// CommandFilter decides whether one command is listed for the invoking event.
//
// A returned error aborts catalog construction.
type CommandFilter func(ctx context.Context, event *otogi.Event, command otogi.RegisteredCommand) (bool, error)

// CatalogOptions tunes BuildCatalog.
type CatalogOptions struct {
	// CategoryNamer maps a raw category to its display name. It must be
	// deterministic. Nil keeps raw categories.
	CategoryNamer func(category string) string
	// Filter optionally hides commands before checks run.
	Filter CommandFilter
	// Logger receives check failures. Nil discards them.
	Logger *slog.Logger
}

type catalogGroup struct {
	category string
	lines    []string
}

// BuildCatalog groups commands into pages visible to the actor of event.
//
// Pages follow the first-seen order of category keys and commands keep
// registry order inside a page. Every category seen in commands yields a page,
// even when all of its commands end up hidden.
func BuildCatalog(
	ctx context.Context,
	commands []otogi.RegisteredCommand,
	event *otogi.Event,
	options CatalogOptions,
) ([]Page, error) {
	groups := make([]*catalogGroup, 0, len(commands))
	byCategory := make(map[string]*catalogGroup, len(commands))

	for _, registered := range commands {
		spec := registered.Command
		category := categoryKey(spec.Category, options.CategoryNamer)
		group, exists := byCategory[category]
		if !exists {
			group = &catalogGroup{category: category}
			byCategory[category] = group
			groups = append(groups, group)
		}

		if spec.Hidden {
			continue
		}
		if options.Filter != nil {
			keep, err := options.Filter(ctx, event, registered)
			if err != nil {
				return nil, fmt.Errorf("build catalog filter %s%s: %w", spec.Prefix, spec.Name, err)
			}
			if !keep {
				continue
			}
		}

		allowed, err := otogi.EvaluateCommandChecks(ctx, spec.Checks, event)
		if err != nil && options.Logger != nil {
			options.Logger.DebugContext(ctx, "help catalog check failed, hiding command",
				"command", string(spec.Prefix)+spec.Name,
				"error", err,
			)
		}
		if !allowed {
			continue
		}

		group.lines = append(group.lines, listingLines(spec)...)
	}

	pages := make([]Page, 0, len(groups))
	for _, group := range groups {
		pages = append(pages, Page{
			Category: group.category,
			Body:     strings.Join(group.lines, "\n"),
		})
	}

	return pages, nil
}

func categoryKey(category string, namer func(string) string) string {
	if namer != nil {
		category = namer(category)
	}
	if strings.TrimSpace(category) == "" {
		return UncategorizedLabel
	}

	return category
}

// listingLines renders one command entry with its context-menu note or
// visible subcommands.
func listingLines(spec otogi.CommandSpec) []string {
	label := string(spec.Prefix) + spec.Name
	lines := []string{fmt.Sprintf("%s - %s", label, describe(spec.Description, listingNoDescription))}

	if spec.ContextMenu != "" {
		return append(lines, fmt.Sprintf("*This command is a context menu command of type %s*", spec.ContextMenu))
	}

	header := false
	for _, sub := range spec.Subcommands {
		if sub.Hidden {
			continue
		}
		if !header {
			lines = append(lines, subcommandsHeader)
			header = true
		}
		lines = append(lines, fmt.Sprintf("%s %s - %s", label, sub.Name, describe(sub.Description, listingNoDescription)))
	}

	return lines
}

func describe(description string, fallback string) string {
	if trimmed := strings.TrimSpace(description); trimmed != "" {
		return trimmed
	}

	return fallback
}
