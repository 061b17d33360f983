package help

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"otogi-helpnav/pkg/otogi"
)

const (
	detailNoDescription = "No description available yet"
	commandNotFoundText = "Command not found!"
)

// detailView is a static single-message rendering of one command.
type detailView struct {
	text     string
	entities []otogi.TextEntity
}

// detailBuilder accumulates text while tracking bold heading ranges in runes.
type detailBuilder struct {
	text     strings.Builder
	runes    int
	entities []otogi.TextEntity
}

func (b *detailBuilder) write(value string) {
	b.text.WriteString(value)
	b.runes += utf8.RuneCountInString(value)
}

func (b *detailBuilder) heading(value string) {
	length := utf8.RuneCountInString(value)
	if length > 0 {
		b.entities = append(b.entities, otogi.TextEntity{
			Type:   otogi.TextEntityTypeBold,
			Offset: b.runes,
			Length: length,
		})
	}
	b.write(value)
}

// findCommand looks up a visible command by name, ignoring prefix and case.
func findCommand(commands []otogi.RegisteredCommand, query string) (otogi.CommandSpec, bool) {
	name := strings.ToLower(strings.TrimSpace(query))
	for _, prefix := range []otogi.CommandPrefix{otogi.CommandPrefixOrdinary, otogi.CommandPrefixSystem} {
		name = strings.TrimPrefix(name, string(prefix))
	}
	for _, registered := range commands {
		if registered.Command.Hidden {
			continue
		}
		if strings.ToLower(registered.Command.Name) == name {
			return registered.Command, true
		}
	}

	return otogi.CommandSpec{}, false
}

// renderDetail renders parameters and subcommands of spec.
func renderDetail(spec otogi.CommandSpec) detailView {
	builder := &detailBuilder{}
	builder.heading("Help for " + spec.Name)
	builder.write("\n")
	builder.write(describe(spec.Description, detailNoDescription))

	if len(spec.Options) > 0 {
		builder.write("\n\n")
		builder.heading("Parameters")
		for _, option := range spec.Options {
			builder.write(fmt.Sprintf("\n%s - %s", option.Usage(), describe(option.Description, detailNoDescription)))
		}
	}

	for _, sub := range spec.Subcommands {
		if sub.Hidden {
			continue
		}
		builder.write("\n\n")
		builder.heading(sub.Name)
		builder.write("\n")
		builder.write(describe(sub.Description, detailNoDescription))
		for _, option := range sub.Options {
			builder.write(fmt.Sprintf("\n*%s* - %s", option.Usage(), describe(option.Description, detailNoDescription)))
		}
	}

	return detailView{text: builder.text.String(), entities: builder.entities}
}

// renderNotFound renders the unknown-command reply with optional suggestions.
func renderNotFound(suggestions []string) detailView {
	if len(suggestions) == 0 {
		return detailView{text: commandNotFoundText}
	}

	return detailView{
		text: fmt.Sprintf("%s\nDid you mean: %s?", commandNotFoundText, strings.Join(suggestions, suggestionSeparator)),
	}
}
