package otogi

import (
	"fmt"
	"strings"
)

// CommandPrefix identifies the prefix introducing one command invocation.
type CommandPrefix string

const (
	// CommandPrefixOrdinary identifies ordinary command syntax.
	CommandPrefixOrdinary CommandPrefix = "/"
	// CommandPrefixSystem identifies system command syntax.
	CommandPrefixSystem CommandPrefix = "~"
)

// Validate checks whether one command prefix is supported.
func (p CommandPrefix) Validate() error {
	switch p {
	case CommandPrefixOrdinary, CommandPrefixSystem:
		return nil
	default:
		return fmt.Errorf("validate command prefix: unsupported prefix %q", p)
	}
}

// EventKind returns the derived event kind published for commands using this prefix.
func (p CommandPrefix) EventKind() EventKind {
	if p == CommandPrefixSystem {
		return EventKindSystemCommandReceived
	}

	return EventKindCommandReceived
}

// ContextMenuKind identifies the target type of a context-menu command.
type ContextMenuKind string

const (
	// ContextMenuMessage marks a command invoked on a message.
	ContextMenuMessage ContextMenuKind = "Message"
	// ContextMenuUser marks a command invoked on a user.
	ContextMenuUser ContextMenuKind = "User"
)

// Validate checks whether one context-menu kind is supported. Empty is valid
// and means the command is not a context-menu action.
func (k ContextMenuKind) Validate() error {
	switch k {
	case "", ContextMenuMessage, ContextMenuUser:
		return nil
	default:
		return fmt.Errorf("validate context menu kind: unsupported kind %q", k)
	}
}

// CommandCandidate is a parsed command-looking message before command-spec binding.
type CommandCandidate struct {
	// Prefix is the leading command prefix.
	Prefix CommandPrefix
	// Name is the normalized command name without prefix and mention suffix.
	Name string
	// Mention is the optional mention suffix from `<name>@<mention>`.
	Mention string
	// RawInput is the original untrimmed message text.
	RawInput string
	// Tokens stores command tail tokens after the command header token.
	Tokens []string
}

// CommandOption is one parsed command option in a bound invocation.
type CommandOption struct {
	// Name is the normalized long option name.
	Name string
	// Alias is the normalized short option alias when declared.
	Alias string
	// Value is the consumed option value when HasValue is true.
	Value string
	// HasValue reports whether this option consumed one value token.
	HasValue bool
}

// CommandInvocation carries one validated command event payload.
type CommandInvocation struct {
	// Prefix is the prefix the command was invoked with.
	Prefix CommandPrefix
	// Name is the normalized command name.
	Name string
	// Subcommand is the normalized subcommand name when the first tail token
	// selected one of the declared subcommands.
	Subcommand string
	// Mention is the optional mention suffix from `<name>@<mention>`.
	Mention string
	// Value stores the remaining non-option tail text joined by spaces.
	Value string
	// Options stores parsed options defined by the bound command spec.
	Options []CommandOption
	// SourceEventID identifies the inbound source event that produced this command.
	SourceEventID string
	// SourceEventKind identifies the inbound source event kind.
	SourceEventKind EventKind
	// RawInput stores the original inbound message text.
	RawInput string
}

// Validate checks command invocation contract fields.
func (c *CommandInvocation) Validate() error {
	if c == nil {
		return fmt.Errorf("validate command invocation: nil invocation")
	}
	if normalizeCommandName(c.Name) == "" {
		return fmt.Errorf("validate command invocation: missing name")
	}
	if c.SourceEventID == "" {
		return fmt.Errorf("validate command invocation: missing source_event_id")
	}
	if c.SourceEventKind == "" {
		return fmt.Errorf("validate command invocation: missing source_event_kind")
	}

	return nil
}

// Option returns the first parsed option matching name or alias.
func (c *CommandInvocation) Option(key string) (CommandOption, bool) {
	if c == nil {
		return CommandOption{}, false
	}
	key = normalizeCommandName(key)
	for _, option := range c.Options {
		if option.Name == key || option.Alias == key {
			return option, true
		}
	}

	return CommandOption{}, false
}

// CommandOptionSpec declares one available option in one command registration.
type CommandOptionSpec struct {
	// Name is the long option key used as `--<name>`.
	Name string
	// Alias is the short option key used as `-<alias>`.
	Alias string
	// HasValue reports whether the option must consume one following value token.
	HasValue bool
	// Required reports whether this option must appear in one invocation.
	Required bool
	// Description describes option behavior for diagnostics and help text.
	Description string
}

// Validate checks command option specification coherence.
func (s CommandOptionSpec) Validate() error {
	name := normalizeCommandName(s.Name)
	alias := normalizeCommandName(s.Alias)
	if name == "" && alias == "" {
		return fmt.Errorf("validate command option spec: missing name and alias")
	}
	if alias != "" && len(alias) != 1 {
		return fmt.Errorf("validate command option spec: alias %q must be one character", s.Alias)
	}
	if strings.ContainsAny(name, " \t\r\n") {
		return fmt.Errorf("validate command option spec: name %q contains whitespace", s.Name)
	}

	return nil
}

// Usage renders the option the way users type it.
func (s CommandOptionSpec) Usage() string {
	if name := normalizeCommandName(s.Name); name != "" {
		return "--" + name
	}

	return "-" + normalizeCommandName(s.Alias)
}

// CommandSpec declares one module command registration.
//
// Category, Hidden, Subcommands and ContextMenu describe how the command is
// presented by help renderers. Checks gate who may run the command and who may
// see it listed.
type CommandSpec struct {
	// Prefix identifies which command prefix triggers this command.
	Prefix CommandPrefix
	// Name is the command name without prefix and mention suffix.
	Name string
	// Description describes command behavior for diagnostics and help text.
	Description string
	// Category groups the command in help listings. Empty means uncategorized.
	Category string
	// Hidden excludes the command from help listings.
	Hidden bool
	// Options declares supported command options.
	Options []CommandOptionSpec
	// Subcommands declares one level of nested commands.
	Subcommands []CommandSpec
	// ContextMenu marks the command as a context-menu action of this kind.
	ContextMenu ContextMenuKind
	// Checks are permission predicates evaluated in order.
	Checks []CommandCheck
}

// Validate checks command specification coherence.
func (s CommandSpec) Validate() error {
	if err := s.Prefix.Validate(); err != nil {
		return fmt.Errorf("validate command spec %q: %w", s.Name, err)
	}

	return s.validateBody(true)
}

func (s CommandSpec) validateBody(allowSubcommands bool) error {
	name := normalizeCommandName(s.Name)
	if name == "" {
		return fmt.Errorf("validate command spec: missing name")
	}
	if strings.ContainsAny(name, " \t\r\n@") {
		return fmt.Errorf("validate command spec %q: invalid name", s.Name)
	}
	if err := s.ContextMenu.Validate(); err != nil {
		return fmt.Errorf("validate command spec %s: %w", s.Name, err)
	}
	for index, check := range s.Checks {
		if check == nil {
			return fmt.Errorf("validate command spec %s: nil check[%d]", s.Name, index)
		}
	}

	seen := make(map[string]struct{}, len(s.Options)*2)
	for index, option := range s.Options {
		if err := option.Validate(); err != nil {
			return fmt.Errorf("validate command spec %s option[%d]: %w", s.Name, index, err)
		}
		for _, key := range []string{"--" + normalizeCommandName(option.Name), "-" + normalizeCommandName(option.Alias)} {
			if key == "--" || key == "-" {
				continue
			}
			if _, exists := seen[key]; exists {
				return fmt.Errorf("validate command spec %s: duplicate option %s", s.Name, key)
			}
			seen[key] = struct{}{}
		}
	}

	if len(s.Subcommands) > 0 && !allowSubcommands {
		return fmt.Errorf("validate command spec %s: subcommands cannot be nested", s.Name)
	}
	if len(s.Subcommands) > 0 && s.ContextMenu != "" {
		return fmt.Errorf("validate command spec %s: context menu command cannot declare subcommands", s.Name)
	}
	subNames := make(map[string]struct{}, len(s.Subcommands))
	for index, sub := range s.Subcommands {
		if err := sub.validateBody(false); err != nil {
			return fmt.Errorf("validate command spec %s subcommand[%d]: %w", s.Name, index, err)
		}
		subName := normalizeCommandName(sub.Name)
		if _, exists := subNames[subName]; exists {
			return fmt.Errorf("validate command spec %s: duplicate subcommand %q", s.Name, sub.Name)
		}
		subNames[subName] = struct{}{}
	}

	return nil
}

// Subcommand returns the declared subcommand with name.
func (s CommandSpec) Subcommand(name string) (CommandSpec, bool) {
	name = normalizeCommandName(name)
	for _, sub := range s.Subcommands {
		if normalizeCommandName(sub.Name) == name {
			return sub, true
		}
	}

	return CommandSpec{}, false
}

// ParseCommandCandidate parses one input text into a command candidate.
//
// matched is false when text does not look like a command. When matched is true,
// candidate fields are populated as much as possible and err reports syntax
// issues such as a missing command name or `--name=value` options.
func ParseCommandCandidate(text string) (candidate CommandCandidate, matched bool, err error) {
	candidate.RawInput = text

	fields := strings.Fields(text)
	if len(fields) == 0 {
		return candidate, false, nil
	}
	header := fields[0]
	switch {
	case strings.HasPrefix(header, string(CommandPrefixOrdinary)):
		candidate.Prefix = CommandPrefixOrdinary
	case strings.HasPrefix(header, string(CommandPrefixSystem)):
		candidate.Prefix = CommandPrefixSystem
	default:
		return candidate, false, nil
	}

	name, mention, _ := strings.Cut(header[1:], "@")
	candidate.Name = normalizeCommandName(name)
	candidate.Mention = strings.TrimSpace(mention)
	if candidate.Name == "" {
		return candidate, true, fmt.Errorf("parse command candidate: missing command name")
	}

	if len(fields) > 1 {
		candidate.Tokens = append([]string(nil), fields[1:]...)
	}
	for _, token := range candidate.Tokens {
		if strings.HasPrefix(token, "--") && strings.Contains(token, "=") {
			return candidate, true, fmt.Errorf("parse command candidate: unsupported option format %q", token)
		}
	}

	return candidate, true, nil
}

// BindCommand validates one parsed candidate against one command spec.
//
// When spec declares subcommands and the first tail token names one of them,
// the remaining tokens are bound against that subcommand's options.
// sourceEvent must identify the inbound event that produced this command.
func BindCommand(
	candidate CommandCandidate,
	spec CommandSpec,
	sourceEvent *Event,
) (CommandInvocation, error) {
	if sourceEvent == nil {
		return CommandInvocation{}, fmt.Errorf("bind command: nil source event")
	}
	if err := spec.Validate(); err != nil {
		return CommandInvocation{}, fmt.Errorf("bind command %s: %w", spec.Name, err)
	}
	if candidate.Prefix != spec.Prefix {
		return CommandInvocation{}, fmt.Errorf(
			"bind command %s: prefix mismatch, got %q want %q",
			spec.Name,
			candidate.Prefix,
			spec.Prefix,
		)
	}
	specName := normalizeCommandName(spec.Name)
	if normalizeCommandName(candidate.Name) != specName {
		return CommandInvocation{}, fmt.Errorf("bind command %s: name mismatch, got %q", spec.Name, candidate.Name)
	}

	invocation := CommandInvocation{
		Prefix:          spec.Prefix,
		Name:            specName,
		Mention:         candidate.Mention,
		SourceEventID:   sourceEvent.ID,
		SourceEventKind: sourceEvent.Kind,
		RawInput:        candidate.RawInput,
	}

	tokens := candidate.Tokens
	target := spec
	if len(tokens) > 0 {
		if sub, ok := spec.Subcommand(tokens[0]); ok {
			invocation.Subcommand = normalizeCommandName(sub.Name)
			target = sub
			tokens = tokens[1:]
		}
	}

	options, values, err := bindCommandTokens(target, tokens)
	if err != nil {
		return CommandInvocation{}, fmt.Errorf("bind command %s: %w", spec.Name, err)
	}
	invocation.Options = options
	invocation.Value = strings.Join(values, " ")
	if err := invocation.Validate(); err != nil {
		return CommandInvocation{}, fmt.Errorf("bind command %s: %w", spec.Name, err)
	}

	return invocation, nil
}

// bindCommandTokens splits tokens into declared options and free value tokens.
func bindCommandTokens(spec CommandSpec, tokens []string) ([]CommandOption, []string, error) {
	lookup := make(map[string]CommandOptionSpec, len(spec.Options)*2)
	for _, option := range spec.Options {
		if name := normalizeCommandName(option.Name); name != "" {
			lookup["--"+name] = option
		}
		if alias := normalizeCommandName(option.Alias); alias != "" {
			lookup["-"+alias] = option
		}
	}

	options := make([]CommandOption, 0, len(tokens))
	values := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(spec.Options))
	for index := 0; index < len(tokens); index++ {
		token := tokens[index]
		key, isOption := optionTokenKey(token)
		if !isOption {
			values = append(values, token)
			continue
		}

		optionSpec, exists := lookup[key]
		if !exists {
			return nil, nil, fmt.Errorf("unknown option %s", key)
		}
		option := CommandOption{
			Name:  normalizeCommandName(optionSpec.Name),
			Alias: normalizeCommandName(optionSpec.Alias),
		}
		if optionSpec.HasValue {
			if index+1 >= len(tokens) {
				return nil, nil, fmt.Errorf("option %s requires a value", key)
			}
			if _, next := optionTokenKey(tokens[index+1]); next {
				return nil, nil, fmt.Errorf("option %s requires a value", key)
			}
			index++
			option.Value = tokens[index]
			option.HasValue = true
		}
		options = append(options, option)
		seen[optionSpec.Usage()] = struct{}{}
	}

	for _, option := range spec.Options {
		if !option.Required {
			continue
		}
		if _, exists := seen[option.Usage()]; !exists {
			return nil, nil, fmt.Errorf("missing required option %s", option.Usage())
		}
	}

	return options, values, nil
}

// optionTokenKey reports whether token is `--name` or `-a` and returns its
// normalized lookup key.
func optionTokenKey(token string) (string, bool) {
	switch {
	case strings.HasPrefix(token, "--") && len(token) > 2 && !strings.Contains(token, "="):
		return "--" + normalizeCommandName(token[2:]), true
	case len(token) == 2 && token[0] == '-' && token[1] != '-':
		return "-" + normalizeCommandName(token[1:]), true
	default:
		return "", false
	}
}

func normalizeCommandName(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
