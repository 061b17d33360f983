package otogi

import (
	"fmt"
	"strings"
)

// ButtonStyle hints how a platform should emphasize a button.
type ButtonStyle string

const (
	// ButtonStylePrimary is the platform's emphasized style.
	ButtonStylePrimary ButtonStyle = "primary"
	// ButtonStyleSecondary is the platform's neutral style.
	ButtonStyleSecondary ButtonStyle = "secondary"
	// ButtonStyleDanger marks destructive actions.
	ButtonStyleDanger ButtonStyle = "danger"
)

// Button is one clickable control attached to a message.
type Button struct {
	// CustomID is echoed back in Interaction.CustomID when the button is pressed.
	CustomID string
	// Label is the visible button text.
	Label string
	// Style hints visual emphasis. Empty means secondary.
	Style ButtonStyle
	// Disabled renders the button inert. Platforms that cannot render inert
	// buttons omit them.
	Disabled bool
}

// SelectOption is one choice inside a SelectMenu.
type SelectOption struct {
	// Label is the visible option text.
	Label string
	// Value is echoed back in Interaction.Values when chosen.
	Value string
}

// SelectMenu is a single-choice dropdown attached to a message.
type SelectMenu struct {
	// CustomID is echoed back in Interaction.CustomID when an option is chosen.
	CustomID string
	// Placeholder is shown when the platform supports it.
	Placeholder string
	// Options lists the available choices in display order.
	Options []SelectOption
}

// ComponentRow is one horizontal row of message controls.
//
// A row carries either buttons or exactly one select menu.
type ComponentRow struct {
	Buttons []Button
	Select  *SelectMenu
}

// ValidateComponentRows checks control rows attached to an outbound message.
func ValidateComponentRows(rows []ComponentRow) error {
	for index, row := range rows {
		if err := row.validate(); err != nil {
			return fmt.Errorf("component row[%d]: %w", index, err)
		}
	}

	return nil
}

func (r ComponentRow) validate() error {
	switch {
	case len(r.Buttons) > 0 && r.Select != nil:
		return fmt.Errorf("row mixes buttons and select menu")
	case len(r.Buttons) == 0 && r.Select == nil:
		return fmt.Errorf("empty row")
	}

	for index, button := range r.Buttons {
		if strings.TrimSpace(button.CustomID) == "" {
			return fmt.Errorf("button[%d]: missing custom id", index)
		}
		if strings.TrimSpace(button.Label) == "" {
			return fmt.Errorf("button[%d]: missing label", index)
		}
		switch button.Style {
		case "", ButtonStylePrimary, ButtonStyleSecondary, ButtonStyleDanger:
		default:
			return fmt.Errorf("button[%d]: unsupported style %q", index, button.Style)
		}
	}

	if r.Select != nil {
		if strings.TrimSpace(r.Select.CustomID) == "" {
			return fmt.Errorf("select menu: missing custom id")
		}
		if len(r.Select.Options) == 0 {
			return fmt.Errorf("select menu %s: no options", r.Select.CustomID)
		}
		seen := make(map[string]struct{}, len(r.Select.Options))
		for index, option := range r.Select.Options {
			if option.Label == "" || option.Value == "" {
				return fmt.Errorf("select menu %s option[%d]: missing label or value", r.Select.CustomID, index)
			}
			if _, exists := seen[option.Value]; exists {
				return fmt.Errorf("select menu %s: duplicate value %q", r.Select.CustomID, option.Value)
			}
			seen[option.Value] = struct{}{}
		}
	}

	return nil
}

// CloneComponentRows returns a deep copy of rows.
func CloneComponentRows(rows []ComponentRow) []ComponentRow {
	if rows == nil {
		return nil
	}
	cloned := make([]ComponentRow, len(rows))
	for index, row := range rows {
		cloned[index].Buttons = append([]Button(nil), row.Buttons...)
		if row.Select != nil {
			menu := *row.Select
			menu.Options = append([]SelectOption(nil), row.Select.Options...)
			cloned[index].Select = &menu
		}
	}

	return cloned
}
