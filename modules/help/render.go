package help

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"otogi-helpnav/pkg/otogi"
)

const (
	navigationPrefix   = "hnav:"
	navigationCancelID = navigationPrefix + "cancel"
	navigationSelectID = navigationPrefix + "selectmenu"
)

// renderedPage is the outbound shape of one catalog page.
type renderedPage struct {
	text       string
	entities   []otogi.TextEntity
	components []otogi.ComponentRow
}

// PageTitle is the heading shown above one page body.
func PageTitle(page Page, index int) string {
	return fmt.Sprintf("%s (Page %d)", page.Category, index+1)
}

// renderPage builds the text, heading entity and navigation controls for pages[index].
func renderPage(pages []Page, index int) renderedPage {
	page := pages[index]
	title := PageTitle(page, index)
	text := title
	if page.Body != "" {
		text = title + "\n\n" + page.Body
	}

	return renderedPage{
		text: text,
		entities: []otogi.TextEntity{
			{Type: otogi.TextEntityTypeBold, Offset: 0, Length: utf8.RuneCountInString(title)},
		},
		components: PageControls(pages, index),
	}
}

// PageControls returns the button row followed by the category select row.
//
// Previous and Next carry absolute page targets so a stale button press still
// resolves to a concrete page.
func PageControls(pages []Page, index int) []otogi.ComponentRow {
	last := len(pages) - 1
	buttons := []otogi.Button{
		{
			CustomID: navigationPrefix + strconv.Itoa(index-1),
			Label:    "Previous",
			Style:    otogi.ButtonStyleSecondary,
			Disabled: index == 0,
		},
		{
			CustomID: navigationCancelID,
			Label:    "Cancel",
			Style:    otogi.ButtonStyleDanger,
		},
		{
			CustomID: navigationPrefix + strconv.Itoa(index+1),
			Label:    "Next",
			Style:    otogi.ButtonStyleSecondary,
			Disabled: index == last,
		},
	}

	options := make([]otogi.SelectOption, 0, len(pages))
	for position, page := range pages {
		label := page.Category
		if position == index {
			label += " (current)"
		}
		options = append(options, otogi.SelectOption{
			Label: label,
			Value: strconv.Itoa(position),
		})
	}

	return []otogi.ComponentRow{
		{Buttons: buttons},
		{Select: &otogi.SelectMenu{
			CustomID:    navigationSelectID,
			Placeholder: "Jump to category",
			Options:     options,
		}},
	}
}
