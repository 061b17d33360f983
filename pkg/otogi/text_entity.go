package otogi

import (
	"fmt"
	"unicode/utf8"
)

// TextEntityType identifies one rich-text formatting class.
type TextEntityType string

const (
	// TextEntityTypeBold marks bold text.
	TextEntityTypeBold TextEntityType = "bold"
	// TextEntityTypeItalic marks italic text.
	TextEntityTypeItalic TextEntityType = "italic"
	// TextEntityTypeCode marks inline monospace text.
	TextEntityTypeCode TextEntityType = "code"
	// TextEntityTypePre marks a preformatted block.
	TextEntityTypePre TextEntityType = "pre"
	// TextEntityTypeBotCommand marks a bot command token.
	TextEntityTypeBotCommand TextEntityType = "bot_command"
	// TextEntityTypeTextURL marks text linking to URL.
	TextEntityTypeTextURL TextEntityType = "text_url"
)

// TextEntity marks a rich text fragment.
//
// Offset and Length are measured in Unicode code points of the owning text.
type TextEntity struct {
	// Type identifies the entity class.
	Type TextEntityType
	// Offset is the zero-based code point offset in the message text.
	Offset int
	// Length is the code point span of the entity.
	Length int
	// URL is the link destination for text_url entities.
	URL string
	// Language is the optional syntax hint for pre entities.
	Language string
}

// ValidateTextEntities checks that every entity range fits inside text.
func ValidateTextEntities(text string, entities []TextEntity) error {
	if len(entities) == 0 {
		return nil
	}

	runeCount := utf8.RuneCountInString(text)
	for index, entity := range entities {
		if entity.Type == "" {
			return fmt.Errorf("entity[%d]: missing type", index)
		}
		if entity.Offset < 0 || entity.Length <= 0 || entity.Offset+entity.Length > runeCount {
			return fmt.Errorf(
				"entity[%d]: range [%d,%d) outside text of %d runes",
				index,
				entity.Offset,
				entity.Offset+entity.Length,
				runeCount,
			)
		}
		if entity.Type == TextEntityTypeTextURL && entity.URL == "" {
			return fmt.Errorf("entity[%d]: text_url requires url", index)
		}
	}

	return nil
}
