package slack

import (
	"fmt"
	"sort"
	"strings"

	"otogi-helpnav/pkg/otogi"

	"github.com/slack-go/slack"
)

const (
	maxSectionRunes   = 3000
	maxSelectOptions  = 100
	maxActionElements = 25
	defaultSelectHint = "Select"
)

// renderedMessage is one outbound body converted to Slack wire form.
type renderedMessage struct {
	// text is the mrkdwn body, also used as the notification fallback.
	text string
	// blocks is nil for plain messages without controls.
	blocks []slack.Block
}

func (r renderedMessage) actionBlocks() int {
	count := 0
	for _, block := range r.blocks {
		if _, ok := block.(*slack.ActionBlock); ok {
			count++
		}
	}

	return count
}

func renderOutboundMessage(
	text string,
	entities []otogi.TextEntity,
	rows []otogi.ComponentRow,
) (renderedMessage, error) {
	mrkdwn, err := renderMrkdwn(text, entities)
	if err != nil {
		return renderedMessage{}, fmt.Errorf("render mrkdwn: %w", err)
	}
	rendered := renderedMessage{text: mrkdwn}
	if len(rows) == 0 {
		return rendered, nil
	}

	actions, err := buildActionBlocks(rows)
	if err != nil {
		return renderedMessage{}, fmt.Errorf("build action blocks: %w", err)
	}
	for _, chunk := range splitSectionText(mrkdwn) {
		rendered.blocks = append(rendered.blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, chunk, false, false),
			nil,
			nil,
		))
	}
	for _, action := range actions {
		rendered.blocks = append(rendered.blocks, action)
	}

	return rendered, nil
}

// buildActionBlocks converts control rows into actions blocks. Slack has no
// inert buttons, so disabled buttons are omitted and rows left empty are dropped.
func buildActionBlocks(rows []otogi.ComponentRow) ([]*slack.ActionBlock, error) {
	blocks := make([]*slack.ActionBlock, 0, len(rows))
	for rowIndex, row := range rows {
		elements := make([]slack.BlockElement, 0, len(row.Buttons)+1)
		for _, button := range row.Buttons {
			if button.Disabled {
				continue
			}
			element := slack.NewButtonBlockElement(
				button.CustomID,
				button.CustomID,
				slack.NewTextBlockObject(slack.PlainTextType, button.Label, false, false),
			)
			if style := buttonStyle(button.Style); style != slack.StyleDefault {
				element = element.WithStyle(style)
			}
			elements = append(elements, element)
		}
		if row.Select != nil {
			element, err := buildStaticSelect(*row.Select)
			if err != nil {
				return nil, fmt.Errorf("row[%d]: %w", rowIndex, err)
			}
			elements = append(elements, element)
		}
		if len(elements) == 0 {
			continue
		}
		if len(elements) > maxActionElements {
			return nil, fmt.Errorf(
				"%w: row[%d] has %d controls, limit %d",
				otogi.ErrInvalidOutboundRequest,
				rowIndex,
				len(elements),
				maxActionElements,
			)
		}
		blocks = append(blocks, slack.NewActionBlock("", elements...))
	}

	return blocks, nil
}

func buildStaticSelect(menu otogi.SelectMenu) (*slack.SelectBlockElement, error) {
	if len(menu.Options) > maxSelectOptions {
		return nil, fmt.Errorf(
			"%w: select %s has %d options, limit %d",
			otogi.ErrInvalidOutboundRequest,
			menu.CustomID,
			len(menu.Options),
			maxSelectOptions,
		)
	}

	placeholder := menu.Placeholder
	if placeholder == "" {
		placeholder = defaultSelectHint
	}
	options := make([]*slack.OptionBlockObject, 0, len(menu.Options))
	for _, option := range menu.Options {
		options = append(options, slack.NewOptionBlockObject(
			option.Value,
			slack.NewTextBlockObject(slack.PlainTextType, option.Label, false, false),
			nil,
		))
	}

	return slack.NewOptionsSelectBlockElement(
		slack.OptTypeStatic,
		slack.NewTextBlockObject(slack.PlainTextType, placeholder, false, false),
		menu.CustomID,
		options...,
	), nil
}

func buttonStyle(style otogi.ButtonStyle) slack.Style {
	switch style {
	case otogi.ButtonStylePrimary:
		return slack.StylePrimary
	case otogi.ButtonStyleDanger:
		return slack.StyleDanger
	default:
		return slack.StyleDefault
	}
}

type entityMarker struct {
	order  int
	open   string
	close  string
	start  int
	finish int
}

// renderMrkdwn escapes text for Slack mrkdwn and wraps entity ranges in the
// matching markup. Offsets are rune based.
func renderMrkdwn(text string, entities []otogi.TextEntity) (string, error) {
	runes := []rune(text)
	markers := make([]entityMarker, 0, len(entities))
	for index, entity := range entities {
		start := entity.Offset
		finish := entity.Offset + entity.Length
		if start < 0 || finish < start || finish > len(runes) {
			return "", fmt.Errorf(
				"%w: entity[%d] invalid range [%d,%d) for text runes %d",
				otogi.ErrInvalidOutboundRequest,
				index,
				start,
				finish,
				len(runes),
			)
		}

		marker := entityMarker{start: start, finish: finish}
		switch entity.Type {
		case otogi.TextEntityTypeBold:
			marker.open, marker.close = "*", "*"
		case otogi.TextEntityTypeItalic:
			marker.open, marker.close = "_", "_"
		case otogi.TextEntityTypeCode:
			marker.open, marker.close = "`", "`"
		case otogi.TextEntityTypePre:
			marker.open, marker.close = "```\n", "\n```"
		case otogi.TextEntityTypeTextURL:
			marker.open, marker.close = "<"+entity.URL+"|", ">"
		case otogi.TextEntityTypeBotCommand:
		default:
			return "", fmt.Errorf(
				"%w: entity[%d] unsupported type %q",
				otogi.ErrOutboundUnsupported,
				index,
				entity.Type,
			)
		}
		markers = append(markers, marker)
	}

	// Outer ranges open first and close last.
	sort.SliceStable(markers, func(i, j int) bool {
		if markers[i].start != markers[j].start {
			return markers[i].start < markers[j].start
		}
		return markers[i].finish > markers[j].finish
	})
	for index := range markers {
		markers[index].order = index
	}

	opens := make(map[int][]entityMarker, len(markers))
	closes := make(map[int][]entityMarker, len(markers))
	for _, marker := range markers {
		opens[marker.start] = append(opens[marker.start], marker)
		closes[marker.finish] = append(closes[marker.finish], marker)
	}
	for position := range closes {
		sort.Slice(closes[position], func(i, j int) bool {
			return closes[position][i].order > closes[position][j].order
		})
	}

	var builder strings.Builder
	builder.Grow(len(text) + len(markers)*4)
	for position := 0; position <= len(runes); position++ {
		for _, marker := range closes[position] {
			builder.WriteString(marker.close)
		}
		if position == len(runes) {
			break
		}
		for _, marker := range opens[position] {
			builder.WriteString(marker.open)
		}
		builder.WriteString(escapeMrkdwn(runes[position]))
	}

	return builder.String(), nil
}

func escapeMrkdwn(value rune) string {
	switch value {
	case '&':
		return "&amp;"
	case '<':
		return "&lt;"
	case '>':
		return "&gt;"
	default:
		return string(value)
	}
}

// splitSectionText cuts text into section-sized chunks, preferring line breaks.
func splitSectionText(text string) []string {
	runes := []rune(text)
	if len(runes) <= maxSectionRunes {
		return []string{text}
	}

	chunks := make([]string, 0, len(runes)/maxSectionRunes+1)
	for len(runes) > maxSectionRunes {
		cut := maxSectionRunes
		for index := maxSectionRunes - 1; index > 0; index-- {
			if runes[index] == '\n' {
				cut = index
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
		if len(runes) > 0 && runes[0] == '\n' {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}

	return chunks
}
