package telegram

import (
	"bytes"
	"fmt"

	"otogi-helpnav/pkg/otogi"

	"github.com/gotd/td/tg"
)

const (
	// maxCallbackDataBytes is the Bot API limit for inline button callback data.
	maxCallbackDataBytes = 64
	// callbackValueSeparator joins a select menu id with the chosen option value.
	callbackValueSeparator = '\x1f'
	selectButtonsPerRow    = 2
)

// encodeCallbackData builds the callback payload for one button or select option.
func encodeCallbackData(customID string, value string, isSelect bool) ([]byte, error) {
	data := []byte(customID)
	if isSelect {
		data = append(data, callbackValueSeparator)
		data = append(data, value...)
	}
	if len(data) > maxCallbackDataBytes {
		return nil, fmt.Errorf(
			"%w: callback data for %s is %d bytes, limit %d",
			otogi.ErrInvalidOutboundRequest,
			customID,
			len(data),
			maxCallbackDataBytes,
		)
	}

	return data, nil
}

func decodeCallbackData(data []byte) (customID string, value string, isSelect bool) {
	before, after, found := bytes.Cut(data, []byte{callbackValueSeparator})
	if !found {
		return string(data), "", false
	}

	return string(before), string(after), true
}

// buildReplyMarkup renders neutral control rows as an inline keyboard.
//
// Telegram has no inert buttons, so disabled buttons are left out. A select
// menu becomes one button per option, laid out two per row.
func buildReplyMarkup(rows []otogi.ComponentRow) (*tg.ReplyInlineMarkup, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	markup := &tg.ReplyInlineMarkup{}
	for rowIndex, row := range rows {
		if row.Select != nil {
			selectRows, err := buildSelectRows(*row.Select)
			if err != nil {
				return nil, fmt.Errorf("row[%d]: %w", rowIndex, err)
			}
			markup.Rows = append(markup.Rows, selectRows...)
			continue
		}

		buttons := make([]tg.KeyboardButtonClass, 0, len(row.Buttons))
		for _, button := range row.Buttons {
			if button.Disabled {
				continue
			}
			data, err := encodeCallbackData(button.CustomID, "", false)
			if err != nil {
				return nil, fmt.Errorf("row[%d]: %w", rowIndex, err)
			}
			buttons = append(buttons, &tg.KeyboardButtonCallback{
				Text: button.Label,
				Data: data,
			})
		}
		if len(buttons) == 0 {
			continue
		}
		markup.Rows = append(markup.Rows, tg.KeyboardButtonRow{Buttons: buttons})
	}
	if len(markup.Rows) == 0 {
		return nil, nil
	}

	return markup, nil
}

func buildSelectRows(menu otogi.SelectMenu) ([]tg.KeyboardButtonRow, error) {
	rows := make([]tg.KeyboardButtonRow, 0, (len(menu.Options)+selectButtonsPerRow-1)/selectButtonsPerRow)
	current := make([]tg.KeyboardButtonClass, 0, selectButtonsPerRow)
	for _, option := range menu.Options {
		data, err := encodeCallbackData(menu.CustomID, option.Value, true)
		if err != nil {
			return nil, err
		}
		current = append(current, &tg.KeyboardButtonCallback{
			Text: option.Label,
			Data: data,
		})
		if len(current) == selectButtonsPerRow {
			rows = append(rows, tg.KeyboardButtonRow{Buttons: current})
			current = make([]tg.KeyboardButtonClass, 0, selectButtonsPerRow)
		}
	}
	if len(current) > 0 {
		rows = append(rows, tg.KeyboardButtonRow{Buttons: current})
	}

	return rows, nil
}
