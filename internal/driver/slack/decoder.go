package slack

import (
	"fmt"
	"strings"
	"time"

	"otogi-helpnav/pkg/otogi"

	"github.com/slack-go/slack"
)

const (
	metadataTriggerID = "slack_trigger_id"
	metadataTeamID    = "slack_team_id"
)

// decodeSlashCommand maps one slash command into a message.created event whose
// text reads the way the user typed it, so command derivation stays shared
// with text-based platforms.
//
// Slash commands never materialize as channel messages, so Message.ID stays empty.
func decodeSlashCommand(command slack.SlashCommand, eventID string, occurredAt time.Time) (*otogi.Event, error) {
	name := strings.TrimSpace(command.Command)
	if name == "" {
		return nil, fmt.Errorf("decode slash command: missing command")
	}
	if !strings.HasPrefix(name, string(otogi.CommandPrefixOrdinary)) {
		name = string(otogi.CommandPrefixOrdinary) + name
	}
	text := name
	if args := strings.TrimSpace(command.Text); args != "" {
		text += " " + args
	}

	event := &otogi.Event{
		ID:         eventID,
		Kind:       otogi.EventKindMessageCreated,
		OccurredAt: occurredAt,
		Platform:   DriverPlatform,
		Conversation: otogi.Conversation{
			ID:    command.ChannelID,
			Type:  conversationType(command.ChannelID),
			Title: command.ChannelName,
		},
		Actor: otogi.Actor{
			ID:       command.UserID,
			Username: command.UserName,
		},
		Message:  &otogi.Message{Text: text},
		Metadata: newSlackMetadata(command.TriggerID, command.TeamID),
	}
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("decode slash command %s: %w", name, err)
	}

	return event, nil
}

// decodeBlockActions maps every block action of one interactive payload into
// its own interaction.received event.
func decodeBlockActions(
	callback slack.InteractionCallback,
	newID func() string,
	occurredAt time.Time,
) ([]*otogi.Event, error) {
	if callback.Type != slack.InteractionTypeBlockActions {
		return nil, fmt.Errorf("decode interaction: unsupported type %q", callback.Type)
	}

	channelID := callback.Container.ChannelID
	if channelID == "" {
		channelID = callback.Channel.ID
	}
	messageTS := callback.Container.MessageTs
	if messageTS == "" {
		messageTS = callback.Message.Timestamp
	}

	events := make([]*otogi.Event, 0, len(callback.ActionCallback.BlockActions))
	for index, action := range callback.ActionCallback.BlockActions {
		if action == nil {
			continue
		}

		interaction := &otogi.Interaction{
			ID:        newID(),
			Kind:      otogi.InteractionKindButton,
			CustomID:  action.ActionID,
			MessageID: messageTS,
		}
		if isSelectAction(action) {
			interaction.Kind = otogi.InteractionKindSelect
			if value := action.SelectedOption.Value; value != "" {
				interaction.Values = []string{value}
			}
		}

		event := &otogi.Event{
			ID:         interaction.ID,
			Kind:       otogi.EventKindInteractionReceived,
			OccurredAt: occurredAt,
			Platform:   DriverPlatform,
			Conversation: otogi.Conversation{
				ID:    channelID,
				Type:  conversationType(channelID),
				Title: callback.Channel.Name,
			},
			Actor: otogi.Actor{
				ID:          callback.User.ID,
				Username:    callback.User.Name,
				DisplayName: callback.User.RealName,
			},
			Interaction: interaction,
			Metadata:    newSlackMetadata(callback.TriggerID, callback.Team.ID),
		}
		if err := event.Validate(); err != nil {
			return nil, fmt.Errorf("decode block action[%d] %s: %w", index, action.ActionID, err)
		}
		events = append(events, event)
	}

	return events, nil
}

func isSelectAction(action *slack.BlockAction) bool {
	return string(action.Type) == slack.OptTypeStatic || action.SelectedOption.Value != ""
}

// conversationType maps Slack conversation id prefixes onto neutral scopes.
func conversationType(channelID string) otogi.ConversationType {
	if strings.HasPrefix(channelID, "D") {
		return otogi.ConversationTypePrivate
	}

	return otogi.ConversationTypeGroup
}

func newSlackMetadata(triggerID string, teamID string) map[string]string {
	metadata := make(map[string]string, 2)
	if triggerID != "" {
		metadata[metadataTriggerID] = triggerID
	}
	if teamID != "" {
		metadata[metadataTeamID] = teamID
	}
	if len(metadata) == 0 {
		return nil
	}

	return metadata
}
