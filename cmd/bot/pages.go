package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"otogi-helpnav/modules/help"
	"otogi-helpnav/pkg/otogi"
)

type previewStyles struct {
	title          lipgloss.Style
	body           lipgloss.Style
	button         lipgloss.Style
	dangerButton   lipgloss.Style
	disabledButton lipgloss.Style
	option         lipgloss.Style
	currentOption  lipgloss.Style
	frame          lipgloss.Style
}

func defaultPreviewStyles() previewStyles {
	return previewStyles{
		title:          lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Bold(true),
		body:           lipgloss.NewStyle().Foreground(lipgloss.Color("249")),
		button:         lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("238")).Padding(0, 1),
		dangerButton:   lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("160")).Padding(0, 1),
		disabledButton: lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1).Strikethrough(true),
		option:         lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		currentOption:  lipgloss.NewStyle().Foreground(lipgloss.Color("34")).Bold(true),
		frame:          lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(0, 1),
	}
}

func newPagesCommand() *cobra.Command {
	var (
		page    int
		actorID string
	)

	command := &cobra.Command{
		Use:   "pages",
		Short: "Preview the /help catalog in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadPreviewConfig()
			if err != nil {
				return err
			}
			pages, err := previewPages(cmd.Context(), cfg, actorID)
			if err != nil {
				return err
			}

			return writePreview(cmd.OutOrStdout(), defaultPreviewStyles(), pages, page)
		},
	}
	command.Flags().IntVar(&page, "page", 0, "1-based page to render; 0 renders every page")
	command.Flags().StringVar(&actorID, "as", "", "actor id whose permission checks decide visibility")

	return command
}

// loadPreviewConfig reads module settings without requiring any driver.
func loadPreviewConfig() (appConfig, error) {
	cfg := defaultAppConfig()
	configFile, found, err := lookupConfigFile()
	if err != nil {
		return appConfig{}, err
	}
	if !found {
		return cfg, nil
	}
	parsed, err := readConfigFile(configFile)
	if err != nil {
		return appConfig{}, err
	}
	if err := applyFileConfig(&cfg, parsed); err != nil {
		return appConfig{}, fmt.Errorf("apply config file %s: %w", configFile, err)
	}

	return cfg, nil
}

// previewPages builds the catalog the way the running bot would for actorID.
func previewPages(ctx context.Context, cfg appConfig, actorID string) ([]help.Page, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := slog.New(slog.DiscardHandler)
	modules := buildModules(cfg, logger)

	var (
		commands   []otogi.RegisteredCommand
		helpModule *help.Module
	)
	for _, module := range modules {
		for _, command := range module.Spec().Commands {
			commands = append(commands, otogi.RegisteredCommand{ModuleName: module.Name(), Command: command})
		}
		if typed, ok := module.(*help.Module); ok {
			helpModule = typed
		}
	}
	if helpModule == nil {
		return nil, fmt.Errorf("preview pages: help module not configured")
	}

	event := &otogi.Event{
		ID:           "preview",
		Kind:         otogi.EventKindCommandReceived,
		OccurredAt:   time.Now(),
		Conversation: otogi.Conversation{ID: "preview", Type: otogi.ConversationTypePrivate},
		Actor:        otogi.Actor{ID: actorID},
	}
	pages, err := helpModule.Pages(ctx, commands, event)
	if err != nil {
		return nil, fmt.Errorf("preview pages: %w", err)
	}

	return pages, nil
}

func writePreview(out io.Writer, styles previewStyles, pages []help.Page, page int) error {
	if len(pages) == 0 {
		return fmt.Errorf("preview pages: %w", help.ErrEmptyCatalog)
	}
	if page < 0 || page > len(pages) {
		return fmt.Errorf("preview pages: --page %d not in [1, %d]", page, len(pages))
	}

	indexes := make([]int, 0, len(pages))
	if page == 0 {
		for index := range pages {
			indexes = append(indexes, index)
		}
	} else {
		indexes = append(indexes, page-1)
	}

	for _, index := range indexes {
		if _, err := fmt.Fprintln(out, renderPreviewPage(styles, pages, index)); err != nil {
			return fmt.Errorf("write preview: %w", err)
		}
	}

	return nil
}

func renderPreviewPage(styles previewStyles, pages []help.Page, index int) string {
	sections := []string{styles.title.Render(help.PageTitle(pages[index], index))}
	if body := pages[index].Body; body != "" {
		sections = append(sections, "", styles.body.Render(body))
	}
	sections = append(sections, "")

	for _, row := range help.PageControls(pages, index) {
		if row.Select != nil {
			sections = append(sections, renderSelectRow(styles, row.Select))
			continue
		}
		buttons := make([]string, 0, len(row.Buttons))
		for _, button := range row.Buttons {
			buttons = append(buttons, renderButton(styles, button), " ")
		}
		sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, buttons...))
	}

	return styles.frame.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func renderButton(styles previewStyles, button otogi.Button) string {
	switch {
	case button.Disabled:
		return styles.disabledButton.Render(button.Label)
	case button.Style == otogi.ButtonStyleDanger:
		return styles.dangerButton.Render(button.Label)
	default:
		return styles.button.Render(button.Label)
	}
}

func renderSelectRow(styles previewStyles, menu *otogi.SelectMenu) string {
	options := make([]string, 0, len(menu.Options))
	for _, option := range menu.Options {
		if strings.HasSuffix(option.Label, " (current)") {
			options = append(options, styles.currentOption.Render(option.Label))
			continue
		}
		options = append(options, styles.option.Render(option.Label))
	}

	return "▾ " + strings.Join(options, styles.option.Render(" | "))
}
