package help

import (
	"reflect"
	"strings"
	"testing"

	"otogi-helpnav/pkg/otogi"
)

func TestRenderDetail(t *testing.T) {
	t.Parallel()

	spec := otogi.CommandSpec{
		Prefix:      otogi.CommandPrefixOrdinary,
		Name:        "settings",
		Description: "manage settings",
		Options: []otogi.CommandOptionSpec{
			{Name: "scope", HasValue: true, Description: "chat or user"},
			{Alias: "v"},
		},
		Subcommands: []otogi.CommandSpec{
			{
				Name:        "set",
				Description: "change one key",
				Options:     []otogi.CommandOptionSpec{{Name: "key", HasValue: true, Description: "setting name"}},
			},
			{Name: "reset", Hidden: true},
			{Name: "show"},
		},
	}

	view := renderDetail(spec)
	want := strings.Join([]string{
		"Help for settings",
		"manage settings",
		"",
		"Parameters",
		"--scope - chat or user",
		"-v - No description available yet",
		"",
		"set",
		"change one key",
		"*--key* - setting name",
		"",
		"show",
		"No description available yet",
	}, "\n")
	if view.text != want {
		t.Fatalf("text =\n%s\nwant\n%s", view.text, want)
	}
	if err := otogi.ValidateTextEntities(view.text, view.entities); err != nil {
		t.Fatalf("entities invalid: %v", err)
	}

	headings := make([]string, 0, len(view.entities))
	runes := []rune(view.text)
	for _, entity := range view.entities {
		headings = append(headings, string(runes[entity.Offset:entity.Offset+entity.Length]))
	}
	wantHeadings := []string{"Help for settings", "Parameters", "set", "show"}
	if !reflect.DeepEqual(headings, wantHeadings) {
		t.Fatalf("headings = %v, want %v", headings, wantHeadings)
	}
}

func TestRenderDetailWithoutOptions(t *testing.T) {
	t.Parallel()

	view := renderDetail(otogi.CommandSpec{Name: "ping"})
	if view.text != "Help for ping\nNo description available yet" {
		t.Fatalf("text = %q", view.text)
	}
}

func TestFindCommand(t *testing.T) {
	commands := []otogi.RegisteredCommand{
		registered("pingpong", otogi.CommandSpec{Name: "ping"}),
		registered("demo", otogi.CommandSpec{Name: "debug", Prefix: otogi.CommandPrefixSystem, Hidden: true}),
	}

	tests := []struct {
		query string
		want  bool
	}{
		{query: "ping", want: true},
		{query: "/PING", want: true},
		{query: " ping ", want: true},
		{query: "debug", want: false},
		{query: "pong", want: false},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.query, func(t *testing.T) {
			t.Parallel()

			_, found := findCommand(commands, testCase.query)
			if found != testCase.want {
				t.Fatalf("found = %v, want %v", found, testCase.want)
			}
		})
	}
}

func TestSuggestCommands(t *testing.T) {
	commands := []otogi.RegisteredCommand{
		registered("pingpong", otogi.CommandSpec{Name: "ping"}),
		registered("demo", otogi.CommandSpec{Name: "echo"}),
		registered("demo", otogi.CommandSpec{Name: "ban"}),
		registered("demo", otogi.CommandSpec{Name: "debug", Prefix: otogi.CommandPrefixSystem, Hidden: true}),
	}

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "subsequence", query: "pi", want: []string{"/ping"}},
		{name: "typo", query: "ecko", want: []string{"/echo"}},
		{name: "case folded", query: "BAN", want: []string{"/ban"}},
		{name: "hidden never suggested", query: "debgu", want: []string{}},
		{name: "empty query", query: " ", want: nil},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got := suggestCommands(testCase.query, commands)
			if len(got) == 0 && len(testCase.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, testCase.want) {
				t.Fatalf("suggestions = %v, want %v", got, testCase.want)
			}
		})
	}
}

func TestRenderNotFound(t *testing.T) {
	t.Parallel()

	if got := renderNotFound(nil).text; got != "Command not found!" {
		t.Fatalf("text = %q", got)
	}
	if got := renderNotFound([]string{"/ping", "/echo"}).text; got != "Command not found!\nDid you mean: /ping, /echo?" {
		t.Fatalf("text = %q", got)
	}
}
