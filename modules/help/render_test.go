package help

import (
	"strconv"
	"testing"

	"otogi-helpnav/pkg/otogi"
)

func TestPageControlsDisabledButtons(t *testing.T) {
	pages := []Page{{Category: "A"}, {Category: "B"}, {Category: "C"}}

	tests := []struct {
		name         string
		pages        []Page
		index        int
		wantPrevID   string
		wantNextID   string
		wantPrevOff  bool
		wantNextOff  bool
		wantSelected string
	}{
		{name: "first page", pages: pages, index: 0, wantPrevID: "hnav:-1", wantNextID: "hnav:1", wantPrevOff: true, wantSelected: "A (current)"},
		{name: "middle page", pages: pages, index: 1, wantPrevID: "hnav:0", wantNextID: "hnav:2", wantSelected: "B (current)"},
		{name: "last page", pages: pages, index: 2, wantPrevID: "hnav:1", wantNextID: "hnav:3", wantNextOff: true, wantSelected: "C (current)"},
		{name: "single page", pages: pages[:1], index: 0, wantPrevID: "hnav:-1", wantNextID: "hnav:1", wantPrevOff: true, wantNextOff: true, wantSelected: "A (current)"},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			rows := PageControls(testCase.pages, testCase.index)
			if err := otogi.ValidateComponentRows(rows); err != nil {
				t.Fatalf("controls invalid: %v", err)
			}
			if len(rows) != 2 || len(rows[0].Buttons) != 3 || rows[1].Select == nil {
				t.Fatalf("rows = %+v, want buttons row and select row", rows)
			}

			previous, cancel, next := rows[0].Buttons[0], rows[0].Buttons[1], rows[0].Buttons[2]
			if previous.CustomID != testCase.wantPrevID || previous.Disabled != testCase.wantPrevOff {
				t.Fatalf("previous = %+v, want id %s disabled %v", previous, testCase.wantPrevID, testCase.wantPrevOff)
			}
			if next.CustomID != testCase.wantNextID || next.Disabled != testCase.wantNextOff {
				t.Fatalf("next = %+v, want id %s disabled %v", next, testCase.wantNextID, testCase.wantNextOff)
			}
			if cancel.CustomID != navigationCancelID || cancel.Style != otogi.ButtonStyleDanger || cancel.Disabled {
				t.Fatalf("cancel = %+v", cancel)
			}

			menu := rows[1].Select
			if menu.CustomID != navigationSelectID {
				t.Fatalf("select custom id = %q", menu.CustomID)
			}
			if len(menu.Options) != len(testCase.pages) {
				t.Fatalf("select options = %d, want %d", len(menu.Options), len(testCase.pages))
			}
			if got := menu.Options[testCase.index].Label; got != testCase.wantSelected {
				t.Fatalf("current option label = %q, want %q", got, testCase.wantSelected)
			}
			for position, option := range menu.Options {
				if option.Value != strconv.Itoa(position) {
					t.Fatalf("option[%d] value = %q", position, option.Value)
				}
			}
		})
	}
}

func TestRenderPageText(t *testing.T) {
	t.Parallel()

	pages := []Page{{Category: "Fun", Body: "/echo - repeat"}, {Category: "Empty"}}

	first := renderPage(pages, 0)
	if first.text != "Fun (Page 1)\n\n/echo - repeat" {
		t.Fatalf("text = %q", first.text)
	}
	if len(first.entities) != 1 || first.entities[0].Length != len("Fun (Page 1)") {
		t.Fatalf("entities = %+v, want bold title", first.entities)
	}

	second := renderPage(pages, 1)
	if second.text != "Empty (Page 2)" {
		t.Fatalf("empty body text = %q, want title only", second.text)
	}
	if err := otogi.ValidateTextEntities(second.text, second.entities); err != nil {
		t.Fatalf("entities invalid: %v", err)
	}
}
