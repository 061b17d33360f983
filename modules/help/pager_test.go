package help

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"otogi-helpnav/pkg/otogi"
)

func TestPagerRun(t *testing.T) {
	pages := []Page{
		{Category: UncategorizedLabel, Body: "/ping - reply with pong!"},
		{Category: "Fun", Body: "/echo - repeat text"},
		{Category: "Mod", Body: "/ban - ban a user"},
	}
	remoteErr := errors.New("remote failure")

	tests := []struct {
		name        string
		script      []streamResult
		tail        error
		ackErr      error
		editErr     error
		deleteErr   error
		wantOutcome Outcome
		wantErr     error
		wantEdits   []string
		wantDeletes int
		wantAcks    int
	}{
		{
			name:        "deadline without interaction times out",
			tail:        otogi.ErrInteractionTimeout,
			wantOutcome: OutcomeTimedOut,
		},
		{
			name:        "external close ends session",
			tail:        otogi.ErrInteractionClosed,
			wantOutcome: OutcomeClosed,
		},
		{
			name:        "cancel deletes message",
			script:      []streamResult{buttonPress("i1", "hnav:cancel")},
			tail:        otogi.ErrInteractionTimeout,
			wantOutcome: OutcomeCancelled,
			wantDeletes: 1,
			wantAcks:    1,
		},
		{
			name: "buttons and select edit in place",
			script: []streamResult{
				buttonPress("i1", "hnav:1"),
				selectChoice("i2", "0"),
				buttonPress("i3", "hnav:1"),
				buttonPress("i4", "hnav:2"),
			},
			tail:        otogi.ErrInteractionTimeout,
			wantOutcome: OutcomeTimedOut,
			wantEdits:   []string{"Fun (Page 2)", "Uncategorized (Page 1)", "Fun (Page 2)", "Mod (Page 3)"},
			wantAcks:    4,
		},
		{
			name:        "empty select value fails without touching message",
			script:      []streamResult{selectChoice("i1")},
			tail:        otogi.ErrInteractionTimeout,
			wantOutcome: OutcomeFailed,
			wantErr:     ErrMalformedNavigation,
			wantAcks:    1,
		},
		{
			name:        "target past last page is fatal",
			script:      []streamResult{buttonPress("i1", "hnav:3")},
			tail:        otogi.ErrInteractionTimeout,
			wantOutcome: OutcomeFailed,
			wantErr:     ErrNavigationOutOfRange,
			wantAcks:    1,
		},
		{
			name:        "target before first page is fatal",
			script:      []streamResult{buttonPress("i1", "hnav:-1")},
			tail:        otogi.ErrInteractionTimeout,
			wantOutcome: OutcomeFailed,
			wantErr:     ErrNavigationOutOfRange,
			wantAcks:    1,
		},
		{
			name:        "acknowledge failure is fatal",
			script:      []streamResult{buttonPress("i1", "hnav:1")},
			tail:        otogi.ErrInteractionTimeout,
			ackErr:      remoteErr,
			wantOutcome: OutcomeFailed,
			wantErr:     remoteErr,
			wantAcks:    1,
		},
		{
			name:        "edit failure is fatal",
			script:      []streamResult{buttonPress("i1", "hnav:1")},
			tail:        otogi.ErrInteractionTimeout,
			editErr:     remoteErr,
			wantOutcome: OutcomeFailed,
			wantErr:     remoteErr,
			wantEdits:   []string{"Fun (Page 2)"},
			wantAcks:    1,
		},
		{
			name:        "delete failure is fatal",
			script:      []streamResult{buttonPress("i1", "hnav:cancel")},
			tail:        otogi.ErrInteractionTimeout,
			deleteErr:   remoteErr,
			wantOutcome: OutcomeFailed,
			wantErr:     remoteErr,
			wantDeletes: 1,
			wantAcks:    1,
		},
		{
			name:        "stream failure is fatal",
			tail:        remoteErr,
			wantOutcome: OutcomeFailed,
			wantErr:     remoteErr,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			dispatcher := &captureDispatcher{
				messageID: "sent-1",
				ackErr:    testCase.ackErr,
				editErr:   testCase.editErr,
				deleteErr: testCase.deleteErr,
			}
			stream := &scriptedStream{
				results: append([]streamResult(nil), testCase.script...),
				tail:    testCase.tail,
			}
			collector := &stubCollector{stream: stream}
			pager := NewPager(dispatcher, collector, time.Minute, nil)

			outcome, err := pager.Run(context.Background(), pages, newHelpEvent(""))
			if outcome != testCase.wantOutcome {
				t.Fatalf("outcome = %s, want %s", outcome, testCase.wantOutcome)
			}
			if testCase.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if testCase.wantErr != nil && !errors.Is(err, testCase.wantErr) {
				t.Fatalf("error = %v, want %v", err, testCase.wantErr)
			}

			if len(dispatcher.sends) != 1 {
				t.Fatalf("sends = %d, want exactly 1", len(dispatcher.sends))
			}
			if got := stream.closeCount(); got < 1 {
				t.Fatal("stream not closed")
			}
			if len(dispatcher.acks) != testCase.wantAcks {
				t.Fatalf("acks = %d, want %d", len(dispatcher.acks), testCase.wantAcks)
			}
			if len(dispatcher.deletes) != testCase.wantDeletes {
				t.Fatalf("deletes = %d, want %d", len(dispatcher.deletes), testCase.wantDeletes)
			}
			for _, deleted := range dispatcher.deletes {
				if deleted.MessageID != "sent-1" || !deleted.Revoke {
					t.Fatalf("delete = %+v, want revoke of sent-1", deleted)
				}
			}
			if len(dispatcher.edits) != len(testCase.wantEdits) {
				t.Fatalf("edits = %d, want %d", len(dispatcher.edits), len(testCase.wantEdits))
			}
			for index, edit := range dispatcher.edits {
				if edit.MessageID != "sent-1" {
					t.Fatalf("edit[%d] message id = %q, want sent-1", index, edit.MessageID)
				}
				if !strings.HasPrefix(edit.Text, testCase.wantEdits[index]) {
					t.Fatalf("edit[%d] text = %q, want prefix %q", index, edit.Text, testCase.wantEdits[index])
				}
			}
		})
	}
}

func TestPagerRunFirstRender(t *testing.T) {
	t.Parallel()

	dispatcher := &captureDispatcher{messageID: "sent-1"}
	stream := &scriptedStream{tail: otogi.ErrInteractionTimeout}
	collector := &stubCollector{stream: stream}
	pager := NewPager(dispatcher, collector, 30*time.Second, nil)
	origin := newHelpEvent("")

	if _, err := pager.Run(context.Background(), []Page{{Category: "Fun", Body: "/echo - repeat"}}, origin); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	sent := dispatcher.sends[0]
	if sent.ReplyToMessageID != "msg-1" {
		t.Fatalf("reply to = %q, want msg-1", sent.ReplyToMessageID)
	}
	if sent.Target.Sink == nil || sent.Target.Sink.ID != "tg-main" {
		t.Fatalf("target sink = %+v, want tg-main", sent.Target.Sink)
	}
	if sent.Text != "Fun (Page 1)\n\n/echo - repeat" {
		t.Fatalf("text = %q", sent.Text)
	}
	if err := sent.Validate(); err != nil {
		t.Fatalf("first render invalid: %v", err)
	}
	buttons := sent.Components[0].Buttons
	if !buttons[0].Disabled || !buttons[2].Disabled {
		t.Fatalf("single page buttons = %+v, want Previous and Next disabled", buttons)
	}

	if len(collector.specs) != 1 {
		t.Fatalf("collect calls = %d, want 1", len(collector.specs))
	}
	spec := collector.specs[0]
	wantFilter := otogi.InteractionFilter{
		Source:         origin.Source,
		ConversationID: "42",
		MessageID:      "sent-1",
		ActorID:        "user-7",
	}
	if spec.Filter != wantFilter {
		t.Fatalf("filter = %+v, want %+v", spec.Filter, wantFilter)
	}
	if spec.Timeout != 30*time.Second {
		t.Fatalf("timeout = %s, want 30s", spec.Timeout)
	}
}

func TestPagerRunCategorySelectExample(t *testing.T) {
	t.Parallel()

	commands := []otogi.RegisteredCommand{
		registered("pingpong", otogi.CommandSpec{Name: "ping", Description: "reply with pong!"}),
		registered("demo", otogi.CommandSpec{Name: "echo", Description: "repeat text", Category: "Fun"}),
		registered("demo", otogi.CommandSpec{Name: "ban", Description: "ban a user", Category: "Mod"}),
	}
	origin := newHelpEvent("")
	pages, err := BuildCatalog(context.Background(), commands, origin, CatalogOptions{})
	if err != nil {
		t.Fatalf("BuildCatalog failed: %v", err)
	}

	dispatcher := &captureDispatcher{messageID: "sent-1"}
	stream := &scriptedStream{
		results: []streamResult{selectChoice("i1", "2")},
		tail:    otogi.ErrInteractionClosed,
	}
	pager := NewPager(dispatcher, &stubCollector{stream: stream}, time.Minute, nil)

	outcome, err := pager.Run(context.Background(), pages, origin)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome != OutcomeClosed {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeClosed)
	}
	if len(dispatcher.edits) != 1 {
		t.Fatalf("edits = %d, want 1", len(dispatcher.edits))
	}

	edit := dispatcher.edits[0]
	if edit.Text != "Mod (Page 3)\n\n/ban - ban a user" {
		t.Fatalf("edit text = %q", edit.Text)
	}
	buttons := edit.Components[0].Buttons
	if buttons[0].Disabled {
		t.Fatal("Previous disabled on last page, want enabled")
	}
	if !buttons[2].Disabled {
		t.Fatal("Next enabled on last page, want disabled")
	}
	if got := edit.Components[1].Select.Options[2].Label; got != "Mod (current)" {
		t.Fatalf("current option = %q, want Mod (current)", got)
	}
	if dispatcher.acks[0].InteractionID != "i1" {
		t.Fatalf("ack id = %q, want i1", dispatcher.acks[0].InteractionID)
	}
}

func TestPagerRunSetupFailures(t *testing.T) {
	pages := []Page{{Category: "Fun", Body: "/echo - repeat"}}
	sendErr := errors.New("send failed")
	collectErr := errors.New("collector closed")

	tests := []struct {
		name         string
		pages        []Page
		sendErr      error
		collectErr   error
		wantErr      error
		wantSends    int
		wantCollects int
	}{
		{name: "empty catalog sends nothing", wantErr: ErrEmptyCatalog},
		{name: "send failure opens no stream", pages: pages, sendErr: sendErr, wantErr: sendErr, wantSends: 1},
		{name: "collect failure", pages: pages, collectErr: collectErr, wantErr: collectErr, wantSends: 1, wantCollects: 1},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			dispatcher := &captureDispatcher{messageID: "sent-1", sendErr: testCase.sendErr}
			collector := &stubCollector{
				stream: &scriptedStream{tail: otogi.ErrInteractionTimeout},
				err:    testCase.collectErr,
			}
			pager := NewPager(dispatcher, collector, time.Minute, nil)

			outcome, err := pager.Run(context.Background(), testCase.pages, newHelpEvent(""))
			if outcome != OutcomeFailed {
				t.Fatalf("outcome = %s, want %s", outcome, OutcomeFailed)
			}
			if !errors.Is(err, testCase.wantErr) {
				t.Fatalf("error = %v, want %v", err, testCase.wantErr)
			}
			if len(dispatcher.sends) != testCase.wantSends {
				t.Fatalf("sends = %d, want %d", len(dispatcher.sends), testCase.wantSends)
			}
			if len(collector.specs) != testCase.wantCollects {
				t.Fatalf("collects = %d, want %d", len(collector.specs), testCase.wantCollects)
			}
		})
	}
}

func TestPagerRunContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	dispatcher := &captureDispatcher{messageID: "sent-1"}
	stream := &scriptedStream{tail: otogi.ErrInteractionTimeout}
	pager := NewPager(dispatcher, &stubCollector{stream: stream}, time.Minute, nil)

	cancel()

	// The stub dispatcher ignores ctx, so cancellation surfaces at Next.
	outcome, err := pager.Run(ctx, []Page{{Category: "Fun"}}, newHelpEvent(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeClosed {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeClosed)
	}
	if stream.closeCount() != 1 {
		t.Fatalf("stream closes = %d, want 1", stream.closeCount())
	}
}

func TestPagerRunLogsSessionSummary(t *testing.T) {
	t.Parallel()

	pages := []Page{
		{Category: UncategorizedLabel, Body: "/ping - reply with pong!"},
		{Category: "Fun", Body: "/echo - repeat text"},
		{Category: "Mod", Body: "/ban - ban a user"},
	}

	tests := []struct {
		name          string
		script        []streamResult
		wantOutcome   Outcome
		wantVisited   float64
		wantFinalPage float64
	}{
		{
			name:          "no navigation stays on first page",
			wantOutcome:   OutcomeTimedOut,
			wantVisited:   1,
			wantFinalPage: 1,
		},
		{
			name: "final page follows the last edit",
			script: []streamResult{
				buttonPress("i1", "hnav:1"),
				selectChoice("i2", "2"),
				selectChoice("i3", "2"),
			},
			wantOutcome:   OutcomeTimedOut,
			wantVisited:   4,
			wantFinalPage: 3,
		},
		{
			name: "cancel keeps the page shown before deletion",
			script: []streamResult{
				buttonPress("i1", "hnav:1"),
				buttonPress("i2", "hnav:cancel"),
			},
			wantOutcome:   OutcomeCancelled,
			wantVisited:   2,
			wantFinalPage: 2,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			var logs bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&logs, nil))
			stream := &scriptedStream{
				results: append([]streamResult(nil), testCase.script...),
				tail:    otogi.ErrInteractionTimeout,
			}
			pager := NewPager(&captureDispatcher{messageID: "sent-1"}, &stubCollector{stream: stream}, time.Minute, logger)

			outcome, err := pager.Run(context.Background(), pages, newHelpEvent(""))
			if err != nil || outcome != testCase.wantOutcome {
				t.Fatalf("Run = (%s, %v), want (%s, nil)", outcome, err, testCase.wantOutcome)
			}

			var record map[string]any
			if err := json.Unmarshal(logs.Bytes(), &record); err != nil {
				t.Fatalf("decode session log %q: %v", logs.String(), err)
			}
			if record["msg"] != "help session finished" {
				t.Fatalf("log message = %v, want help session finished", record["msg"])
			}
			if record["outcome"] != string(testCase.wantOutcome) {
				t.Fatalf("logged outcome = %v, want %s", record["outcome"], testCase.wantOutcome)
			}
			if record["pages_visited"] != testCase.wantVisited {
				t.Fatalf("pages_visited = %v, want %v", record["pages_visited"], testCase.wantVisited)
			}
			if record["final_page"] != testCase.wantFinalPage {
				t.Fatalf("final_page = %v, want %v", record["final_page"], testCase.wantFinalPage)
			}
			if _, ok := record["session_id"].(string); !ok {
				t.Fatalf("session_id = %v, want string", record["session_id"])
			}
		})
	}
}

func TestPagerRunEmptyCatalogLogsNoFinalPage(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	pager := NewPager(&captureDispatcher{messageID: "sent-1"}, &stubCollector{}, time.Minute, logger)

	if _, err := pager.Run(context.Background(), nil, newHelpEvent("")); !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("error = %v, want ErrEmptyCatalog", err)
	}
	if strings.Contains(logs.String(), "final_page") {
		t.Fatalf("log = %s, want no final_page before any render", logs.String())
	}
}
