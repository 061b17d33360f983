package slack

import (
	"testing"
	"time"
)

func TestParseRuntimeConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		raw         string
		wantErr     bool
		wantGrace   time.Duration
		wantPublish time.Duration
	}{
		{
			name:        "defaults",
			raw:         `{"app_token":"xapp-1","bot_token":"xoxb-1"}`,
			wantGrace:   defaultAckGrace,
			wantPublish: defaultRuntimePublishDelay,
		},
		{
			name:        "overrides",
			raw:         `{"app_token":"xapp-1","bot_token":"xoxb-1","ack_grace":"1s","publish_timeout":"5s"}`,
			wantGrace:   time.Second,
			wantPublish: 5 * time.Second,
		},
		{name: "missing config", raw: ``, wantErr: true},
		{name: "invalid json", raw: `{`, wantErr: true},
		{name: "missing bot token", raw: `{"app_token":"xapp-1"}`, wantErr: true},
		{name: "bot token as app token", raw: `{"app_token":"xoxb-1","bot_token":"xoxb-1"}`, wantErr: true},
		{name: "grace too long", raw: `{"app_token":"xapp-1","bot_token":"xoxb-1","ack_grace":"3s"}`, wantErr: true},
		{name: "negative timeout", raw: `{"app_token":"xapp-1","bot_token":"xoxb-1","publish_timeout":"-1s"}`, wantErr: true},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := parseRuntimeConfig([]byte(testCase.raw))
			if testCase.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.ackGrace != testCase.wantGrace || cfg.publishTimeout != testCase.wantPublish {
				t.Fatalf("grace = %s publish = %s", cfg.ackGrace, cfg.publishTimeout)
			}
		})
	}
}

func TestBuildRuntimeFromConfig(t *testing.T) {
	t.Parallel()

	source, driver, sink, err := BuildRuntimeFromConfig(
		"slack-main",
		nil,
		[]byte(`{"app_token":"xapp-1","bot_token":"xoxb-1"}`),
	)
	if err != nil {
		t.Fatalf("build runtime failed: %v", err)
	}
	if source.ID != "slack-main" || source.Platform != DriverPlatform {
		t.Fatalf("source = %+v", source)
	}
	if driver.Name() != "slack-main" || sink == nil {
		t.Fatalf("driver = %s sink = %v", driver.Name(), sink)
	}
}
