package settings

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDefaultProfileIsValid(t *testing.T) {
	t.Parallel()

	if err := Default().Validate(); err != nil {
		t.Fatalf("default profile rejected: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name   string
		mutate func(a *Antispam)
	}{
		{"unknown default action", func(a *Antispam) { a.DefaultAction = "yeet" }},
		{"unknown filter action", func(a *Antispam) { a.Flood.Action = "nuke" }},
		{"zero warning threshold", func(a *Antispam) { a.WarningThreshold = 0 }},
		{"negative duration", func(a *Antispam) { a.SpamWords.Duration = -1 }},
		{"flood window too short", func(a *Antispam) { a.Flood.Seconds = 2 }},
		{"flood window too long", func(a *Antispam) { a.Flood.Seconds = 120 }},
		{"flood limit zero", func(a *Antispam) { a.Flood.Limit = 0 }},
		{"repeated words limit zero", func(a *Antispam) { a.RepeatedWords.Limit = 0 }},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			profile := Default()
			tc.mutate(profile)
			if err := profile.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestResolveFallsBackToChatDefaults(t *testing.T) {
	t.Parallel()

	profile := Default()
	profile.Flood.Action = ""
	profile.Flood.Duration = 0
	profile.DefaultAction = ActionMute
	profile.MuteDuration = 600

	action, duration := profile.Resolve(FilterFlood)
	if action != ActionMute {
		t.Fatalf("unexpected action: %q", action)
	}
	if duration != 600*time.Second {
		t.Fatalf("unexpected duration: %v", duration)
	}
}

func TestResolveUsesBanDurationForBanFallback(t *testing.T) {
	t.Parallel()

	profile := Default()
	profile.TelegramLinks.Action = ActionBan
	profile.TelegramLinks.Duration = 0
	profile.BanDuration = 3600

	action, duration := profile.Resolve(FilterTelegramLinks)
	if action != ActionBan {
		t.Fatalf("unexpected action: %q", action)
	}
	if duration != time.Hour {
		t.Fatalf("unexpected duration: %v", duration)
	}
}

func TestUnknownJSONKeysAreIgnored(t *testing.T) {
	t.Parallel()

	payload := `{"enabled":true,"warning_threshold":5,"legacy_field":"whatever"}`
	profile := Default()
	if err := json.Unmarshal([]byte(payload), profile); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if profile.WarningThreshold != 5 {
		t.Fatalf("threshold not applied: %d", profile.WarningThreshold)
	}
	// untouched filters keep their defaults
	if !profile.Flood.Enabled || profile.Flood.Limit != 5 {
		t.Fatalf("flood defaults lost: %#v", profile.Flood)
	}
}

func TestExceptions(t *testing.T) {
	t.Parallel()

	profile := Default()
	profile.Exceptions.Users = []int64{7}
	profile.Exceptions.Domains = []string{"example.org"}

	if !profile.IsExemptUser(7) || profile.IsExemptUser(8) {
		t.Fatalf("user exceptions broken")
	}
	if !profile.IsExemptDomain("example.org") || profile.IsExemptDomain("example.com") {
		t.Fatalf("domain exceptions broken")
	}
}
