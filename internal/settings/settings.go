package settings

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/groupwarden/groupwarden/internal/errors"
)

// Moderation actions in ascending severity.
const (
	ActionDelete = "delete"
	ActionWarn   = "warn"
	ActionMute   = "mute"
	ActionBan    = "ban"
)

// Filter identifiers, also the evaluation order of the rule engine.
const (
	FilterTelegramLinks    = "telegram_links"
	FilterMediaFilter      = "media_filter"
	FilterFlood            = "flood"
	FilterRepeatedMessages = "repeated_messages"
	FilterRepeatedWords    = "repeated_words"
	FilterSpamWords        = "spam_words"
	FilterExternalLinks    = "external_links"
)

var knownActions = []string{ActionDelete, ActionWarn, ActionMute, ActionBan}

type (
	// Filter is the per-rule tunable block. Zero Action or Duration means
	// "fall back to the chat-wide default", resolved via Resolve.
	Filter struct {
		Enabled  bool     `json:"enabled"`
		Action   string   `json:"action,omitempty"`
		Limit    int      `json:"limit,omitempty"`
		Seconds  int      `json:"seconds,omitempty"`
		Duration int64    `json:"duration,omitempty"`
		Words    []string `json:"words,omitempty"`
	}

	Exceptions struct {
		Users   []int64  `json:"users,omitempty"`
		Domains []string `json:"domains,omitempty"`
	}

	// Antispam is the full per-chat moderation profile. It marshals to a
	// stable JSON payload, unknown keys in stored payloads are ignored.
	Antispam struct {
		Enabled          bool       `json:"enabled"`
		RepeatedWords    Filter     `json:"repeated_words"`
		RepeatedMessages Filter     `json:"repeated_messages"`
		Flood            Filter     `json:"flood"`
		SpamWords        Filter     `json:"spam_words"`
		TelegramLinks    Filter     `json:"telegram_links"`
		ExternalLinks    Filter     `json:"external_links"`
		MediaFilter      Filter     `json:"media_filter"`
		Exceptions       Exceptions `json:"exceptions"`
		AdminGroup       int64      `json:"admin_group,omitempty"`
		WarningThreshold int        `json:"warning_threshold"`
		AutoKickInactive bool       `json:"auto_kick_inactive"`
		IgnoredWords     []string   `json:"ignored_words,omitempty"`
		CaseSensitive    bool       `json:"case_sensitive"`
		DefaultAction    string     `json:"default_action"`
		MuteDuration     int64      `json:"mute_duration"`
		BanDuration      int64      `json:"ban_duration"`
	}
)

// Default returns the canonical out-of-the-box profile.
func Default() *Antispam {
	return &Antispam{
		Enabled:          true,
		RepeatedWords:    Filter{Enabled: true, Action: ActionWarn, Limit: 5, Duration: 1800},
		RepeatedMessages: Filter{Enabled: true, Action: ActionWarn, Limit: 5, Duration: 1800},
		Flood:            Filter{Enabled: true, Action: ActionMute, Limit: 5, Seconds: 10, Duration: 1800},
		SpamWords:        Filter{Enabled: true, Action: ActionBan, Duration: 86400},
		TelegramLinks:    Filter{Enabled: true, Action: ActionDelete},
		ExternalLinks:    Filter{Enabled: false, Action: ActionDelete},
		MediaFilter:      Filter{Enabled: false, Action: ActionDelete},
		WarningThreshold: 3,
		DefaultAction:    ActionWarn,
		MuteDuration:     1800,
		BanDuration:      0,
	}
}

// FilterIDs lists every filter in evaluation order.
func FilterIDs() []string {
	return []string{
		FilterTelegramLinks,
		FilterMediaFilter,
		FilterFlood,
		FilterRepeatedMessages,
		FilterRepeatedWords,
		FilterSpamWords,
		FilterExternalLinks,
	}
}

// Filter returns the block for the given filter id, nil for unknown ids.
func (a *Antispam) Filter(filterID string) *Filter {
	switch filterID {
	case FilterRepeatedWords:
		return &a.RepeatedWords
	case FilterRepeatedMessages:
		return &a.RepeatedMessages
	case FilterFlood:
		return &a.Flood
	case FilterSpamWords:
		return &a.SpamWords
	case FilterTelegramLinks:
		return &a.TelegramLinks
	case FilterExternalLinks:
		return &a.ExternalLinks
	case FilterMediaFilter:
		return &a.MediaFilter
	}
	return nil
}

// Resolve yields the effective action and duration for a filter, falling
// back to the chat-wide defaults when the block leaves them unset.
func (a *Antispam) Resolve(filterID string) (action string, duration time.Duration) {
	f := a.Filter(filterID)
	if f == nil {
		return a.DefaultAction, time.Duration(a.MuteDuration) * time.Second
	}
	action = f.Action
	if action == "" {
		action = a.DefaultAction
	}
	seconds := f.Duration
	if seconds == 0 {
		switch action {
		case ActionMute:
			seconds = a.MuteDuration
		case ActionBan:
			seconds = a.BanDuration
		}
	}
	return action, time.Duration(seconds) * time.Second
}

// Validate rejects malformed profiles at the write boundary.
func (a *Antispam) Validate() error {
	if !lo.Contains(knownActions, a.DefaultAction) {
		return fmt.Errorf("%w: unknown default action %q", errors.ErrInvalidInput, a.DefaultAction)
	}
	if a.WarningThreshold < 1 {
		return fmt.Errorf("%w: warning threshold must be at least 1", errors.ErrInvalidInput)
	}
	if a.MuteDuration < 0 || a.BanDuration < 0 {
		return fmt.Errorf("%w: negative duration", errors.ErrInvalidInput)
	}
	for _, id := range FilterIDs() {
		f := a.Filter(id)
		if f.Action != "" && !lo.Contains(knownActions, f.Action) {
			return fmt.Errorf("%w: filter %s: unknown action %q", errors.ErrInvalidInput, id, f.Action)
		}
		if f.Limit < 0 {
			return fmt.Errorf("%w: filter %s: negative limit", errors.ErrInvalidInput, id)
		}
		if f.Duration < 0 {
			return fmt.Errorf("%w: filter %s: negative duration", errors.ErrInvalidInput, id)
		}
	}
	if a.Flood.Enabled {
		if a.Flood.Limit < 1 {
			return fmt.Errorf("%w: flood limit must be at least 1", errors.ErrInvalidInput)
		}
		if a.Flood.Seconds < 5 || a.Flood.Seconds > 60 {
			return fmt.Errorf("%w: flood window must be between 5 and 60 seconds", errors.ErrInvalidInput)
		}
	}
	for _, id := range []string{FilterRepeatedWords, FilterRepeatedMessages} {
		if f := a.Filter(id); f.Enabled && f.Limit < 1 {
			return fmt.Errorf("%w: filter %s: limit must be at least 1", errors.ErrInvalidInput, id)
		}
	}
	return nil
}

// IsExemptUser reports a per-chat user exception.
func (a *Antispam) IsExemptUser(userID int64) bool {
	return lo.Contains(a.Exceptions.Users, userID)
}

// IsExemptDomain reports a per-chat domain exception, exact match.
func (a *Antispam) IsExemptDomain(domain string) bool {
	return lo.Contains(a.Exceptions.Domains, domain)
}
