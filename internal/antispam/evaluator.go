package antispam

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"

	"github.com/groupwarden/groupwarden/internal/db"
	"github.com/groupwarden/groupwarden/internal/settings"
)

// Violation names the first rule a message tripped.
type Violation struct {
	Filter string
	Reason string
}

var (
	telegramLinkRe = regexp.MustCompile(`(?i)\b(?:https?://)?(?:t(?:elegram)?\.(?:me|dog))/[\w+/-]+|tg://resolve\?domain=\w+`)
	mentionRe      = regexp.MustCompile(`(?:^|\s)@[A-Za-z0-9_]{4,32}\b`)
	externalLinkRe = regexp.MustCompile(`(?i)\bhttps?://[^\s<>"]+`)
	wordSplitRe    = regexp.MustCompile(`\s+`)
)

var telegramHosts = []string{"t.me", "telegram.me", "telegram.dog"}

// Evaluator runs the fixed-order rule chain against incoming messages.
// First match wins, transient store failures degrade the failing rule to
// "no violation" rather than aborting the chain.
type Evaluator struct {
	tracker *Tracker
	dnsbl   *DNSBL
}

func NewEvaluator(tracker *Tracker, dnsbl *DNSBL) *Evaluator {
	return &Evaluator{tracker: tracker, dnsbl: dnsbl}
}

// NormalizeText is the canonical text form used for hashing and matching.
func NormalizeText(text string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(text)))
}

// MessageHash is the md5 hex digest of the normalized text.
func MessageHash(text string) string {
	sum := md5.Sum([]byte(NormalizeText(text)))
	return hex.EncodeToString(sum[:])
}

func messageText(msg *api.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}

func hasMedia(msg *api.Message) bool {
	return len(msg.Photo) > 0 ||
		msg.Video != nil ||
		msg.Audio != nil ||
		msg.Document != nil ||
		msg.Sticker != nil ||
		msg.Animation != nil
}

// Evaluate classifies a message. A nil result means clean.
func (e *Evaluator) Evaluate(ctx context.Context, msg *api.Message, profile *settings.Antispam, senderRole int) *Violation {
	if !profile.Enabled {
		return nil
	}
	if msg.SenderChat != nil {
		return nil
	}
	if msg.From == nil {
		return nil
	}
	if senderRole >= db.RoleChatOwner {
		return nil
	}
	if profile.IsExemptUser(msg.From.ID) {
		return nil
	}

	chatID := msg.Chat.ID
	userID := msg.From.ID
	text := messageText(msg)

	if v := e.checkTelegramLinks(text, profile); v != nil {
		return v
	}
	if profile.MediaFilter.Enabled && hasMedia(msg) {
		return &Violation{Filter: settings.FilterMediaFilter, Reason: "disallowed media attachment"}
	}
	if v := e.checkFlood(ctx, chatID, userID, profile); v != nil {
		return v
	}
	if v := e.checkRepeatedMessages(ctx, chatID, userID, text, profile); v != nil {
		return v
	}
	if v := checkRepeatedWords(text, profile); v != nil {
		return v
	}
	if v := checkSpamWords(text, profile); v != nil {
		return v
	}
	if v := e.checkExternalLinks(ctx, text, profile); v != nil {
		return v
	}
	return nil
}

func (e *Evaluator) checkTelegramLinks(text string, profile *settings.Antispam) *Violation {
	if !profile.TelegramLinks.Enabled || text == "" {
		return nil
	}
	if match := telegramLinkRe.FindString(text); match != "" {
		if host := linkHost(match); host != "" && profile.IsExemptDomain(host) {
			return nil
		}
		return &Violation{Filter: settings.FilterTelegramLinks, Reason: "telegram link"}
	}
	if mentionRe.MatchString(text) {
		return &Violation{Filter: settings.FilterTelegramLinks, Reason: "unsolicited mention"}
	}
	return nil
}

func (e *Evaluator) checkFlood(ctx context.Context, chatID, userID int64, profile *settings.Antispam) *Violation {
	f := profile.Flood
	if !f.Enabled {
		return nil
	}
	hit, err := e.tracker.RecordAndCheckFlood(ctx, chatID, userID, f.Limit, f.Seconds)
	if err != nil {
		log.WithError(err).WithField("chat_id", chatID).Warn("flood check degraded")
		return nil
	}
	if !hit {
		return nil
	}
	return &Violation{
		Filter: settings.FilterFlood,
		Reason: fmt.Sprintf("%d messages within %d seconds", f.Limit, f.Seconds),
	}
}

func (e *Evaluator) checkRepeatedMessages(ctx context.Context, chatID, userID int64, text string, profile *settings.Antispam) *Violation {
	f := profile.RepeatedMessages
	if !f.Enabled || text == "" {
		return nil
	}
	windowTTL := time.Duration(f.Duration) * time.Second
	if windowTTL <= 0 {
		windowTTL = 30 * time.Minute
	}
	hit, err := e.tracker.RecordAndCheckRepeatedMessage(ctx, chatID, userID, MessageHash(text), f.Limit, windowTTL)
	if err != nil {
		log.WithError(err).WithField("chat_id", chatID).Warn("repeated message check degraded")
		return nil
	}
	if !hit {
		return nil
	}
	return &Violation{
		Filter: settings.FilterRepeatedMessages,
		Reason: fmt.Sprintf("same message %d times in a row", f.Limit),
	}
}

func checkRepeatedWords(text string, profile *settings.Antispam) *Violation {
	f := profile.RepeatedWords
	if !f.Enabled || text == "" || f.Limit < 1 {
		return nil
	}
	fold := func(s string) string {
		if profile.CaseSensitive {
			return s
		}
		return strings.ToLower(s)
	}
	ignored := lo.Map(profile.IgnoredWords, func(w string, _ int) string { return fold(w) })

	run, prev := 0, ""
	for _, token := range wordSplitRe.Split(strings.TrimSpace(text), -1) {
		word := fold(token)
		if word == "" || lo.Contains(ignored, word) {
			continue
		}
		if word == prev {
			run++
		} else {
			run, prev = 1, word
		}
		if run >= f.Limit {
			return &Violation{
				Filter: settings.FilterRepeatedWords,
				Reason: fmt.Sprintf("word %q repeated %d times", word, run),
			}
		}
	}
	return nil
}

func checkSpamWords(text string, profile *settings.Antispam) *Violation {
	f := profile.SpamWords
	if !f.Enabled || text == "" || len(f.Words) == 0 {
		return nil
	}
	haystack := text
	if !profile.CaseSensitive {
		haystack = strings.ToLower(text)
	}
	for _, word := range f.Words {
		needle := word
		if !profile.CaseSensitive {
			needle = strings.ToLower(word)
		}
		if needle != "" && strings.Contains(haystack, needle) {
			return &Violation{
				Filter: settings.FilterSpamWords,
				Reason: fmt.Sprintf("forbidden word %q", word),
			}
		}
	}
	return nil
}

func (e *Evaluator) checkExternalLinks(ctx context.Context, text string, profile *settings.Antispam) *Violation {
	if !profile.ExternalLinks.Enabled || text == "" {
		return nil
	}
	for _, raw := range externalLinkRe.FindAllString(text, -1) {
		host := linkHost(raw)
		if host == "" || lo.Contains(telegramHosts, host) || profile.IsExemptDomain(host) {
			continue
		}
		if e.dnsbl.IsListed(ctx, host) {
			return &Violation{
				Filter: settings.FilterExternalLinks,
				Reason: fmt.Sprintf("blocklisted domain %s", host),
			}
		}
	}
	return nil
}

func linkHost(raw string) string {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(strings.TrimRight(raw, ".,)"))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
