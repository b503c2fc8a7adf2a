package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"
)

const maxAttempts = 3

// Requester is the subset of the bot API the operations layer needs.
type Requester interface {
	Request(c api.Chattable) (*api.APIResponse, error)
}

// Operations wraps the platform moderation calls. Every call goes through
// a retry loop that honors the server-specified rate limit wait.
type Operations struct {
	bot Requester
}

func NewOperations(bot Requester) *Operations {
	return &Operations{bot: bot}
}

// request retries rate-limited calls up to maxAttempts, sleeping for the
// wait the server asked for. Any other error is returned as-is.
func (o *Operations) request(ctx context.Context, c api.Chattable) (*api.APIResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := o.bot.Request(c)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var apiErr *api.Error
		if !errors.As(err, &apiErr) || apiErr.RetryAfter <= 0 {
			return resp, err
		}
		wait := time.Duration(apiErr.RetryAfter) * time.Second
		log.WithField("retry_after", apiErr.RetryAfter).WithField("attempt", attempt).Debug("rate limited")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("rate limited after %d attempts: %w", maxAttempts, lastErr)
}

func (o *Operations) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	_, err := o.request(ctx, api.NewDeleteMessage(chatID, messageID))
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// MuteUser removes the send permissions until the given time.
func (o *Operations) MuteUser(ctx context.Context, chatID, userID int64, until time.Time) error {
	config := api.RestrictChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{
				ChatID: chatID,
			},
			UserID: userID,
		},
		UntilDate: until.Unix(),
		Permissions: &api.ChatPermissions{
			CanSendMessages:       false,
			CanSendOtherMessages:  false,
			CanAddWebPagePreviews: false,
		},
	}
	_, err := o.request(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to restrict user: %w", err)
	}
	return nil
}

// UnmuteUser restores the default send permissions.
func (o *Operations) UnmuteUser(ctx context.Context, chatID, userID int64) error {
	config := api.RestrictChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{
				ChatID: chatID,
			},
			UserID: userID,
		},
		Permissions: &api.ChatPermissions{
			CanSendMessages:       true,
			CanSendOtherMessages:  true,
			CanAddWebPagePreviews: true,
		},
	}
	_, err := o.request(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to unrestrict user: %w", err)
	}
	return nil
}

// BanUser bans until the given time, zero time means permanent.
func (o *Operations) BanUser(ctx context.Context, chatID, userID int64, until time.Time) error {
	config := api.BanChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{
				ChatID: chatID,
			},
			UserID: userID,
		},
		RevokeMessages: true,
	}
	if !until.IsZero() {
		config.UntilDate = until.Unix()
	}
	_, err := o.request(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to ban user: %w", err)
	}
	return nil
}

func (o *Operations) UnbanUser(ctx context.Context, chatID, userID int64) error {
	config := api.UnbanChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{
				ChatID: chatID,
			},
			UserID: userID,
		},
		OnlyIfBanned: true,
	}
	_, err := o.request(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to unban user: %w", err)
	}
	return nil
}

func (o *Operations) SendMessage(ctx context.Context, msg api.MessageConfig) error {
	_, err := o.request(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (o *Operations) AnswerCallback(ctx context.Context, callbackID, text string) error {
	_, err := o.request(ctx, api.NewCallback(callbackID, text))
	if err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}
