package notifier

import (
	"context"
	"fmt"
	"html"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"github.com/webdc/firstblood/internal/models"
	"github.com/webdc/firstblood/pkg/logx"
)

const bloodEmoji = "\U0001FA78" // 🩸

// TelegramDispatcher posts one message per first blood to a fixed channel:
// a thumbnail photo with an HTML caption, then a blood-drop reaction on the
// posted message.
type TelegramDispatcher struct {
	bot          *tele.Bot
	chat         tele.ChatID
	thumbnailURL string
	limiter      *rate.Limiter
	log          logx.Logger
}

// NewTelegramDispatcher connects to the Telegram API and fails fast on a
// bad token. Sends are throttled to stay under Telegram's per-chat limit.
func NewTelegramDispatcher(token string, channelID int64, thumbnailURL string, log logx.Logger) (*TelegramDispatcher, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:   token,
		Offline: false,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &TelegramDispatcher{
		bot:          bot,
		chat:         tele.ChatID(channelID),
		thumbnailURL: thumbnailURL,
		limiter:      rate.NewLimiter(rate.Every(time.Second), 1),
		log:          log,
	}, nil
}

// Dispatch posts the notification for one record. The reaction is best
// effort: the notification counts as delivered once the message is posted.
func (d *TelegramDispatcher) Dispatch(ctx context.Context, rec models.FirstBlood) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	caption := formatCaption(rec)
	var (
		msg *tele.Message
		err error
	)
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML}
	if d.thumbnailURL != "" {
		msg, err = d.bot.Send(d.chat, &tele.Photo{
			File:    tele.FromURL(d.thumbnailURL),
			Caption: caption,
		}, opts)
	} else {
		msg, err = d.bot.Send(d.chat, caption, opts)
	}
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}

	reaction := tele.Reactions{Reactions: []tele.Reaction{{Type: "emoji", Emoji: bloodEmoji}}}
	if err := d.bot.React(d.chat, msg, reaction); err != nil {
		d.log.Warn("reaction failed", logx.Err(err), logx.Int64("message_id", int64(msg.ID)))
	}
	return nil
}

// Announce posts a plain line to the channel, used for the startup note.
func (d *TelegramDispatcher) Announce(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := d.bot.Send(d.chat, text)
	return err
}

func formatCaption(rec models.FirstBlood) string {
	name := rec.ChallengeName
	if name == "" {
		name = fmt.Sprintf("#%d", rec.ChallengeID)
	}
	caption := fmt.Sprintf(
		"%s <b>CHALLENGE SOLVED (FIRST BLOOD)</b>\n<b>Challenge: %s</b>\n- Solved by: <b>@%s</b>\n- Time solved: <b>%s</b>",
		bloodEmoji,
		html.EscapeString(name),
		html.EscapeString(rec.Username),
		rec.Date.UTC().Format("15:04:05"),
	)
	if rec.ChallengeCategory != "" {
		caption += "\n- Category: " + html.EscapeString(rec.ChallengeCategory)
	}
	if rec.ChallengeDifficulty != "" {
		caption += "\n- Difficulty: " + html.EscapeString(rec.ChallengeDifficulty)
	}
	return caption + "\n\nGood job!"
}
