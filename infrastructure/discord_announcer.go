package infrastructure

import (
	"context"
	"fmt"
	"time"

	"megayield/events"
	"megayield/models"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Discord color constants
const (
	ColorPrimary = 0x5865F2 // Discord blurple
	ColorSuccess = 0x57F287 // Green
	ColorGold    = 0xF1C40F
)

// EmbedSender posts embeds to a channel. *discordgo.Session satisfies it.
type EmbedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordAnnouncer posts winners and vesting claims to a Discord channel
type DiscordAnnouncer struct {
	sender    EmbedSender
	channelID string
	queue     chan events.Event
}

// NewDiscordAnnouncer creates an announcer posting to channelID
func NewDiscordAnnouncer(sender EmbedSender, channelID string) *DiscordAnnouncer {
	return &DiscordAnnouncer{
		sender:    sender,
		channelID: channelID,
		queue:     make(chan events.Event, 64),
	}
}

// Register queues announceable events emitted on bus. Posting happens on the Start goroutine.
func (a *DiscordAnnouncer) Register(bus *events.Bus) {
	enqueue := func(ctx context.Context, event events.Event) {
		select {
		case a.queue <- event:
		default:
			log.WithField("eventType", event.Type()).Warn("Discord announcement queue full, dropping event")
		}
	}
	bus.Subscribe(events.EventTypeWinnerDrawn, enqueue)
	bus.Subscribe(events.EventTypeVestingInitialized, enqueue)
	bus.Subscribe(events.EventTypeVestingClaimed, enqueue)
}

// Start drains the announcement queue until ctx is cancelled or the returned stop func is called
func (a *DiscordAnnouncer) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})

	go func() {
		log.WithField("channelID", a.channelID).Info("Discord announcer started")
		for {
			select {
			case <-ctx.Done():
				log.Info("Discord announcer shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Discord announcer shutting down (stop requested)...")
				return
			case event := <-a.queue:
				if err := a.Announce(event); err != nil {
					log.WithFields(log.Fields{
						"eventType": event.Type(),
						"error":     err,
					}).Error("Failed to post Discord announcement")
				}
			}
		}
	}()

	return func() {
		close(stopChan)
	}
}

// Announce posts the embed for a single event. Events without an embed are ignored.
func (a *DiscordAnnouncer) Announce(event events.Event) error {
	embed := buildAnnouncementEmbed(event)
	if embed == nil {
		return nil
	}

	if _, err := a.sender.ChannelMessageSendEmbed(a.channelID, embed); err != nil {
		return fmt.Errorf("failed to send %s announcement: %w", event.Type(), err)
	}
	return nil
}

func buildAnnouncementEmbed(event events.Event) *discordgo.MessageEmbed {
	timestamp := time.Now().UTC().Format(time.RFC3339)

	switch e := event.(type) {
	case events.WinnerDrawnEvent:
		split := models.SplitJackpot(e.JackpotAmount)
		return &discordgo.MessageEmbed{
			Title:       "🎉 Daily Jackpot Drawn 🎉",
			Description: fmt.Sprintf("Day **%d** has a winner: `%s`", e.DayIndex, e.Winner.Hex()),
			Color:       ColorGold,
			Fields: []*discordgo.MessageEmbedField{
				{
					Name:   "💰 Jackpot",
					Value:  models.FormatAmount(e.JackpotAmount),
					Inline: true,
				},
				{
					Name:   "⚡ Paid Now",
					Value:  models.FormatAmount(split.FirstPayment),
					Inline: true,
				},
			},
			Footer: &discordgo.MessageEmbedFooter{
				Text: fmt.Sprintf("The rest vests over %d monthly installments", models.VestingInstallments),
			},
			Timestamp: timestamp,
		}
	case events.VestingInitializedEvent:
		return &discordgo.MessageEmbed{
			Title:       "🔒 Vesting Started",
			Description: fmt.Sprintf("Position **#%d** for `%s`", e.PositionID, e.Winner.Hex()),
			Color:       ColorPrimary,
			Fields: []*discordgo.MessageEmbedField{
				{
					Name:   "Locked",
					Value:  models.FormatAmount(e.TotalAmount),
					Inline: true,
				},
				{
					Name:   "Monthly",
					Value:  models.FormatAmount(e.MonthlyAmount),
					Inline: true,
				},
			},
			Timestamp: timestamp,
		}
	case events.VestingClaimedEvent:
		return &discordgo.MessageEmbed{
			Title: "✅ Installment Claimed",
			Description: fmt.Sprintf("`%s` claimed installment **%d/%d** of position #%d",
				e.Winner.Hex(), e.InstallmentIndex, models.VestingInstallments, e.PositionID),
			Color: ColorSuccess,
			Fields: []*discordgo.MessageEmbedField{
				{
					Name:   "Amount",
					Value:  models.FormatAmount(e.Amount),
					Inline: true,
				},
			},
			Timestamp: timestamp,
		}
	default:
		return nil
	}
}
