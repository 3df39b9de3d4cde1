package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/flor3z/redeem-bot/internal/storage"
)

// ReviewNotifier posts new redeem requests to the review channel with
// Approve/Reject buttons and rewrites the message once a decision lands.
// It tracks which requests it has already surfaced in a cache keyed by
// request id; entries are evicted when the request goes terminal.
type ReviewNotifier struct {
	session   *discordgo.Session
	channelID string

	mu       sync.Mutex
	messages map[int64]string // request id -> review message id
}

// NewReviewNotifier creates a notifier posting into the given channel.
func NewReviewNotifier(session *discordgo.Session, channelID string) *ReviewNotifier {
	return &ReviewNotifier{
		session:   session,
		channelID: channelID,
		messages:  make(map[int64]string),
	}
}

// OnCreated posts a review message for the request unless one was already
// sent. Safe to call repeatedly for the same request; the periodic sweeper
// relies on that.
func (n *ReviewNotifier) OnCreated(ctx context.Context, req *storage.RedeemRequest) {
	n.mu.Lock()
	if _, sent := n.messages[req.ID]; sent {
		n.mu.Unlock()
		return
	}
	n.mu.Unlock()

	msg, err := n.session.ChannelMessageSendComplex(n.channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{requestEmbed(req)},
		Components: decisionButtons(req.ID),
	})
	if err != nil {
		slog.Error("Failed to post review message", "id", req.ID, "error", err)
		return
	}

	n.mu.Lock()
	n.messages[req.ID] = msg.ID
	n.mu.Unlock()
	slog.Info("Posted review message", "id", req.ID, "messageID", msg.ID)
}

// OnStatusChanged rewrites the review message without decision buttons now
// that the request is terminal, then drops the cache entry.
func (n *ReviewNotifier) OnStatusChanged(ctx context.Context, req *storage.RedeemRequest) {
	if !req.Status.Terminal() {
		return
	}

	n.mu.Lock()
	msgID, sent := n.messages[req.ID]
	delete(n.messages, req.ID)
	n.mu.Unlock()

	if !sent {
		return
	}

	embeds := []*discordgo.MessageEmbed{requestEmbed(req)}
	components := []discordgo.MessageComponent{}
	_, err := n.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    n.channelID,
		ID:         msgID,
		Embeds:     &embeds,
		Components: &components,
	})
	if err != nil {
		slog.Error("Failed to update review message", "id", req.ID, "error", err)
	}
}

func requestEmbed(req *storage.RedeemRequest) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Redeem request #%d", req.ID),
		Color: statusColor(req.Status),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Name", Value: req.Name, Inline: true},
			{Name: "Status", Value: string(req.Status), Inline: true},
			{Name: "Invite", Value: req.InviteLink},
			{Name: "Redeem key", Value: fmt.Sprintf("`%s`", req.RedeemKey)},
		},
		Timestamp: req.SubmittedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if req.OrderID != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Order", Value: req.OrderID, Inline: true,
		})
	}
	if req.SubmitterAddress != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: "via web form, " + req.SubmitterAddress,
		}
	}
	return embed
}

func statusColor(status storage.Status) int {
	switch status {
	case storage.StatusApproved:
		return 0x2ecc71
	case storage.StatusRejected:
		return 0xe74c3c
	default:
		return 0xf1c40f
	}
}

func decisionButtons(id int64) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Approve",
					Style:    discordgo.SuccessButton,
					CustomID: fmt.Sprintf("%sapprove:%d", decisionPrefix, id),
				},
				discordgo.Button{
					Label:    "Reject",
					Style:    discordgo.DangerButton,
					CustomID: fmt.Sprintf("%sreject:%d", decisionPrefix, id),
				},
			},
		},
	}
}
