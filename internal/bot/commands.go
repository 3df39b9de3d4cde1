package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/flor3z/redeem-bot/internal/redeem"
	"github.com/flor3z/redeem-bot/internal/storage"
)

// decisionPrefix marks review-button custom IDs: "decide:approve:<id>" or
// "decide:reject:<id>".
const decisionPrefix = "decide:"

// Slash command definitions
func (b *Bot) getCommandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "redeem",
			Description: "Submit a redeem key and the invite link for your server",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "Your display name",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "key",
					Description: "Your one-time redeem key",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "invite",
					Description: "Server invite link (https://discord.gg/...)",
					Required:    true,
				},
			},
		},
		{
			Name:        "pending",
			Description: "List redeem requests awaiting review",
		},
	}
}

// registerCommands registers all slash commands with Discord
func (b *Bot) registerCommands() error {
	slog.Info("Registering slash commands")

	commandDefinitions := b.getCommandDefinitions()
	registeredCommands := make([]*discordgo.ApplicationCommand, 0, len(commandDefinitions))

	for _, cmd := range commandDefinitions {
		registered, err := b.session.ApplicationCommandCreate(
			b.session.State.User.ID,
			"", // Empty string = global command
			cmd,
		)
		if err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
		registeredCommands = append(registeredCommands, registered)
		slog.Debug("Registered command", "name", cmd.Name)
	}

	b.commands = registeredCommands
	slog.Info("Slash commands registered", "count", len(registeredCommands))
	return nil
}

// removeCommands removes all registered slash commands
func (b *Bot) removeCommands() {
	for _, cmd := range b.commands {
		err := b.session.ApplicationCommandDelete(b.session.State.User.ID, "", cmd.ID)
		if err != nil {
			slog.Error("Failed to remove command", "name", cmd.Name, "error", err)
		}
	}
}

// handleRedeem handles the /redeem command
func (b *Bot) handleRedeem(s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := i.ApplicationCommandData().Options
	draft := redeem.Draft{
		Name:        options[0].StringValue(),
		RedeemKey:   options[1].StringValue(),
		InviteLink:  options[2].StringValue(),
		SubmitterID: interactionUserID(i),
	}

	// Respond immediately to avoid timeout
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := b.service.Submit(ctx, draft)
	if err != nil {
		b.editResponse(s, i, submitFailureMessage(err))
		return
	}

	b.editResponse(s, i, fmt.Sprintf(
		"Your redeem request `#%d` is in! You'll hear back once a reviewer has looked at it.", req.ID))
}

// submitFailureMessage maps a submission failure to a user-facing reply.
func submitFailureMessage(err error) string {
	var verr *redeem.ValidationError
	switch {
	case errors.As(err, &verr):
		return "Your submission has problems:\n- " + strings.Join(verr.Violations, "\n- ")
	case errors.Is(err, redeem.ErrDuplicateKey):
		return "That redeem key has already been used."
	case errors.Is(err, redeem.ErrRateLimited):
		return "You're submitting too fast. Please wait a bit and try again."
	default:
		slog.Error("Failed to submit redeem request", "error", err)
		return "Something went wrong saving your request. Please try again."
	}
}

// handlePending handles the /pending command
func (b *Bot) handlePending(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pending, err := b.service.ListPending(ctx)
	if err != nil {
		slog.Error("Failed to list pending requests", "error", err)
		respondWithMessage(s, i, "Failed to retrieve pending requests.")
		return
	}

	if len(pending) == 0 {
		respondWithMessage(s, i, "No redeem requests are waiting for review.")
		return
	}

	var sb strings.Builder
	sb.WriteString("**Pending redeem requests:**\n\n")
	for _, req := range pending {
		sb.WriteString(fmt.Sprintf("`#%d` **%s** — %s (submitted <t:%d:R>)\n",
			req.ID, req.Name, req.InviteLink, req.SubmittedAt.Unix()))
	}

	respondWithMessage(s, i, sb.String())
}

// handleDecision handles Approve/Reject button clicks on review messages
func (b *Bot) handleDecision(s *discordgo.Session, i *discordgo.InteractionCreate, customID string) {
	decision, id, err := parseDecisionID(customID)
	if err != nil {
		slog.Warn("Malformed decision component", "customID", customID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = b.service.Decide(ctx, id, decision)
	switch {
	case errors.Is(err, redeem.ErrAlreadyDecided):
		respondEphemeral(s, i, fmt.Sprintf("Request `#%d` was already decided.", id))
		return
	case errors.Is(err, redeem.ErrNotFound):
		respondEphemeral(s, i, fmt.Sprintf("Request `#%d` no longer exists.", id))
		return
	case err != nil:
		slog.Error("Failed to apply decision", "id", id, "error", err)
		respondEphemeral(s, i, "Failed to apply the decision. Please try again.")
		return
	}

	// The notifier already rewrote the review message; just acknowledge.
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
}

// parseDecisionID splits "decide:approve:<id>" into its parts.
func parseDecisionID(customID string) (storage.Status, int64, error) {
	parts := strings.Split(customID, ":")
	if len(parts) != 3 {
		return "", 0, fmt.Errorf("malformed custom ID: %s", customID)
	}

	var decision storage.Status
	switch parts[1] {
	case "approve":
		decision = storage.StatusApproved
	case "reject":
		decision = storage.StatusRejected
	default:
		return "", 0, fmt.Errorf("unknown decision: %s", parts[1])
	}

	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("bad request id in %s: %w", customID, err)
	}
	return decision, id, nil
}

// Helper functions

// interactionUserID works in both guild channels and DMs.
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func respondWithMessage(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	})
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func (b *Bot) editResponse(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	})
}
