package notifier

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/gdg-garage/event-platform-api/internal/models"
)

type Notifier interface {
	NotifyRegistration(user models.User, activity models.Activity, action models.RegistrationAction) error
}

type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
}

func NewDiscordNotifier(session *discordgo.Session, channelID string) *DiscordNotifier {
	return &DiscordNotifier{
		session:   session,
		channelID: channelID,
	}
}

// NewDiscordBotNotifier opens a bot session for the given token. Messages
// are sent over the REST API, so no gateway connection is opened.
func NewDiscordBotNotifier(token, channelID string) (*DiscordNotifier, error) {
	if token == "" {
		return nil, fmt.Errorf("discord bot token is empty")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return NewDiscordNotifier(session, channelID), nil
}

func (n *DiscordNotifier) NotifyRegistration(user models.User, activity models.Activity, action models.RegistrationAction) error {
	if n.session == nil {
		return fmt.Errorf("discord session is nil")
	}
	if n.channelID == "" {
		return fmt.Errorf("discord channel ID is empty")
	}

	_, err := n.session.ChannelMessageSend(n.channelID, FormatRegistration(user, activity, action))
	if err != nil {
		return fmt.Errorf("send discord message: %w", err)
	}
	return nil
}

func FormatRegistration(user models.User, activity models.Activity, action models.RegistrationAction) string {
	status := "registered 🎉"
	if action == models.ActionUnregistered {
		status = "withdrew 👋"
	}

	vacancies := "unlimited"
	if activity.Vacancies > 0 {
		vacancies = fmt.Sprintf("%d", activity.Vacancies)
	}

	return fmt.Sprintf("**Registration Update**\n**User:** %s (%s)\n**Status:** %s\n**Activity:** %s\n**Vacancies:** %s",
		user.Name,
		user.Email,
		status,
		activity.Title,
		vacancies,
	)
}
