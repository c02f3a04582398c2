// Package bot lets users query and control the greenhouse through Slack slash commands.
package bot

import (
	"context"
	"errors"
	"fmt"
	"github.com/clambin/greenhouse-controller/internal/automation"
	"github.com/clambin/greenhouse-controller/internal/rules"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"log/slog"
	"regexp"
	"strings"
)

type Controller interface {
	Domains() []string
	Sessions() []automation.Session
	AutoMode() bool
	SetAutoMode(bool)
	Rules(domain string) (*rules.Store, error)
}

type SlackApp interface {
	AddSlashCommand(string, func(slack.SlashCommand, *socketmode.Client))
	Run(ctx context.Context) error
}

// SlackSender posts the response to a slash command.
type SlackSender interface {
	PostEphemeral(channelID, userID string, options ...slack.MsgOption) (string, error)
}

type Bot struct {
	SlackApp
	controller Controller
	logger     *slog.Logger
}

func New(app SlackApp, c Controller, logger *slog.Logger) *Bot {
	b := Bot{
		SlackApp:   app,
		controller: c,
		logger:     logger,
	}

	b.SlackApp.AddSlashCommand("/sessions", b.doAndPost(b.listSessions))
	b.SlackApp.AddSlashCommand("/rules", b.doAndPost(b.listRules))
	b.SlackApp.AddSlashCommand("/automode", b.doAndPost(b.autoMode))
	b.SlackApp.AddSlashCommand("/rule", b.doAndPost(b.setRule))

	return &b
}

func (b *Bot) Run(ctx context.Context) error {
	b.logger.Debug("bot started")
	defer b.logger.Debug("bot stopped")
	if err := b.SlackApp.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bot: %w", err)
	}
	return nil
}

func (b *Bot) doAndPost(f func(...string) (Attachment, error)) func(slack.SlashCommand, *socketmode.Client) {
	return func(command slack.SlashCommand, client *socketmode.Client) {
		b.post(command, client, f)
	}
}

func (b *Bot) post(command slack.SlashCommand, sender SlackSender, f func(...string) (Attachment, error)) {
	b.logger.Debug("slash command received", "command", command.Command, "text", command.Text, "user", command.UserName)
	attachment, err := f(tokenizeText(command.Text)...)
	if err != nil {
		attachment = Attachment{Color: "bad", Header: "Failed", Body: []string{err.Error()}}
	}
	if _, err = sender.PostEphemeral(command.ChannelID, command.UserID, attachment.Format()); err != nil {
		b.logger.Error("failed to post response", "err", err)
	}
}

// tokenizeText splits a command's text into words. Quoted text is kept as a single word.
func tokenizeText(input string) []string {
	cleanInput := input
	for _, quote := range []string{"“", "”", "'"} {
		cleanInput = strings.ReplaceAll(cleanInput, quote, "\"")
	}
	words := tokenizer.FindAllString(cleanInput, -1)
	for i, word := range words {
		words[i] = strings.Trim(word, "\"")
	}
	return words
}

var tokenizer = regexp.MustCompile(`[^\s"]+|"([^"]*)"`)
