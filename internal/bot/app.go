package bot

import (
	"context"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"log/slog"
)

var _ SlackApp = &App{}

// App receives slash commands from Slack over a socket mode connection.
type App struct {
	handler *socketmode.SocketmodeHandler
	logger  *slog.Logger
}

// NewApp connects to Slack. Socket mode requires both a bot token and an app-level token.
func NewApp(botToken, appToken string, logger *slog.Logger) *App {
	client := socketmode.New(slack.New(botToken, slack.OptionAppLevelToken(appToken)))
	return &App{
		handler: socketmode.NewSocketmodeHandler(client),
		logger:  logger,
	}
}

func (a *App) AddSlashCommand(command string, f func(slack.SlashCommand, *socketmode.Client)) {
	a.handler.HandleSlashCommand(command, func(evt *socketmode.Event, client *socketmode.Client) {
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok {
			a.logger.Warn("unexpected slash command payload", "type", evt.Type)
			return
		}
		if evt.Request != nil {
			client.Ack(*evt.Request)
		}
		f(cmd, client)
	})
}

func (a *App) Run(ctx context.Context) error {
	return a.handler.RunEventLoopContext(ctx)
}
