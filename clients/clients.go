package clients

import (
	"botconsole/clients/archive"
	"botconsole/clients/dashboardapi"
	"botconsole/clients/discord"
	"botconsole/clients/logstream"
	"botconsole/clients/notifier"
	"botconsole/clients/telegram"
	"botconsole/config"

	"go.uber.org/zap"
)

type Clients struct {
	Logger *zap.Logger

	Dashboard *dashboardapi.DashboardApiClient
	LogStream logstream.Dialer
	Discord   *discord.DiscordClient
	Telegram  *telegram.TelegramClient
	Notifier  notifier.Notifier // Combined notifier for all channels
	Archive   *archive.Archive  // nil unless LOG_ARCHIVE_PATH is set
}

func NewClients(logger *zap.Logger, cfg *config.Config) *Clients {
	if logger == nil {
		logger = zap.NewNop()
	}

	discordClient := discord.NewDiscordClient(logger, cfg)
	telegramClient := telegram.NewTelegramClient(logger, cfg)

	// Create combined notifier for all channels
	multiNotifier := notifier.NewMultiNotifier(discordClient, telegramClient)

	c := &Clients{
		Logger:    logger,
		Dashboard: dashboardapi.NewDashboardApiClient(logger, cfg),
		LogStream: logstream.NewDialer(logger, cfg),
		Discord:   discordClient,
		Telegram:  telegramClient,
		Notifier:  multiNotifier,
	}

	// Only open the journal if configured; a broken path disables it.
	if cfg.Archive.Path != "" {
		a, err := archive.Open(logger, cfg.Archive.Path)
		if err != nil {
			logger.Error("log archive disabled", zap.Error(err))
		} else {
			c.Archive = a
		}
	}

	return c
}

// Close releases every client that holds resources.
func (c *Clients) Close() error {
	var lastErr error
	if c.Notifier != nil {
		if err := c.Notifier.Close(); err != nil {
			lastErr = err
		}
	}
	if c.Archive != nil {
		if err := c.Archive.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
