package cmd

import (
	"context"
	"strings"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Laisky/sparkboard/internal/mcp"
	"github.com/Laisky/sparkboard/internal/notify"
	"github.com/Laisky/sparkboard/internal/web"
	"github.com/Laisky/sparkboard/library/log"
)

var apiCMD = &cobra.Command{
	Use:     "api",
	Short:   "api",
	Long:    `serve the board over HTTP, server-sent events and MCP`,
	Args:    gcmd.NoExtraArgs,
	PreRunE: preRunInitialize,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAPI(cmd.Context())
	},
}

func init() {
	rootCMD.AddCommand(apiCMD)
}

func runAPI(ctx context.Context) error {
	if !gconfig.S.GetBool("debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := newBoardApp(ctx)
	if err != nil {
		return errors.Wrap(err, "new board")
	}
	defer app.Close()

	mcpTools := mcp.LoadToolsSettingsFromConfig()
	mcpServer, err := mcp.NewServer(mcp.Dependencies{
		Posts:     app.store,
		Submitter: app.pipeline,
		Summary:   app.summary,
		Tools:     &mcpTools,
	}, log.Logger.Named("mcp"))
	if err != nil {
		return errors.Wrap(err, "new mcp server")
	}

	router, err := web.NewRouter(web.Dependencies{
		Posts:        app.store,
		Submitter:    app.pipeline,
		Summary:      app.summary,
		MCP:          mcpServer.Handler(),
		AllowedHosts: allowedHostsFromConfig(),
		FrontendDir:  gconfig.S.GetString("settings.web.frontend_dir"),
		Logger:       log.Logger.Named("web"),
	})
	if err != nil {
		return errors.Wrap(err, "new router")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var pool errgroup.Group
	pool.Go(func() error {
		defer cancel()
		return errors.Wrap(app.store.Run(ctx), "store relay")
	})

	notifier, err := newTelegramNotifier()
	if err != nil {
		return errors.Wrap(err, "new telegram notifier")
	}
	if notifier != nil {
		pool.Go(func() error {
			if err := notifier.Watch(ctx, app.store); err != nil {
				log.Logger.Error("telegram notifier stopped", zap.Error(err))
			}
			return nil
		})
	}

	pool.Go(func() error {
		defer cancel()
		return web.RunServer(ctx, gconfig.S.GetString("listen"), router)
	})

	return pool.Wait()
}

// allowedHostsFromConfig reads settings.web.allowed_hosts, localhost is always allowed.
func allowedHostsFromConfig() []string {
	hosts := []string{"localhost", "127.0.0.1"}
	for _, h := range gconfig.S.GetStringSlice("settings.web.allowed_hosts") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}

	return hosts
}

// newTelegramNotifier returns nil unless settings.telegram.enabled.
func newTelegramNotifier() (*notify.Telegram, error) {
	if !gconfig.S.GetBool("settings.telegram.enabled") {
		return nil, nil
	}

	bot, err := notify.NewTelegramBot(
		gconfig.S.GetString("settings.telegram.token"),
		gconfig.S.GetString("settings.telegram.api"),
	)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	chatID, err := parseStrictInt64(gconfig.S.Get("settings.telegram.chat_id"))
	if err != nil {
		return nil, errors.Wrap(err, "parse settings.telegram.chat_id")
	}

	return notify.NewTelegram(bot, chatID, log.Logger.Named("telegram"))
}
