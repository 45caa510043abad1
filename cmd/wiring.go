package cmd

import (
	"context"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	"github.com/Laisky/sparkboard/internal/board"
	"github.com/Laisky/sparkboard/internal/board/archive"
	"github.com/Laisky/sparkboard/internal/board/assistant"
	"github.com/Laisky/sparkboard/internal/board/storage"
	"github.com/Laisky/sparkboard/internal/library/llm"
	fsdb "github.com/Laisky/sparkboard/library/db/firestore"
	mdb "github.com/Laisky/sparkboard/library/db/mongo"
	pgdb "github.com/Laisky/sparkboard/library/db/postgres"
	rlib "github.com/Laisky/sparkboard/library/db/redis"
	"github.com/Laisky/sparkboard/library/log"
)

// storage backend names accepted by settings.storage.backend
const (
	backendMemory    = "memory"
	backendSQLite    = "sqlite"
	backendPostgres  = "postgres"
	backendRedis     = "redis"
	backendFirestore = "firestore"
	backendMongo     = "mongo"

	defaultSQLiteDSN = "file:sparkboard.db?_busy_timeout=5000"
)

// boardApp holds the board services shared by every command.
type boardApp struct {
	settings board.Settings
	store    *board.Store
	pipeline *board.Pipeline
	summary  *board.SummaryService
	logger   logSDK.Logger

	closers []func() error
}

// newBoardApp builds the board from gconfig.
func newBoardApp(ctx context.Context) (_ *boardApp, err error) {
	app := &boardApp{
		settings: board.LoadSettingsFromConfig(),
		logger:   log.Logger.Named("board"),
	}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	backend, relay, err := app.openStorage(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "open storage")
	}

	storeOpts := []board.StoreOption{
		board.WithPostsKey(app.settings.PostsKey),
		board.WithStoreLogger(app.logger.Named("store")),
	}
	if relay != nil {
		storeOpts = append(storeOpts, board.WithRelay(relay))
	}
	if app.store, err = board.NewStore(backend, storeOpts...); err != nil {
		return nil, errors.Wrap(err, "new store")
	}

	var (
		moderator  board.Moderator
		summarizer board.Summarizer
	)
	client, err := newAssistantClient(app.logger.Named("assistant"))
	if err != nil {
		return nil, errors.Wrap(err, "new assistant")
	}
	if client != nil {
		moderator, summarizer = client, client
	} else {
		app.logger.Warn("settings.llm.api_key is empty, moderation and summaries are disabled")
	}

	pipelineOpts := []board.PipelineOption{
		board.WithSettings(app.settings),
		board.WithPipelineLogger(app.logger.Named("pipeline")),
	}
	archiver, err := newImageArchiver(app.logger.Named("archive"))
	if err != nil {
		return nil, errors.Wrap(err, "new image archiver")
	}
	if archiver != nil {
		pipelineOpts = append(pipelineOpts, board.WithImageArchiver(archiver))
	}

	if app.pipeline, err = board.NewPipeline(app.store, moderator, pipelineOpts...); err != nil {
		return nil, errors.Wrap(err, "new pipeline")
	}
	app.summary = board.NewSummaryService(app.store, summarizer,
		app.settings.SummaryPosts, app.logger.Named("summary"))

	app.logger.Info("board ready",
		zap.String("backend", backend.Name()),
		zap.Bool("relay", relay != nil),
		zap.Bool("assistant", client != nil),
		zap.Bool("archive", archiver != nil),
	)
	return app, nil
}

// Close releases every connection opened by newBoardApp.
func (a *boardApp) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close resource", zap.Error(err))
		}
	}
	a.closers = nil
}

// openStorage connects the backend named by settings.storage.backend.
// The relay is only available on redis.
func (a *boardApp) openStorage(ctx context.Context) (storage.Backend, storage.Relay, error) {
	name := strings.ToLower(strings.TrimSpace(gconfig.S.GetString("settings.storage.backend")))
	if name == "" {
		name = backendSQLite
	}

	switch name {
	case backendMemory:
		return storage.NewMemory(), nil, nil
	case backendSQLite:
		dsn := gconfig.S.GetString("settings.storage.sqlite.dsn")
		if dsn == "" {
			dsn = defaultSQLiteDSN
		}
		s, err := storage.OpenSQLite(dsn, gconfig.S.GetString("settings.storage.sqlite.table"))
		if err != nil {
			return nil, nil, errors.Wrap(err, "open sqlite")
		}
		a.closers = append(a.closers, s.Close)
		return s, nil, nil
	case backendPostgres:
		pool, err := pgdb.NewPool(ctx, postgresDSNFromConfig())
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect postgres")
		}
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})
		pg, err := storage.NewPostgres(ctx, pool, gconfig.S.GetString("settings.storage.postgres.table"))
		if err != nil {
			return nil, nil, errors.Wrap(err, "new postgres backend")
		}
		return pg, nil, nil
	case backendRedis:
		db := rlib.NewDB(&redis.Options{
			Addr:        gconfig.S.GetString("settings.storage.redis.addr"),
			Password:    gconfig.S.GetString("settings.storage.redis.password"),
			DB:          gconfig.S.GetInt("settings.storage.redis.db"),
			DialTimeout: rlib.DialTimeout,
		})
		a.closers = append(a.closers, db.Close)
		if err := db.Ping(ctx); err != nil {
			return nil, nil, errors.WithStack(err)
		}
		return storage.NewRedis(db, gconfig.S.GetString("settings.storage.redis.prefix")),
			storage.NewRedisRelay(db, gconfig.S.GetString("settings.storage.redis.channel")),
			nil
	case backendFirestore:
		var opts []option.ClientOption
		if credFile := gconfig.S.GetString("settings.storage.firestore.credential_file"); credFile != "" {
			opts = append(opts, option.WithCredentialsFile(credFile))
		}
		db, err := fsdb.NewDB(ctx, gconfig.S.GetString("settings.storage.firestore.project_id"), opts...)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect firestore")
		}
		a.closers = append(a.closers, db.Close)
		return storage.NewFirestore(db, gconfig.S.GetString("settings.storage.firestore.collection")), nil, nil
	case backendMongo:
		db, err := mdb.NewDB(ctx, mdb.DialInfo{
			URI:    gconfig.S.GetString("settings.storage.mongo.uri"),
			DBName: gconfig.S.GetString("settings.storage.mongo.db"),
		})
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect mongo")
		}
		a.closers = append(a.closers, func() error {
			return db.Close(context.Background())
		})
		return storage.NewMongo(db, gconfig.S.GetString("settings.storage.mongo.collection")), nil, nil
	default:
		return nil, nil, errors.Errorf("unknown storage backend %q", name)
	}
}

// newAssistantClient returns nil when no API key is configured.
func newAssistantClient(logger logSDK.Logger) (*assistant.Client, error) {
	apiKey := strings.TrimSpace(gconfig.S.GetString("settings.llm.api_key"))
	if apiKey == "" {
		return nil, nil
	}

	provider := strings.ToLower(strings.TrimSpace(gconfig.S.GetString("settings.llm.provider")))
	timeout := time.Duration(gconfig.S.GetInt("settings.llm.timeout_ms")) * time.Millisecond
	gen, err := llm.NewGenerator(provider, gconfig.S.GetString("settings.llm.base_url"), timeout)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	model := gconfig.S.GetString("settings.llm.model")
	if strings.TrimSpace(model) == "" && provider == llm.ProviderGemini {
		model = llm.DefaultGeminiModel
	}

	client, err := assistant.New(gen, apiKey, model, logger)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return client, nil
}

// newImageArchiver returns nil unless settings.archive.minio.enabled.
func newImageArchiver(logger logSDK.Logger) (*archive.Minio, error) {
	if !gconfig.S.GetBool("settings.archive.minio.enabled") {
		return nil, nil
	}

	cfg := archive.Config{
		Endpoint:  gconfig.S.GetString("settings.archive.minio.endpoint"),
		AccessKey: gconfig.S.GetString("settings.archive.minio.access_key"),
		SecretKey: gconfig.S.GetString("settings.archive.minio.secret_key"),
		Bucket:    gconfig.S.GetString("settings.archive.minio.bucket"),
		Prefix:    gconfig.S.GetString("settings.archive.minio.prefix"),
		Secure:    gconfig.S.GetBool("settings.archive.minio.secure"),
	}
	cli, err := archive.NewMinioClient(cfg)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	archiver, err := archive.NewMinio(cli, cfg.Bucket, cfg.Prefix, logger)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return archiver, nil
}

// postgresDSNFromConfig prefers settings.storage.postgres.dsn and falls back
// to the discrete addr/db/user/password/port keys.
func postgresDSNFromConfig() string {
	if dsn := strings.TrimSpace(gconfig.S.GetString("settings.storage.postgres.dsn")); dsn != "" {
		return dsn
	}

	return pgdb.BuildDSN(pgdb.DialInfo{
		Addr:   gconfig.S.GetString("settings.storage.postgres.addr"),
		DBName: gconfig.S.GetString("settings.storage.postgres.db"),
		User:   gconfig.S.GetString("settings.storage.postgres.user"),
		Pwd:    gconfig.S.GetString("settings.storage.postgres.password"),
		Port:   gconfig.S.GetInt("settings.storage.postgres.port"),
	})
}
