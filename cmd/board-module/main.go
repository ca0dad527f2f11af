// Точка входа Board Module — доска публикаций со слотами.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// создаёт клиент сервиса членства и публикатор событий, сервисный слой
// и API handlers, запускает topologymetrics и HTTP-сервер с JWT middleware
// и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/bigkaa/goartstore/board-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/board-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/board-module/internal/api/openapi"
	"github.com/bigkaa/goartstore/board-module/internal/config"
	"github.com/bigkaa/goartstore/board-module/internal/database"
	"github.com/bigkaa/goartstore/board-module/internal/events"
	"github.com/bigkaa/goartstore/board-module/internal/membership"
	"github.com/bigkaa/goartstore/board-module/internal/repository"
	"github.com/bigkaa/goartstore/board-module/internal/server"
	"github.com/bigkaa/goartstore/board-module/internal/service"
)

func main() {
	// 0. .env для локального запуска; в кластере файла нет
	_ = godotenv.Load()

	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Board Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("price_schedule", string(cfg.PriceSchedule)),
	)

	if os.Getenv("BM_DEPHEALTH_GROUP") == "" {
		logger.Warn("BM_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
	pgDB := database.OpenSQLDB(pool)
	defer pgDB.Close()

	// 5. Repositories
	articleRepo := repository.NewArticleRepository(pool)
	priceRepo := repository.NewPriceOverrideRepository(pool)
	statsRepo := repository.NewStatsRepository(pool)

	// 6. Сервис членства страниц
	membershipClient := membership.New(
		cfg.MembershipURL,
		cfg.MembershipTimeout,
		cfg.MembershipCacheSize,
		cfg.MembershipCacheTTL,
		logger,
	)

	// 7. Публикатор доменных событий (Kafka или no-op)
	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, kafkaErr := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if kafkaErr != nil {
			logger.Warn("Kafka недоступна, события статей не публикуются",
				slog.String("error", kafkaErr.Error()),
			)
		} else {
			publisher = kafkaPublisher
			logger.Info("Публикатор событий Kafka создан",
				slog.Any("brokers", cfg.KafkaBrokers),
				slog.String("topic", cfg.KafkaTopic),
			)
		}
	} else {
		logger.Info("BM_KAFKA_BROKERS не задан, события статей не публикуются")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("Ошибка закрытия публикатора событий", slog.String("error", err.Error()))
		}
	}()

	// 8. Services
	minter := service.NewIdentifierMinter(articleRepo, cfg.MintRetryDelay, logger)
	priceResolver := service.NewPriceResolver(priceRepo, cfg.PriceSchedule, logger)
	allocator := service.NewSlotAllocator(articleRepo, priceResolver, logger)
	publishingSvc := service.NewPublishingService(
		articleRepo, statsRepo,
		minter, allocator,
		membershipClient, publisher,
		logger,
	)
	listComposer := service.NewListComposer(articleRepo, cfg.ScoreThreshold, logger)

	// 9. Readiness checkers (PostgreSQL + JWKS)
	pgChecker := database.NewReadinessChecker(pool)
	jwksChecker := middleware.NewJWKSReadinessChecker(cfg.JWTJWKSURL, 5*time.Second)
	healthHandler := handlers.NewHealthHandler(pgChecker, jwksChecker)

	// 10. API handler
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		publishingSvc,
		listComposer,
		priceResolver,
		logger,
	)

	// 11. JWT middleware
	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWTJWKSURL,
		cfg.JWTIssuer,
		cfg.ModeratorGroups,
		cfg.JWKSRefreshInterval,
		cfg.JWTLeeway,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 12. Валидация запросов по OpenAPI-контракту
	doc, err := openapi.Load(ctx)
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI-контракта", slog.String("error", err.Error()))
		os.Exit(1)
	}
	validator, err := middleware.OpenAPIValidator(doc, logger)
	if err != nil {
		logger.Error("Ошибка создания OpenAPI-валидатора", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 13. topologymetrics — мониторинг зависимостей (PostgreSQL + сервис членства)
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthConfig{
		ServiceID:     "board-module",
		Group:         cfg.DephealthGroup,
		DB:            pgDB,
		PostgresURL:   cfg.DatabaseURL(),
		MembershipURL: cfg.MembershipURL,
		CheckInterval: cfg.DephealthCheckInterval,
	}, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 14. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, jwtAuth, validator)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 15. Остановка фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Board Module остановлен")
}
