package cli

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sprint-service/internal/app"
	"sprint-service/internal/config"
	"sprint-service/internal/domain"
	"sprint-service/internal/infra/memory"
	mongostore "sprint-service/internal/infra/mongo"
	pgstore "sprint-service/internal/infra/postgres"
	"sprint-service/internal/infra/rabbitmq"
	redisinfra "sprint-service/internal/infra/redis"
	"sprint-service/internal/logger"
	transport "sprint-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// deps holds the wired service and everything that must be closed on exit.
type deps struct {
	service  *app.SprintService
	presence transport.Presence
	closers  []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// buildDeps connects the configured store, question source, cache and broker.
func buildDeps(ctx context.Context, cfg config.Config, log *logger.Logger) (*deps, error) {
	d := &deps{}
	fail := func(err error) (*deps, error) {
		d.Close()
		return nil, err
	}

	var (
		store  app.SprintStore
		loader memory.QuestionLoader
	)
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		d.closers = append(d.closers, func() { _ = db.Close() })
		store = pgstore.NewSprintStore(db)

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fail(fmt.Errorf("connect postgres: %w", err))
		}
		d.closers = append(d.closers, pool.Close)
		loader = pgstore.NewQuestionLoader(pool)
	case config.DriverMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return fail(fmt.Errorf("connect mongo: %w", err))
		}
		d.closers = append(d.closers, func() { _ = client.Disconnect(context.Background()) })
		if err := client.Ping(ctx, nil); err != nil {
			return fail(fmt.Errorf("ping mongo: %w", err))
		}
		db := client.Database(cfg.Mongo.Database)
		mongoStore := mongostore.NewSprintStore(db)
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			return fail(err)
		}
		store = mongoStore
		loader = mongostore.NewQuestionLoader(db)
	default:
		store = memory.NewSprintStore()
		loader = memory.NewStaticQuestionLoader(sampleQuestions())
	}

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var questions app.QuestionRepository
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.closers = append(d.closers, func() { _ = client.Close() })
		questions = redisinfra.NewQuestionCache(client, loader, questionTTL)
		d.presence = redisinfra.NewPresence(client, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	} else {
		questions = memory.NewQuestionCache(loader, questionTTL)
		d.presence = memory.NewPresence()
	}

	opts := []app.Option{
		app.WithLogger(log),
		app.WithQuestionLimits(cfg.Sprint.MinQuestions, cfg.Sprint.MaxQuestions),
	}
	if cfg.AMQP.URL != "" {
		publisher, err := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return fail(err)
		}
		d.closers = append(d.closers, func() { _ = publisher.Close() })
		opts = append(opts, app.WithPublisher(publisher))
	}

	d.service = app.NewSprintService(store, questions, opts...)
	log.Info("dependencies ready", "store", cfg.Store.Driver, "redis", cfg.Redis.Addr != "", "amqp", cfg.AMQP.URL != "")
	return d, nil
}

// sampleQuestions seeds the in-memory driver; the postgres and mongo drivers read the real bank.
func sampleQuestions() []domain.Question {
	choices := func(a, b, c, d string) []domain.Option {
		return []domain.Option{{ID: "A", Text: a}, {ID: "B", Text: b}, {ID: "C", Text: c}, {ID: "D", Text: d}}
	}
	return []domain.Question{
		{ID: "math-1", Subject: "MATH", Topic: "Arithmetic", Difficulty: domain.DifficultyEasy, Text: "What is 2 + 2?", Options: choices("3", "4", "5", "6"), CorrectOptionID: "B", Live: true},
		{ID: "math-2", Subject: "MATH", Topic: "Arithmetic", Difficulty: domain.DifficultyMedium, Text: "What is 12 x 12?", Options: choices("124", "144", "148", "164"), CorrectOptionID: "B", Live: true},
		{ID: "math-3", Subject: "MATH", Topic: "Algebra", Difficulty: domain.DifficultyMedium, Text: "Solve 3x = 12.", Options: choices("3", "4", "6", "9"), CorrectOptionID: "B", Solution: "Divide both sides by 3.", Live: true},
		{ID: "math-4", Subject: "MATH", Topic: "Algebra", Difficulty: domain.DifficultyHard, Text: "Roots of x^2 - 5x + 6?", Options: choices("1, 6", "2, 3", "-2, -3", "3, 4"), CorrectOptionID: "B", Live: true},
		{ID: "phys-1", Subject: "PHYSICS", Topic: "Mechanics", Difficulty: domain.DifficultyEasy, Text: "SI unit of force?", Options: choices("Joule", "Watt", "Newton", "Pascal"), CorrectOptionID: "C", Live: true},
		{ID: "phys-2", Subject: "PHYSICS", Topic: "Optics", Difficulty: domain.DifficultyHard, Text: "Speed of light in vacuum (m/s)?", Options: choices("3e6", "3e8", "3e10", "3e5"), CorrectOptionID: "B", Live: true},
	}
}
