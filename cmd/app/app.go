package app

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/attendly/attendly/internal/api"
	"github.com/attendly/attendly/internal/config"
	"github.com/attendly/attendly/internal/db"
	"github.com/attendly/attendly/internal/logger"
	"github.com/attendly/attendly/internal/notifier"
	"github.com/attendly/attendly/internal/repository"
	"github.com/attendly/attendly/internal/repository/dao"
	"github.com/attendly/attendly/internal/service"
	"github.com/attendly/attendly/internal/sweeper"
)

func Start() error {
	conf, err := config.Load("./cmd/app/config.yml")
	if err != nil {
		return fmt.Errorf("failed to initialize config -> %w", err)
	}

	if err = logger.Init(conf.API.Environment); err != nil {
		return fmt.Errorf("failed to initialize logger -> %w", err)
	}

	dbURL := os.Getenv("DATABASE_URL")
	var postgresDB *gorm.DB
	if dbURL != "" {
		postgresDB, err = db.OpenPostgresWithURL(dbURL)
	} else {
		postgresDB, err = db.OpenPostgres(conf.Postgres)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database -> %w", err)
	}

	if err = dao.InitTables(postgresDB); err != nil {
		return fmt.Errorf("failed to migrate tables -> %w", err)
	}

	events, err := notifier.NewPublisher(conf.Rabbit.URL)
	if err != nil {
		// The notifier is best-effort; check-in must keep working when the
		// broker is down.
		zap.L().Warn("rabbitmq unavailable, notifications disabled", zap.Error(err))
		events = nil
	}

	var redisClient *redis.Client
	if conf.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     conf.Redis.Addr,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		})
	}

	capacitySvc := service.NewCapacityService(
		repository.NewReservationRepository(dao.NewReservationDAO(postgresDB)),
		repository.NewTicketRepository(dao.NewTicketDAO(postgresDB)),
		events,
		conf.Capacity.ReservationTTL,
	)

	sw := sweeper.New(capacitySvc, conf.Capacity.SweepInterval)
	go sw.Run(context.Background())

	s, err := api.NewServer(conf, postgresDB, events, redisClient, capacitySvc)
	if err != nil {
		return fmt.Errorf("failed to initialize server -> %w", err)
	}

	addr := ":" + s.Config.API.Port
	zap.L().Info(fmt.Sprintf("starting server at %v", addr))
	if err = s.Router.Run(addr); err != nil {
		return fmt.Errorf("failed to start the server -> %w", err)
	}

	return nil
}
