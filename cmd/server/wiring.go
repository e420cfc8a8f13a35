package main

import (
	"context"
	"fmt"

	"backend-booking/internal/booking"
	"backend-booking/internal/config"
	"backend-booking/internal/lock"
	"backend-booking/internal/logger"
	"backend-booking/internal/roster"
	"backend-booking/internal/storage/memory"
	"backend-booking/internal/storage/mysql"
	"backend-booking/migrations"
)

type closer struct {
	name string
	fn   func() error
}

// closerStack closes resources in reverse order of opening.
type closerStack []closer

func (s *closerStack) push(name string, fn func() error) {
	*s = append(*s, closer{name: name, fn: fn})
}

func (s closerStack) closeAll(log logger.Logger) {
	for i := len(s) - 1; i >= 0; i-- {
		if err := s[i].fn(); err != nil {
			log.Warn("close failed", "resource", s[i].name, "error", err)
		}
	}
}

func openStore(ctx context.Context, cfg config.Config, log logger.Logger, closers *closerStack) (booking.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory booking store, bookings are lost on restart")
		return memory.NewStore(), nil
	case "mysql":
		db, err := config.OpenMySQL(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, err
		}
		closers.push("mysql", db.Close)
		if err := migrations.Apply(ctx, db); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return mysql.NewStore(db), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func openRoster(ctx context.Context, cfg config.Config, closers *closerStack) (booking.Roster, error) {
	switch cfg.RosterDriver {
	case "static":
		advisors, err := roster.ParseStatic(cfg.StaticAdvisors)
		if err != nil {
			return nil, err
		}
		return roster.NewStatic(advisors...), nil
	case "mongo":
		client, err := config.NewMongoClient(ctx, cfg.MongoURI, cfg.MongoUser, cfg.MongoPassword)
		if err != nil {
			return nil, err
		}
		closers.push("mongo", func() error { return client.Disconnect(context.Background()) })
		return roster.NewMongoRoster(client.Database(cfg.MongoDB), cfg.MongoAdvisorCollection), nil
	}
	return nil, fmt.Errorf("unknown roster driver %q", cfg.RosterDriver)
}

func openLocker(ctx context.Context, cfg config.Config, closers *closerStack) (booking.SlotLocker, error) {
	switch cfg.LockDriver {
	case "local":
		return booking.NewLocalSlotLocker(), nil
	case "redis":
		client, err := config.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		closers.push("redis", client.Close)
		return lock.NewRedisSlotLocker(client, lock.WithTTL(cfg.RedisLockTTL)), nil
	}
	return nil, fmt.Errorf("unknown lock driver %q", cfg.LockDriver)
}
