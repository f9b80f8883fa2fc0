package commands

import (
	"context"
	"fmt"
	"time"

	"Backend-Volunteer-Hours/src/services/autocheckout"
	checkInOut "Backend-Volunteer-Hours/src/services/check-in-out"
	"Backend-Volunteer-Hours/src/services/hourapi"
	"Backend-Volunteer-Hours/src/services/identity"
	"Backend-Volunteer-Hours/src/services/sessionstore"
	"Backend-Volunteer-Hours/src/services/timeservice"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// runtime wires the attendance client for one CLI invocation.
type runtime struct {
	settings   Settings
	logger     *zap.Logger
	times      *timeservice.Service
	store      *sessionstore.Store
	identity   *identity.TokenProvider
	attendance *checkInOut.Service
	closers    []func() error
}

func openRuntime(ctx context.Context, s Settings, logger *zap.Logger) (*runtime, error) {
	loc := time.Local
	if s.Timezone != "" && s.Timezone != "Local" {
		var err error
		if loc, err = time.LoadLocation(s.Timezone); err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
		}
	}

	rt := &runtime{settings: s, logger: logger}

	var kv sessionstore.KV
	if s.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: s.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("connect redis %s: %w", s.RedisAddr, err)
		}
		rt.closers = append(rt.closers, rdb.Close)
		kv = sessionstore.NewRedisKV(rdb, sessionstore.DefaultRedisPrefix)
	} else {
		sqlite, err := sessionstore.OpenSQLiteKV(s.StorePath)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, sqlite.Close)
		kv = sqlite
	}

	rt.times = timeservice.New(timeservice.WithLocation(loc), timeservice.WithLogger(logger.Named("timeservice")))
	rt.store = sessionstore.New(kv, sessionstore.WithTimes(rt.times), sessionstore.WithLogger(logger.Named("sessionstore")))
	rt.identity = identity.NewTokenProvider(s.Token)

	remote := hourapi.NewClient(s.BaseURL, rt.identity, hourapi.WithLogger(logger.Named("hourapi")))
	rt.attendance = checkInOut.NewService(remote, rt.store, rt.times, rt.identity,
		checkInOut.WithLogger(logger.Named("checkinout")))
	return rt, nil
}

func (rt *runtime) scheduler(lifecycle autocheckout.LifecycleSource) *autocheckout.Scheduler {
	return autocheckout.New(rt.store, rt.attendance, rt.identity, rt.times, lifecycle,
		autocheckout.WithLogger(rt.logger.Named("autocheckout")))
}

func (rt *runtime) operator(ctx context.Context) (identity.Operator, error) {
	op, err := rt.identity.OperatorIdentity(ctx)
	if err != nil {
		return op, fmt.Errorf("no usable operator token, run `volunteer config set --token`: %w", err)
	}
	return op, nil
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn("close failed", zap.Error(err))
		}
	}
}
