package lock

import (
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/inventory/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyHostFact = "inventory:host:lock:%s:%s:%s"

var Module = fx.Module("lock",
	fx.Provide(NewLocker),
)

type Params struct {
	fx.In

	Client *redis.Client `optional:"true"`
	Ingest *config.IngestConfigHolder
	Log    *zap.Logger
}

// NewLocker returns a Redis-backed locker when a client is available and an
// in-process one otherwise.
func NewLocker(p Params) Locker {
	settings := func() Settings {
		cfg := p.Ingest.Get()
		return Settings{TTL: cfg.LockTTL, Wait: cfg.LockWait}
	}
	if p.Client != nil {
		return NewRedisLocker(p.Client, settings, p.Log)
	}
	return NewLocalLocker(settings)
}

// HostFactKey names the lock guarding one canonical fact of one account.
func HostFactKey(account, fact, value string) string {
	return fmt.Sprintf(keyHostFact, strings.TrimSpace(account), fact, value)
}
