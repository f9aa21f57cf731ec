package app

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/config"
	"fintrack/internal/infrastructure/cache"
	"fintrack/internal/infrastructure/database"
	"fintrack/internal/infrastructure/lock"
	"fintrack/internal/infrastructure/mq"
	"fintrack/internal/job"
	"fintrack/internal/repository"
	"fintrack/internal/service"

	"go.uber.org/multierr"
)

// App 按配置组装好的依赖，server 和 accountctl 共用
type App struct {
	Config         *config.Config
	Logger         *slog.Logger
	Accounts       repository.AccountStore
	Outbox         repository.OutboxStore
	Locker         lock.Locker
	Publisher      mq.Publisher // Kafka 未配置时为 nil
	AccountService *service.AccountService

	closers []func() error
}

// New 初始化存储、锁和消息生产者
//
// store.driver=memory 时不连接 MySQL；redis.host 为空时使用进程内锁；
// kafka.brokers 为空时不写 outbox、不启动投递任务。
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if err := a.initStore(); err != nil {
		return nil, multierr.Append(err, a.Close())
	}
	if err := a.initLocker(ctx); err != nil {
		return nil, multierr.Append(err, a.Close())
	}
	if err := a.initPublisher(); err != nil {
		return nil, multierr.Append(err, a.Close())
	}

	topic := ""
	if a.Publisher != nil {
		topic = cfg.Kafka.Topic.AccountEvents
	}
	a.AccountService = service.NewAccountService(a.Accounts, a.Locker, topic, logger)
	return a, nil
}

func (a *App) initStore() error {
	switch a.Config.Store.Driver {
	case config.StoreDriverMemory:
		store := repository.NewMemoryStore()
		a.Accounts, a.Outbox = store, store
		a.Logger.Warn("使用内存存储，进程退出后数据丢失")
		return nil
	case config.StoreDriverMySQL:
		db, err := database.InitMySQL(&a.Config.MySQL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error { return database.Close(db) })
		if err := database.Migrate(db); err != nil {
			return err
		}
		a.Accounts = repository.NewAccountRepository(db)
		a.Outbox = repository.NewOutboxRepository(db)
		a.Logger.Info("MySQL 连接成功", "host", a.Config.MySQL.Host, "database", a.Config.MySQL.Database)
		return nil
	default:
		return fmt.Errorf("不支持的 store.driver: %q", a.Config.Store.Driver)
	}
}

func (a *App) initLocker(ctx context.Context) error {
	if !a.Config.Redis.Enabled() {
		if a.Config.Store.Driver == config.StoreDriverMySQL {
			a.Logger.Warn("未配置 Redis，使用进程内锁，多实例部署时默认账户可能不一致")
		}
		a.Locker = lock.NewLocalLocker()
		return nil
	}

	client, err := cache.InitRedis(ctx, &a.Config.Redis)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, client.Close)
	a.Locker = lock.NewRedisLocker(client, lock.RedisLockerOptions{
		TTL:           a.Config.Lock.TTL(),
		RetryInterval: a.Config.Lock.RetryInterval(),
		MaxRetries:    a.Config.Lock.MaxRetries,
	}, a.Logger)
	a.Logger.Info("Redis 连接成功", "host", a.Config.Redis.Host)
	return nil
}

func (a *App) initPublisher() error {
	if !a.Config.Kafka.Enabled() {
		return nil
	}
	producer, err := mq.InitKafka(&a.Config.Kafka)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, producer.Close)
	a.Publisher = producer
	a.Logger.Info("Kafka 生产者创建成功", "brokers", a.Config.Kafka.Brokers)
	return nil
}

// OutboxSender 返回投递任务，Kafka 未配置时返回 nil
func (a *App) OutboxSender() *job.OutboxSender {
	if a.Publisher == nil {
		return nil
	}
	return job.NewOutboxSender(a.Outbox, a.Publisher, a.Config.Outbox, a.Logger)
}

// Close 按初始化的逆序关闭所有连接
func (a *App) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	a.closers = nil
	return err
}
