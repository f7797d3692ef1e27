// Package infra builds the live infrastructure handles shared by the web and
// worker processes from the loaded configuration.
package infra

import (
	"context"
	"fmt"
	"strings"

	"github.com/alicebob/miniredis/v2"
	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/lco77/netops-portal/internal/auth"
	"github.com/lco77/netops-portal/internal/config"
	"github.com/lco77/netops-portal/internal/session"
	"github.com/lco77/netops-portal/internal/ssh"
	"github.com/lco77/netops-portal/internal/tasks"
)

// Infra holds everything a process needs to serve requests or run jobs.
type Infra struct {
	Redis     *redis.Client
	Broker    tasks.Broker
	Results   *tasks.ResultStore
	Issuer    *auth.CredentialIssuer
	Directory auth.Directory // nil in the worker process
	Sessions  *session.Store // nil in the worker process

	// dev-mode in-process Redis; nil in production
	mini *miniredis.Miniredis
}

// Setup connects Redis and the broker. With withFrontend it also builds the
// directory client and session store needed by the web process.
//   - DEV_MODE: starts an in-process miniredis and always uses the redis broker.
//   - otherwise: connects to REDIS_URL and the broker named by BROKER_TYPE.
func Setup(ctx context.Context, cfg *config.Config, withFrontend bool) (*Infra, error) {
	inf := &Infra{}

	if cfg.DevMode {
		var err error
		inf.mini, err = miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("infra: miniredis: %w", err)
		}
		inf.Redis = redis.NewClient(&redis.Options{Addr: inf.mini.Addr()})
		log.Info("Dev mode: in-process Redis started", "addr", inf.mini.Addr())
	} else {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("infra: invalid REDIS_URL: %w", err)
		}
		inf.Redis = redis.NewClient(opts)
	}

	if err := inf.Redis.Ping(ctx).Err(); err != nil {
		inf.Close()
		return nil, fmt.Errorf("infra: redis ping: %w", err)
	}

	broker, err := newBroker(cfg, inf.Redis)
	if err != nil {
		inf.Close()
		return nil, err
	}
	inf.Broker = broker
	inf.Results = tasks.NewResultStore(inf.Redis, cfg.ResultExpires())

	vault, err := auth.NewVault(cfg.SecretKey)
	if err != nil {
		inf.Close()
		return nil, fmt.Errorf("infra: %w", err)
	}
	inf.Issuer = auth.NewCredentialIssuer(vault, cfg.SecretKey, cfg.CredentialTTL())

	if withFrontend {
		dir, err := NewDirectory(cfg)
		if err != nil {
			inf.Close()
			return nil, err
		}
		inf.Directory = dir
		inf.Sessions = session.NewStore(inf.Redis, cfg.SessionTimeout())
	}

	return inf, nil
}

// TaskClient returns the submission/status client for the web process.
func (inf *Infra) TaskClient(cfg *config.Config) *tasks.Client {
	return tasks.NewClient(inf.Broker, inf.Results, inf.Issuer, cfg.DeviceRoleList())
}

// Worker returns a worker pool with every job type registered.
func (inf *Infra) Worker(cfg *config.Config) (*tasks.Worker, error) {
	runner, err := ssh.NewRunner(cfg.SSHTimeout(), cfg.SSHKnownHosts)
	if err != nil {
		return nil, fmt.Errorf("infra: ssh runner: %w", err)
	}
	w := tasks.NewWorker(inf.Broker, inf.Results, tasks.WorkerOptions{
		Concurrency: cfg.WorkerConcurrency,
		TimeLimit:   cfg.TaskTimeLimit(),
	})
	w.Handle(tasks.TypeHello, tasks.Hello)
	w.Handle(tasks.TypeInterfaceDescription, tasks.InterfaceDescription(inf.Issuer, runner))
	return w, nil
}

// NewDirectory builds the directory client selected by AUTH_BACKEND.
func NewDirectory(cfg *config.Config) (auth.Directory, error) {
	roles := auth.RoleMap(cfg.Roles)
	switch strings.ToLower(cfg.AuthBackend) {
	case "ldap":
		if cfg.LDAPHost == "" {
			return nil, fmt.Errorf("infra: LDAP_HOST is required when AUTH_BACKEND=ldap")
		}
		return auth.NewLDAPDirectory(auth.LDAPConfig{
			Host:               cfg.LDAPHost,
			Port:               cfg.LDAPPort,
			BaseDN:             cfg.LDAPBaseDN,
			BindDN:             cfg.LDAPUsername,
			BindPassword:       cfg.LDAPPassword,
			InsecureSkipVerify: cfg.LDAPInsecureSkipVerify,
		}, roles), nil
	case "pam":
		return auth.NewPAMDirectory(cfg.PAMService, roles)
	case "mock":
		log.Warn("Using the mock directory; do not use in production")
		dir, err := auth.NewMockDirectory(cfg.MockUsersFile, roles)
		if err != nil {
			return nil, err
		}
		return dir, nil
	default:
		return nil, fmt.Errorf("infra: unsupported AUTH_BACKEND %q (supported: ldap, pam, mock)", cfg.AuthBackend)
	}
}

func newBroker(cfg *config.Config, rdb *redis.Client) (tasks.Broker, error) {
	brokerType := strings.ToLower(cfg.BrokerType)
	if cfg.DevMode || brokerType == "" || brokerType == "redis" {
		return tasks.NewRedisBroker(rdb, cfg.TaskQueue), nil
	}
	b, err := tasks.NewBroker(tasks.BrokerConfig{
		Type:     brokerType,
		URL:      cfg.BrokerURL,
		Brokers:  cfg.KafkaBrokerList(),
		Queue:    cfg.TaskQueue,
		Prefetch: cfg.WorkerConcurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("infra: %w", err)
	}
	return b, nil
}

// Close releases all infrastructure resources.
func (inf *Infra) Close() {
	if inf.Broker != nil {
		if err := inf.Broker.Close(); err != nil {
			log.Warn("Broker close failed", "err", err)
		}
	}
	if inf.Redis != nil {
		_ = inf.Redis.Close()
	}
	if inf.mini != nil {
		inf.mini.Close()
	}
}
