package infra

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lco77/netops-portal/internal/auth"
	"github.com/lco77/netops-portal/internal/config"
	"github.com/lco77/netops-portal/internal/tasks"
)

func devConfig() *config.Config {
	return &config.Config{
		DevMode:               true,
		SecretKey:             "dev-secret",
		BrokerType:            "kafka",
		TaskQueue:             "portal.tasks",
		ResultExpiresSeconds:  300,
		WorkerConcurrency:     2,
		TaskTimeLimitSeconds:  5,
		AuthBackend:           "mock",
		SessionTimeoutSeconds: 3600,
		CredentialTTLSeconds:  300,
		SSHTimeoutSeconds:     1,
		Roles:                 map[string][]string{"operator": {"CN=NetOps,"}},
	}
}

func TestSetupDevMode(t *testing.T) {
	cfg := devConfig()
	inf, err := Setup(context.Background(), cfg, true)
	require.NoError(t, err)
	defer inf.Close()

	assert.Equal(t, "redis", inf.Broker.Type(), "dev mode always uses the redis broker")
	require.NotNil(t, inf.Sessions)
	require.NotNil(t, inf.Directory)

	u := inf.Directory.Authenticate(context.Background(), "noc", "noc")
	require.True(t, u.Authenticated)
	assert.Equal(t, []string{"operator"}, u.Roles)

	client := inf.TaskClient(cfg)
	w, err := inf.Worker(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	id, err := client.Submit(context.Background(), tasks.TypeHello, json.RawMessage(`"ping"`), tasks.Caller{Username: "noc"})
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		st, err := client.Status(context.Background(), id)
		return err == nil && st.Success
	}, 5*time.Second, 20*time.Millisecond)
}

func TestSetupWorkerOnly(t *testing.T) {
	inf, err := Setup(context.Background(), devConfig(), false)
	require.NoError(t, err)
	defer inf.Close()
	assert.Nil(t, inf.Directory)
	assert.Nil(t, inf.Sessions)
	assert.NotNil(t, inf.Issuer)
}

func TestSetupBadRedisURL(t *testing.T) {
	cfg := devConfig()
	cfg.DevMode = false
	cfg.RedisURL = "not-a-url"
	_, err := Setup(context.Background(), cfg, false)
	assert.Error(t, err)
}

func TestNewDirectory(t *testing.T) {
	cfg := devConfig()

	cfg.AuthBackend = "ldap"
	_, err := NewDirectory(cfg)
	assert.Error(t, err, "LDAP_HOST is required")

	cfg.LDAPHost = "dc.example.net"
	dir, err := NewDirectory(cfg)
	require.NoError(t, err)
	assert.IsType(t, &auth.LDAPDirectory{}, dir)

	cfg.AuthBackend = "MOCK"
	dir, err = NewDirectory(cfg)
	require.NoError(t, err)
	assert.IsType(t, &auth.MockDirectory{}, dir)

	cfg.AuthBackend = "radius"
	_, err = NewDirectory(cfg)
	assert.Error(t, err)

	cfg.AuthBackend = "mock"
	cfg.MockUsersFile = "/nonexistent/users.json"
	_, err = NewDirectory(cfg)
	assert.Error(t, err)
}

func TestNewBrokerSelection(t *testing.T) {
	cfg := devConfig()
	cfg.DevMode = false

	cfg.BrokerType = "rabbitmq"
	b, err := newBroker(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "rabbitmq", b.Type())

	cfg.BrokerType = "zeromq"
	_, err = newBroker(cfg, nil)
	assert.Error(t, err)

	cfg.BrokerType = ""
	b, err = newBroker(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "redis", b.Type())
}
