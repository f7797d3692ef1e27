package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/lco77/netops-portal/internal/auth"
)

const testSecret = "test-secret"

// fakeRunner records the last invocation and returns a canned answer.
type fakeRunner struct {
	mu       sync.Mutex
	output   string
	err      error
	host     string
	username string
	password string
	command  string
}

func (f *fakeRunner) Run(_ context.Context, host, username, password, command string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.host, f.username, f.password, f.command = host, username, password, command
	return f.output, f.err
}

type TasksSuite struct {
	suite.Suite
	mr      *miniredis.Miniredis
	rdb     *redis.Client
	broker  *RedisBroker
	results *ResultStore
	issuer  *auth.CredentialIssuer
	client  *Client
	runner  *fakeRunner
	worker  *Worker
	ctx     context.Context
}

func (s *TasksSuite) SetupTest() {
	s.ctx = context.Background()
	s.mr = miniredis.RunT(s.T())
	s.rdb = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.broker = NewRedisBroker(s.rdb, "test.tasks")
	s.results = NewResultStore(s.rdb, 300*time.Second)

	vault, err := auth.NewVault(testSecret)
	s.Require().NoError(err)
	s.issuer = auth.NewCredentialIssuer(vault, testSecret, time.Minute)

	s.client = NewClient(s.broker, s.results, s.issuer, []string{"operator"})
	s.runner = &fakeRunner{output: "Gi0/1  up  up  uplink"}
	s.worker = NewWorker(s.broker, s.results, WorkerOptions{Concurrency: 2, TimeLimit: time.Second})
	s.worker.Handle(TypeHello, Hello)
	s.worker.Handle(TypeInterfaceDescription, InterfaceDescription(s.issuer, s.runner))
}

func (s *TasksSuite) TearDownTest() {
	_ = s.rdb.Close()
}

func TestTasksSuite(t *testing.T) {
	suite.Run(t, new(TasksSuite))
}

func (s *TasksSuite) operator() Caller {
	sealed, err := s.issuer.Vault().Seal("devpass")
	s.Require().NoError(err)
	return Caller{Username: "alice", SealedPassword: sealed, Roles: []string{"operator"}}
}

// pop takes the next published message straight off the queue.
func (s *TasksSuite) pop() []byte {
	d, err := s.broker.Receive(s.ctx)
	s.Require().NoError(err)
	return d.Body
}

func (s *TasksSuite) TestSubmitMissingFields() {
	for name, tc := range map[string]struct {
		taskType string
		data     string
	}{
		"no type":   {"", `{"x":1}`},
		"no data":   {TypeHello, ``},
		"null data": {TypeHello, `null`},
	} {
		_, err := s.client.Submit(s.ctx, tc.taskType, json.RawMessage(tc.data), s.operator())
		s.ErrorIs(err, ErrMissingField, name)
	}
	n, err := s.rdb.LLen(s.ctx, "test.tasks").Result()
	s.Require().NoError(err)
	s.Zero(n, "rejected submissions must not publish")
}

func (s *TasksSuite) TestSubmitUnsupportedType() {
	_, err := s.client.Submit(s.ctx, "reboot", json.RawMessage(`{}`), s.operator())
	s.ErrorIs(err, ErrUnsupportedTaskType)
}

func (s *TasksSuite) TestSubmitHelloForwardsData() {
	id, err := s.client.Submit(s.ctx, TypeHello, json.RawMessage(`{"msg":"hi"}`), s.operator())
	s.Require().NoError(err)
	s.NotEmpty(id)

	var msg Message
	s.Require().NoError(json.Unmarshal(s.pop(), &msg))
	s.Equal(id, msg.ID)
	s.Equal(TypeHello, msg.Type)
	s.JSONEq(`{"msg":"hi"}`, string(msg.Data))
	s.Empty(msg.Credential)
	s.Equal("alice", msg.Submitter)
}

func (s *TasksSuite) TestSubmitIDsAreUnique() {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		id, err := s.client.Submit(s.ctx, TypeHello, json.RawMessage(`1`), s.operator())
		s.Require().NoError(err)
		s.False(seen[id])
		seen[id] = true
	}
}

func (s *TasksSuite) TestSubmitDeviceJob() {
	id, err := s.client.Submit(s.ctx, TypeInterfaceDescription, json.RawMessage(`{"ip_address":"192.0.2.1"}`), s.operator())
	s.Require().NoError(err)

	body := s.pop()
	s.NotContains(string(body), "devpass", "plaintext password must never reach the queue")

	var msg Message
	s.Require().NoError(json.Unmarshal(body, &msg))
	s.Equal("192.0.2.1", msg.Host)
	s.Equal(InterfaceDescriptionCommand, msg.Command)

	user, password, err := s.issuer.Redeem(msg.Credential, id)
	s.Require().NoError(err)
	s.Equal("alice", user)
	s.Equal("devpass", password)
}

func (s *TasksSuite) TestSubmitDeviceJobValidation() {
	_, err := s.client.Submit(s.ctx, TypeInterfaceDescription, json.RawMessage(`{}`), s.operator())
	s.ErrorIs(err, ErrMissingField)

	_, err = s.client.Submit(s.ctx, TypeInterfaceDescription, json.RawMessage(`"192.0.2.1"`), s.operator())
	s.ErrorIs(err, ErrMissingField)

	guest := s.operator()
	guest.Roles = nil
	_, err = s.client.Submit(s.ctx, TypeInterfaceDescription, json.RawMessage(`{"ip_address":"192.0.2.1"}`), guest)
	s.ErrorIs(err, ErrForbidden)
}

func (s *TasksSuite) TestSubmitBrokerDown() {
	s.mr.Close()
	_, err := s.client.Submit(s.ctx, TypeHello, json.RawMessage(`{}`), s.operator())
	s.Error(err)
	s.False(errors.Is(err, ErrMissingField))
}

func (s *TasksSuite) TestStatusUnknownIsPending() {
	st, err := s.client.Status(s.ctx, "does-not-exist")
	s.Require().NoError(err)
	s.Equal("PENDING", st.Status)
	s.False(st.Ready)
	s.False(st.Success)
	s.Nil(st.Result)

	out, err := json.Marshal(st)
	s.Require().NoError(err)
	s.Contains(string(out), `"result":null`)
}

func (s *TasksSuite) TestProcessHello() {
	id, err := s.client.Submit(s.ctx, TypeHello, json.RawMessage(`{"msg":"hi"}`), s.operator())
	s.Require().NoError(err)
	s.worker.Process(s.ctx, s.pop())

	st, err := s.client.Status(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("SUCCESS", st.Status)
	s.True(st.Ready)
	s.True(st.Success)
	s.JSONEq(`{"msg":"hi"}`, string(st.Result))

	ttl := s.mr.TTL(resultKeyPrefix + id)
	s.Equal(300*time.Second, ttl)
}

func (s *TasksSuite) TestProcessDeviceJob() {
	id, err := s.client.Submit(s.ctx, TypeInterfaceDescription, json.RawMessage(`{"ip_address":"192.0.2.1"}`), s.operator())
	s.Require().NoError(err)
	s.worker.Process(s.ctx, s.pop())

	st, err := s.client.Status(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("SUCCESS", st.Status)
	s.JSONEq(`"Gi0/1  up  up  uplink"`, string(st.Result))
	s.Equal("192.0.2.1", s.runner.host)
	s.Equal("alice", s.runner.username)
	s.Equal("devpass", s.runner.password)
	s.Equal(InterfaceDescriptionCommand, s.runner.command)
}

func (s *TasksSuite) TestProcessDeviceJobFailure() {
	s.runner.err = errors.New("connection refused")
	id, err := s.client.Submit(s.ctx, TypeInterfaceDescription, json.RawMessage(`{"ip_address":"192.0.2.1"}`), s.operator())
	s.Require().NoError(err)
	s.worker.Process(s.ctx, s.pop())

	st, err := s.client.Status(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("FAILURE", st.Status)
	s.True(st.Ready)
	s.False(st.Success)
	s.Nil(st.Result)

	r, err := s.results.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Contains(r.Error, "connection refused")
	s.NotNil(r.DateDone)
}

func (s *TasksSuite) TestProcessRejectsForeignCredential() {
	first, err := s.client.Submit(s.ctx, TypeInterfaceDescription, json.RawMessage(`{"ip_address":"192.0.2.1"}`), s.operator())
	s.Require().NoError(err)
	var stolen Message
	s.Require().NoError(json.Unmarshal(s.pop(), &stolen))

	forged := stolen
	forged.ID = "another-job"
	body, err := json.Marshal(forged)
	s.Require().NoError(err)
	s.worker.Process(s.ctx, body)

	r, err := s.results.Get(s.ctx, "another-job")
	s.Require().NoError(err)
	s.Equal(StatusFailure, r.Status)
	s.Contains(r.Error, auth.ErrInvalidCredential.Error())
	s.Empty(s.runner.host, "the device must not be contacted")

	st, err := s.client.Status(s.ctx, first)
	s.Require().NoError(err)
	s.Equal("PENDING", st.Status)
}

func (s *TasksSuite) TestProcessSkipsRedeliveredFinishedJob() {
	id, err := s.client.Submit(s.ctx, TypeInterfaceDescription, json.RawMessage(`{"ip_address":"192.0.2.1"}`), s.operator())
	s.Require().NoError(err)
	body := s.pop()
	s.worker.Process(s.ctx, body)
	s.Require().Equal("192.0.2.1", s.runner.host)

	s.runner.host = ""
	s.runner.err = errors.New("must not be dialed again")
	s.worker.Process(s.ctx, body)

	s.Empty(s.runner.host, "a finished job must not contact the device again")
	r, err := s.results.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(StatusSuccess, r.Status)
	s.JSONEq(`"Gi0/1  up  up  uplink"`, string(r.Result))
}

func (s *TasksSuite) TestProcessUnknownTypeFails() {
	s.worker.Process(s.ctx, []byte(`{"id":"j1","type":"reboot","data":{}}`))
	r, err := s.results.Get(s.ctx, "j1")
	s.Require().NoError(err)
	s.Equal(StatusFailure, r.Status)
	s.Contains(r.Error, "unsupported task type")
}

func (s *TasksSuite) TestProcessPanicBecomesFailure() {
	s.worker.Handle("explode", func(context.Context, *Message) (json.RawMessage, error) {
		panic("boom")
	})
	s.worker.Process(s.ctx, []byte(`{"id":"j2","type":"explode","data":{}}`))
	r, err := s.results.Get(s.ctx, "j2")
	s.Require().NoError(err)
	s.Equal(StatusFailure, r.Status)
	s.Contains(r.Error, "boom")
}

func (s *TasksSuite) TestProcessTimeLimit() {
	w := NewWorker(s.broker, s.results, WorkerOptions{TimeLimit: 20 * time.Millisecond})
	w.Handle("slow", func(ctx context.Context, _ *Message) (json.RawMessage, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	w.Process(s.ctx, []byte(`{"id":"j3","type":"slow","data":{}}`))
	r, err := s.results.Get(s.ctx, "j3")
	s.Require().NoError(err)
	s.Equal(StatusFailure, r.Status)
	s.Contains(r.Error, context.DeadlineExceeded.Error())
}

func (s *TasksSuite) TestProcessMalformedMessageIsDropped() {
	s.NotPanics(func() { s.worker.Process(s.ctx, []byte(`not json`)) })
	s.NotPanics(func() { s.worker.Process(s.ctx, []byte(`{"type":"hello"}`)) })
}

func (s *TasksSuite) TestTerminalResultNeverReverts() {
	ok, err := s.results.Put(s.ctx, &Result{TaskID: "t1", Status: StatusSuccess, Result: json.RawMessage(`1`)})
	s.Require().NoError(err)
	s.True(ok)

	for _, st := range []Status{StatusStarted, StatusFailure, StatusPending} {
		ok, err = s.results.Put(s.ctx, &Result{TaskID: "t1", Status: st})
		s.Require().NoError(err)
		s.False(ok)
	}

	r, err := s.results.Get(s.ctx, "t1")
	s.Require().NoError(err)
	s.Equal(StatusSuccess, r.Status)
	s.JSONEq(`1`, string(r.Result))
}

func (s *TasksSuite) TestRunEndToEnd() {
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	go func() {
		s.worker.Run(ctx)
		close(done)
	}()

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		id, err := s.client.Submit(s.ctx, TypeHello, json.RawMessage(`{"n":1}`), s.operator())
		s.Require().NoError(err)
		ids = append(ids, id)
	}

	for _, id := range ids {
		s.Eventually(func() bool {
			st, err := s.client.Status(s.ctx, id)
			return err == nil && st.Ready
		}, 5*time.Second, 20*time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.Fail("worker did not stop")
	}
}

func (s *TasksSuite) TestRedisBrokerFIFO() {
	s.Require().NoError(s.broker.Publish(s.ctx, []byte("first")))
	s.Require().NoError(s.broker.Publish(s.ctx, []byte("second")))
	s.Equal("first", string(s.pop()))
	s.Equal("second", string(s.pop()))

	_, err := s.broker.Receive(s.ctx)
	s.ErrorIs(err, ErrNoMessage)
	s.Equal("redis", s.broker.Type())
}

func (s *TasksSuite) TestClientPing() {
	for name, err := range s.client.Ping(s.ctx) {
		s.NoError(err, name)
	}
}

func TestStatusReady(t *testing.T) {
	assert.False(t, StatusPending.Ready())
	assert.False(t, StatusStarted.Ready())
	assert.True(t, StatusSuccess.Ready())
	assert.True(t, StatusFailure.Ready())
}

func TestNewBrokerValidation(t *testing.T) {
	_, err := NewBroker(BrokerConfig{Type: "msmq", Queue: "q"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unsupported broker type"))

	_, err = NewBroker(BrokerConfig{Type: "rabbitmq"})
	assert.Error(t, err)

	_, err = NewBroker(BrokerConfig{Type: "kafka", Queue: "q"})
	assert.Error(t, err)

	_, err = NewBroker(BrokerConfig{Type: "kafka", Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)

	b, err := NewBroker(BrokerConfig{Type: "RabbitMQ", Queue: "q"})
	require.NoError(t, err)
	assert.Equal(t, "rabbitmq", b.Type())
	assert.NoError(t, b.Close())
}
