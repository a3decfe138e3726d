package presence_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"cdr.dev/slog/sloggers/slogtest"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/teamclock/teamclock/internal/presence"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeConn struct {
	mu     sync.Mutex
	frames []presence.Message
	fail   bool
	block  bool
	closed bool
}

func (c *fakeConn) Write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	fail, block := c.fail, c.block
	c.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if fail {
		return errors.New("broken pipe")
	}
	var msg presence.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	c.mu.Lock()
	c.frames = append(c.frames, msg)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close(string) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) types() []presence.MessageType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]presence.MessageType, 0, len(c.frames))
	for _, f := range c.frames {
		out = append(out, f.Type)
	}
	return out
}

func (c *fakeConn) last() presence.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames[len(c.frames)-1]
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

func newManager(t *testing.T) *presence.Manager {
	t.Helper()
	m := presence.New(presence.Options{
		Logger:       slogtest.Make(t, &slogtest.Options{IgnoreErrors: true}),
		WriteTimeout: 50 * time.Millisecond,
		Registerer:   prometheus.NewRegistry(),
	})
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestConnectAnnouncesAndSendsOnlineList(t *testing.T) {
	t.Parallel()
	m := newManager(t)
	ctx := context.Background()

	alice, bob := &fakeConn{}, &fakeConn{}
	require.NoError(t, m.Connect(ctx, alice, "alice"))
	require.NoError(t, m.Connect(ctx, bob, "bob"))

	assert.Equal(t, []presence.MessageType{presence.TypeConnectionEstablished}, bob.types())
	data, ok := bob.last().Data.(map[string]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []any{"alice", "bob"}, data["online_users"])

	// Alice hears bob come online, bob does not hear himself.
	assert.Equal(t, []presence.MessageType{presence.TypeConnectionEstablished, presence.TypeUserStatusUpdate}, alice.types())
	status := alice.last().Data.(map[string]any)
	assert.Equal(t, "bob", status["user_id"])
	assert.Equal(t, "online", status["status"])

	assert.Equal(t, []string{"alice", "bob"}, m.OnlineUsers())
	assert.True(t, m.IsOnline("alice"))
	s, ok := m.Session("bob")
	require.True(t, ok)
	assert.Equal(t, "online", s.Status)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	t.Parallel()
	m := newManager(t)
	ctx := context.Background()

	alice, bob := &fakeConn{}, &fakeConn{}
	require.NoError(t, m.Connect(ctx, alice, "alice"))
	require.NoError(t, m.Connect(ctx, bob, "bob"))
	alice.reset()

	m.Disconnect(ctx, "bob")
	m.Disconnect(ctx, "bob")
	m.Disconnect(ctx, "nobody")

	assert.False(t, m.IsOnline("bob"))
	assert.True(t, bob.isClosed())
	// Exactly one offline event.
	assert.Equal(t, []presence.MessageType{presence.TypeUserStatusUpdate}, alice.types())
	assert.Equal(t, "offline", alice.last().Data.(map[string]any)["status"])
}

func TestLastConnectWins(t *testing.T) {
	t.Parallel()
	m := newManager(t)
	ctx := context.Background()

	first, second := &fakeConn{}, &fakeConn{}
	require.NoError(t, m.Connect(ctx, first, "alice"))
	require.NoError(t, m.Connect(ctx, second, "alice"))

	assert.True(t, first.isClosed())
	assert.Equal(t, 1, m.Count())

	// The replaced session cleaning up must not evict its successor.
	m.Release(ctx, "alice", first)
	assert.True(t, m.IsOnline("alice"))

	m.Release(ctx, "alice", second)
	assert.False(t, m.IsOnline("alice"))
}

func TestBroadcastExcludesAndPrunes(t *testing.T) {
	t.Parallel()
	m := newManager(t)
	ctx := context.Background()

	good, broken, sender := &fakeConn{}, &fakeConn{}, &fakeConn{}
	require.NoError(t, m.Connect(ctx, good, "good"))
	require.NoError(t, m.Connect(ctx, broken, "broken"))
	require.NoError(t, m.Connect(ctx, sender, "sender"))
	good.reset()
	sender.reset()

	broken.mu.Lock()
	broken.fail = true
	broken.mu.Unlock()

	n := m.Broadcast(ctx, presence.Message{Type: presence.TypeTeamActivity, Data: "hello"}, "sender")
	assert.Equal(t, 1, n)
	assert.Empty(t, sender.types(), "originator excluded")
	assert.False(t, m.IsOnline("broken"), "failed recipient pruned")

	// good got the broadcast and then the offline event for broken.
	assert.Equal(t, []presence.MessageType{presence.TypeTeamActivity, presence.TypeUserStatusUpdate}, good.types())
	assert.Equal(t, []presence.MessageType{presence.TypeUserStatusUpdate}, sender.types())
}

func TestSlowConnectionTimesOut(t *testing.T) {
	t.Parallel()
	m := newManager(t)
	ctx := context.Background()

	slow, fast := &fakeConn{}, &fakeConn{}
	require.NoError(t, m.Connect(ctx, slow, "slow"))
	require.NoError(t, m.Connect(ctx, fast, "fast"))
	slow.mu.Lock()
	slow.block = true
	slow.mu.Unlock()

	start := time.Now()
	n := m.TeamActivity(ctx, "fast", map[string]int{"clicks": 3})
	assert.Equal(t, 1, n)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, m.IsOnline("slow"))
}

func TestSendToUnknownUser(t *testing.T) {
	t.Parallel()
	m := newManager(t)
	assert.False(t, m.SendTo(context.Background(), "ghost", presence.Message{Type: presence.TypePong}))
}

func TestTimeEntryUpdateIncludesActor(t *testing.T) {
	t.Parallel()
	m := newManager(t)
	ctx := context.Background()

	actor := &fakeConn{}
	require.NoError(t, m.Connect(ctx, actor, "actor"))
	actor.reset()

	assert.Equal(t, 1, m.TimeEntryUpdate(ctx, "actor", "started", map[string]string{"id": "e1"}))
	msg := actor.last()
	assert.Equal(t, presence.TypeTimeEntryUpdate, msg.Type)
	assert.Equal(t, "started", msg.Data.(map[string]any)["action"])
	assert.False(t, msg.Timestamp.IsZero())
}

func TestConcurrentConnectDisconnect(t *testing.T) {
	t.Parallel()
	m := newManager(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("user-%d", i%10)
			conn := &fakeConn{}
			_ = m.Connect(ctx, conn, id)
			if i%2 == 0 {
				m.Release(ctx, id, conn)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, m.Count(), 10)
}

func TestCloseDropsEverything(t *testing.T) {
	t.Parallel()
	m := presence.New(presence.Options{Logger: slogtest.Make(t, nil)})
	ctx := context.Background()

	conn := &fakeConn{}
	require.NoError(t, m.Connect(ctx, conn, "alice"))
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	assert.True(t, conn.isClosed())
	assert.ErrorIs(t, m.Connect(ctx, &fakeConn{}, "bob"), presence.ErrClosed)
	assert.Empty(t, m.OnlineUsers())
}
