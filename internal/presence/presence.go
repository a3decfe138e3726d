// Package presence tracks which users hold a live websocket connection and
// fans messages out to them.
//
// The registry is owned by a single goroutine. Every read or mutation is a
// closure executed on that goroutine, so no locks guard the map. Network
// writes happen outside it with a bounded timeout, which keeps one slow
// socket from stalling everyone else.
package presence

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"cdr.dev/slog"
	"github.com/coder/quartz"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

// Conn is the write side of a client connection.
type Conn interface {
	Write(ctx context.Context, data []byte) error
	Close(reason string) error
}

// ErrClosed is returned by operations on a closed Manager.
var ErrClosed = errors.New("presence manager closed")

// Session is the metadata kept for one registered connection.
type Session struct {
	UserID      string    `json:"user_id"`
	ConnectedAt time.Time `json:"connected_at"`
	Status      string    `json:"status"`
}

type entry struct {
	conn    Conn
	session Session
}

type registry struct {
	conns map[string]*entry
}

func (r *registry) userIDs() []string {
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type Options struct {
	Logger       slog.Logger
	Clock        quartz.Clock
	WriteTimeout time.Duration
	Registerer   prometheus.Registerer
}

type Manager struct {
	log          slog.Logger
	clock        quartz.Clock
	writeTimeout time.Duration
	metrics      *metrics

	ops     chan func(*registry)
	closing chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// New starts the registry goroutine. Call Close to stop it.
func New(opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	m := &Manager{
		log:          opts.Logger.Named("presence"),
		clock:        opts.Clock,
		writeTimeout: opts.WriteTimeout,
		metrics:      newMetrics(opts.Registerer),
		ops:          make(chan func(*registry)),
		closing:      make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *Manager) run() {
	defer close(m.stopped)
	r := &registry{conns: map[string]*entry{}}
	for {
		select {
		case fn := <-m.ops:
			fn(r)
		case <-m.closing:
			for id, e := range r.conns {
				_ = e.conn.Close("server shutting down")
				delete(r.conns, id)
			}
			m.metrics.online.Set(0)
			return
		}
	}
}

// do runs fn on the registry goroutine and waits for it to finish.
func (m *Manager) do(fn func(*registry)) error {
	done := make(chan struct{})
	select {
	case m.ops <- func(r *registry) {
		defer close(done)
		fn(r)
	}:
	case <-m.closing:
		return ErrClosed
	}
	<-done
	return nil
}

// Close drops every connection and stops the registry goroutine.
func (m *Manager) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	close(m.closing)
	<-m.stopped
	return nil
}

// Connect registers conn for userID. A previous connection for the same
// user is replaced and closed. The new connection receives the current
// online list and everyone else is told the user came online.
func (m *Manager) Connect(ctx context.Context, conn Conn, userID string) error {
	var (
		replaced Conn
		online   []string
	)
	err := m.do(func(r *registry) {
		if old, ok := r.conns[userID]; ok {
			replaced = old.conn
		}
		r.conns[userID] = &entry{
			conn: conn,
			session: Session{
				UserID:      userID,
				ConnectedAt: m.clock.Now().UTC(),
				Status:      "online",
			},
		}
		online = r.userIDs()
		m.metrics.online.Set(float64(len(r.conns)))
	})
	if err != nil {
		return err
	}

	if replaced != nil {
		_ = replaced.Close("replaced by a newer connection")
		m.log.Debug(ctx, "replaced connection", slog.F("user_id", userID))
	}
	m.log.Info(ctx, "user connected", slog.F("user_id", userID), slog.F("online", len(online)))

	m.SendTo(ctx, userID, m.message(TypeConnectionEstablished, ConnectionEstablished{
		UserID:      userID,
		OnlineUsers: online,
	}))
	m.broadcastStatus(ctx, userID, "online")
	return nil
}

// Disconnect removes the user's registration, if any, and tells everyone
// else the user went offline. It is safe to call for unknown users.
func (m *Manager) Disconnect(ctx context.Context, userID string) {
	m.remove(ctx, userID, nil)
}

// Release is Disconnect guarded by connection identity: it only removes the
// registration if conn is still the one registered for userID. A session
// that was replaced by a newer connection uses it to clean up after itself
// without evicting its successor.
func (m *Manager) Release(ctx context.Context, userID string, conn Conn) {
	m.remove(ctx, userID, conn)
}

func (m *Manager) remove(ctx context.Context, userID string, only Conn) {
	var removed Conn
	err := m.do(func(r *registry) {
		e, ok := r.conns[userID]
		if !ok || (only != nil && e.conn != only) {
			return
		}
		delete(r.conns, userID)
		removed = e.conn
		m.metrics.online.Set(float64(len(r.conns)))
	})
	if err != nil || removed == nil {
		return
	}

	_ = removed.Close("disconnected")
	m.log.Info(ctx, "user disconnected", slog.F("user_id", userID))
	m.broadcastStatus(ctx, userID, "offline")
}

// SendTo delivers msg to one user. A failed write drops the connection.
func (m *Manager) SendTo(ctx context.Context, userID string, msg Message) bool {
	var conn Conn
	if err := m.do(func(r *registry) {
		if e, ok := r.conns[userID]; ok {
			conn = e.conn
		}
	}); err != nil || conn == nil {
		return false
	}

	data, err := m.encode(ctx, msg)
	if err != nil {
		return false
	}
	if err := m.write(ctx, conn, data); err != nil {
		m.log.Warn(ctx, "send failed", slog.F("user_id", userID), slog.Error(err))
		m.Release(ctx, userID, conn)
		return false
	}
	return true
}

// Broadcast delivers msg to every registered user except exclude and
// returns how many writes succeeded. Recipients that fail are dropped; a
// failure never affects delivery to the others.
func (m *Manager) Broadcast(ctx context.Context, msg Message, exclude string) int {
	type target struct {
		userID string
		conn   Conn
	}
	var targets []target
	if err := m.do(func(r *registry) {
		for id, e := range r.conns {
			if id == exclude {
				continue
			}
			targets = append(targets, target{userID: id, conn: e.conn})
		}
	}); err != nil || len(targets) == 0 {
		return 0
	}

	data, err := m.encode(ctx, msg)
	if err != nil {
		return 0
	}

	var (
		wg        sync.WaitGroup
		delivered atomic.Int64
		mu        sync.Mutex
		failed    []target
	)
	for _, t := range targets {
		wg.Add(1)
		go func(t target) {
			defer wg.Done()
			if err := m.write(ctx, t.conn, data); err != nil {
				m.log.Warn(ctx, "broadcast failed", slog.F("user_id", t.userID), slog.Error(err))
				mu.Lock()
				failed = append(failed, t)
				mu.Unlock()
				return
			}
			delivered.Inc()
		}(t)
	}
	wg.Wait()

	for _, t := range failed {
		m.Release(ctx, t.userID, t.conn)
	}
	return int(delivered.Load())
}

// OnlineUsers returns the ids of every registered user, sorted.
func (m *Manager) OnlineUsers() []string {
	var ids []string
	_ = m.do(func(r *registry) { ids = r.userIDs() })
	return ids
}

func (m *Manager) IsOnline(userID string) bool {
	var ok bool
	_ = m.do(func(r *registry) { _, ok = r.conns[userID] })
	return ok
}

// Session returns the metadata of the user's registered connection.
func (m *Manager) Session(userID string) (Session, bool) {
	var (
		s  Session
		ok bool
	)
	_ = m.do(func(r *registry) {
		var e *entry
		if e, ok = r.conns[userID]; ok {
			s = e.session
		}
	})
	return s, ok
}

// Count returns the number of registered connections.
func (m *Manager) Count() int {
	var n int
	_ = m.do(func(r *registry) { n = len(r.conns) })
	return n
}

func (m *Manager) message(typ MessageType, data any) Message {
	return Message{Type: typ, Data: data, Timestamp: m.clock.Now().UTC()}
}

func (m *Manager) broadcastStatus(ctx context.Context, userID, status string) {
	m.Broadcast(ctx, m.message(TypeUserStatusUpdate, UserStatus{UserID: userID, Status: status}), userID)
}

// Pong replies to a client ping.
func (m *Manager) Pong(ctx context.Context, userID string) bool {
	return m.SendTo(ctx, userID, m.message(TypePong, map[string]time.Time{"timestamp": m.clock.Now().UTC()}))
}

// TimeEntryUpdate tells every connected user, the actor included, about a
// change to one of the actor's time entries.
func (m *Manager) TimeEntryUpdate(ctx context.Context, userID, action string, timeEntry any) int {
	return m.Broadcast(ctx, m.message(TypeTimeEntryUpdate, TimeEntryEvent{
		UserID:    userID,
		Action:    action,
		TimeEntry: timeEntry,
	}), "")
}

func (m *Manager) ProjectUpdate(ctx context.Context, action string, project any) int {
	return m.Broadcast(ctx, m.message(TypeProjectUpdate, ProjectEvent{Action: action, Project: project}), "")
}

func (m *Manager) TeamActivity(ctx context.Context, userID string, activity any) int {
	return m.Broadcast(ctx, m.message(TypeTeamActivity, TeamActivityEvent{UserID: userID, Activity: activity}), "")
}

func (m *Manager) encode(ctx context.Context, msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		m.log.Error(ctx, "encode message", slog.F("type", msg.Type), slog.Error(err))
		return nil, errors.Wrap(err, "failed to encode message")
	}
	return data, nil
}

// write is detached from the caller's cancellation so a finished request
// does not abort delivery, but is bounded by the write timeout.
func (m *Manager) write(ctx context.Context, conn Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.writeTimeout)
	defer cancel()
	if err := conn.Write(ctx, data); err != nil {
		m.metrics.failed.Inc()
		return err
	}
	m.metrics.delivered.Inc()
	return nil
}
