// Package netsync runs interactive CLI sessions against a list of network devices.
package netsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/morganhein/netsync/interaction"
	"github.com/morganhein/netsync/inventory"
	"github.com/morganhein/netsync/logger"
	"github.com/morganhein/netsync/schema"
	"github.com/morganhein/netsync/session"
	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 4

// ErrDuplicateDevice marks a device whose address already appeared earlier in the list.
var ErrDuplicateDevice = errors.New("device listed more than once")

// Job is the work done on one logged in device.
type Job func(ctx context.Context, sess *session.Session) ([]interaction.Output, error)

// Result is what a Job left behind for one device. Err is set when login or the job failed.
type Result struct {
	Device  inventory.Device
	Outputs []interaction.Output
	Err     error
	Started time.Time
	Elapsed time.Duration
}

type Manager struct {
	RunID   string
	Workers int

	dialer   schema.Dialer
	creds    schema.Credentials
	opts     []session.Option
	log      schema.Logger
	mu       sync.Mutex
	sessions map[string]*session.Session
}

// NewManager returns a manager that logs into every device with creds and builds each
// session with opts.
func NewManager(dialer schema.Dialer, creds schema.Credentials, opts ...session.Option) *Manager {
	return &Manager{
		RunID:    uuid.NewString(),
		Workers:  DefaultWorkers,
		dialer:   dialer,
		creds:    creds,
		opts:     opts,
		log:      logger.Log,
		sessions: make(map[string]*session.Session),
	}
}

// Connect logs into a single device and keeps the session until it is closed through
// Disconnect or Shutdown.
func (m *Manager) Connect(ctx context.Context, dev inventory.Device) (*session.Session, error) {
	creds := m.creds
	if dev.User != "" {
		creds.Username = dev.User
	}
	sess := session.New(m.dialer, m.opts...)
	m.log.Infof("[%s] connecting to %s (%s).", m.RunID[:8], dev.Addr(), dev.Type)
	if err := sess.Login(ctx, dev.Target(), creds); err != nil {
		_ = sess.Close()
		return nil, err
	}
	m.mu.Lock()
	if old, ok := m.sessions[dev.Addr()]; ok {
		_ = old.Close()
	}
	m.sessions[dev.Addr()] = sess
	m.mu.Unlock()
	return sess, nil
}

// GetDevice returns the open session for a device address, see inventory.Device.Addr.
func (m *Manager) GetDevice(addr string) (*session.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[addr]
	return s, ok
}

// Disconnect closes the session to addr, if any.
func (m *Manager) Disconnect(addr string) {
	m.mu.Lock()
	s, ok := m.sessions[addr]
	delete(m.sessions, addr)
	m.mu.Unlock()
	if ok {
		_ = s.Close()
	}
}

// Run executes job on every device, at most Workers at a time. A failing device never
// stops the others; every session is closed before Run returns. Results follow the order
// of devs. A repeated address is not run again, its result carries ErrDuplicateDevice.
func (m *Manager) Run(ctx context.Context, devs []inventory.Device, job Job) []Result {
	results := make([]Result, len(devs))
	var g errgroup.Group
	workers := m.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	g.SetLimit(workers)

	seen := make(map[string]bool, len(devs))
	for i, dev := range devs {
		if seen[dev.Addr()] {
			results[i] = Result{Device: dev, Started: time.Now(), Err: fmt.Errorf("%s: %w", dev.Addr(), ErrDuplicateDevice)}
			continue
		}
		seen[dev.Addr()] = true
		i, dev := i, dev
		g.Go(func() error {
			results[i] = m.runOne(ctx, dev, job)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (m *Manager) runOne(ctx context.Context, dev inventory.Device, job Job) Result {
	res := Result{Device: dev, Started: time.Now()}
	defer func() {
		res.Elapsed = time.Since(res.Started)
	}()
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	sess, err := m.Connect(ctx, dev)
	if err != nil {
		m.log.Warningf("[%s] %s: %s", m.RunID[:8], dev.Addr(), err)
		res.Err = err
		return res
	}
	defer m.release(dev.Addr(), sess)

	res.Outputs, res.Err = job(ctx, sess)
	if res.Err != nil {
		m.log.Warningf("[%s] %s: %s", m.RunID[:8], dev.Addr(), res.Err)
	} else {
		m.log.Infof("[%s] %s done.", m.RunID[:8], dev.Addr())
	}
	return res
}

// release closes sess and forgets it, unless addr has since been taken by another session.
func (m *Manager) release(addr string, sess *session.Session) {
	m.mu.Lock()
	if m.sessions[addr] == sess {
		delete(m.sessions, addr)
	}
	m.mu.Unlock()
	_ = sess.Close()
}

// Shutdown closes every session still open.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	addrs := make([]string, 0, len(m.sessions))
	for a := range m.sessions {
		addrs = append(addrs, a)
	}
	m.mu.Unlock()
	sort.Strings(addrs)
	for _, a := range addrs {
		m.Disconnect(a)
	}
	return nil
}

// Failed counts the results that carry an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
