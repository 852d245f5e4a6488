// Package discovery tracks LNDP servers on the local network. Services are
// browsed and advertised over mDNS; a Registry resolves them one at a time
// and publishes the resolved set to subscribers.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/joe/lndp/internal/logging"
	"github.com/joe/lndp/pkg/filesystem"
)

// ResolveTimeout bounds a single resolve.
const ResolveTimeout = 10 * time.Second

// subscriberBuffer is the number of changes a slow subscriber may lag behind.
const subscriberBuffer = 16

// Exported variables.
var (
	ErrResolverPanicked = errors.New("resolver panicked")
	ErrNotResolved      = errors.New("service not resolved")
)

// State is the lifecycle state of a named service.
type State int

// Service states. A service that is lost or fails to resolve goes back to
// StateUnknown.
const (
	StateUnknown State = iota
	StateFound
	StateResolving
	StateResolved
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateFound:
		return "found"
	case StateResolving:
		return "resolving"
	case StateResolved:
		return "resolved"
	default:
		return "invalid"
	}
}

// Service is a resolved LNDP server.
type Service struct {
	Name   string
	Host   string
	Port   int
	UseTLS bool
}

// Addr returns host:port.
func (s Service) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// BaseURL returns the scheme and authority to reach the server.
func (s Service) BaseURL() string {
	scheme := "http"
	if s.UseTLS {
		scheme = "https"
	}

	return scheme + "://" + s.Addr()
}

// Handle returns a TreeHandle for path on this service.
func (s Service) Handle(path string) filesystem.TreeHandle {
	return filesystem.TreeHandle{
		Kind:        filesystem.KindService,
		Host:        s.Host,
		Port:        s.Port,
		ServiceName: s.Name,
		UseTLS:      s.UseTLS,
		Path:        path,
	}
}

// Resolver resolves a service name to an address.
type Resolver interface {
	Resolve(ctx context.Context, name string) (Service, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, name string) (Service, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, name string) (Service, error) {
	return f(ctx, name)
}

// Change is published to subscribers whenever the resolved set changes.
type Change struct {
	Services []Service
}

// Registry holds the state machine of every known service. At most one
// resolve is in flight at a time; found services wait in a FIFO queue.
// Disconnecting clears everything and bumps the epoch, so results of a
// resolve started before the disconnect are discarded. A cancelled resolve
// keeps its slot until its resolver returns.
type Registry struct {
	resolver Resolver
	logger   *zap.Logger
	timeout  time.Duration

	mu          sync.Mutex
	states      map[string]State
	resolved    map[string]Service
	pending     []string
	inFlight    bool
	cancel      context.CancelFunc
	epoch       uint64
	connected   bool
	subscribers map[chan Change]struct{}
	wg          sync.WaitGroup
}

// NewRegistry creates a connected, empty registry.
func NewRegistry(resolver Resolver) *Registry {
	return &Registry{
		resolver:    resolver,
		logger:      logging.Named("discovery"),
		timeout:     ResolveTimeout,
		states:      make(map[string]State),
		resolved:    make(map[string]Service),
		connected:   true,
		subscribers: make(map[chan Change]struct{}),
	}
}

// SetLogger replaces the logger.
func (r *Registry) SetLogger(logger *zap.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger = logger
}

// ServiceFound records a newly browsed service and starts resolving it when
// no other resolve is running. Known services are ignored.
func (r *Registry) ServiceFound(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.connected {
		r.logger.Debug("ignoring service found while disconnected", zap.String("service", name))
		return
	}

	if r.states[name] != StateUnknown {
		return
	}

	r.states[name] = StateFound
	r.pending = append(r.pending, name)
	r.logger.Debug("service found", zap.String("service", name))

	r.startNextLocked()
}

// ServiceLost forgets a service. A resolved service is retracted and
// subscribers are notified.
func (r *Registry) ServiceLost(name string) {
	r.mu.Lock()

	state := r.states[name]
	delete(r.states, name)
	r.pending = slices.DeleteFunc(r.pending, func(p string) bool { return p == name })

	var change *Change

	if state == StateResolved {
		delete(r.resolved, name)
		change = r.changeLocked()
	}

	r.mu.Unlock()

	if state != StateUnknown {
		r.logger.Info("service lost", zap.String("service", name), zap.Stringer("was", state))
	}

	if change != nil {
		r.publish(*change)
	}
}

// SetConnected records the host's network attachment. Going offline clears
// every found and resolved service and notifies subscribers once.
func (r *Registry) SetConnected(connected bool) {
	r.mu.Lock()

	if r.connected == connected {
		r.mu.Unlock()
		return
	}

	r.connected = connected

	if connected {
		r.mu.Unlock()
		r.logger.Info("network connected")

		return
	}

	r.epoch++
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}

	r.pending = nil
	clear(r.states)
	clear(r.resolved)
	change := r.changeLocked()
	r.mu.Unlock()

	r.logger.Info("network disconnected, cleared services")
	r.publish(*change)
}

// Connected reports the last attachment state set.
func (r *Registry) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.connected
}

// State returns the state of a service.
func (r *Registry) State(name string) State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.states[name]
}

// Lookup returns a resolved service.
func (r *Registry) Lookup(name string) (Service, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	svc, ok := r.resolved[name]

	return svc, ok
}

// Resolved returns the resolved services ordered by name.
func (r *Registry) Resolved() []Service {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.resolvedLocked()
}

// Subscribe returns a channel receiving every change of the resolved set.
// Changes are dropped for a subscriber whose buffer is full. The caller must
// call Unsubscribe when done.
func (r *Registry) Subscribe() chan Change {
	ch := make(chan Change, subscriberBuffer)

	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	r.mu.Unlock()

	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (r *Registry) Unsubscribe(ch chan Change) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subscribers[ch]; ok {
		delete(r.subscribers, ch)
		close(ch)
	}
}

// Await blocks until name is resolved or ctx is done.
func (r *Registry) Await(ctx context.Context, name string) (Service, error) {
	ch := r.Subscribe()
	defer r.Unsubscribe(ch)

	for {
		if svc, ok := r.Lookup(name); ok {
			return svc, nil
		}

		select {
		case <-ctx.Done():
			return Service{}, fmt.Errorf("failed to resolve %q: %w: %w", name, ErrNotResolved, ctx.Err())
		case <-ch:
		}
	}
}

// Wait blocks until no resolve is running. Intended for shutdown and tests.
func (r *Registry) Wait() {
	r.wg.Wait()
}

// startNextLocked dequeues the next found service and resolves it in the
// background, unless a resolve is already running.
func (r *Registry) startNextLocked() {
	if r.inFlight || r.resolver == nil {
		return
	}

	for len(r.pending) > 0 {
		name := r.pending[0]
		r.pending = r.pending[1:]

		if r.states[name] != StateFound {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)

		r.states[name] = StateResolving
		r.inFlight = true
		r.cancel = cancel
		epoch := r.epoch

		r.wg.Add(1)

		go r.resolve(ctx, cancel, name, epoch)

		return
	}
}

func (r *Registry) resolve(ctx context.Context, cancel context.CancelFunc, name string, epoch uint64) {
	defer r.wg.Done()
	defer cancel()

	svc, err := r.callResolver(ctx, name)

	r.mu.Lock()

	if r.epoch != epoch {
		// The slot stays taken until the stale resolver returns.
		r.inFlight = false
		r.startNextLocked()
		r.mu.Unlock()
		r.logger.Debug("discarding resolve from previous network", zap.String("service", name))

		return
	}

	r.inFlight = false
	r.cancel = nil

	var change *Change

	switch {
	case r.states[name] != StateResolving:
		r.logger.Debug("service lost while resolving", zap.String("service", name))
	case err != nil:
		delete(r.states, name)
		r.logger.Warn("failed to resolve service", zap.String("service", name), zap.Error(err))
	default:
		svc.Name = name
		r.states[name] = StateResolved
		r.resolved[name] = svc
		change = r.changeLocked()
		r.logger.Info("service resolved",
			zap.String("service", name),
			zap.String("addr", svc.Addr()),
			zap.Bool("tls", svc.UseTLS))
	}

	r.startNextLocked()
	r.mu.Unlock()

	if change != nil {
		r.publish(*change)
	}
}

// callResolver runs the resolver, turning a panic into an error.
func (r *Registry) callResolver(ctx context.Context, name string) (svc Service, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrResolverPanicked, rec)
		}
	}()

	return r.resolver.Resolve(ctx, name) //nolint:wrapcheck // Logged with the service name
}

func (r *Registry) changeLocked() *Change {
	return &Change{Services: r.resolvedLocked()}
}

func (r *Registry) resolvedLocked() []Service {
	services := make([]Service, 0, len(r.resolved))
	for _, svc := range r.resolved {
		services = append(services, svc)
	}

	slices.SortFunc(services, func(a, b Service) int { return strings.Compare(a.Name, b.Name) })

	return services
}

func (r *Registry) publish(change Change) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for ch := range r.subscribers {
		select {
		case ch <- change:
		default:
			r.logger.Debug("dropping discovery change for slow subscriber")
		}
	}
}
