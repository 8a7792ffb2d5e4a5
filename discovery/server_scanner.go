package discovery

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// EventServerUpserted is emitted when a server appears or metadata changes.
	EventServerUpserted EventType = "server_upserted"
	// EventServerRemoved is emitted when a previously seen server disappears.
	EventServerRemoved EventType = "server_removed"
)

// EventType identifies server discovery updates.
type EventType string

// Event carries discovery updates for startup wiring and UI consumers.
type Event struct {
	Type   EventType
	Server DiscoveredServer
}

type refreshRequest struct {
	ctx  context.Context
	done chan error
}

// ServerScanner discovers chat servers with periodic and manual mDNS browse
// operations.
type ServerScanner struct {
	cfg Config

	browse browseFunc

	mu      sync.RWMutex
	servers map[string]DiscoveredServer

	events chan Event

	startOnce sync.Once
	stopOnce  sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	refreshRequests chan refreshRequest
}

// NewServerScanner creates a scanner with config defaults applied.
func NewServerScanner(config Config) (*ServerScanner, error) {
	cfg := config.withDefaults()

	browse := cfg.browseFn
	if browse == nil {
		resolver, err := zeroconf.NewResolver(nil)
		if err != nil {
			return nil, err
		}
		browse = resolver.Browse
	}

	return &ServerScanner{
		cfg:             cfg,
		browse:          browse,
		servers:         make(map[string]DiscoveredServer),
		events:          make(chan Event, 128),
		refreshRequests: make(chan refreshRequest),
	}, nil
}

// Start begins background server scanning.
func (s *ServerScanner) Start() {
	s.startOnce.Do(func() {
		s.ctx, s.cancel = context.WithCancel(context.Background())
		s.wg.Add(1)
		go s.loop()
	})
}

// Stop stops background scanning.
func (s *ServerScanner) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
		close(s.events)
	})
}

// Events provides asynchronous discovery updates.
func (s *ServerScanner) Events() <-chan Event {
	return s.events
}

// Refresh triggers an immediate scan.
func (s *ServerScanner) Refresh(ctx context.Context) error {
	if s.ctx == nil {
		return errors.New("server scanner is not started")
	}

	req := refreshRequest{
		ctx:  ctx,
		done: make(chan error, 1),
	}

	select {
	case s.refreshRequests <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return errors.New("server scanner is stopped")
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return errors.New("server scanner is stopped")
	}
}

// ListServers returns the current in-memory discovered server snapshot.
func (s *ServerScanner) ListServers() []DiscoveredServer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]DiscoveredServer, 0, len(s.servers))
	for _, server := range s.servers {
		out = append(out, server)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

func (s *ServerScanner) loop() {
	defer s.wg.Done()

	// Prime the available server list immediately.
	s.runScan(context.Background())

	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runScan(context.Background())
		case req := <-s.refreshRequests:
			req.done <- s.runScan(req.ctx)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ServerScanner) runScan(requestCtx context.Context) error {
	scanCtx, cancel := context.WithTimeout(s.ctx, s.cfg.ScanTimeout)
	defer cancel()

	if requestCtx != nil {
		go func() {
			select {
			case <-requestCtx.Done():
				cancel()
			case <-scanCtx.Done():
			}
		}()
	}

	entries := make(chan *zeroconf.ServiceEntry, 32)
	collected := make(map[string]DiscoveredServer)
	var collectedMu sync.Mutex
	collectorDone := make(chan struct{})

	go func() {
		defer close(collectorDone)
		for {
			select {
			case <-scanCtx.Done():
				return
			case entry := <-entries:
				if entry == nil {
					continue
				}
				server, ok := parseEntry(entry)
				if !ok {
					continue
				}
				server.LastSeen = time.Now()
				collectedMu.Lock()
				collected[server.Name] = server
				collectedMu.Unlock()
			}
		}
	}()

	browseErr := s.browse(scanCtx, s.cfg.Service, s.cfg.Domain, entries)
	if browseErr != nil {
		return browseErr
	}

	<-scanCtx.Done()
	<-collectorDone
	collectedMu.Lock()
	next := collected
	collectedMu.Unlock()

	s.applySnapshot(next)

	// A timeout just means this scan window ended naturally.
	if err := scanCtx.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *ServerScanner) applySnapshot(next map[string]DiscoveredServer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.servers
	s.servers = next

	for name, server := range next {
		old, exists := previous[name]
		if !exists || !serversEqual(old, server) {
			s.emitEvent(Event{Type: EventServerUpserted, Server: server})
		}
	}

	for name, server := range previous {
		if _, exists := next[name]; !exists {
			s.emitEvent(Event{Type: EventServerRemoved, Server: server})
		}
	}
}

func (s *ServerScanner) emitEvent(event Event) {
	select {
	case s.events <- event:
	default:
	}
}
