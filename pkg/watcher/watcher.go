package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"solexplorer/pkg/config"
	"solexplorer/pkg/models"
	"solexplorer/pkg/rpc"
)

// DataSource defines the interface for fetching data.
type DataSource interface {
	FetchAccountInfo(ctx context.Context, rpcURLs []string, key solana.PublicKey) (*models.Account, error)
	FetchHealth(ctx context.Context, rpcURLs []string) (models.ClusterHealth, error)
	FetchSignatures(ctx context.Context, rpcURLs []string, key solana.PublicKey, limit int) ([]models.Signature, error)
	FetchTokenAccounts(ctx context.Context, rpcURLs []string, owner solana.PublicKey) ([]models.TokenHolding, error)
	FetchLargestAccounts(ctx context.Context, rpcURLs []string, mint solana.PublicKey) ([]models.LargestAccount, error)
}

// RealDataSource implements DataSource using the rpc package.
type RealDataSource struct{}

func (d *RealDataSource) FetchAccountInfo(ctx context.Context, rpcURLs []string, key solana.PublicKey) (*models.Account, error) {
	return rpc.FetchAccountInfo(ctx, rpcURLs, key)
}

func (d *RealDataSource) FetchHealth(ctx context.Context, rpcURLs []string) (models.ClusterHealth, error) {
	return rpc.FetchHealth(ctx, rpcURLs)
}

func (d *RealDataSource) FetchSignatures(ctx context.Context, rpcURLs []string, key solana.PublicKey, limit int) ([]models.Signature, error) {
	return rpc.FetchSignatures(ctx, rpcURLs, key, limit)
}

func (d *RealDataSource) FetchTokenAccounts(ctx context.Context, rpcURLs []string, owner solana.PublicKey) ([]models.TokenHolding, error) {
	return rpc.FetchTokenAccounts(ctx, rpcURLs, owner)
}

func (d *RealDataSource) FetchLargestAccounts(ctx context.Context, rpcURLs []string, mint solana.PublicKey) ([]models.LargestAccount, error) {
	return rpc.FetchLargestAccounts(ctx, rpcURLs, mint)
}

// ClusterStatus is the connectivity of the active cluster.
type ClusterStatus int

const (
	Connecting ClusterStatus = iota
	Connected
	Failure
)

func (s ClusterStatus) String() string {
	switch s {
	case Connected:
		return "connected"
	case Failure:
		return "failure"
	default:
		return "connecting"
	}
}

func (s ClusterStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type entry struct {
	state models.FetchState
	gen   uint64
}

// Watcher owns the account cache and the connectivity of one cluster.
type Watcher struct {
	config  config.GlobalConfig
	cluster config.ClusterConfig
	log     zerolog.Logger

	cache    map[solana.PublicKey]*entry
	observed map[solana.PublicKey]struct{} // seen while disconnected
	gen      uint64
	status   ClusterStatus
	health   models.ClusterHealth
	changed  chan struct{}

	ctx         context.Context
	cancel      context.CancelFunc
	subscribers []Subscriber
	mu          sync.RWMutex
	stopChan    chan struct{}
	stopOnce    sync.Once
	dataSource  DataSource
}

// NewWatcher creates a new Watcher instance.
func NewWatcher(cluster config.ClusterConfig, globalCfg config.GlobalConfig, logger zerolog.Logger) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		config:     globalCfg,
		cluster:    cluster,
		log:        logger.With().Str("component", "watcher").Logger(),
		cache:      make(map[solana.PublicKey]*entry),
		observed:   make(map[solana.PublicKey]struct{}),
		changed:    make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		stopChan:   make(chan struct{}),
		dataSource: &RealDataSource{},
	}
}

// SetDataSource allows overriding the data source (useful for testing).
func (w *Watcher) SetDataSource(ds DataSource) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dataSource = ds
}

// Cluster returns the active cluster.
func (w *Watcher) Cluster() config.ClusterConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cluster
}

// SetCluster switches to another cluster. The cache is dropped and in-flight
// fetches for the previous cluster are discarded when they complete.
func (w *Watcher) SetCluster(cluster config.ClusterConfig) {
	w.mu.Lock()
	w.cluster = cluster
	w.cache = make(map[solana.PublicKey]*entry)
	w.observed = make(map[solana.PublicKey]struct{})
	w.status = Connecting
	w.health = models.ClusterHealth{}
	w.broadcastLocked()
	w.mu.Unlock()

	w.log.Info().Str("cluster", cluster.Name).Msg("cluster changed")
	w.notify(Event{Type: EventClusterChanged, Data: ClusterUpdate{Cluster: cluster.Name, Status: Connecting}})
	go w.CheckHealth(w.ctx)
}

// Subscribe adds a new subscriber and returns a channel to receive events.
func (w *Watcher) Subscribe() Subscriber {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(Subscriber, 100)
	w.subscribers = append(w.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber.
func (w *Watcher) Unsubscribe(ch Subscriber) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, sub := range w.subscribers {
		if sub == ch {
			w.subscribers = append(w.subscribers[:i], w.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (w *Watcher) notify(event Event) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, sub := range w.subscribers {
		select {
		case sub <- event:
		default:
			w.log.Warn().Str("event", string(event.Type)).Msg("subscriber is slow, dropping event")
		}
	}
}

// broadcastLocked wakes every Await call. Caller holds w.mu.
func (w *Watcher) broadcastLocked() {
	close(w.changed)
	w.changed = make(chan struct{})
}

// Start begins the health polling loop.
func (w *Watcher) Start(ctx context.Context) {
	go w.pollingLoop(ctx)
}

// Stop stops the polling loop and cancels in-flight fetches.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		w.cancel()
	})
}

func (w *Watcher) pollingLoop(ctx context.Context) {
	w.CheckHealth(ctx)

	ticker := time.NewTicker(w.config.HealthInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.CheckHealth(ctx)
			if n := w.Prune(w.config.CacheTTL()); n > 0 {
				w.log.Debug().Int("entries", n).Msg("pruned expired accounts")
			}
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// CheckHealth probes the active cluster once and updates the cluster status.
func (w *Watcher) CheckHealth(ctx context.Context) ClusterStatus {
	w.mu.RLock()
	cluster := w.cluster
	ds := w.dataSource
	w.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, w.config.FetchTimeout())
	defer cancel()

	health, err := ds.FetchHealth(ctx, cluster.RPCURLs)
	status := Connected
	if err != nil {
		status = Failure
		health.Err = err
		w.log.Warn().Err(err).Str("cluster", cluster.Name).Msg("cluster health check failed")
	} else {
		w.log.Debug().Str("cluster", cluster.Name).Dur("latency", health.Latency).Msg("cluster healthy")
	}

	w.setClusterStatus(cluster.Name, status, health)
	return status
}

func (w *Watcher) setClusterStatus(clusterName string, status ClusterStatus, health models.ClusterHealth) {
	w.mu.Lock()
	if w.cluster.Name != clusterName {
		// Result of a probe against the previous cluster
		w.mu.Unlock()
		return
	}
	prev := w.status
	w.status = status
	w.health = health

	var started []solana.PublicKey
	if status == Connected && prev != Connected {
		for key := range w.observed {
			if w.statelessLocked(key) {
				w.startLocked(key)
				started = append(started, key)
			}
		}
		w.observed = make(map[solana.PublicKey]struct{})
	}
	w.broadcastLocked()
	w.mu.Unlock()

	if prev != status {
		w.log.Info().Str("cluster", clusterName).Stringer("status", status).Msg("cluster status changed")
	}
	w.notify(Event{Type: EventClusterStatusUpdated, Data: ClusterUpdate{Cluster: clusterName, Status: status, Health: health}})
	for _, key := range started {
		w.accountChanged(key)
	}
}

// ClusterStatus returns the connectivity of the active cluster.
func (w *Watcher) ClusterStatus() (ClusterStatus, models.ClusterHealth) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status, w.health
}

// Status returns the fetch state of an account. Unknown and expired keys
// report FetchNotRequested.
func (w *Watcher) Status(key solana.PublicKey) models.FetchState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.statusLocked(key)
}

func (w *Watcher) statusLocked(key solana.PublicKey) models.FetchState {
	e, ok := w.cache[key]
	if !ok || w.expired(e) {
		return models.FetchState{Status: models.FetchNotRequested}
	}
	return e.state
}

func (w *Watcher) expired(e *entry) bool {
	ttl := w.config.CacheTTL()
	if ttl <= 0 || e.state.Status == models.Fetching {
		return false
	}
	return time.Since(e.state.UpdatedAt) > ttl
}

func (w *Watcher) statelessLocked(key solana.PublicKey) bool {
	e, ok := w.cache[key]
	return !ok || w.expired(e)
}

// TriggerFetch starts a fetch unless one is in flight or a fresh result is
// cached. It does not wait for the result.
func (w *Watcher) TriggerFetch(key solana.PublicKey) {
	w.mu.Lock()
	if e, ok := w.cache[key]; ok && !w.expired(e) {
		if e.state.Status == models.Fetching || e.state.Status == models.Fetched {
			w.mu.Unlock()
			return
		}
	}
	w.startLocked(key)
	w.mu.Unlock()
	w.accountChanged(key)
}

// Refetch always starts a new fetch. Results of older fetches for the same
// key are discarded.
func (w *Watcher) Refetch(key solana.PublicKey) {
	w.mu.Lock()
	w.startLocked(key)
	w.mu.Unlock()
	w.accountChanged(key)
}

// Observe fetches an account that has no state yet once the cluster is
// connected. Keys observed while disconnected are fetched on reconnect.
func (w *Watcher) Observe(key solana.PublicKey) {
	w.mu.Lock()
	if !w.statelessLocked(key) {
		w.mu.Unlock()
		return
	}
	if w.status != Connected {
		w.observed[key] = struct{}{}
		w.mu.Unlock()
		return
	}
	w.startLocked(key)
	w.mu.Unlock()
	w.accountChanged(key)
}

// startLocked marks key as fetching and launches the fetch. Caller holds w.mu.
func (w *Watcher) startLocked(key solana.PublicKey) {
	w.gen++
	gen := w.gen
	w.cache[key] = &entry{
		state: models.FetchState{Status: models.Fetching, UpdatedAt: time.Now()},
		gen:   gen,
	}
	w.broadcastLocked()

	w.log.Debug().Str("address", key.String()).Uint64("generation", gen).Msg("fetch started")
	go w.fetch(key, gen, w.cluster.RPCURLs, w.dataSource)
}

func (w *Watcher) fetch(key solana.PublicKey, gen uint64, rpcURLs []string, ds DataSource) {
	ctx, cancel := context.WithTimeout(w.ctx, w.config.FetchTimeout())
	defer cancel()

	account, err := ds.FetchAccountInfo(ctx, rpcURLs, key)
	state := models.FetchState{Status: models.Fetched, Account: account, UpdatedAt: time.Now()}
	if err != nil {
		state = models.FetchState{Status: models.FetchFailed, Err: err, UpdatedAt: time.Now()}
	}

	w.mu.Lock()
	e, ok := w.cache[key]
	if !ok || e.gen != gen {
		w.mu.Unlock()
		w.log.Debug().Str("address", key.String()).Uint64("generation", gen).Msg("discarding stale fetch result")
		return
	}
	e.state = state
	w.broadcastLocked()
	w.mu.Unlock()

	if err != nil {
		w.log.Warn().Err(err).Str("address", key.String()).Msg("account fetch failed")
	} else {
		w.log.Debug().Str("address", key.String()).Msg("account fetched")
	}
	w.accountChanged(key)
}

func (w *Watcher) accountChanged(key solana.PublicKey) {
	w.notify(Event{Type: EventAccountUpdated, Data: AccountUpdate{Key: key, State: w.Status(key)}})
}

// Await blocks until key is no longer being fetched.
func (w *Watcher) Await(ctx context.Context, key solana.PublicKey) (models.FetchState, error) {
	for {
		w.mu.RLock()
		state := w.statusLocked(key)
		changed := w.changed
		w.mu.RUnlock()

		if state.Status != models.Fetching {
			return state, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}

// Prune drops settled entries older than ttl and returns how many were removed.
func (w *Watcher) Prune(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for key, e := range w.cache {
		if e.state.Status != models.Fetching && time.Since(e.state.UpdatedAt) > ttl {
			delete(w.cache, key)
			n++
		}
	}
	return n
}

// Signatures returns the recent transaction history of an address.
func (w *Watcher) Signatures(ctx context.Context, key solana.PublicKey) ([]models.Signature, error) {
	cluster, ds := w.source()
	ctx, cancel := context.WithTimeout(ctx, w.config.FetchTimeout())
	defer cancel()
	return ds.FetchSignatures(ctx, cluster.RPCURLs, key, w.config.HistoryLimit)
}

// TokenAccounts returns the token accounts owned by an address.
func (w *Watcher) TokenAccounts(ctx context.Context, owner solana.PublicKey) ([]models.TokenHolding, error) {
	cluster, ds := w.source()
	ctx, cancel := context.WithTimeout(ctx, w.config.FetchTimeout())
	defer cancel()
	return ds.FetchTokenAccounts(ctx, cluster.RPCURLs, owner)
}

// LargestAccounts returns the largest holders of a mint.
func (w *Watcher) LargestAccounts(ctx context.Context, mint solana.PublicKey) ([]models.LargestAccount, error) {
	cluster, ds := w.source()
	ctx, cancel := context.WithTimeout(ctx, w.config.FetchTimeout())
	defer cancel()
	return ds.FetchLargestAccounts(ctx, cluster.RPCURLs, mint)
}

func (w *Watcher) source() (config.ClusterConfig, DataSource) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cluster, w.dataSource
}
