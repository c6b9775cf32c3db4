package watcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"solexplorer/pkg/account"
	"solexplorer/pkg/config"
	"solexplorer/pkg/models"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var _ account.Bridge = (*Watcher)(nil)

type MockDataSource struct {
	mock.Mock
}

func (m *MockDataSource) FetchAccountInfo(ctx context.Context, rpcURLs []string, key solana.PublicKey) (*models.Account, error) {
	args := m.Called(rpcURLs, key)
	acc, _ := args.Get(0).(*models.Account)
	return acc, args.Error(1)
}

func (m *MockDataSource) FetchHealth(ctx context.Context, rpcURLs []string) (models.ClusterHealth, error) {
	args := m.Called(rpcURLs)
	return args.Get(0).(models.ClusterHealth), args.Error(1)
}

func (m *MockDataSource) FetchSignatures(ctx context.Context, rpcURLs []string, key solana.PublicKey, limit int) ([]models.Signature, error) {
	args := m.Called(rpcURLs, key, limit)
	return args.Get(0).([]models.Signature), args.Error(1)
}

func (m *MockDataSource) FetchTokenAccounts(ctx context.Context, rpcURLs []string, owner solana.PublicKey) ([]models.TokenHolding, error) {
	args := m.Called(rpcURLs, owner)
	return args.Get(0).([]models.TokenHolding), args.Error(1)
}

func (m *MockDataSource) FetchLargestAccounts(ctx context.Context, rpcURLs []string, mint solana.PublicKey) ([]models.LargestAccount, error) {
	args := m.Called(rpcURLs, mint)
	return args.Get(0).([]models.LargestAccount), args.Error(1)
}

var (
	devnet  = config.ClusterConfig{Name: "devnet", RPCURLs: []string{"http://devnet"}}
	testnet = config.ClusterConfig{Name: "testnet", RPCURLs: []string{"http://testnet"}}
	voteKey = solana.MustPublicKeyFromBase58("Vote111111111111111111111111111111111111111")
)

func newTestWatcher(t *testing.T, globalCfg config.GlobalConfig) (*Watcher, *MockDataSource) {
	t.Helper()
	mockDS := new(MockDataSource)
	w := NewWatcher(devnet, globalCfg, zerolog.Nop())
	w.SetDataSource(mockDS)
	t.Cleanup(w.Stop)
	return w, mockDS
}

func voteAccount() *models.Account {
	lamports := uint64(27074400)
	return &models.Account{
		Pubkey:   voteKey,
		Lamports: &lamports,
		Details: &models.AccountDetails{
			Owner: solana.VoteProgramID,
			Data: &models.ProgramData{
				Program: "vote",
				Parsed:  map[string]any{"type": "vote", "info": map[string]any{}},
			},
		},
	}
}

func await(t *testing.T, w *Watcher, key solana.PublicKey) models.FetchState {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	state, err := w.Await(ctx, key)
	require.NoError(t, err)
	return state
}

func TestNewWatcher(t *testing.T) {
	w := NewWatcher(devnet, config.GlobalConfig{}, zerolog.Nop())

	assert.NotNil(t, w)
	assert.Equal(t, "devnet", w.Cluster().Name)
	status, _ := w.ClusterStatus()
	assert.Equal(t, Connecting, status)
	assert.Equal(t, models.FetchNotRequested, w.Status(voteKey).Status)
}

func TestSubscribeUnsubscribe(t *testing.T) {
	w := NewWatcher(devnet, config.GlobalConfig{}, zerolog.Nop())
	sub := w.Subscribe()
	assert.NotNil(t, sub)

	w.mu.RLock()
	assert.Equal(t, 1, len(w.subscribers))
	w.mu.RUnlock()

	w.Unsubscribe(sub)
	w.mu.RLock()
	assert.Equal(t, 0, len(w.subscribers))
	w.mu.RUnlock()
}

func TestObserve_Connected(t *testing.T) {
	w, mockDS := newTestWatcher(t, config.GlobalConfig{})
	mockDS.On("FetchHealth", devnet.RPCURLs).Return(models.ClusterHealth{RPCURL: "http://devnet"}, nil)
	mockDS.On("FetchAccountInfo", devnet.RPCURLs, voteKey).Return(voteAccount(), nil).Once()

	require.Equal(t, Connected, w.CheckHealth(context.Background()))

	sub := w.Subscribe()
	w.Observe(voteKey)
	state := await(t, w, voteKey)

	assert.Equal(t, models.Fetched, state.Status)
	require.NotNil(t, state.Account)
	assert.Equal(t, uint64(27074400), *state.Account.Lamports)

	// A cached account is not fetched again
	w.Observe(voteKey)
	w.TriggerFetch(voteKey)
	mockDS.AssertNumberOfCalls(t, "FetchAccountInfo", 1)

	select {
	case ev := <-sub:
		assert.Equal(t, EventAccountUpdated, ev.Type)
		assert.Equal(t, voteKey, ev.Data.(AccountUpdate).Key)
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for account event")
	}
}

func TestObserve_WaitsForConnectivity(t *testing.T) {
	w, mockDS := newTestWatcher(t, config.GlobalConfig{})
	mockDS.On("FetchHealth", devnet.RPCURLs).Return(models.ClusterHealth{}, errors.New("connection refused")).Once()
	mockDS.On("FetchHealth", devnet.RPCURLs).Return(models.ClusterHealth{RPCURL: "http://devnet"}, nil)
	mockDS.On("FetchAccountInfo", devnet.RPCURLs, voteKey).Return(voteAccount(), nil).Once()

	require.Equal(t, Failure, w.CheckHealth(context.Background()))
	_, health := w.ClusterStatus()
	assert.Error(t, health.Err)

	w.Observe(voteKey)
	assert.Equal(t, models.FetchNotRequested, w.Status(voteKey).Status)
	mockDS.AssertNotCalled(t, "FetchAccountInfo", mock.Anything, mock.Anything)

	require.Equal(t, Connected, w.CheckHealth(context.Background()))
	state := await(t, w, voteKey)
	assert.Equal(t, models.Fetched, state.Status)
	mockDS.AssertNumberOfCalls(t, "FetchAccountInfo", 1)
}

func TestTriggerFetch_Idempotent(t *testing.T) {
	w, mockDS := newTestWatcher(t, config.GlobalConfig{})
	release := make(chan struct{})
	mockDS.On("FetchAccountInfo", devnet.RPCURLs, voteKey).
		Run(func(mock.Arguments) { <-release }).
		Return(voteAccount(), nil).Once()

	w.TriggerFetch(voteKey)
	w.TriggerFetch(voteKey)
	assert.Equal(t, models.Fetching, w.Status(voteKey).Status)

	close(release)
	state := await(t, w, voteKey)
	assert.Equal(t, models.Fetched, state.Status)
	mockDS.AssertNumberOfCalls(t, "FetchAccountInfo", 1)
}

func TestTriggerFetch_AfterFailure(t *testing.T) {
	w, mockDS := newTestWatcher(t, config.GlobalConfig{})
	mockDS.On("FetchAccountInfo", devnet.RPCURLs, voteKey).Return(nil, errors.New("timeout")).Once()
	mockDS.On("FetchAccountInfo", devnet.RPCURLs, voteKey).Return(voteAccount(), nil).Once()

	w.TriggerFetch(voteKey)
	state := await(t, w, voteKey)
	assert.Equal(t, models.FetchFailed, state.Status)
	assert.EqualError(t, state.Err, "timeout")

	w.TriggerFetch(voteKey)
	state = await(t, w, voteKey)
	assert.Equal(t, models.Fetched, state.Status)
}

func TestRefetch_DiscardsStaleResult(t *testing.T) {
	w, mockDS := newTestWatcher(t, config.GlobalConfig{})
	started := make(chan struct{})
	release := make(chan struct{})
	mockDS.On("FetchAccountInfo", devnet.RPCURLs, voteKey).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(voteAccount(), nil).Once()
	mockDS.On("FetchAccountInfo", devnet.RPCURLs, voteKey).Return(nil, errors.New("boom")).Once()

	w.TriggerFetch(voteKey)
	<-started
	w.Refetch(voteKey)

	state := await(t, w, voteKey)
	assert.Equal(t, models.FetchFailed, state.Status)

	close(release)
	assert.Never(t, func() bool {
		return w.Status(voteKey).Status != models.FetchFailed
	}, 100*time.Millisecond, 10*time.Millisecond)
}

func TestSetCluster_DropsCache(t *testing.T) {
	w, mockDS := newTestWatcher(t, config.GlobalConfig{})
	started := make(chan struct{})
	release := make(chan struct{})
	mockDS.On("FetchAccountInfo", devnet.RPCURLs, voteKey).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(voteAccount(), nil).Once()
	mockDS.On("FetchHealth", testnet.RPCURLs).Return(models.ClusterHealth{}, nil).Maybe()

	w.TriggerFetch(voteKey)
	<-started
	w.SetCluster(testnet)
	assert.Equal(t, "testnet", w.Cluster().Name)

	close(release)
	assert.Never(t, func() bool {
		return w.Status(voteKey).Status != models.FetchNotRequested
	}, 100*time.Millisecond, 10*time.Millisecond)
}

func TestCacheTTL(t *testing.T) {
	w, _ := newTestWatcher(t, config.GlobalConfig{CacheTTLSeconds: 30})

	w.mu.Lock()
	w.cache[voteKey] = &entry{state: models.FetchState{
		Status:    models.Fetched,
		Account:   voteAccount(),
		UpdatedAt: time.Now().Add(-time.Minute),
	}}
	w.mu.Unlock()

	assert.Equal(t, models.FetchNotRequested, w.Status(voteKey).Status)
	assert.Equal(t, 1, w.Prune(30*time.Second))
	assert.Equal(t, 0, w.Prune(30*time.Second))
	assert.Equal(t, 0, w.Prune(0))
}

func TestAwait_ContextCancelled(t *testing.T) {
	w, mockDS := newTestWatcher(t, config.GlobalConfig{})
	release := make(chan struct{})
	defer close(release)
	mockDS.On("FetchAccountInfo", devnet.RPCURLs, voteKey).
		Run(func(mock.Arguments) { <-release }).
		Return(voteAccount(), nil).Maybe()

	w.TriggerFetch(voteKey)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	state, err := w.Await(ctx, voteKey)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, models.Fetching, state.Status)
}

func TestTabData(t *testing.T) {
	w, mockDS := newTestWatcher(t, config.GlobalConfig{HistoryLimit: 5})
	mockDS.On("FetchSignatures", devnet.RPCURLs, voteKey, 5).Return([]models.Signature{{Signature: "sig"}}, nil)
	mockDS.On("FetchTokenAccounts", devnet.RPCURLs, voteKey).Return([]models.TokenHolding{{Account: "acc"}}, nil)
	mockDS.On("FetchLargestAccounts", devnet.RPCURLs, voteKey).Return([]models.LargestAccount{}, errors.New("not a mint"))

	sigs, err := w.Signatures(context.Background(), voteKey)
	require.NoError(t, err)
	assert.Len(t, sigs, 1)

	holdings, err := w.TokenAccounts(context.Background(), voteKey)
	require.NoError(t, err)
	assert.Equal(t, "acc", holdings[0].Account)

	_, err = w.LargestAccounts(context.Background(), voteKey)
	assert.Error(t, err)
	mockDS.AssertExpectations(t)
}

func TestControllerOverWatcher(t *testing.T) {
	w, mockDS := newTestWatcher(t, config.GlobalConfig{})
	mockDS.On("FetchHealth", devnet.RPCURLs).Return(models.ClusterHealth{}, nil)
	release := make(chan struct{})
	mockDS.On("FetchAccountInfo", devnet.RPCURLs, voteKey).
		Run(func(mock.Arguments) { <-release }).
		Return(voteAccount(), nil).Once()
	w.CheckHealth(context.Background())

	ctrl := account.NewController(w)
	page := ctrl.Load(voteKey.String(), "votes")
	assert.Equal(t, account.PageLoading, page.State)

	close(release)
	await(t, w, voteKey)
	page = ctrl.Load(voteKey.String(), "votes")
	assert.Equal(t, account.PageDisplay, page.State)
	assert.Equal(t, account.TabVotes, page.Tab)

	page = ctrl.Load(voteKey.String(), "tokens")
	assert.Equal(t, account.PageRedirect, page.State)
	assert.Equal(t, "/address/"+voteKey.String(), page.RedirectTo)
}

func TestPollingLoop(t *testing.T) {
	w, mockDS := newTestWatcher(t, config.GlobalConfig{})
	checked := make(chan struct{}, 1)
	mockDS.On("FetchHealth", devnet.RPCURLs).
		Run(func(mock.Arguments) {
			select {
			case checked <- struct{}{}:
			default:
			}
		}).
		Return(models.ClusterHealth{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	select {
	case <-checked:
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for health check")
	}
	assert.Eventually(t, func() bool {
		status, _ := w.ClusterStatus()
		return status == Connected
	}, time.Second, 10*time.Millisecond)
}
