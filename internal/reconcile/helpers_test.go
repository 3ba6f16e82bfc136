package reconcile_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"holder-roles/internal/concurrency"
	"holder-roles/internal/directory"
	dirstub "holder-roles/internal/directory/stub"
	"holder-roles/internal/domain"
	"holder-roles/internal/reconcile"
	chainstub "holder-roles/internal/solana/stub"
	"holder-roles/internal/storage"
	"holder-roles/internal/storage/memory"
	"holder-roles/internal/verify"
)

const (
	projectUA  = "PrjUA1111111111111111111111111111111111111"
	donationUA = "DonUA1111111111111111111111111111111111111"
	serverID   = "G1"
	project    = "alpha"
)

var now = time.UnixMilli(1704067200000)

type env struct {
	records  *memory.RecordStore
	projects *storage.ProjectStore
	chain    *chainstub.Chain
	dir      *dirstub.Directory
	history  *memory.SweepHistoryStore
	section  *concurrency.ExclusiveSection
	opts     reconcile.Options
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		records: memory.NewRecordStore(),
		chain:   chainstub.NewChain(),
		dir:     dirstub.NewDirectory(),
		history: memory.NewSweepHistoryStore(),
		section: concurrency.NewExclusiveSection(),
	}
	e.projects = storage.NewProjectStore(e.records)
	e.dir.AddRoles("R1", "R2")

	loader := verify.NewWalletLoader(verify.LoaderOptions{
		Chain:             e.chain,
		Retry:             verify.RetryPolicy{MaxAttempts: 1, Unit: time.Millisecond, IntN: func(int) int { return 0 }},
		DonationAuthority: donationUA,
	})
	e.opts = reconcile.Options{
		Projects:    e.projects,
		Wallets:     loader,
		Directories: &dirstub.Factory{Dir: e.dir},
		Section:     e.section,
		History:     e.history,
		Now:         func() time.Time { return now },
	}
	return e
}

func (e *env) reconciler() *reconcile.Reconciler {
	return reconcile.New(e.opts)
}

func baseConfig() *domain.ProjectConfig {
	return &domain.ProjectConfig{
		DiscordRoleID:   "R1",
		DiscordServerID: serverID,
		UpdateAuthority: projectUA,
		Verifications:   1,
	}
}

func (e *env) saveProject(t *testing.T, name string, cfg *domain.ProjectConfig, holders ...*domain.HolderRecord) {
	t.Helper()
	ctx := context.Background()
	if err := e.projects.SaveConfig(ctx, name, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	if err := e.projects.SaveHolders(ctx, name, holders); err != nil {
		t.Fatalf("SaveHolders: %v", err)
	}
}

// holdNFTs gives wallet n project NFTs and the fingerprint lastTx.
func (e *env) holdNFTs(wallet string, n int, lastTx string) {
	w := &chainstub.Wallet{LastTx: lastTx}
	for i := 0; i < n; i++ {
		w.NFTs = append(w.NFTs, domain.NFT{Mint: wallet + "-nft-" + string(rune('a'+i)), UpdateAuthority: projectUA})
	}
	e.chain.SetWallet(wallet, w)
}

func (e *env) holders(t *testing.T, name string) map[string]*domain.HolderRecord {
	t.Helper()
	list, err := e.projects.Holders(context.Background(), name)
	if err != nil {
		t.Fatalf("Holders: %v", err)
	}
	out := make(map[string]*domain.HolderRecord, len(list))
	for _, h := range list {
		out[h.PublicKey] = h
	}
	return out
}

func (e *env) config(t *testing.T, name string) *domain.ProjectConfig {
	t.Helper()
	cfg, err := e.projects.Config(context.Background(), name)
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	return cfg
}

// fakeWallets is a scripted reconcile.Wallets that tracks concurrency.
type fakeWallets struct {
	mu       sync.Mutex
	roles    map[string][]string
	panics   map[string]bool
	delay    time.Duration
	inFlight int
	peak     int

	// onLastTx runs at the start of each holder unit when set.
	onLastTx func(address string)
}

func (f *fakeWallets) Evaluate(_ context.Context, address string, _ *domain.ProjectConfig) (domain.Entitlement, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	roles, boom := f.roles[address], f.panics[address]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	time.Sleep(f.delay)
	if boom {
		panic("evaluate " + address)
	}
	return domain.Entitlement{Roles: roles}, nil
}

func (f *fakeWallets) LastTransaction(_ context.Context, address string) string {
	if f.onLastTx != nil {
		f.onLastTx(address)
	}
	return "tx-" + address
}

var _ reconcile.Wallets = (*fakeWallets)(nil)
var _ directory.Factory = (*dirstub.Factory)(nil)
