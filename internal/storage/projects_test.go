package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holder-roles/internal/domain"
	"holder-roles/internal/storage"
	"holder-roles/internal/storage/memory"
)

func TestProjectStore_ConfigRoundTrip(t *testing.T) {
	records := memory.NewRecordStore()
	store := storage.NewProjectStore(records)
	ctx := context.Background()

	cfg := &domain.ProjectConfig{
		DiscordRoleID:   "r1",
		DiscordServerID: "g1",
		IsHolder:        true,
		Roles:           []domain.RoleDefinition{{Key: "Eyes", Value: "Laser", DiscordRoleID: "r2"}},
		UpdateAuthority: "ua",
		Verifications:   3,
	}
	require.NoError(t, store.SaveConfig(ctx, "alpha", cfg))

	raw, err := records.Read(ctx, "config/prod-alpha.json")
	require.NoError(t, err)
	assert.Contains(t, raw, `"discord_role_id":"r1"`)
	assert.Contains(t, raw, `"is_holder":true`)

	got, err := store.Config(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestProjectStore_ConfigRequiredBalanceForms(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{name: "number", value: `3`, want: 3},
		{name: "numeric string", value: `"2"`, want: 2},
		{name: "padded string", value: `" 4 "`, want: 4},
		{name: "blank string", value: `""`, want: 1},
		{name: "null", value: `null`, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := memory.NewRecordStore()
			ctx := context.Background()
			doc := `{"discord_role_id":"r1","is_holder":true,"verifications":1,` +
				`"roles":[{"key":"Eyes","value":"Laser","required_balance":` + tt.value + `,"discord_role_id":"r2"}]}`
			require.NoError(t, records.Write(ctx, "config/prod-alpha.json", doc))

			cfg, err := storage.NewProjectStore(records).Config(ctx, "alpha")
			require.NoError(t, err)
			require.Len(t, cfg.Roles, 1)
			assert.Equal(t, domain.RoleDefinition{Key: "Eyes", Value: "Laser", RequiredBalance: tt.want, DiscordRoleID: "r2"}, cfg.Roles[0])
		})
	}
}

func TestProjectStore_ConfigRequiredBalanceNotNumeric(t *testing.T) {
	records := memory.NewRecordStore()
	ctx := context.Background()
	doc := `{"roles":[{"key":"Eyes","value":"Laser","required_balance":"many","discord_role_id":"r2"}]}`
	require.NoError(t, records.Write(ctx, "config/prod-alpha.json", doc))

	_, err := storage.NewProjectStore(records).Config(ctx, "alpha")
	assert.ErrorContains(t, err, "required_balance")
}

func TestProjectStore_ConfigNotFound(t *testing.T) {
	store := storage.NewProjectStore(memory.NewRecordStore())

	_, err := store.Config(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProjectStore_HoldersMissingIsEmpty(t *testing.T) {
	store := storage.NewProjectStore(memory.NewRecordStore())

	holders, err := store.Holders(context.Background(), "alpha")
	require.NoError(t, err)
	assert.NotNil(t, holders)
	assert.Empty(t, holders)
}

func TestProjectStore_HoldersRoundTrip(t *testing.T) {
	records := memory.NewRecordStore()
	store := storage.NewProjectStore(records)
	ctx := context.Background()

	holders := []*domain.HolderRecord{
		{DiscordName: "alice#0001", PublicKey: "w1", Roles: []string{"r1"}, LastTx: "sig1"},
		{DiscordName: "bob#0002", PublicKey: "w2", Roles: []string{}},
	}
	require.NoError(t, store.SaveHolders(ctx, "alpha", holders))

	raw, err := records.Read(ctx, "holders/prod-alpha.json")
	require.NoError(t, err)
	assert.Contains(t, raw, `"discordName":"alice#0001"`)
	assert.Contains(t, raw, `"publicKey":"w1"`)

	got, err := store.Holders(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, holders, got)
}

func TestProjectStore_SaveNilHoldersWritesEmptyArray(t *testing.T) {
	records := memory.NewRecordStore()
	store := storage.NewProjectStore(records)
	ctx := context.Background()

	require.NoError(t, store.SaveHolders(ctx, "alpha", nil))
	raw, err := records.Read(ctx, "holders/prod-alpha.json")
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)
}

func TestProjectStore_Projects(t *testing.T) {
	records := memory.NewRecordStore()
	store := storage.NewProjectStore(records)
	ctx := context.Background()

	require.NoError(t, store.SaveConfig(ctx, "zeta", &domain.ProjectConfig{}))
	require.NoError(t, store.SaveConfig(ctx, "alpha", &domain.ProjectConfig{}))
	require.NoError(t, store.SaveHolders(ctx, "beta", nil))
	require.NoError(t, records.Write(ctx, "config/other.txt", "x"))

	projects, err := store.Projects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, projects)
}

func TestProjectStore_RemoveProject(t *testing.T) {
	records := memory.NewRecordStore()
	store := storage.NewProjectStore(records)
	ctx := context.Background()

	require.NoError(t, store.SaveConfig(ctx, "alpha", &domain.ProjectConfig{}))
	require.NoError(t, store.SaveHolders(ctx, "alpha", nil))
	require.NoError(t, store.SaveConfig(ctx, "beta", &domain.ProjectConfig{}))

	require.NoError(t, store.RemoveProject(ctx, "alpha"))

	_, err := records.Read(ctx, "holders/prod-alpha.json")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	projects, err := store.Projects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, projects)

	// No holder collection is fine.
	require.NoError(t, store.RemoveProject(ctx, "beta"))
	assert.ErrorIs(t, store.RemoveProject(ctx, "beta"), storage.ErrNotFound)
}

func TestProjectStore_Revalidated(t *testing.T) {
	store := storage.NewProjectStore(memory.NewRecordStore())
	ctx := context.Background()

	_, err := store.LastRevalidated(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	at := time.UnixMilli(1704067200123)
	require.NoError(t, store.MarkRevalidated(ctx, at))

	got, err := store.LastRevalidated(ctx)
	require.NoError(t, err)
	assert.True(t, got.Equal(at))
}

func TestProjectStore_EmptyProjectName(t *testing.T) {
	store := storage.NewProjectStore(memory.NewRecordStore())
	ctx := context.Background()

	_, err := store.Config(ctx, "")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
	assert.ErrorIs(t, store.SaveHolders(ctx, "", nil), storage.ErrInvalidInput)
}
