package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinyue/seek-portal/internal/model"
	"github.com/ashwinyue/seek-portal/internal/testutil"
)

func TestRegistry_RefreshAndGet(t *testing.T) {
	store := testutil.NewMemoryAgentStore(testutil.HostAgent(), testutil.ParserAgent())
	reg := NewRegistry(store)

	n, err := reg.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	a, err := reg.Get(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, "host_agent", a.Name)
	assert.Equal(t, 0, store.Gets, "cached agents must not hit the store")
}

func TestRegistry_ReadThroughOnMiss(t *testing.T) {
	store := testutil.NewMemoryAgentStore(testutil.HostAgent())
	reg := NewRegistry(store)
	_, err := reg.Refresh(context.Background())
	require.NoError(t, err)

	store.Put(&model.Agent{ID: 11, Name: "course_agent"})

	a, err := reg.Get(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, model.AgentRolePlain, a.Role, "empty role defaults to plain")
	assert.Equal(t, model.ResponseFormatText, a.ResponseFormat)

	_, err = reg.Get(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Gets)
}

func TestRegistry_GetMissing(t *testing.T) {
	reg := NewRegistry(testutil.NewMemoryAgentStore())

	_, err := reg.Get(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAgentNotFound))
}

func TestRegistry_RefreshReplacesSnapshot(t *testing.T) {
	store := testutil.NewMemoryAgentStore(testutil.HostAgent())
	reg := NewRegistry(store)
	_, err := reg.Refresh(context.Background())
	require.NoError(t, err)

	updated := testutil.HostAgent()
	updated.SystemPrompt = "Be concise."
	store.Put(updated)

	a, _ := reg.Get(context.Background(), 8)
	assert.Equal(t, "You are the Seek Portal assistant.", a.SystemPrompt)

	_, err = reg.Refresh(context.Background())
	require.NoError(t, err)
	a, _ = reg.Get(context.Background(), 8)
	assert.Equal(t, "Be concise.", a.SystemPrompt)
}

func TestRegistry_RefreshError(t *testing.T) {
	store := testutil.NewMemoryAgentStore(testutil.HostAgent())
	store.ListErr = errors.New("db down")
	reg := NewRegistry(store)

	_, err := reg.Refresh(context.Background())
	assert.Error(t, err)
}

func TestRegistry_SkipsInvalidRole(t *testing.T) {
	store := testutil.NewMemoryAgentStore(
		testutil.HostAgent(),
		&model.Agent{ID: 3, Name: "legacy", Role: "host_parser"},
	)
	reg := NewRegistry(store)

	n, err := reg.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = reg.Get(context.Background(), 3)
	assert.True(t, errors.Is(err, ErrAgentNotFound))
}

func TestRegistry_FirstByRoleAndList(t *testing.T) {
	second := testutil.ParserAgent()
	second.ID = 5
	store := testutil.NewMemoryAgentStore(testutil.HostAgent(), testutil.ParserAgent(), second)
	reg := NewRegistry(store)
	_, err := reg.Refresh(context.Background())
	require.NoError(t, err)

	p, ok := reg.FirstByRole(model.AgentRoleParser)
	require.True(t, ok)
	assert.Equal(t, int64(2), p.ID)

	_, ok = reg.FirstByRole(model.AgentRolePlain)
	assert.False(t, ok)

	list := reg.List()
	require.Len(t, list, 3)
	assert.Equal(t, []int64{2, 5, 8}, []int64{list[0].ID, list[1].ID, list[2].ID})
}
