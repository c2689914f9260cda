package services

import (
	"context"
	"testing"

	"chatterbox-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFriendService_SendRequestToOfflineUser(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addUser(t, "alice")
	env.addUser(t, "bob")
	alice := env.connect(t, "alice")

	req, err := env.friends.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)

	views, err := env.friends.ListRequests(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, req.ID, views[0].ID)
	assert.Equal(t, "alice", views[0].Sender.ID)

	assert.Equal(t, []string{EventRequestSent}, alice.events())
}

func TestFriendService_SendRequestNotifiesBoth(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice")
	env.addUser(t, "bob")
	alice := env.connect(t, "alice")
	bob := env.connect(t, "bob")
	alice.reset()

	_, err := env.friends.SendRequest(context.Background(), "alice", "bob")
	require.NoError(t, err)

	assert.Equal(t, []string{EventRequestSent}, alice.events())
	assert.Equal(t, []string{EventNewFriendRequest}, bob.events())
}

func TestFriendService_SendRequestErrors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addUser(t, "alice")

	_, err := env.friends.SendRequest(ctx, "alice", "ghost")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = env.friends.SendRequest(ctx, "ghost", "alice")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = env.friends.SendRequest(ctx, "alice", "alice")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestFriendService_DuplicateRequestReturnsPending(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addUser(t, "alice")
	env.addUser(t, "bob")

	first, err := env.friends.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	second, err := env.friends.SendRequest(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	views, err := env.friends.ListRequests(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, views, 1)
}

func TestFriendService_AcceptIsSymmetric(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addUser(t, "alice")
	env.addUser(t, "bob")
	env.addUser(t, "carol")
	alice := env.connect(t, "alice")
	bob := env.connect(t, "bob")

	req, err := env.friends.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	alice.reset()
	bob.reset()

	_, err = env.friends.AcceptRequest(ctx, req.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{EventRequestAccepted}, alice.events())
	assert.Equal(t, []string{EventRequestAccepted}, bob.events())

	aliceFriends, err := env.friends.ListFriends(ctx, "alice")
	require.NoError(t, err)
	bobFriends, err := env.friends.ListFriends(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, aliceFriends, 1)
	require.Len(t, bobFriends, 1)
	assert.Equal(t, "bob", aliceFriends[0].ID)
	assert.Equal(t, "alice", bobFriends[0].ID)

	views, err := env.friends.ListRequests(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, views)

	_, err = env.friends.AcceptRequest(ctx, req.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = env.friends.SendRequest(ctx, "bob", "alice")
	assert.ErrorIs(t, err, models.ErrValidation)

	me, err := env.store.Users().GetByID(ctx, "alice")
	require.NoError(t, err)
	candidates, err := env.friends.ListCandidates(ctx, me)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "carol", candidates[0].ID)
}
