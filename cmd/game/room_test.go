package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueRejectsDoubleJoin(t *testing.T) {
	p := &Player{ID: "p-double", Name: "Alice"}
	require.NoError(t, enqueue(p))
	t.Cleanup(func() {
		<-matchQueue
		lobbyDelete(p.ID)
	})

	// A second join must not land the same player in the queue twice, or
	// the matchmaker would pair them against themself.
	require.Error(t, enqueue(p))
	assert.Len(t, matchQueue, 1)
}

func TestEnqueueRejectsPlayerInMatch(t *testing.T) {
	p := &Player{ID: "p-seated", Name: "Bob"}
	playerRoom.Store(p.ID, "room-x")
	t.Cleanup(func() { playerRoom.Delete(p.ID) })

	require.Error(t, enqueue(p))
	assert.Len(t, matchQueue, 0)
}
