package registry_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skirmishlabs/vault/registry"
)

func TestRegistryLookups(t *testing.T) {
	r := registry.New("peer1", []registry.Peer{
		{ID: "peer1", Address: "http://a"},
		{ID: "peer2", Address: "http://b"},
	})

	require.Equal(t, "peer1", r.SelfID())
	require.ElementsMatch(t, []string{"peer1", "peer2"}, r.Peers())

	addr, ok := r.Address("peer2")
	require.True(t, ok)
	require.Equal(t, "http://b", addr)

	_, ok = r.Address("peer3")
	require.False(t, ok)

	require.True(t, r.IsPeer("peer1"))
	require.False(t, r.IsPeer("peer3"))
}

func TestLowestReachableID(t *testing.T) {
	r := registry.New("peer1", nil)
	require.Equal(t, "", r.LowestReachableID(nil))
	require.Equal(t, "peer1", r.LowestReachableID([]string{"peer3", "peer1", "peer2"}))
}
