package tree

import (
	"testing"

	"github.com/prysmaticlabs/mina-indexer/indexer/types"
	"github.com/stretchr/testify/require"
)

func node(hash, parent types.StateHash, height types.Height) Node {
	return Node{StateHash: hash, ParentHash: parent, Height: height}
}

func TestInsertAlreadySeen(t *testing.T) {
	tr := New(node("G", "", 0))
	outcome, update := tr.Insert(node("A", "G", 1))
	require.Equal(t, Extend, outcome)
	require.Nil(t, update)

	outcome, update = tr.Insert(node("A", "G", 1))
	require.Equal(t, AlreadySeen, outcome)
	require.Nil(t, update)
}

func TestInsertOrphanWaitsForParent(t *testing.T) {
	tr := New(node("G", "", 0))
	outcome, _ := tr.Insert(node("B", "A", 2))
	require.Equal(t, Orphan, outcome)
	require.Equal(t, 1, tr.OrphanCount())

	tr.Insert(node("A", "G", 1))
	require.Equal(t, 0, tr.OrphanCount())
	_, ok := tr.Get("B")
	require.True(t, ok)
	require.Equal(t, types.StateHash("B"), tr.BestTip().StateHash)
}

func TestReorgEmitsSymmetricDifference(t *testing.T) {
	tr := New(node("G", "", 0))
	tr.Insert(node("A", "G", 1))
	tr.Insert(node("B", "A", 2))
	tr.Insert(node("C", "B", 3))
	require.Equal(t, types.StateHash("C"), tr.BestTip().StateHash)

	tr.Insert(node("Bp", "A", 2))
	tr.Insert(node("Cp", "Bp", 3))
	outcome, update := tr.Insert(node("Dp", "Cp", 4))
	require.Equal(t, Reorg, outcome)
	require.NotNil(t, update)

	orphanedHashes := map[types.StateHash]bool{}
	for _, d := range update.Orphaned {
		orphanedHashes[d.StateHash] = true
	}
	require.True(t, orphanedHashes["B"])
	require.True(t, orphanedHashes["C"])
	require.Len(t, update.Orphaned, 2)

	canonicalHashes := map[types.StateHash]bool{}
	for _, d := range update.Canonical {
		canonicalHashes[d.StateHash] = true
	}
	require.True(t, canonicalHashes["Bp"])
	require.True(t, canonicalHashes["Cp"])
	require.True(t, canonicalHashes["Dp"])
	require.Equal(t, types.StateHash("Dp"), tr.BestTip().StateHash)
}

func TestPruneRemovesSideBranch(t *testing.T) {
	tr := New(node("G", "", 0))
	tr.Insert(node("A", "G", 1))
	tr.Insert(node("B", "A", 2))
	tr.Insert(node("C", "B", 3))
	tr.Insert(node("X", "A", 2))

	pruned := tr.Prune(2)
	pruneSet := map[types.StateHash]bool{}
	for _, h := range pruned {
		pruneSet[h] = true
	}
	require.True(t, pruneSet["X"])
	_, ok := tr.Get("X")
	require.False(t, ok)
	_, ok = tr.Get("C")
	require.True(t, ok)
}

func TestTieBreakIsLexicographicStateHash(t *testing.T) {
	tr := New(node("G", "", 0))
	tr.Insert(node("Zzz", "G", 1))
	outcome, _ := tr.Insert(node("Aaa", "G", 1))
	require.Equal(t, Reorg, outcome)
	require.Equal(t, types.StateHash("Aaa"), tr.BestTip().StateHash)
}
