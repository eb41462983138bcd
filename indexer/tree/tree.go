// Package tree implements the in-memory witness tree (spec.md §4.2): a
// forest of observed blocks rooted at the canonical root, with best-tip
// tracking, an orphan buffer for blocks whose parent hasn't arrived yet,
// and reorg detection via lowest-common-ancestor walk.
//
// Grounded on the teacher's beacon-chain/blockchain/fork_choice.go
// children/ancestor walks, generalized from vote-weighted LMD-GHOST to
// longest-chain-by-height with a lexicographic state-hash tie-break
// (spec.md §9(c) flags this as a known, deliberate deviation from the
// VRF-based upstream tie-break — not something to silently "fix").
package tree

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/prysmaticlabs/mina-indexer/indexer/types"
)

// maxOrphans bounds the orphan buffer (spec.md §5 "Resource caps", §8
// "bounded by orphan cap"). Mirrors the teacher's futureBlocks cache size
// in core/blockchain.go: a count bound, not a cost bound, so a plain LRU
// fits better here than ristretto's cost-based eviction.
const maxOrphans = 1024

// Node is the minimal navigation record the tree keeps per block: no
// back-pointers, parent links are keys into the branches map (spec.md §9
// design note).
type Node struct {
	StateHash  types.StateHash
	ParentHash types.StateHash
	Height     types.Height
	Slot       types.GlobalSlot
	BodyRef    string
}

// InsertOutcome reports what Insert did with a block.
type InsertOutcome uint8

const (
	Extend InsertOutcome = iota
	NewBranch
	Reorg
	AlreadySeen
	Orphan
)

func (o InsertOutcome) String() string {
	switch o {
	case Extend:
		return "Extend"
	case NewBranch:
		return "NewBranch"
	case Reorg:
		return "Reorg"
	case AlreadySeen:
		return "AlreadySeen"
	default:
		return "Orphan"
	}
}

// Tree is the witness tree forest.
type Tree struct {
	root     *Node
	bestTip  *Node
	branches map[types.StateHash]*Node
	orphans  map[types.StateHash][]*Node

	// orphanLRU tracks orphan insertion order by the orphan's own state
	// hash, purely to bound t.orphans: when it evicts past maxOrphans it
	// drops the oldest orphan out of its parent-hash bucket too.
	orphanLRU *lru.Cache
}

// New creates a tree rooted at genesis. genesis is both root and the
// initial best tip.
func New(genesis Node) *Tree {
	t := &Tree{
		branches: make(map[types.StateHash]*Node),
		orphans:  make(map[types.StateHash][]*Node),
	}
	t.orphanLRU, _ = lru.NewWithEvict(maxOrphans, t.evictOrphan)
	g := genesis
	t.branches[g.StateHash] = &g
	t.root = &g
	t.bestTip = &g
	return t
}

// evictOrphan drops an orphan past the cap out of its parent-hash bucket.
// Also fires (harmlessly, as a no-op) when resolveOrphans removes an
// orphan it is about to re-insert: its bucket is already gone by then.
func (t *Tree) evictOrphan(key, value interface{}) {
	n := value.(*Node)
	bucket := t.orphans[n.ParentHash]
	kept := bucket[:0]
	for _, o := range bucket {
		if o.StateHash != n.StateHash {
			kept = append(kept, o)
		}
	}
	if len(kept) == 0 {
		delete(t.orphans, n.ParentHash)
	} else {
		t.orphans[n.ParentHash] = kept
	}
}

// Root returns the current canonical root.
func (t *Tree) Root() Node { return *t.root }

// BestTip returns the current best tip: maximum height, lexicographically
// smallest state hash breaking ties.
func (t *Tree) BestTip() Node { return *t.bestTip }

// Get returns the node for a state hash, if present in the tree proper
// (not the orphan buffer).
func (t *Tree) Get(h types.StateHash) (Node, bool) {
	n, ok := t.branches[h]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// OrphanCount returns the number of blocks currently buffered awaiting
// their parent, across all missing-parent keys.
func (t *Tree) OrphanCount() int {
	n := 0
	for _, v := range t.orphans {
		n += len(v)
	}
	return n
}

func better(a, b *Node) bool {
	if a.Height != b.Height {
		return a.Height > b.Height
	}
	return a.StateHash < b.StateHash
}

// Insert integrates a new observed block into the tree.
func (t *Tree) Insert(n Node) (InsertOutcome, *types.CanonicityUpdate) {
	if existing, ok := t.branches[n.StateHash]; ok {
		_ = existing
		return AlreadySeen, nil
	}

	// The genesis block is pre-inserted as root by New; every other
	// block must have its parent already present in the tree, or it is
	// buffered as an orphan keyed by the missing parent hash.
	_, parentPresent := t.branches[n.ParentHash]
	if !parentPresent {
		t.orphans[n.ParentHash] = append(t.orphans[n.ParentHash], &n)
		t.orphanLRU.Add(n.StateHash, &n)
		return Orphan, nil
	}

	node := n
	t.branches[node.StateHash] = &node
	outcome := Extend
	if parentPresent && t.branches[node.ParentHash].StateHash != t.bestTip.StateHash {
		outcome = NewBranch
	}

	var update *types.CanonicityUpdate
	if better(&node, t.bestTip) {
		oldTip := t.bestTip
		t.bestTip = &node
		if outcome != Extend || oldTip.StateHash != node.ParentHash {
			update = t.reorgUpdate(oldTip, &node)
			if update != nil {
				outcome = Reorg
			}
		}
	}

	t.resolveOrphans(node.StateHash)
	return outcome, update
}

// resolveOrphans recursively attaches any buffered blocks whose missing
// parent is now satisfied by parentHash.
func (t *Tree) resolveOrphans(parentHash types.StateHash) {
	pending := t.orphans[parentHash]
	if len(pending) == 0 {
		return
	}
	delete(t.orphans, parentHash)
	for _, n := range pending {
		t.orphanLRU.Remove(n.StateHash)
		t.Insert(*n)
	}
}

// pathToRoot walks parent pointers from n up to (but excluding) the
// shared root, returning ancestors ascending-from-root order along with
// a lookup set for LCA detection.
func (t *Tree) pathToRoot(n *Node) []*Node {
	var path []*Node
	cur := n
	for {
		path = append([]*Node{cur}, path...)
		if cur.StateHash == t.root.StateHash {
			break
		}
		parent, ok := t.branches[cur.ParentHash]
		if !ok {
			break
		}
		cur = parent
	}
	return path
}

// reorgUpdate computes the symmetric difference between the old and new
// best-tip spines by finding their lowest common ancestor, returning nil
// when the new tip simply extends the old one (no orphaned blocks).
func (t *Tree) reorgUpdate(oldTip, newTip *Node) *types.CanonicityUpdate {
	oldPath := t.pathToRoot(oldTip)
	newPath := t.pathToRoot(newTip)

	lcaIdx := 0
	for lcaIdx < len(oldPath) && lcaIdx < len(newPath) && oldPath[lcaIdx].StateHash == newPath[lcaIdx].StateHash {
		lcaIdx++
	}
	if lcaIdx >= len(oldPath) {
		// Old tip is itself an ancestor of the new tip: plain extension.
		return nil
	}

	update := &types.CanonicityUpdate{}
	for _, n := range oldPath[lcaIdx:] {
		update.Orphaned = append(update.Orphaned, types.CanonicityDiff{StateHash: n.StateHash, Height: n.Height, GlobalSlot: n.Slot})
	}
	for _, n := range newPath[lcaIdx:] {
		update.Canonical = append(update.Canonical, types.CanonicityDiff{StateHash: n.StateHash, Height: n.Height, GlobalSlot: n.Slot})
	}
	if len(update.Orphaned) == 0 {
		return nil
	}
	return update
}

// Prune advances the root by discarding branches more than k blocks
// below the best tip (spec.md §4.2 finality/pruning). Once a node
// becomes root it is permanently finalized: every sibling fork at or
// below the new root's position in the canonical spine is discarded,
// since it can never become canonical again. Forks that branch off a
// spine node strictly above the new root are still within the pending
// suffix and are kept.
func (t *Tree) Prune(k int) []types.StateHash {
	depth := int(t.bestTip.Height) - int(t.root.Height)
	if depth <= k {
		return nil
	}
	spine := t.pathToRoot(t.bestTip)
	newRootIdx := len(spine) - 1 - k
	if newRootIdx <= 0 {
		return nil
	}
	newRoot := spine[newRootIdx]

	spineIdx := make(map[types.StateHash]int, len(spine))
	for i, n := range spine {
		spineIdx[n.StateHash] = i
	}

	var pruned []types.StateHash
	for h, n := range t.branches {
		if idx, onSpine := spineIdx[h]; onSpine {
			if idx < newRootIdx {
				pruned = append(pruned, h)
			}
			continue
		}
		branchIdx, ok := t.nearestSpineAncestorIndex(n, spineIdx)
		if !ok || branchIdx <= newRootIdx {
			pruned = append(pruned, h)
		}
	}
	for _, h := range pruned {
		delete(t.branches, h)
	}
	t.root = newRoot
	return pruned
}

// nearestSpineAncestorIndex walks parent pointers from n until it finds
// a node present in spineIdx, returning that node's spine position.
func (t *Tree) nearestSpineAncestorIndex(n *Node, spineIdx map[types.StateHash]int) (int, bool) {
	cur := n
	for {
		if idx, ok := spineIdx[cur.StateHash]; ok {
			return idx, true
		}
		parent, ok := t.branches[cur.ParentHash]
		if !ok {
			return 0, false
		}
		cur = parent
	}
}
