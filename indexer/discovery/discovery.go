// Package discovery walks a directory of precomputed-block JSON files and
// reconstructs the canonical chain prefix without fully parsing any file
// it doesn't need: only the previous_state_hash field is read per block,
// via the same filename-encoded (network, height, state_hash) tuple the
// block parser actors later use for the full parse.
//
// Grounded on the teacher's shared/fileutil.DirFiles walk and
// shared/sliceutil's set-style slice helpers, generalized from byte-slice
// dedup to state-hash chain walking.
package discovery

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/prysmaticlabs/mina-indexer/indexer/types"
)

// filenamePattern matches precomputed-block filenames of the form
// "<network>-<height>-<state_hash>.json", e.g.
// "mainnet-2-3NLyWnjZqUECniE1q719CoLmes6WDQAod4vrTeLfN7XXJbHv6EHH.json".
var filenamePattern = regexp.MustCompile(`^([a-zA-Z0-9_]+)-(\d+)-([A-Za-z0-9]+)\.json$`)

// Entry is one PCB file located on disk, with its identity parsed from the
// filename alone (cheap) and its previous_state_hash read from the file's
// protocol_state header (one small read, not a full parse).
type Entry struct {
	Path       string
	Network    string
	Height     types.Height
	StateHash  types.StateHash
	ParentHash types.StateHash
}

type previousStateHashHeader struct {
	ProtocolState struct {
		PreviousStateHash string `json:"previous_state_hash"`
	} `json:"protocol_state"`
}

// ParseFilename extracts (network, height, state_hash) from a PCB filename
// without touching the file's contents.
func ParseFilename(name string) (network string, height types.Height, stateHash types.StateHash, ok bool) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return "", 0, "", false
	}
	h, err := strconv.ParseUint(m[2], 10, 32)
	if err != nil {
		return "", 0, "", false
	}
	return m[1], types.Height(h), types.StateHash(m[3]), true
}

// readPreviousStateHash reads just enough of the file to extract
// protocol_state.previous_state_hash, mirroring the original
// implementation's PreviousStateHash::from_path cheap-read.
func readPreviousStateHash(path string) (types.StateHash, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "could not read %s", path)
	}
	var hdr previousStateHashHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		return "", errors.Wrapf(err, "could not parse previous_state_hash from %s", path)
	}
	return types.StateHash(hdr.ProtocolState.PreviousStateHash), nil
}

// ScanDir walks dir (non-recursively; PCB directories are flat) and returns
// one Entry per recognized PCB filename, with ParentHash populated from a
// cheap partial read of each file.
func ScanDir(dir string) ([]Entry, error) {
	files, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "could not list %s", dir)
	}
	var entries []Entry
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		network, height, stateHash, ok := ParseFilename(f.Name())
		if !ok {
			log.WithField("file", f.Name()).Debug("skipping file that does not match PCB filename pattern")
			continue
		}
		full := filepath.Join(dir, f.Name())
		parent, err := readPreviousStateHash(full)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{
			Path:       full,
			Network:    network,
			Height:     height,
			StateHash:  stateHash,
			ParentHash: parent,
		})
	}
	return entries, nil
}

// Result splits the discovered chain into the finalized canonical prefix
// and the still-mutable pending suffix within k blocks of the tip, plus any
// files whose parent hash was never found among the scanned entries (other
// than the implicit genesis parent).
type Result struct {
	Canonical []Entry
	Pending   []Entry
	Dangling  []Entry
}

// Discover reconstructs the canonical chain from the files in dir. It picks
// the entry reachable from the deepest unbroken ancestor chain as the tip,
// breaking ties on (height desc, state hash ascending) exactly like the
// witness tree's best-tip rule, then walks that chain from tip to root.
// Every other scanned entry that never joins this chain is reported as
// Dangling. Blocks at height <= tipHeight-k are Canonical; the rest are
// Pending.
func Discover(dir string, k int) (*Result, error) {
	entries, err := ScanDir(dir)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return &Result{}, nil
	}

	byHash := make(map[types.StateHash]Entry, len(entries))
	for _, e := range entries {
		byHash[e.StateHash] = e
	}

	depth := make(map[types.StateHash]int, len(entries))
	var depthOf func(types.StateHash) int
	depthOf = func(h types.StateHash) int {
		if d, ok := depth[h]; ok {
			return d
		}
		e, ok := byHash[h]
		if !ok {
			return 0
		}
		depth[h] = -1 // cycle guard; PCB chains are acyclic by construction
		d := 1
		if _, hasParent := byHash[e.ParentHash]; hasParent {
			d = 1 + depthOf(e.ParentHash)
		}
		depth[h] = d
		return d
	}
	for _, e := range entries {
		depthOf(e.StateHash)
	}

	tip := entries[0]
	for _, e := range entries[1:] {
		if betterTip(e, tip, depth) {
			tip = e
		}
	}

	chain := make(map[types.StateHash]bool)
	var ordered []Entry
	cur := tip
	for {
		chain[cur.StateHash] = true
		ordered = append([]Entry{cur}, ordered...)
		parent, ok := byHash[cur.ParentHash]
		if !ok {
			break
		}
		cur = parent
	}

	res := &Result{}
	cutoff := int(tip.Height) - k
	for _, e := range ordered {
		if int(e.Height) <= cutoff {
			res.Canonical = append(res.Canonical, e)
		} else {
			res.Pending = append(res.Pending, e)
		}
	}
	for _, e := range entries {
		if !chain[e.StateHash] {
			res.Dangling = append(res.Dangling, e)
		}
	}
	sort.Slice(res.Dangling, func(i, j int) bool {
		if res.Dangling[i].Height != res.Dangling[j].Height {
			return res.Dangling[i].Height < res.Dangling[j].Height
		}
		return res.Dangling[i].StateHash < res.Dangling[j].StateHash
	})
	return res, nil
}

// betterTip picks the deeper chain first, breaking ties the same way the
// witness tree does for equal-height competing tips: lexicographically
// smaller state hash wins.
func betterTip(a, b Entry, depth map[types.StateHash]int) bool {
	if depth[a.StateHash] != depth[b.StateHash] {
		return depth[a.StateHash] > depth[b.StateHash]
	}
	if a.Height != b.Height {
		return a.Height > b.Height
	}
	return a.StateHash < b.StateHash
}

// EnsureDir expands and creates dirPath if missing, matching the teacher's
// static-analysis-enforced single entrypoint for directory creation.
func EnsureDir(dirPath string) error {
	info, err := os.Stat(dirPath)
	if err == nil {
		if !info.IsDir() {
			return errors.Errorf("%s exists and is not a directory", dirPath)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return errors.Wrapf(err, "could not stat %s", dirPath)
	}
	return os.MkdirAll(dirPath, 0o700)
}
