// Package staking also parses per-epoch staking ledger snapshot files and
// turns them into store.StakingLedger records for the staking ingestion
// pipeline (spec.md §4.7's "second, parallel ingestion pipeline").
//
// Grounded on original_source/'s staking_ledger_models.rs StakingEntry
// shape ({pk, balance, delegate}, a flat JSON array) and on
// indexer/discovery's filename-pattern convention, generalized from the
// PCB filename's (network, height, state_hash) triple to a staking
// ledger's (network, epoch, ledger_hash) triple.
package staking

import (
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/prysmaticlabs/mina-indexer/indexer/store"
	"github.com/prysmaticlabs/mina-indexer/indexer/types"
)

// filenamePattern matches staking ledger filenames of the form
// "<network>-<epoch>-<ledger_hash>.json".
var filenamePattern = regexp.MustCompile(`^([a-zA-Z0-9_]+)-(\d+)-([A-Za-z0-9]+)\.json$`)

// stakingEntryJSON mirrors the flat {pk, balance, delegate} array the
// staking ledger files hold.
type stakingEntryJSON struct {
	PublicKey string `json:"pk"`
	Balance   string `json:"balance"`
	Delegate  string `json:"delegate"`
}

// ParseFilename extracts (network, epoch, ledger_hash) from a staking
// ledger filename.
func ParseFilename(name string) (network string, epoch uint32, ledgerHash types.LedgerHash, ok bool) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return "", 0, "", false
	}
	e, err := strconv.ParseUint(m[2], 10, 32)
	if err != nil {
		return "", 0, "", false
	}
	return m[1], uint32(e), types.LedgerHash(m[3]), true
}

// ScanDir walks dir (non-recursively) and returns one parsed StakingLedger
// per recognized filename, skipping files that don't match the naming
// convention.
func ScanDir(dir string) ([]store.StakingLedger, error) {
	files, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "could not list %s", dir)
	}
	var out []store.StakingLedger
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		network, epoch, ledgerHash, ok := ParseFilename(f.Name())
		if !ok {
			log.WithField("file", f.Name()).Debug("skipping file that does not match staking ledger filename pattern")
			continue
		}
		l, err := parseFile(filepath.Join(dir, f.Name()), network, epoch, ledgerHash)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func parseFile(path, network string, epoch uint32, ledgerHash types.LedgerHash) (store.StakingLedger, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return store.StakingLedger{}, errors.Wrapf(err, "could not read %s", path)
	}
	var rows []stakingEntryJSON
	if err := json.Unmarshal(raw, &rows); err != nil {
		return store.StakingLedger{}, errors.Wrapf(err, "could not parse staking ledger %s", path)
	}
	entries := make([]store.StakingLedgerEntry, 0, len(rows))
	for _, r := range rows {
		balance, err := strconv.ParseUint(r.Balance, 10, 64)
		if err != nil {
			return store.StakingLedger{}, errors.Wrapf(err, "invalid balance in %s", path)
		}
		entries = append(entries, store.StakingLedgerEntry{
			PublicKey: types.PublicKey(r.PublicKey),
			Balance:   types.Balance(balance),
			Delegate:  types.PublicKey(r.Delegate),
		})
	}
	return store.StakingLedger{
		LedgerHash: ledgerHash,
		Network:    network,
		Epoch:      epoch,
		Entries:    entries,
	}, nil
}
