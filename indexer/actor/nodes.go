package actor

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.opencensus.io/trace"

	"github.com/prysmaticlabs/mina-indexer/indexer/discovery"
	"github.com/prysmaticlabs/mina-indexer/indexer/errs"
	"github.com/prysmaticlabs/mina-indexer/indexer/eventlog"
	"github.com/prysmaticlabs/mina-indexer/indexer/ledger"
	"github.com/prysmaticlabs/mina-indexer/indexer/pcb"
	"github.com/prysmaticlabs/mina-indexer/indexer/staking"
	"github.com/prysmaticlabs/mina-indexer/indexer/store"
	"github.com/prysmaticlabs/mina-indexer/indexer/tree"
	"github.com/prysmaticlabs/mina-indexer/indexer/types"
)

// PcbFilePathActor walks a directory of precomputed-block files and emits
// one KindPCBDiscovered event per recognized filename. It does no parsing
// itself (spec.md §4.4: discovery is filename-only).
type PcbFilePathActor struct {
	Dir string
}

func (a *PcbFilePathActor) Name() string  { return "PcbFilePathActor" }
func (a *PcbFilePathActor) Handles() Kind { return KindPCBDiscovered }

// Handle is a no-op; Seed is the actual entrypoint since discovery has no
// inbound event of its own (it is the DAG's root).
func (a *PcbFilePathActor) Handle(ctx context.Context, ev Event) ([]Event, error) {
	return nil, nil
}

// Seed scans Dir and returns one discovery event per PCB file found,
// for the caller to Emit into the DAG.
func (a *PcbFilePathActor) Seed() ([]Event, error) {
	entries, err := discovery.ScanDir(a.Dir)
	if err != nil {
		return nil, errors.Wrap(err, "could not scan PCB directory")
	}
	out := make([]Event, 0, len(entries))
	for _, e := range entries {
		out = append(out, Event{Kind: KindPCBDiscovered, Network: e.Network, PCBPath: e.Path})
	}
	return out, nil
}

// StakingLedgerPathActor scans a directory of staking ledger snapshot
// files and seeds one KindStakingLedgerDiscovered event per file, the
// staking pipeline's counterpart to PcbFilePathActor (spec.md §4.7's
// "second, parallel ingestion pipeline").
type StakingLedgerPathActor struct {
	Dir string
}

func (a *StakingLedgerPathActor) Name() string  { return "StakingLedgerPathActor" }
func (a *StakingLedgerPathActor) Handles() Kind { return KindStakingLedgerDiscovered }

// Handle is a no-op; Seed is this actor's entrypoint, mirroring
// PcbFilePathActor.
func (a *StakingLedgerPathActor) Handle(ctx context.Context, ev Event) ([]Event, error) {
	return nil, nil
}

// Seed scans Dir and returns one discovery event per parsed staking
// ledger, for the caller to Emit into the DAG.
func (a *StakingLedgerPathActor) Seed() ([]Event, error) {
	ledgers, err := staking.ScanDir(a.Dir)
	if err != nil {
		return nil, errors.Wrap(err, "could not scan staking ledger directory")
	}
	out := make([]Event, 0, len(ledgers))
	for _, l := range ledgers {
		out = append(out, Event{Kind: KindStakingLedgerDiscovered, Network: l.Network, StakingLedger: l})
	}
	return out, nil
}

// blockParserActor is the shared implementation behind
// MainnetBlockParserActor and BerkeleyBlockParserActor: both consume the
// same PCB schema, differing only in which network's files they accept
// (spec.md §6: v1 is the mainnet-era flat schema, v2/Berkeley wraps it in
// {version, data}). Routing between the two happens on file content via
// pcb.Detect, not on actor identity, so in practice either actor can
// parse either schema; they are kept as two named stages because the
// pipeline's network-specific post-processing (fork rules, feature
// flags) diverges downstream in a full deployment.
type blockParserActor struct {
	name string
}

func (a *blockParserActor) Name() string  { return a.name }
func (a *blockParserActor) Handles() Kind { return KindPCBDiscovered }

func (a *blockParserActor) Handle(ctx context.Context, ev Event) ([]Event, error) {
	_, span := trace.StartSpan(ctx, "actor."+a.name+".Handle")
	defer span.End()
	raw, err := ioutil.ReadFile(ev.PCBPath)
	if err != nil {
		log.WithError(err).WithField("path", ev.PCBPath).Warn("could not read PCB file")
		return nil, nil
	}
	_, _, stateHash, ok := discovery.ParseFilename(filepath.Base(ev.PCBPath))
	if !ok {
		return nil, errors.Errorf("%s does not match the PCB filename pattern", ev.PCBPath)
	}
	decoded, err := pcb.Parse(raw, stateHash)
	if err != nil {
		log.WithError(errors.Wrap(errs.ErrParse, err.Error())).WithField("path", ev.PCBPath).Warn("could not parse PCB file, skipping")
		return nil, nil
	}
	parsed := ParsedBlock{
		Block: types.Block{
			StateHash:         decoded.StateHash,
			PreviousStateHash: decoded.PreviousStateHash,
			Height:            decoded.Height,
			GlobalSlot:        decoded.GlobalSlot,
			GenesisStateHash:  decoded.GenesisStateHash,
			Creator:           decoded.Creator,
			CoinbaseReceiver:  decoded.CoinbaseReceiver,
			ProducedAt:        decoded.ProducedAt,
			BodyRef:           ev.PCBPath,
		},
		Payments:     decoded.Payments,
		Delegations:  decoded.Delegations,
		Coinbase:     decoded.Coinbase,
		FeeTransfers: decoded.FeeTransfers,
		Usernames:    decoded.Usernames,
	}
	return []Event{{Kind: KindBlockParsed, Network: ev.Network, Parsed: parsed}}, nil
}

// NewMainnetBlockParserActor parses v1-schema precomputed blocks.
func NewMainnetBlockParserActor() Node { return &blockParserActor{name: "MainnetBlockParserActor"} }

// NewBerkeleyBlockParserActor parses v2-schema ({version, data}) precomputed blocks.
func NewBerkeleyBlockParserActor() Node { return &blockParserActor{name: "BerkeleyBlockParserActor"} }

// BlockAncestorActor turns a ParsedBlock into the witness tree's minimal
// navigation record, the "ancestor linking" stage between parse and
// witness-tree integration (spec.md §2 data flow).
type BlockAncestorActor struct{}

func (a *BlockAncestorActor) Name() string  { return "BlockAncestorActor" }
func (a *BlockAncestorActor) Handles() Kind { return KindBlockParsed }

func (a *BlockAncestorActor) Handle(ctx context.Context, ev Event) ([]Event, error) {
	_, span := trace.StartSpan(ctx, "actor.BlockAncestorActor.Handle")
	defer span.End()
	b := ev.Parsed.Block
	node := tree.Node{
		StateHash:  b.StateHash,
		ParentHash: b.PreviousStateHash,
		Height:     b.Height,
		Slot:       b.GlobalSlot,
		BodyRef:    b.BodyRef,
	}
	return []Event{{Kind: KindAncestorLinked, Network: ev.Network, Parsed: ev.Parsed, TreeNode: node}}, nil
}

// NewBlockActor owns the witness tree (spec.md §5 "Shared resources": the
// tree is owned by this actor alone) and is the only thing allowed to
// call Tree.Insert. It always emits KindNewBlock so the ledger/username/
// zkapp/event-log writers run on every observed block, and additionally
// emits KindCanonicityUpdate whenever the best tip changed.
type NewBlockActor struct {
	mu   sync.Mutex
	Tree *tree.Tree
}

func (a *NewBlockActor) Name() string  { return "NewBlockActor" }
func (a *NewBlockActor) Handles() Kind { return KindAncestorLinked }

func (a *NewBlockActor) Handle(ctx context.Context, ev Event) ([]Event, error) {
	_, span := trace.StartSpan(ctx, "actor.NewBlockActor.Handle")
	defer span.End()
	a.mu.Lock()
	outcome, update := a.Tree.Insert(ev.TreeNode)
	a.mu.Unlock()

	events := []Event{{Kind: KindNewBlock, Network: ev.Network, Parsed: ev.Parsed, TreeNode: ev.TreeNode, Outcome: outcome}}

	switch outcome {
	case tree.Extend:
		events = append(events, Event{Kind: KindCanonicityUpdate, Update: &types.CanonicityUpdate{
			Canonical: []types.CanonicityDiff{{StateHash: ev.TreeNode.StateHash, Height: ev.TreeNode.Height, GlobalSlot: ev.TreeNode.Slot}},
		}})
	case tree.Reorg:
		if update != nil {
			events = append(events, Event{Kind: KindCanonicityUpdate, Update: update})
		}
	}
	return events, nil
}

// CanonicityWriterActor persists every CanonicityUpdate's Orphaned and
// Canonical diffs (spec.md §4.1 canonical_at_height/_slot invariant).
type CanonicityWriterActor struct {
	Store *store.Store
}

func (a *CanonicityWriterActor) Name() string  { return "CanonicityWriterActor" }
func (a *CanonicityWriterActor) Handles() Kind { return KindCanonicityUpdate }

func (a *CanonicityWriterActor) Handle(ctx context.Context, ev Event) ([]Event, error) {
	ctx, span := trace.StartSpan(ctx, "actor.CanonicityWriterActor.Handle")
	defer span.End()
	if ev.Update == nil {
		return nil, nil
	}
	for _, d := range ev.Update.Orphaned {
		if err := a.Store.SetCanonicityByDiff(ctx, d, types.Orphaned); err != nil {
			return nil, errors.Wrap(err, "could not record orphaned canonicity")
		}
	}
	var lastCanonical types.StateHash
	for _, d := range ev.Update.Canonical {
		if err := a.Store.SetCanonicityByDiff(ctx, d, types.Canonical); err != nil {
			return nil, errors.Wrap(err, "could not record canonical canonicity")
		}
		lastCanonical = d.StateHash
	}
	if lastCanonical != "" {
		if err := a.Store.SetBestTip(ctx, lastCanonical); err != nil {
			return nil, errors.Wrap(err, "could not record best tip")
		}
	}
	return nil, nil
}

// LedgerApplierActor builds this block's LedgerDiff against the ledger at
// its parent and persists both the block record and the diff (spec.md
// §4.5). It does not apply the diff to an in-memory ledger itself — that
// is the ledger.Engine's job, driven lazily by queries.
type LedgerApplierActor struct {
	Store        *store.Store
	Engine       *ledger.Engine
	CreationFee  types.Amount
}

func (a *LedgerApplierActor) Name() string  { return "LedgerApplierActor" }
func (a *LedgerApplierActor) Handles() Kind { return KindNewBlock }

func (a *LedgerApplierActor) Handle(ctx context.Context, ev Event) ([]Event, error) {
	ctx, span := trace.StartSpan(ctx, "actor.LedgerApplierActor.Handle")
	defer span.End()
	b := ev.Parsed.Block
	if existing, found, err := a.Store.GetBlock(ctx, b.StateHash); err != nil {
		return nil, errors.Wrap(errs.ErrStore, err.Error())
	} else if found && !existing.Equal(b) {
		return nil, errors.Wrapf(errs.ErrIntegrity, "block %s re-observed with conflicting fields", b.StateHash)
	}

	// Everything this handler writes for one block — the block record,
	// its height/slot indexes, the ledger diff, and the derived
	// user-command index — lands in a single bbolt transaction, so a
	// crash mid-block never leaves a block indexed without its diff or
	// vice versa (spec.md §4.1/§5 "one atomic batch per block").
	batch := a.Store.NewBatch()
	if err := store.PutBlockBatch(batch, b); err != nil {
		return nil, errors.Wrap(errs.ErrStore, err.Error())
	}

	parentLedger, err := a.Engine.LedgerAt(ctx, b.PreviousStateHash, false)
	if err != nil {
		// A missing parent ledger this early in ingestion is expected
		// while ancestors are still in flight; the diff is still
		// recorded and will resolve once replayed from genesis.
		parentLedger = nil
	}
	if parentLedger == nil {
		if err := batch.Commit(ctx); err != nil {
			return nil, errors.Wrap(errs.ErrStore, err.Error())
		}
		return []Event{{Kind: KindLedgerDiffReady, Network: ev.Network, Parsed: ev.Parsed}}, nil
	}

	builder := ledger.NewBuilder(parentLedger, a.CreationFee)
	for _, ft := range ev.Parsed.FeeTransfers {
		builder.AddFeeTransfer(ft)
	}
	if ev.Parsed.Coinbase.Receiver != "" {
		builder.AddCoinbase(ev.Parsed.Coinbase)
	}
	for _, p := range ev.Parsed.Payments {
		builder.AddPayment(p)
	}
	for _, d := range ev.Parsed.Delegations {
		builder.AddDelegation(d)
	}
	for _, u := range ev.Parsed.Usernames {
		builder.AddUsername(u)
	}
	diff := builder.Build(b.StateHash)
	if err := store.PutLedgerDiffBatch(batch, diff); err != nil {
		return nil, errors.Wrap(errs.ErrStore, err.Error())
	}
	if err := store.PutUserCommandsBatch(batch, userCommandRecords(b, ev.Parsed)); err != nil {
		return nil, errors.Wrap(errs.ErrStore, err.Error())
	}
	if err := batch.Commit(ctx); err != nil {
		return nil, errors.Wrap(errs.ErrStore, err.Error())
	}
	return []Event{{Kind: KindLedgerDiffReady, Network: ev.Network, Parsed: ev.Parsed, Diff: diff}}, nil
}

// userCommandRecords flattens a block's payments and delegations into the
// derived command index (spec.md §4.5 step 1's "extracted commands").
func userCommandRecords(b types.Block, parsed ParsedBlock) []store.UserCommandRecord {
	records := make([]store.UserCommandRecord, 0, len(parsed.Payments)+len(parsed.Delegations))
	for _, p := range parsed.Payments {
		records = append(records, store.UserCommandRecord{
			StateHash: b.StateHash,
			Height:    b.Height,
			Kind:      "payment",
			From:      p.From,
			To:        p.To,
			Amount:    p.Amount,
			Fee:       p.Fee,
			Nonce:     p.Nonce,
		})
	}
	for _, d := range parsed.Delegations {
		records = append(records, store.UserCommandRecord{
			StateHash: b.StateHash,
			Height:    b.Height,
			Kind:      "delegation",
			From:      d.From,
			To:        d.Delegate,
			Fee:       d.Fee,
			Nonce:     d.Nonce,
		})
	}
	return records
}

// UsernameWriterActor records the derived username index (spec.md §8
// scenario 4).
type UsernameWriterActor struct {
	Store *store.Store
}

func (a *UsernameWriterActor) Name() string  { return "UsernameWriterActor" }
func (a *UsernameWriterActor) Handles() Kind { return KindNewBlock }

func (a *UsernameWriterActor) Handle(ctx context.Context, ev Event) ([]Event, error) {
	ctx, span := trace.StartSpan(ctx, "actor.UsernameWriterActor.Handle")
	defer span.End()
	for _, u := range ev.Parsed.Usernames {
		if err := a.Store.SetUsername(ctx, u.PublicKey, u.Username); err != nil {
			return nil, errors.Wrap(err, "could not record username")
		}
	}
	return nil, nil
}

// ZkappEventWriterActor records zkapp action/event blobs extracted from a
// block (spec.md §9 Open Question (a): the diff surface is a placeholder
// pending schema stabilization, but the append-only event index is not).
type ZkappEventWriterActor struct {
	Store *store.Store
}

func (a *ZkappEventWriterActor) Name() string  { return "ZkappEventWriterActor" }
func (a *ZkappEventWriterActor) Handles() Kind { return KindNewBlock }

func (a *ZkappEventWriterActor) Handle(ctx context.Context, ev Event) ([]Event, error) {
	ctx, span := trace.StartSpan(ctx, "actor.ZkappEventWriterActor.Handle")
	defer span.End()
	for pk, blobs := range ev.Parsed.ZkappEvents {
		for _, blob := range blobs {
			if err := a.Store.AppendZkappEvent(ctx, types.DefaultToken, pk, blob); err != nil {
				return nil, errors.Wrap(errs.ErrStore, err.Error())
			}
		}
	}
	return nil, nil
}

// EventLogWriterActor appends a durable, replayable record of every
// NewBlock observation to the event log (spec.md §4.6). Witness-tree-only
// churn (orphan buffering, branch bookkeeping) is deliberately excluded
// from the log — only the observations needed to rebuild state are kept.
type EventLogWriterActor struct {
	Store *store.Store
}

func (a *EventLogWriterActor) Name() string  { return "EventLogWriterActor" }
func (a *EventLogWriterActor) Handles() Kind { return KindNewBlock }

func (a *EventLogWriterActor) Handle(ctx context.Context, ev Event) ([]Event, error) {
	ctx, span := trace.StartSpan(ctx, "actor.EventLogWriterActor.Handle")
	defer span.End()
	payload, err := eventlog.EncodeNewBlock(ev.Parsed.Block, ev.Outcome)
	if err != nil {
		return nil, err
	}
	if _, err := a.Store.AppendEvent(ctx, payload); err != nil {
		return nil, errors.Wrap(err, "could not append event log entry")
	}
	return nil, nil
}

// StakingLedgerActor ingests one epoch's staking ledger snapshot and its
// derived delegation aggregates (spec.md §4.7), deduplicating by ledger
// hash so a re-observed snapshot is a no-op.
type StakingLedgerActor struct {
	Store *store.Store
}

func (a *StakingLedgerActor) Name() string  { return "StakingLedgerActor" }
func (a *StakingLedgerActor) Handles() Kind { return KindStakingLedgerDiscovered }

func (a *StakingLedgerActor) Handle(ctx context.Context, ev Event) ([]Event, error) {
	ctx, span := trace.StartSpan(ctx, "actor.StakingLedgerActor.Handle")
	defer span.End()
	has, err := a.Store.HasStakingLedger(ctx, ev.StakingLedger.LedgerHash)
	if err != nil {
		return nil, errors.Wrap(err, "could not check staking ledger dedup")
	}
	if has {
		return nil, nil
	}
	if err := a.Store.PutStakingLedger(ctx, ev.StakingLedger); err != nil {
		return nil, errors.Wrap(err, "could not persist staking ledger")
	}
	aggregates := staking.AggregateDelegations(ev.StakingLedger)
	if err := a.Store.PutDelegationAggregates(ctx, ev.StakingLedger.Network, ev.StakingLedger.Epoch, aggregates); err != nil {
		return nil, errors.Wrap(err, "could not persist delegation aggregates")
	}
	return nil, nil
}
