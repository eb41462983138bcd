// Command mina-indexer runs the ingestion pipeline end to end: it
// discovers precomputed blocks and staking ledgers on disk, feeds them
// through the actor DAG, and persists every derived column to the
// embedded store.
//
// Grounded on the teacher's beacon-chain/main.go cli.App scaffold,
// generalized from gopkg.in/urfave/cli.v2 to the maintained
// github.com/urfave/cli/v2 fork the rest of the example pack uses.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/prysmaticlabs/mina-indexer/indexer/actor"
	"github.com/prysmaticlabs/mina-indexer/indexer/config"
	"github.com/prysmaticlabs/mina-indexer/indexer/discovery"
	"github.com/prysmaticlabs/mina-indexer/indexer/errs"
	"github.com/prysmaticlabs/mina-indexer/indexer/ledger"
	"github.com/prysmaticlabs/mina-indexer/indexer/store"
	"github.com/prysmaticlabs/mina-indexer/indexer/tree"
	"github.com/prysmaticlabs/mina-indexer/indexer/types"
)

var (
	blocksDirFlag = &cli.StringFlag{Name: "blocks-dir", Usage: "directory of precomputed-block JSON files", Required: true}
	stakingDirFlag = &cli.StringFlag{Name: "staking-dir", Usage: "directory of staking ledger snapshot files"}
	storeDirFlag  = &cli.StringFlag{Name: "store-dir", Usage: "directory the embedded column store writes to", Required: true}
	chainIDFlag   = &cli.StringFlag{Name: "chain-id", Usage: "network chain id, recorded and checked on every run", Required: true}
	genesisFlag   = &cli.StringFlag{Name: "genesis-state-hash", Usage: "state hash of the chain's genesis block", Required: true}
	pruneDepthFlag = &cli.IntFlag{Name: "prune-depth", Usage: "K, blocks below the best tip treated as pending", Value: config.Default().PruneDepth}
	workersFlag   = &cli.IntFlag{Name: "workers", Usage: "actor DAG worker goroutines", Value: config.Default().Workers}
	watchFlag     = &cli.BoolFlag{Name: "watch", Usage: "keep running and ingest new blocks as they appear in blocks-dir"}
	verboseFlag   = &cli.BoolFlag{Name: "verbose", Usage: "enable debug logging"}
)

func main() {
	app := &cli.App{
		Name:  "mina-indexer",
		Usage: "ingests precomputed blocks and staking ledgers into a queryable column store",
		Flags: []cli.Flag{
			blocksDirFlag, stakingDirFlag, storeDirFlag,
			chainIDFlag, genesisFlag, pruneDepthFlag, workersFlag, watchFlag, verboseFlag,
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Error("mina-indexer exited with an error")
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.Bool(verboseFlag.Name) {
		log.SetLevel(log.DebugLevel)
	}
	runID := uuid.New().String()
	log.WithField("run_id", runID).Info("starting mina-indexer")

	cfg := config.Default()
	cfg.BlocksDir = c.String(blocksDirFlag.Name)
	cfg.StakingDir = c.String(stakingDirFlag.Name)
	cfg.StoreDir = c.String(storeDirFlag.Name)
	cfg.ChainID = c.String(chainIDFlag.Name)
	cfg.GenesisStateHash = types.StateHash(c.String(genesisFlag.Name))
	cfg.PruneDepth = c.Int(pruneDepthFlag.Name)
	cfg.Workers = c.Int(workersFlag.Name)

	if err := cfg.Validate(); err != nil {
		return cli.Exit(errors.Wrap(err, "invalid configuration").Error(), 2)
	}

	if err := discovery.EnsureDir(cfg.BlocksDir); err != nil {
		return errors.Wrap(errs.ErrBootstrap, err.Error())
	}

	s, err := store.Open(cfg.StoreDir)
	if err != nil {
		return errors.Wrap(errs.ErrBootstrap, err.Error())
	}
	defer s.Close()

	if err := s.CheckVersion(store.DBVersion{Major: 1, Minor: 0, Patch: 0}); err != nil {
		return errors.Wrap(errs.ErrBootstrap, err.Error())
	}
	if err := reconcileChainID(s, cfg.ChainID); err != nil {
		return err
	}
	if err := reconcileGenesis(context.Background(), s, cfg.GenesisStateHash); err != nil {
		return err
	}

	engine, err := ledger.NewEngine(ledger.NewLedger(), s, cfg.LedgerCacheCost)
	if err != nil {
		return errors.Wrap(err, "could not start ledger engine")
	}

	wtree := tree.New(tree.Node{StateHash: cfg.GenesisStateHash})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		log.Warn("received shutdown signal, cancelling ingestion")
		cancel()
	}()

	newBlockActor := &actor.NewBlockActor{Tree: wtree}
	dag := actor.New(ctx, cfg.MailboxCapacity,
		actor.NewMainnetBlockParserActor(),
		actor.NewBerkeleyBlockParserActor(),
		&actor.BlockAncestorActor{},
		newBlockActor,
		&actor.CanonicityWriterActor{Store: s},
		&actor.LedgerApplierActor{Store: s, Engine: engine, CreationFee: cfg.CreationFee},
		&actor.UsernameWriterActor{Store: s},
		&actor.ZkappEventWriterActor{Store: s},
		&actor.EventLogWriterActor{Store: s},
		&actor.StakingLedgerActor{Store: s},
	)
	dag.Run(cfg.Workers)

	pcbSeeder := &actor.PcbFilePathActor{Dir: cfg.BlocksDir}
	seeded, err := pcbSeeder.Seed()
	if err != nil {
		return errors.Wrap(err, "could not seed block discovery")
	}
	log.WithField("count", len(seeded)).Info("discovered precomputed blocks")
	for _, ev := range seeded {
		dag.Emit(ev)
	}

	if cfg.StakingDir != "" {
		stakingSeeder := &actor.StakingLedgerPathActor{Dir: cfg.StakingDir}
		stakingEvents, err := stakingSeeder.Seed()
		if err != nil {
			return errors.Wrap(err, "could not seed staking ledger discovery")
		}
		log.WithField("count", len(stakingEvents)).Info("discovered staking ledgers")
		for _, ev := range stakingEvents {
			dag.Emit(ev)
		}
	}

	if c.Bool(watchFlag.Name) {
		watchCtx, stopWatch := context.WithCancel(ctx)
		go func() {
			err := discovery.Watch(watchCtx, cfg.BlocksDir, func(e discovery.Entry) {
				dag.Emit(actor.Event{Kind: actor.KindPCBDiscovered, Network: e.Network, PCBPath: e.Path})
			})
			if err != nil {
				log.WithError(err).Error("block directory watcher exited")
			}
		}()
		<-ctx.Done()
		stopWatch()
	}

	if err := dag.WaitQuiescent(); err != nil {
		return errors.Wrap(err, "ingestion failed")
	}

	if pruned := wtree.Prune(cfg.PruneDepth); len(pruned) > 0 {
		log.WithField("count", len(pruned)).Debug("pruned finalized witness-tree branches")
	}
	if err := s.SetBestTip(ctx, wtree.BestTip().StateHash); err != nil {
		return errors.Wrap(err, "could not record final best tip")
	}

	tip := wtree.BestTip()
	fmt.Printf("ingestion complete: best tip %s at height %d\n", tip.StateHash, tip.Height)
	return nil
}

func reconcileChainID(s *store.Store, chainID string) error {
	existing, err := s.ChainID()
	if err != nil {
		return errors.Wrap(err, "could not read recorded chain id")
	}
	if existing == "" {
		return s.SetChainID(chainID)
	}
	if existing != chainID {
		return errors.Errorf("store was initialized with chain id %q, got %q", existing, chainID)
	}
	return nil
}

func reconcileGenesis(ctx context.Context, s *store.Store, genesis types.StateHash) error {
	existing, found, err := s.CanonicalRoot(ctx)
	if err != nil {
		return errors.Wrap(err, "could not read recorded genesis state hash")
	}
	if !found {
		return s.SetCanonicalRoot(ctx, genesis)
	}
	if existing != genesis {
		return errors.Errorf("store was initialized with genesis %q, got %q", existing, genesis)
	}
	return nil
}
