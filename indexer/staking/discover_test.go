package staking_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prysmaticlabs/mina-indexer/indexer/staking"
	"github.com/prysmaticlabs/mina-indexer/indexer/types"
)

func TestParseFilename(t *testing.T) {
	network, epoch, hash, ok := staking.ParseFilename("mainnet-9-jxVLvFcBbRCDSM8MHLam6UPVPo2KDegbzJN6MTZWyhTvDrPcjYk.json")
	require.True(t, ok)
	require.Equal(t, "mainnet", network)
	require.Equal(t, uint32(9), epoch)
	require.Equal(t, types.LedgerHash("jxVLvFcBbRCDSM8MHLam6UPVPo2KDegbzJN6MTZWyhTvDrPcjYk"), hash)

	_, _, _, ok = staking.ParseFilename("not-a-staking-ledger.txt")
	require.False(t, ok)
}

func TestScanDirParsesEntries(t *testing.T) {
	dir := t.TempDir()
	content := `[
		{"pk": "A", "balance": "100", "delegate": "X"},
		{"pk": "B", "balance": "50", "delegate": "X"}
	]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mainnet-1-hashABC.json"), []byte(content), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("noise"), 0o600))

	ledgers, err := staking.ScanDir(dir)
	require.NoError(t, err)
	require.Len(t, ledgers, 1)

	l := ledgers[0]
	require.Equal(t, "mainnet", l.Network)
	require.Equal(t, uint32(1), l.Epoch)
	require.Equal(t, types.LedgerHash("hashABC"), l.LedgerHash)
	require.Len(t, l.Entries, 2)
	require.Equal(t, types.Amount(100), l.Entries[0].Balance)
}
