package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writePCB(t *testing.T, dir, network string, height int, hash, parent string) {
	t.Helper()
	name := network + "-" + itoa(height) + "-" + hash + ".json"
	body := `{"protocol_state":{"previous_state_hash":"` + parent + `"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{byte('0' + n%10)}, buf...)
		n /= 10
	}
	return string(buf)
}

func TestParseFilename(t *testing.T) {
	network, height, hash, ok := ParseFilename("mainnet-2-3NLyWnjZqUECniE1q719CoLmes6WDQAod4vrTeLfN7XXJbHv6EHH.json")
	require.True(t, ok)
	require.Equal(t, "mainnet", network)
	require.EqualValues(t, 2, height)
	require.EqualValues(t, "3NLyWnjZqUECniE1q719CoLmes6WDQAod4vrTeLfN7XXJbHv6EHH", hash)

	_, _, _, ok = ParseFilename("not-a-pcb-file.txt")
	require.False(t, ok)
}

func TestDiscoverContiguousChain(t *testing.T) {
	dir := t.TempDir()
	writePCB(t, dir, "mainnet", 1, "A", "genesis")
	writePCB(t, dir, "mainnet", 2, "B", "A")
	writePCB(t, dir, "mainnet", 3, "C", "B")
	writePCB(t, dir, "mainnet", 4, "D", "C")

	res, err := Discover(dir, 2)
	require.NoError(t, err)
	require.Empty(t, res.Dangling)

	var canonHashes, pendingHashes []string
	for _, e := range res.Canonical {
		canonHashes = append(canonHashes, string(e.StateHash))
	}
	for _, e := range res.Pending {
		pendingHashes = append(pendingHashes, string(e.StateHash))
	}
	require.Equal(t, []string{"A", "B"}, canonHashes)
	require.Equal(t, []string{"C", "D"}, pendingHashes)
}

func TestDiscoverPicksDeepestChainAndReportsDangling(t *testing.T) {
	dir := t.TempDir()
	writePCB(t, dir, "mainnet", 1, "A", "genesis")
	writePCB(t, dir, "mainnet", 2, "B", "A")
	writePCB(t, dir, "mainnet", 3, "C", "B")
	// A short side branch off A that never catches up to the C chain.
	writePCB(t, dir, "mainnet", 2, "X", "A")

	res, err := Discover(dir, 0)
	require.NoError(t, err)
	require.Len(t, res.Dangling, 1)
	require.Equal(t, "X", string(res.Dangling[0].StateHash))

	var all []string
	for _, e := range res.Canonical {
		all = append(all, string(e.StateHash))
	}
	require.Equal(t, []string{"A", "B", "C"}, all)
}

func TestDiscoverEmptyDir(t *testing.T) {
	dir := t.TempDir()
	res, err := Discover(dir, 10)
	require.NoError(t, err)
	require.Empty(t, res.Canonical)
	require.Empty(t, res.Pending)
	require.Empty(t, res.Dangling)
}
