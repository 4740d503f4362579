package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "chronicle", cmd.Use)
	assert.Contains(t, cmd.Long, "session logs")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"log", "sync", "search", "sessions", "events", "stats", "repair", "backfill", "render"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	storageFlag := cmd.PersistentFlags().Lookup("storage")
	require.NotNil(t, storageFlag)
	assert.Equal(t, "", storageFlag.DefValue)
}

func TestLogCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	logCmd, _, err := cmd.Find([]string{"log"})
	require.NoError(t, err)

	eventFlag := logCmd.Flags().Lookup("event")
	require.NotNil(t, eventFlag)
	assert.Equal(t, "e", eventFlag.Shorthand)
}

func TestSearchCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	searchCmd, _, err := cmd.Find([]string{"search"})
	require.NoError(t, err)

	assert.NotNil(t, searchCmd.Flags().Lookup("limit"))
	assert.NotNil(t, searchCmd.Flags().Lookup("types"))
	assert.NotNil(t, searchCmd.Flags().Lookup("from"))
	assert.NotNil(t, searchCmd.Flags().Lookup("to"))

	semanticFlag := searchCmd.Flags().Lookup("semantic")
	require.NotNil(t, semanticFlag)
	assert.Equal(t, "true", semanticFlag.DefValue)
}

func TestRepairCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	repairCmd, _, err := cmd.Find([]string{"repair"})
	require.NoError(t, err)

	dryRunFlag := repairCmd.Flags().Lookup("dry-run")
	require.NotNil(t, dryRunFlag)
	assert.Equal(t, "false", dryRunFlag.DefValue)
}

func TestBackfillCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	backfillCmd, _, err := cmd.Find([]string{"backfill"})
	require.NoError(t, err)

	batchFlag := backfillCmd.Flags().Lookup("batch")
	require.NotNil(t, batchFlag)
	assert.Equal(t, "32", batchFlag.DefValue)
}

func TestInvalidFormatRejected(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "xml", "stats"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
}
