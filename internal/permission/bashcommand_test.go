package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBashCommandSimple(t *testing.T) {
	cmds, err := ParseBashCommand("git commit -m \"msg\"")
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, "git", cmds[0].Name)
	assert.Equal(t, "commit", cmds[0].Subcommand)
}

func TestParseBashCommandPipeline(t *testing.T) {
	cmds, err := ParseBashCommand("ls -la | grep foo")
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, "ls", cmds[0].Name)
	assert.Equal(t, "grep", cmds[1].Name)
}

func TestDerivePrefixWithSubcommand(t *testing.T) {
	assert.Equal(t, "git commit", DerivePrefix("git commit -m x"))
}

func TestDerivePrefixNoSubcommand(t *testing.T) {
	assert.Equal(t, "ls", DerivePrefix("ls -la"))
}

func TestDerivePrefixFallsBackOnParseFailure(t *testing.T) {
	// An unterminated quote fails to parse; DerivePrefix degrades to the
	// literal command string rather than erroring.
	assert.Equal(t, `echo "unterminated`, DerivePrefix(`echo "unterminated`))
}
