package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chachabrian/mooveit-dispatch/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		tokenUser, tokenRole = 0, utils.RoleDispatcher
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCommands(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "token"} {
		assert.True(t, names[want], "missing %s command", want)
	}
	assert.NotNil(t, serveCmd.Flags().Lookup("memory"))
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")

	out, err := runCommand(t, "token", "--user", "42", "--role", "driver")
	require.NoError(t, err)

	identity, err := utils.ValidateToken("cli-secret", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, uint(42), identity.UserID)
	assert.Equal(t, utils.RoleDriver, identity.Role)
}

func TestTokenCommand_Errors(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")

	_, err := runCommand(t, "token")
	assert.ErrorContains(t, err, "--user")

	_, err = runCommand(t, "token", "--user", "1", "--role", "admin")
	assert.ErrorContains(t, err, "admin")
}
