package main

import (
	"context"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Flags(t *testing.T) {
	cmd := newRootCommand()

	flag := cmd.Flags().Lookup("env-file")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
}

func TestRootCommand_MissingEnvFile(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")})

	err := cmd.ExecuteContext(context.Background())
	assert.ErrorContains(t, err, "failed to load env file")
}

// The gateway exits the process when its port is taken, so the command runs
// in a child copy of the test binary.
func TestRun_PortInUseExits(t *testing.T) {
	if os.Getenv("GATEWAY_PORT_IN_USE_CHILD") == "1" {
		cmd := newRootCommand()
		cmd.SetArgs([]string{})
		_ = cmd.ExecuteContext(context.Background())
		return
	}

	occupied, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer occupied.Close()
	port := occupied.Addr().(*net.TCPAddr).Port

	child := exec.Command(os.Args[0], "-test.run=^TestRun_PortInUseExits$")
	child.Env = append(os.Environ(),
		"GATEWAY_PORT_IN_USE_CHILD=1",
		"LISTEN_PORT="+strconv.Itoa(port),
		"EC2_HOST=127.0.0.1",
		"EC2_PORT=8080",
		"DISCOVERY_MODE=static",
		"HEALTH_SERVER_PORT=",
		"LOG_FORMAT=text",
	)
	out, err := child.CombinedOutput()

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr, string(out))
	assert.Equal(t, 1, exitErr.ExitCode())
	assert.Contains(t, string(out), "Failed to start listener")
	assert.Contains(t, string(out), "port="+strconv.Itoa(port))
}
