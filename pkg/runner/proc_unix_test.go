//go:build !windows

package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// alive reports whether pid is a live, non-zombie process.
func alive(pid int) bool {
	if data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid)); err == nil {
		s := string(data)
		i := strings.LastIndexByte(s, ')')
		return i < 0 || i+2 >= len(s) || s[i+2] != 'Z'
	} else if _, serr := os.Stat("/proc/self/stat"); serr == nil {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}

func TestRunForceKillsWholeGroupAfterGrace(t *testing.T) {
	requireShell(t)
	pidFile := filepath.Join(t.TempDir(), "pids")
	script := fmt.Sprintf(`trap '' TERM; sleep 30 & echo $! >> %[1]s; sleep 30 & echo $! >> %[1]s; wait`, pidFile)

	res := New(WithGrace(200*time.Millisecond)).Run(context.Background(), shTask("stubborn-group", script, 300*time.Millisecond))
	require.False(t, res.Success)
	assert.Contains(t, res.ErrorText, "timeout")

	data, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	var pids []int
	for _, f := range strings.Fields(string(data)) {
		pid, err := strconv.Atoi(f)
		require.NoError(t, err)
		pids = append(pids, pid)
	}
	require.Len(t, pids, 2)

	for _, pid := range pids {
		pid := pid
		assert.Eventually(t, func() bool { return !alive(pid) }, 2*time.Second, 50*time.Millisecond, "pid %d survived", pid)
	}
}
