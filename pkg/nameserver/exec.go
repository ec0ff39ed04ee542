package nameserver

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
)

// execTimeout bounds the bash child EXEC spawns (spec.md §4.3: "a
// deliberate, documented execution pathway").
const execTimeout = 30 * time.Second

// runExecScript writes content to a private temp file, runs it with bash,
// and returns the combined stdout+stderr (spec.md §4.3, §12's "pipes stdout
// and stderr combined back over one channel"). The temp path is never
// surfaced to the caller, and cleanup runs regardless of the script's exit
// status.
func runExecScript(content []byte) ([]byte, error) {
	f, err := os.CreateTemp("", "dnfs-exec-"+uuid.NewString())
	if err != nil {
		return nil, err
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(content); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), execTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "bash", path)
	out, _ := cmd.CombinedOutput()
	return out, nil
}
