package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/rkuchma96/rcoffee/internal/domain"
	"github.com/rkuchma96/rcoffee/internal/logger"
)

// DefaultBinary is the engine binary looked up on PATH when none is configured
const DefaultBinary = "rclone"

// Rclone invokes the rclone binary for listing, transfer and dedupe
// operations on a fixed remote/local endpoint pair.
type Rclone struct {
	binary       string
	remotePath   string
	localPath    string
	modifyWindow string
}

// Options configures an Rclone engine
type Options struct {
	// Binary is the rclone executable, defaults to DefaultBinary
	Binary string

	// RemotePath is the fully-qualified remote like "gdrive:Sync"
	RemotePath string

	// LocalPath is the local directory of the pair
	LocalPath string

	// ModifyWindow is passed to rclone as-is for transfer operations
	ModifyWindow string
}

// NewRclone creates an engine bound to one endpoint pair
func NewRclone(opts Options) (*Rclone, error) {
	if opts.RemotePath == "" {
		return nil, fmt.Errorf("%w: remote path cannot be empty", domain.ErrConfigInvalid)
	}
	if opts.LocalPath == "" {
		return nil, fmt.Errorf("%w: local path cannot be empty", domain.ErrConfigInvalid)
	}
	binary := opts.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	modifyWindow := opts.ModifyWindow
	if modifyWindow == "" {
		modifyWindow = "1s"
	}

	return &Rclone{
		binary:       binary,
		remotePath:   opts.RemotePath,
		localPath:    opts.LocalPath,
		modifyWindow: modifyWindow,
	}, nil
}

// RemotePath returns the remote endpoint of the pair
func (r *Rclone) RemotePath() string { return r.remotePath }

// LocalPath returns the local endpoint of the pair
func (r *Rclone) LocalPath() string { return r.localPath }

// command builds an rclone invocation. Verbose output goes to our stderr so
// the engine's own transfer log stays visible alongside ours.
func (r *Rclone) command(ctx context.Context, op string, args ...string) *exec.Cmd {
	argv := append([]string{op, "-vv"}, args...)
	cmd := exec.CommandContext(ctx, r.binary, argv...)
	cmd.Stderr = os.Stderr
	return cmd
}

// run executes an rclone command to completion, mapping failures to *EngineError
func (r *Rclone) run(cmd *exec.Cmd, op string) error {
	logger.Get().Debug("invoking engine", "op", op, "args", cmd.Args)

	err := cmd.Run()
	if err == nil {
		return nil
	}
	return r.wrapError(op, err)
}

func (r *Rclone) wrapError(op string, err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &EngineError{
			Op:       op,
			ExitCode: exitErr.ExitCode(),
			Err:      fmt.Errorf("%w: %v", domain.ErrEngineFailure, err),
		}
	}
	// Not an exit status: the binary is missing or could not be started.
	// That will not fix itself between invocations.
	return &EngineError{
		Op:    op,
		Fatal: true,
		Err:   fmt.Errorf("%w: %v", domain.ErrEngineFailure, err),
	}
}

// transferArgs are shared by every data-moving operation so both directions
// honor identical update and modify-window semantics.
func (r *Rclone) transferArgs(source, dest string, extra ...string) []string {
	args := []string{"--update", "--modify-window=" + r.modifyWindow}
	args = append(args, extra...)
	return append(args, source, dest)
}

// List returns a recursive listing of the remote path, sorted by path
func (r *Rclone) List(ctx context.Context) (domain.Snapshot, error) {
	const op = "lsjson"

	cmd := r.command(ctx, op, "--recursive", r.remotePath)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return nil, r.wrapError(op, err)
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal(stdout.Bytes(), &snapshot); err != nil {
		return nil, &EngineError{
			Op:  op,
			Err: fmt.Errorf("%w: %v", domain.ErrMalformedListing, err),
		}
	}

	snapshot.Sort()
	return snapshot, nil
}

// CopyUpdate performs a one-way update-copy from source to dest
func (r *Rclone) CopyUpdate(ctx context.Context, source, dest string) error {
	const op = "copy"
	cmd := r.command(ctx, op, r.transferArgs(source, dest)...)
	return r.run(cmd, op)
}

// MirrorSync performs a one-way mirrored sync with delete-before semantics
func (r *Rclone) MirrorSync(ctx context.Context, source, dest string) error {
	const op = "sync"
	cmd := r.command(ctx, op, r.transferArgs(source, dest, "--delete-before")...)
	return r.run(cmd, op)
}

// Dedupe collapses duplicate-named entries under path, keeping the newest
func (r *Rclone) Dedupe(ctx context.Context, path string) error {
	const op = "dedupe"
	cmd := r.command(ctx, op, "--dedupe-mode", "newest", path)
	return r.run(cmd, op)
}
