package source

import (
	"context"
	"dcsingest/internal/global"
	"dcsingest/internal/logctx"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Local file. One-shot mode reads to the end once, follow mode keeps reading
// appended data and reopens the path after rotation.
type File struct {
	Path      string
	Follow    bool
	StateFile string // Follow mode read position persistence, optional

	ctx      context.Context
	mutex    sync.Mutex
	file     *os.File
	inode    uint64
	offset   int64
	watcher  *fsnotify.Watcher
	changed  chan struct{}
	rotated  chan struct{}
	wake     chan struct{}
	stopLoop chan struct{}
	loopDone chan struct{}
}

func NewFile(path string, follow bool) (src *File) {
	src = &File{Path: path, Follow: follow}
	return
}

func (src *File) Name() string { return "file:" + src.Path }

func (src *File) Open(ctx context.Context) (err error) {
	src.ctx = ctx

	file, err := os.Open(src.Path)
	if err != nil {
		err = &FatalError{Err: fmt.Errorf("failed to open source file: %w", err), Reconnect: src.Follow}
		return
	}
	src.file = file
	src.offset = 0
	src.inode = inodeOf(file)

	if !src.Follow {
		return
	}

	if src.StateFile != "" {
		inode, position, stateErr := GetLastPosition(src.Path, src.StateFile)
		if stateErr != nil {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
				"failed to get position of last source file read for '%s': %v\n", src.Path, stateErr)
		} else if inode == src.inode && position > 0 {
			_, err = src.file.Seek(position, io.SeekStart)
			if err != nil {
				err = &FatalError{Err: fmt.Errorf("failed to resume read position for '%s': %w", src.Path, err), Reconnect: true}
				src.file.Close()
				return
			}
			src.offset = position
		}
	}

	err = src.startWatcher(ctx)
	if err != nil {
		src.file.Close()
		err = &FatalError{Err: err, Reconnect: true}
		return
	}
	return
}

// Watches the parent directory so rotation (rename/remove/create) of the path is seen
func (src *File) startWatcher(ctx context.Context) (err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		err = fmt.Errorf("failed to create file watcher: %w", err)
		return
	}
	err = watcher.Add(filepath.Dir(src.Path))
	if err != nil {
		watcher.Close()
		err = fmt.Errorf("failed to watch directory of '%s': %w", src.Path, err)
		return
	}

	src.watcher = watcher
	src.changed = make(chan struct{}, 1)
	src.rotated = make(chan struct{}, 1)
	src.wake = make(chan struct{}, 1)
	src.stopLoop = make(chan struct{})
	src.loopDone = make(chan struct{})

	go src.watchLoop(ctx)
	return
}

func (src *File) watchLoop(ctx context.Context) {
	defer close(src.loopDone)

	target := filepath.Clean(src.Path)
	for {
		select {
		case <-src.stopLoop:
			return
		case event, ok := <-src.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				signal(src.rotated)
			}
			signal(src.changed)
		case watchErr, ok := <-src.watcher.Errors:
			if !ok {
				return
			}
			logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "file watcher error for '%s': %v\n", src.Path, watchErr)
		}
	}
}

// Non-blocking send to a 1-buffered channel
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (src *File) Read(p []byte) (n int, err error) {
	src.mutex.Lock()
	defer src.mutex.Unlock()

	if src.file == nil {
		err = &FatalError{Err: fmt.Errorf("source file '%s' is not open", src.Path), Reconnect: src.Follow}
		return
	}

	n, err = src.file.Read(p)
	src.offset += int64(n)
	if n > 0 {
		err = nil
		return
	}
	if err != nil && err != io.EOF {
		err = &FatalError{Err: fmt.Errorf("failed reading '%s': %w", src.Path, err), Reconnect: src.Follow}
		return
	}
	err = io.EOF

	if !src.Follow {
		return
	}

	// Old file fully drained, switch to the new one at the path
	select {
	case <-src.rotated:
		reopenErr := src.reopen()
		if reopenErr != nil {
			err = &FatalError{Err: reopenErr, Reconnect: true}
			return
		}
		n, err = src.file.Read(p)
		src.offset += int64(n)
		if n > 0 {
			err = nil
		} else if err == nil {
			err = io.EOF
		}
	default:
	}
	return
}

// Reopens path after rotation, waiting with backoff for the new file to appear
func (src *File) reopen() (err error) {
	const maxRetries = 5
	delay := 100 * time.Millisecond
	maxDelay := 2 * time.Second

	var file *os.File
	for range maxRetries {
		file, err = os.Open(src.Path)
		if err == nil {
			break
		}

		// Errors not solved by waiting
		if !errors.Is(err, syscall.EACCES) && !errors.Is(err, syscall.EPERM) && !errors.Is(err, syscall.ENOENT) {
			break
		}

		time.Sleep(delay)
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	if err != nil {
		err = fmt.Errorf("failed to reopen rotated file '%s' after %d retries: %w", src.Path, maxRetries, err)
		return
	}

	// Create and rename events of one rotation can both arrive
	inode := inodeOf(file)
	if inode == src.inode {
		file.Close()
		return
	}

	src.file.Close()
	src.file = file
	src.inode = inode
	src.offset = 0
	logctx.LogEvent(src.ctx, global.VerbosityProgress, global.InfoLog, "reopened rotated file '%s'\n", src.Path)
	return
}

// Blocks until the watcher reports a change, timeout elapses, or Interrupt is called
func (src *File) WaitForData(ctx context.Context, timeout time.Duration) (err error) {
	if !src.Follow || src.watcher == nil {
		err = ErrEndOfSource
		return
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		err = ctx.Err()
	case <-src.wake:
		err = ErrEndOfSource
	case <-timer.C:
		err = ErrTimeout
	case <-src.changed:
	case <-src.rotated:
		// Read handles the reopen once the old file is drained
		signal(src.rotated)
	}
	return
}

func (src *File) Interrupt() {
	if src.wake != nil {
		signal(src.wake)
	}
}

func (src *File) Close() (err error) {
	src.mutex.Lock()
	defer src.mutex.Unlock()

	if src.watcher != nil {
		close(src.stopLoop)
		err = src.watcher.Close()
		<-src.loopDone
		src.watcher = nil
	}

	if src.file == nil {
		return
	}

	if src.Follow && src.StateFile != "" {
		saveErr := SavePosition(src.StateFile, src.inode, src.offset)
		if saveErr != nil {
			logctx.LogEvent(src.ctx, global.VerbosityStandard, global.ErrorLog,
				"failed to save position in file source '%s': %v\n", src.Path, saveErr)
		}
	}

	closeErr := src.file.Close()
	if err == nil {
		err = closeErr
	}
	src.file = nil
	return
}

func (src *File) RetryOnEOF() bool   { return src.Follow }
func (src *File) CanReconnect() bool { return src.Follow }

func inodeOf(file *os.File) (inode uint64) {
	info, err := file.Stat()
	if err != nil {
		return
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if ok {
		inode = stat.Ino
	}
	return
}
