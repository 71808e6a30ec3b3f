package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// Retrieve last read position of a followed file from its state file.
// Position is only returned when the recorded inode still matches the file at path.
func GetLastPosition(filePath string, stateFilePath string) (inode uint64, position int64, err error) {
	err = ensureStateDirectory(stateFilePath)
	if err != nil {
		return
	}

	content, err := os.ReadFile(stateFilePath)
	if os.IsNotExist(err) {
		err = nil
		return
	} else if err != nil {
		err = fmt.Errorf("unable to read state file: %v", err)
		return
	}

	fields := strings.Fields(string(content))
	if len(fields) != 2 {
		// Invalid state data is discarded
		err = os.Truncate(stateFilePath, 0)
		return
	}
	savedInode, inodeErr := strconv.ParseUint(fields[0], 10, 64)
	savedPosition, positionErr := strconv.ParseInt(fields[1], 10, 64)
	if inodeErr != nil || positionErr != nil || savedPosition < 0 {
		err = os.Truncate(stateFilePath, 0)
		return
	}

	info, err := os.Stat(filePath)
	if err != nil {
		err = fmt.Errorf("unable to stat source file: %v", err)
		return
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok || stat.Ino != savedInode {
		// File was replaced since the state was written
		if ok {
			inode = stat.Ino
		}
		return
	}

	inode = savedInode
	position = min(savedPosition, info.Size())
	return
}

// Save the current file read position to the state file
func SavePosition(stateFilePath string, inode uint64, position int64) (err error) {
	err = ensureStateDirectory(stateFilePath)
	if err != nil {
		return
	}

	err = os.WriteFile(stateFilePath, []byte(fmt.Sprintf("%d %d", inode, position)), 0600)
	if err != nil {
		err = fmt.Errorf("failed to write current read position to state file: %v", err)
		return
	}
	return
}

func ensureStateDirectory(stateFilePath string) (err error) {
	stateDirectory := filepath.Dir(stateFilePath)

	_, err = os.Stat(stateDirectory)
	if os.IsNotExist(err) {
		err = os.MkdirAll(stateDirectory, 0700)
		if err != nil {
			err = fmt.Errorf("failed to create missing state directory '%s': %v", stateDirectory, err)
		}
		return
	} else if err != nil {
		err = fmt.Errorf("unable to access state directory: %v", err)
	}
	return
}
