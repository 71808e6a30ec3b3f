package resolver

import (
	"context"
	"dcsingest/pkg/message"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// Platform list loaded from a JSON file
type FileLookup struct {
	platforms []message.Platform
}

func LoadFileLookup(path string) (lookup *FileLookup, err error) {
	content, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("failed to read platforms file: %v", err)
		return
	}

	lookup = &FileLookup{}
	err = json.Unmarshal(content, &lookup.platforms)
	if err != nil {
		err = fmt.Errorf("invalid platforms file '%s': %v", path, err)
		return
	}

	for i, platform := range lookup.platforms {
		if platform.ID == "" {
			err = fmt.Errorf("platform %d in '%s' has no id", i, path)
			return
		}
	}
	return
}

func NewFileLookup(platforms []message.Platform) (lookup *FileLookup) {
	lookup = &FileLookup{platforms: platforms}
	return
}

func (lookup *FileLookup) Len() int {
	return len(lookup.platforms)
}

// First platform owning a medium with a compatible type and the given id
func (lookup *FileLookup) Lookup(ctx context.Context, mediumType, mediumID string, timestamp time.Time) (platform *message.Platform, err error) {
	for i := range lookup.platforms {
		for _, medium := range lookup.platforms[i].Media {
			if !strings.EqualFold(medium.MediumID, mediumID) {
				continue
			}
			if strings.EqualFold(medium.MediumType, mediumType) || (isGOES(medium.MediumType) && isGOES(mediumType)) {
				platform = &lookup.platforms[i]
				return
			}
		}
	}
	return
}

// FileLookup that can be re-read in place while lookups continue
type ReloadableFile struct {
	Path    string
	current atomic.Pointer[FileLookup]
}

func NewReloadableFile(path string) (reloadable *ReloadableFile, err error) {
	reloadable = &ReloadableFile{Path: path}
	_, err = reloadable.Reload()
	if err != nil {
		reloadable = nil
	}
	return
}

// Swaps in the file's current content, the previous list stays active on error
func (reloadable *ReloadableFile) Reload() (count int, err error) {
	lookup, err := LoadFileLookup(reloadable.Path)
	if err != nil {
		return
	}
	reloadable.current.Store(lookup)
	count = lookup.Len()
	return
}

func (reloadable *ReloadableFile) Lookup(ctx context.Context, mediumType, mediumID string, timestamp time.Time) (platform *message.Platform, err error) {
	platform, err = reloadable.current.Load().Lookup(ctx, mediumType, mediumID, timestamp)
	return
}
