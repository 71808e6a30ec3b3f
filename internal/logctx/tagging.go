package logctx

import (
	"context"
	"dcsingest/internal/global"
)

// Append new tag to tag list.
// Parent context list is never mutated.
func AppendCtxTag(ctx context.Context, newTag string) (newCtx context.Context) {
	old := GetTagList(ctx)
	tags := make([]string, 0, len(old)+1)
	tags = append(tags, old...)
	tags = append(tags, newTag)

	newCtx = context.WithValue(ctx, global.LogTagsKey, tags)
	return
}

// Removes last tag of tag list (copy-on-write)
func RemoveLastCtxTag(ctx context.Context) (newCtx context.Context) {
	tags := GetTagList(ctx)
	if len(tags) > 0 {
		tags = tags[:len(tags)-1]
	}
	newCtx = context.WithValue(ctx, global.LogTagsKey, tags)
	return
}

// Overwrites entire tag list with given list
func OverwriteCtxTag(ctx context.Context, newList []string) (newCtx context.Context) {
	tags := append([]string(nil), newList...)
	newCtx = context.WithValue(ctx, global.LogTagsKey, tags)
	return
}

// Returns a copy of the context tag list (empty if none)
func GetTagList(ctx context.Context) (tags []string) {
	tags = []string{}
	if ctx == nil {
		return
	}
	existing, ok := ctx.Value(global.LogTagsKey).([]string)
	if !ok {
		return
	}
	tags = append(tags, existing...)
	return
}
