package logctx

import (
	"context"
	"dcsingest/internal/global"
	"fmt"
	"reflect"
	"sync"
	"testing"
)

func ctxWithTags(tags []string) context.Context {
	return context.WithValue(context.Background(), global.LogTagsKey, tags)
}

func assertTags(t *testing.T, ctx context.Context, want []string) {
	t.Helper()
	got := GetTagList(ctx)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected tags %v but got %v", want, got)
	}
}

func TestGetTagList(t *testing.T) {
	assertTags(t, context.Background(), []string{})
	assertTags(t, ctxWithTags([]string{"a", "b"}), []string{"a", "b"})
	assertTags(t, context.WithValue(context.Background(), global.LogTagsKey, "wrong"), []string{})

	// Returned list must not alias the context value
	ctx := ctxWithTags([]string{"a", "b"})
	tags := GetTagList(ctx)
	tags[0] = "mutated"
	assertTags(t, ctx, []string{"a", "b"})
}

func TestTagOperations(t *testing.T) {
	tests := []struct {
		name  string
		start []string
		op    func(context.Context) context.Context
		want  []string
	}{
		{"append to empty", []string{}, func(c context.Context) context.Context { return AppendCtxTag(c, "a") }, []string{"a"}},
		{"append to existing", []string{"a", "b"}, func(c context.Context) context.Context { return AppendCtxTag(c, "c") }, []string{"a", "b", "c"}},
		{"remove from empty", []string{}, RemoveLastCtxTag, []string{}},
		{"remove last", []string{"a", "b", "c"}, RemoveLastCtxTag, []string{"a", "b"}},
		{"overwrite", []string{"a", "b"}, func(c context.Context) context.Context { return OverwriteCtxTag(c, []string{"x"}) }, []string{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := ctxWithTags(tt.start)
			assertTags(t, tt.op(orig), tt.want)
			assertTags(t, orig, tt.start)
		})
	}
}

func TestOverwriteCtxTag_CopiesInput(t *testing.T) {
	input := []string{"a"}
	ctx := OverwriteCtxTag(context.Background(), input)
	input[0] = "mutated"
	assertTags(t, ctx, []string{"a"})
}

func TestTags_ConcurrentBranches(t *testing.T) {
	base := OverwriteCtxTag(context.Background(), []string{"base"})

	const workers = 8
	var wg sync.WaitGroup
	results := make([][]string, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			ctx := AppendCtxTag(base, fmt.Sprintf("worker-%d", id))
			ctx = AppendCtxTag(ctx, "step")
			ctx = RemoveLastCtxTag(ctx)
			ctx = AppendCtxTag(ctx, "final")
			results[id] = GetTagList(ctx)
		}(i)
	}
	wg.Wait()

	assertTags(t, base, []string{"base"})
	for id, tags := range results {
		want := []string{"base", fmt.Sprintf("worker-%d", id), "final"}
		if !reflect.DeepEqual(tags, want) {
			t.Errorf("worker %d: expected %v but got %v", id, want, tags)
		}
	}
}
