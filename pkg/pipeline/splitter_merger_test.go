package pipeline_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-train-pipeline/pkg/pipeline"
)

func TestAddSplitterNilPipe(t *testing.T) {
	t.Parallel()

	_, err := pipeline.AddSplitter(nil, "split", createInputStep(t, "input", 1), 2)
	assert.ErrorIs(t, err, pipeline.ErrPipelineMustBeSet)
}

func TestAddSplitterZeroTotal(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	_, err = pipeline.AddSplitter(pipe, "split", createInputStep(t, "input", 1), 0)
	assert.ErrorIs(t, err, pipeline.ErrSplitterTotal)
}

func TestAddSplitterBroadcastsToAllBranches(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	splitter, err := pipeline.AddSplitter(pipe, "split", createInputStep(t, "input", 5), 2, pipeline.SplitterBufferSize[int](5))
	require.NoError(t, err)

	var mu sync.Mutex
	got := map[string][]int{}

	for _, name := range []string{"left", "right"} {
		branch, ok := splitter.Get()
		require.True(t, ok)
		localName := name
		err = pipeline.AddSink(pipe, localName, branch, func(ctx context.Context, input int) error {
			mu.Lock()
			defer mu.Unlock()
			got[localName] = append(got[localName], input)

			return nil
		})
		require.NoError(t, err)
	}

	_, ok := splitter.Get()
	assert.False(t, ok)

	err = pipe.Run()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got["left"])
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got["right"])
}

func TestAddMergerNoInput(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	_, err = pipeline.AddMerger[int](pipe, "merge")
	assert.ErrorIs(t, err, pipeline.ErrInputMustBeSet)
}

func TestAddMergerCombinesInputs(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	merged, err := pipeline.AddMerger(pipe, "merge", createInputStep(t, "left", 3), createInputStep(t, "right", 3))
	require.NoError(t, err)

	var got []int
	done := make(chan struct{})
	go func() {
		got = processOutputChan(t, merged.Output)
		done <- struct{}{}
	}()

	err = pipe.Run()
	require.NoError(t, err)
	<-done
	assert.ElementsMatch(t, []int{0, 0, 1, 1, 2, 2}, got)
}
