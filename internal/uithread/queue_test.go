package uithread

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bryanchriswhite/scenicview/internal/logger"
)

func TestQueueRunsInSubmissionOrder(t *testing.T) {
	q := New(logger.Nop())
	defer q.Stop()

	var order []int
	for i := 0; i < 100; i++ {
		i := i
		q.RunLater(func() { order = append(order, i) })
	}
	q.Flush()

	expected := make([]int, 100)
	for i := range expected {
		expected[i] = i
	}
	assert.Equal(t, expected, order)
}

func TestQueueNeverInterleaves(t *testing.T) {
	q := New(logger.Nop())
	defer q.Stop()

	var (
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				q.RunLater(func() {
					inside++
					if inside > maxSeen {
						maxSeen = inside
					}
					inside--
				})
			}
		}()
	}
	wg.Wait()
	q.Flush()

	assert.Equal(t, 1, maxSeen)
}

func TestQueueRecoversFromPanics(t *testing.T) {
	q := New(logger.Nop())
	defer q.Stop()

	q.RunLater(func() { panic("boom") })
	ran := false
	assert.True(t, q.RunAndWait(func() { ran = true }))
	assert.True(t, ran)
}

func TestQueueStopDrainsThenRejects(t *testing.T) {
	q := New(logger.Nop())

	ran := 0
	for i := 0; i < 5; i++ {
		q.RunLater(func() { ran++ })
	}
	q.Stop()
	q.Stop()

	assert.Equal(t, 5, ran)
	assert.False(t, q.RunLater(func() { ran++ }))
	assert.False(t, q.RunAndWait(func() { ran++ }))
	assert.Equal(t, 5, ran)
}
