package reply_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/heartwise/backend/internal/analysis/emotion"
	"github.com/zhouzirui/heartwise/backend/internal/service/reply"
)

func TestReplyFixedCategoriesAreStable(t *testing.T) {
	gen := reply.NewGenerator(reply.RandomPicker{})

	for _, category := range []emotion.Category{emotion.Angry, emotion.Sad, emotion.Conflict} {
		want, ok := reply.FixedReply(category)
		require.True(t, ok, category)

		for i := 0; i < 20; i++ {
			got, err := gen.Reply(category)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	}
}

func TestReplyRejectsCrisis(t *testing.T) {
	gen := reply.NewGenerator(nil)
	_, err := gen.Reply(emotion.Crisis)
	assert.ErrorIs(t, err, reply.ErrCrisisCategory)
}

func TestReplyRejectsUnknownCategory(t *testing.T) {
	gen := reply.NewGenerator(nil)
	_, err := gen.Reply(emotion.Category("joyful"))
	assert.ErrorIs(t, err, reply.ErrUnknownCategory)
}

func TestReplyDefaultUsesPicker(t *testing.T) {
	pool := reply.DefaultPool()
	gen := reply.NewGenerator(reply.FixedPicker{Index: 2})

	got, err := gen.Reply(emotion.Default)
	require.NoError(t, err)
	assert.Equal(t, pool[2], got)
}

func TestRotatingPickerReachesEveryEntry(t *testing.T) {
	pool := reply.DefaultPool()
	gen := reply.NewGenerator(&reply.RotatingPicker{})

	seen := make(map[string]bool)
	for range pool {
		got, err := gen.Reply(emotion.Default)
		require.NoError(t, err)
		seen[got] = true
	}
	assert.Len(t, seen, len(pool))
}

func TestRandomPickerStaysInPool(t *testing.T) {
	pool := reply.DefaultPool()
	gen := reply.NewGenerator(reply.RandomPicker{})

	for i := 0; i < 50; i++ {
		got, err := gen.Reply(emotion.Default)
		require.NoError(t, err)
		assert.Contains(t, pool, got)
	}
}

type emptyPicker struct{}

func (emptyPicker) Pick([]string) string { return "   " }

func TestReplyDefaultNeverEmpty(t *testing.T) {
	gen := reply.NewGenerator(emptyPicker{})
	got, err := gen.Reply(emotion.Default)
	require.NoError(t, err)
	assert.Equal(t, reply.DefaultPool()[0], got)
}

func TestFixedPickerNegativeIndex(t *testing.T) {
	pool := []string{"a", "b", "c"}
	assert.Equal(t, "c", reply.FixedPicker{Index: -1}.Pick(pool))
	assert.Equal(t, "", reply.FixedPicker{}.Pick(nil))
}

func TestPickerFor(t *testing.T) {
	assert.IsType(t, &reply.RotatingPicker{}, reply.PickerFor(reply.StrategyRotate))
	assert.IsType(t, reply.RandomPicker{}, reply.PickerFor(reply.StrategyRandom))
	assert.IsType(t, reply.RandomPicker{}, reply.PickerFor("bogus"))
}

func TestReplyCoversEveryCategory(t *testing.T) {
	gen := reply.NewGenerator(reply.FixedPicker{})
	for _, category := range emotion.Categories() {
		text, err := gen.Reply(category)
		if category == emotion.Crisis {
			assert.ErrorIs(t, err, reply.ErrCrisisCategory)
			continue
		}
		require.NoError(t, err, category)
		assert.NotEmpty(t, text, category)
	}
}
