package idalloc

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pkg.jsn.cam/datagen/pkg/datagen"
)

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{in: "shared", want: ModeShared},
		{in: "per-kind", want: ModePerKind},
		{in: "snowflake", want: ModeSnowflake},
		{in: " Per-Kind ", want: ModePerKind},
		{in: "global", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, datagen.ErrUnsupportedIDMode))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSharedSequenceSpansKinds(t *testing.T) {
	t.Parallel()

	a := NewShared(1000)
	got := []int64{
		a.Next(datagen.KindUser),
		a.Next(datagen.KindAddress),
		a.Next(datagen.KindUser),
		a.Next(datagen.KindProvider),
		a.Next(datagen.KindTransaction),
	}
	assert.Equal(t, []int64{1000, 1001, 1002, 1003, 1004}, got)
}

func TestPerKindSequencesAreIndependent(t *testing.T) {
	t.Parallel()

	a := NewPerKind(map[datagen.Kind]int64{
		datagen.KindUser:        1,
		datagen.KindAddress:     500,
		datagen.KindProvider:    10,
		datagen.KindTransaction: 9000,
	})

	assert.Equal(t, int64(1), a.Next(datagen.KindUser))
	assert.Equal(t, int64(2), a.Next(datagen.KindUser))
	assert.Equal(t, int64(500), a.Next(datagen.KindAddress))
	assert.Equal(t, int64(3), a.Next(datagen.KindUser))
	assert.Equal(t, int64(10), a.Next(datagen.KindProvider))
	assert.Equal(t, int64(9000), a.Next(datagen.KindTransaction))
	assert.Equal(t, int64(501), a.Next(datagen.KindAddress))
}

func TestPerKindDefaultsMissingStarts(t *testing.T) {
	t.Parallel()

	a := NewPerKind(map[datagen.Kind]int64{datagen.KindUser: 7})
	assert.Equal(t, int64(7), a.Next(datagen.KindUser))
	assert.Equal(t, int64(1), a.Next(datagen.KindTransaction))
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	shared, err := New(Config{Mode: ModeShared, Start: 42})
	require.NoError(t, err)
	assert.Equal(t, int64(42), shared.Next(datagen.KindAddress))

	perKind, err := New(Config{Mode: ModePerKind, UserStart: 1, ProviderStart: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(100), perKind.Next(datagen.KindProvider))

	_, err = New(Config{Mode: "bogus"})
	assert.ErrorIs(t, err, datagen.ErrUnsupportedIDMode)

	_, err = New(Config{Mode: ModeSnowflake, Node: 5000})
	assert.ErrorIs(t, err, datagen.ErrUnsupportedIDMode)
}

func TestSnowflakeStrictlyIncreasing(t *testing.T) {
	t.Parallel()

	a, err := NewSnowflake(3)
	require.NoError(t, err)

	prev := a.Next(datagen.KindUser)
	for i := 0; i < 5000; i++ {
		next := a.Next(datagen.Kinds[i%len(datagen.Kinds)])
		require.Greater(t, next, prev)
		prev = next
	}
}

func TestConcurrentCallsNeverRepeat(t *testing.T) {
	t.Parallel()

	allocators := map[string]Allocator{
		"shared":   NewShared(1),
		"per-kind": NewPerKind(nil),
	}

	for name, a := range allocators {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			const goroutines, perGoroutine = 8, 1000
			var (
				mu   sync.Mutex
				seen = make(map[int64]struct{}, goroutines*perGoroutine)
				wg   sync.WaitGroup
			)

			for g := 0; g < goroutines; g++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					local := make([]int64, 0, perGoroutine)
					for i := 0; i < perGoroutine; i++ {
						local = append(local, a.Next(datagen.KindUser))
					}
					mu.Lock()
					defer mu.Unlock()
					for _, id := range local {
						if _, dup := seen[id]; dup {
							t.Errorf("duplicate id %d", id)
						}
						seen[id] = struct{}{}
					}
				}()
			}
			wg.Wait()

			assert.Len(t, seen, goroutines*perGoroutine)
		})
	}
}
