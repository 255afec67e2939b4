package registry

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorldClock_Advance(t *testing.T) {
	c := NewWorldClock()
	assert.Equal(t, 0.0, c.Now())

	assert.InDelta(t, 0.5, c.Advance(0.5), 1e-12)
	assert.InDelta(t, 0.75, c.Advance(0.25), 1e-12)
	assert.Equal(t, int64(2), c.TickIndex())
}

func TestWorldClock_NegativeDeltaDoesNotRewind(t *testing.T) {
	c := NewWorldClockAt(2)
	c.Advance(-1)
	assert.Equal(t, 2.0, c.Now())
	assert.Equal(t, int64(1), c.TickIndex())

	c.Reset()
	assert.Equal(t, 0.0, c.Now())
	assert.Equal(t, int64(0), c.TickIndex())
}

func TestWorldClock_ThreadSafe(t *testing.T) {
	c := NewWorldClock()
	const goroutines = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(1)
		}()
	}
	wg.Wait()

	assert.Equal(t, float64(goroutines), c.Now())
	assert.Equal(t, int64(goroutines), c.TickIndex())
}

func TestUUIDv7Generator_Version(t *testing.T) {
	token := UUIDv7Generator{}.Generate()
	parsed, err := uuid.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestFixedGenerator_Exhausted(t *testing.T) {
	gen := NewFixedGenerator("a")
	assert.Equal(t, "a", gen.Generate())
	assert.PanicsWithValue(t, "FixedGenerator: all tokens exhausted", func() { gen.Generate() })
}
