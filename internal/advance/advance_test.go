package advance

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearch_Empty(t *testing.T) {
	t.Parallel()

	haystack := []bool{false, false, false, false, false}
	assert.Equal(t, 0, Search(haystack, func(b bool) bool { return b }))

	long := make([]bool, 10)
	assert.Equal(t, 0, Search(long, func(b bool) bool { return b }))
}

func TestSearch_Small(t *testing.T) {
	t.Parallel()

	haystack := []bool{true, true, false, false, false}
	assert.Equal(t, 2, Search(haystack, func(b bool) bool { return b }))

	haystack = []bool{true, true, true, false, false, false, false, false, false, false}
	assert.Equal(t, 3, Search(haystack, func(b bool) bool { return b }))
}

func TestSearch_Medium(t *testing.T) {
	t.Parallel()

	haystack := []bool{
		true, true, true, true, true, true, true, true, true, true, false, false, false,
	}
	assert.Equal(t, 10, Search(haystack, func(b bool) bool { return b }))
}

func TestSearch_AllTrue(t *testing.T) {
	t.Parallel()

	haystack := make([]bool, 50)
	for i := range haystack {
		haystack[i] = true
	}

	assert.Equal(t, 50, Search(haystack, func(b bool) bool { return b }))
}

const propertyIterations = 2000

// TestSearch_MatchesLinearScan checks Search against a naive linear scan
// over random sorted haystacks, mirroring the original Rust crate's
// proptest coverage (advance_less_than).
func TestSearch_MatchesLinearScan(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))

	for iter := 0; iter < propertyIterations; iter++ {
		n := rng.Intn(200)
		haystack := make([]int, n)

		for i := range haystack {
			haystack[i] = rng.Intn(1000)
		}

		sortInts(haystack)

		needle := rng.Intn(1000)

		got := Search(haystack, func(x int) bool { return x < needle })
		want := linearCount(haystack, needle)

		assert.Equal(t, want, got, "haystack=%v needle=%d", haystack, needle)
	}
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func linearCount(haystack []int, needle int) int {
	for i, v := range haystack {
		if v >= needle {
			return i
		}
	}

	return len(haystack)
}

func TestSearchErased_Uint64(t *testing.T) {
	t.Parallel()

	values := []uint64{1, 1, 568, 568, 568}
	buf := make([]byte, len(values)*8)

	for i, v := range values {
		putUint64(buf[i*8:], v)
	}

	count := SearchErased(buf, 8, func(b []byte) bool {
		return getUint64(b) == 1
	})
	assert.Equal(t, 2, count)
}

func TestSearchErased_CrossesSmallLimit(t *testing.T) {
	t.Parallel()

	values := make([]uint64, 13)
	for i := range 10 {
		values[i] = 1
	}

	for i := 10; i < 13; i++ {
		values[i] = 568
	}

	buf := make([]byte, len(values)*8)
	for i, v := range values {
		putUint64(buf[i*8:], v)
	}

	count := SearchErased(buf, 8, func(b []byte) bool {
		return getUint64(b) == 1
	})
	assert.Equal(t, 10, count)
}

func TestSearchErased_PanicsOnMisalignedBuffer(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		SearchErased(make([]byte, 10), 8, func([]byte) bool { return true })
	})
}

func putUint64(b []byte, v uint64) {
	for i := range 8 {
		b[i] = byte(v >> (8 * i))
	}
}

func getUint64(b []byte) uint64 {
	var v uint64
	for i := range 8 {
		v |= uint64(b[i]) << (8 * i)
	}

	return v
}
