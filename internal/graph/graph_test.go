package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/streamcore/rollup/internal/trace"
)

const validDoc = `{
  "range": {
    "from": {"kind": "before", "n": 1000},
    "to": {"kind": "before", "n": 0}
  },
  "aggregator": "sum"
}`

func TestValidate_AcceptsWellFormedDocument(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Validate([]byte(validDoc)))
}

func TestValidate_RejectsUnknownAggregator(t *testing.T) {
	t.Parallel()

	doc := `{"range": {"from": {"kind": "before", "n": 1}, "to": {"kind": "before", "n": 0}}, "aggregator": "median"}`

	err := Validate([]byte(doc))
	assert.Error(t, err)

	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestValidate_RejectsMissingRange(t *testing.T) {
	t.Parallel()

	doc := `{"aggregator": "sum"}`

	assert.Error(t, Validate([]byte(doc)))
}

func TestValidate_RejectsUnknownOffsetKind(t *testing.T) {
	t.Parallel()

	doc := `{"range": {"from": {"kind": "decade"}, "to": {"kind": "before", "n": 0}}, "aggregator": "sum"}`

	assert.Error(t, Validate([]byte(doc)))
}

func TestBuild_SumAggregatorProducesWorkingGraph(t *testing.T) {
	t.Parallel()

	g, err := Build([]byte(validDoc))
	assert.NoError(t, err)

	clock := NewClock(g)

	out := clock.RunTick([]trace.Entry[string, int64, int64]{
		{Key: "p", Val: trace.Tuple[int64, int64]{TS: 5, Payload: 7}, Weight: 1},
		{Key: "p", Val: trace.Tuple[int64, int64]{TS: 6, Payload: 3}, Weight: 1},
	}, 6)

	found := false

	for _, e := range out {
		if e.Val.TS == 6 {
			found = true
			assert.Equal(t, int64(10), e.Val.Payload.Agg.Value)
		}
	}

	assert.True(t, found)
}

func TestBuild_CountAggregator(t *testing.T) {
	t.Parallel()

	doc := `{"range": {"from": {"kind": "before", "n": 1000}, "to": {"kind": "before", "n": 0}}, "aggregator": "count"}`

	g, err := Build([]byte(doc))
	assert.NoError(t, err)

	clock := NewClock(g)

	out := clock.RunTick([]trace.Entry[string, int64, int64]{
		{Key: "p", Val: trace.Tuple[int64, int64]{TS: 1, Payload: 100}, Weight: 1},
		{Key: "p", Val: trace.Tuple[int64, int64]{TS: 2, Payload: 200}, Weight: 1},
	}, 2)

	found := false

	for _, e := range out {
		if e.Val.TS == 2 {
			found = true
			assert.Equal(t, int64(2), e.Val.Payload.Agg.Value)
		}
	}

	assert.True(t, found)
}

func TestBuild_RejectsInvalidDocument(t *testing.T) {
	t.Parallel()

	_, err := Build([]byte(`{"aggregator": "sum"}`))
	assert.Error(t, err)
}
