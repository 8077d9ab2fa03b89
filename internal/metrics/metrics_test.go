package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordUpstream(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		expected string
	}{
		{name: "status code label", status: 404, expected: "404"},
		{name: "transport failure", status: 0, expected: "transport_error"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			counter := UpstreamRequestsTotal.WithLabelValues("test_endpoint", tc.expected)
			before := testutil.ToFloat64(counter)

			RecordUpstream("test_endpoint", tc.status)

			assert.Equal(t, before+1, testutil.ToFloat64(counter))
		})
	}
}

func TestRecordAggregation(t *testing.T) {
	RecordAggregation(1.5, 12)
	assert.Equal(t, float64(12), testutil.ToFloat64(Repositories))

	before := testutil.ToFloat64(CacheRequestsTotal.WithLabelValues(OutcomeHit))
	RecordCacheOutcome(OutcomeHit)
	assert.Equal(t, before+1, testutil.ToFloat64(CacheRequestsTotal.WithLabelValues(OutcomeHit)))
}
