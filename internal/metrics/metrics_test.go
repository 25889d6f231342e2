package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/atinyakov/easyvault/internal/sealed"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	Init()
	before := testutil.ToFloat64(entryReads.WithLabelValues(ResultDenied))
	EntryRead(ResultDenied)
	EntryRead(ResultDenied)
	assert.Equal(t, before+2, testutil.ToFloat64(entryReads.WithLabelValues(ResultDenied)))

	before = testutil.ToFloat64(batchWrites.WithLabelValues(ResultOK))
	BatchWrite(ResultOK)
	assert.Equal(t, before+1, testutil.ToFloat64(batchWrites.WithLabelValues(ResultOK)))
}

func TestObserveTransition(t *testing.T) {
	Init()
	unsealedBefore := testutil.ToFloat64(transitions.WithLabelValues(sealed.Unsealed.String()))
	sealedBefore := testutil.ToFloat64(transitions.WithLabelValues(sealed.Sealed.String()))

	ObserveTransition(sealed.Transition{From: sealed.Sealed, To: sealed.Unsealed, Entries: 3})
	assert.Equal(t, 0.0, testutil.ToFloat64(sealedGauge))
	assert.Equal(t, 3.0, testutil.ToFloat64(cachedEntries))

	ObserveTransition(sealed.Transition{From: sealed.Unsealed, To: sealed.Sealed})
	assert.Equal(t, 1.0, testutil.ToFloat64(sealedGauge))

	assert.Equal(t, unsealedBefore+1, testutil.ToFloat64(transitions.WithLabelValues(sealed.Unsealed.String())))
	assert.Equal(t, sealedBefore+1, testutil.ToFloat64(transitions.WithLabelValues(sealed.Sealed.String())))
}

func TestHandler(t *testing.T) {
	BatchRead(ResultEmpty)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), "easyvault_batch_reads_total"))
}
