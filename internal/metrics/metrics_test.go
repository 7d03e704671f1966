package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("/api/v1/loans", 200)
	})

	before := testutil.ToFloat64(loansCreated)
	IncLoansCreated()
	assert.Equal(t, before+1, testutil.ToFloat64(loansCreated))

	AddLoansReturned(3)
	assert.GreaterOrEqual(t, testutil.ToFloat64(loansReturned), 3.0)

	SetLoanGauges(5, 2)
	assert.Equal(t, 5.0, testutil.ToFloat64(activeLoans))
	assert.Equal(t, 2.0, testutil.ToFloat64(overdueLoans))

	AddLabelsPrinted("tcp", 4)
	assert.Equal(t, 4.0, testutil.ToFloat64(labelsPrinted.WithLabelValues("tcp")))
}
