package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pretgo"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"route", "code"},
	)

	loansCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "loans_created_total",
		Help:      "Loans created.",
	})

	loansReturned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "loans_returned_total",
		Help:      "Loans confirmed as returned.",
	})

	activeLoans = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "loans_active",
		Help:      "Loans not yet returned, as of the last alert scan.",
	})

	overdueLoans = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "loans_overdue",
		Help:      "Active loans past their due time, as of the last alert scan.",
	})

	labelsPrinted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "labels_printed_total",
			Help:      "Inventory labels sent to the printer by delivery method.",
		},
		[]string{"method"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, loansCreated, loansReturned, activeLoans, overdueLoans, labelsPrinted)
	})
}

// IncHTTP counts a served request.
func IncHTTP(route string, code int) {
	httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func IncLoansCreated() {
	loansCreated.Inc()
}

func AddLoansReturned(n int) {
	loansReturned.Add(float64(n))
}

// SetLoanGauges publishes the result of an alert scan.
func SetLoanGauges(active, overdue int) {
	activeLoans.Set(float64(active))
	overdueLoans.Set(float64(overdue))
}

func AddLabelsPrinted(method string, n int) {
	labelsPrinted.WithLabelValues(method).Add(float64(n))
}
