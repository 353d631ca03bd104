package blobstore

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/digest"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/util"
)

var (
	blobAccessOperationsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toolchain",
			Subsystem: "blobstore",
			Name:      "blob_access_operations_started_total",
			Help:      "Total number of operations started on blob access objects.",
		},
		[]string{"name", "operation"})
	blobAccessOperationsDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "toolchain",
			Subsystem: "blobstore",
			Name:      "blob_access_operations_duration_seconds",
			Help:      "Amount of time spent per operation on blob access objects, in seconds.",
			Buckets:   util.DecimalExponentialBuckets(-3, 6, 2),
		},
		[]string{"name", "operation"})
)

func init() {
	prometheus.MustRegister(blobAccessOperationsStartedTotal)
	prometheus.MustRegister(blobAccessOperationsDurationSeconds)
}

type metricsBlobAccess struct {
	blobAccess                                     BlobAccess
	blobAccessOperationsStartedTotalGet            prometheus.Counter
	blobAccessOperationsDurationSecondsGet         prometheus.Observer
	blobAccessOperationsStartedTotalPut            prometheus.Counter
	blobAccessOperationsDurationSecondsPut         prometheus.Observer
	blobAccessOperationsStartedTotalFindMissing    prometheus.Counter
	blobAccessOperationsDurationSecondsFindMissing prometheus.Observer
}

// NewMetricsBlobAccess creates an adapter for BlobAccess that adds
// basic instrumentation in the form of Prometheus metrics.
func NewMetricsBlobAccess(blobAccess BlobAccess, name string) BlobAccess {
	return &metricsBlobAccess{
		blobAccess:                                     blobAccess,
		blobAccessOperationsStartedTotalGet:            blobAccessOperationsStartedTotal.WithLabelValues(name, "Get"),
		blobAccessOperationsDurationSecondsGet:         blobAccessOperationsDurationSeconds.WithLabelValues(name, "Get"),
		blobAccessOperationsStartedTotalPut:            blobAccessOperationsStartedTotal.WithLabelValues(name, "Put"),
		blobAccessOperationsDurationSecondsPut:         blobAccessOperationsDurationSeconds.WithLabelValues(name, "Put"),
		blobAccessOperationsStartedTotalFindMissing:    blobAccessOperationsStartedTotal.WithLabelValues(name, "FindMissing"),
		blobAccessOperationsDurationSecondsFindMissing: blobAccessOperationsDurationSeconds.WithLabelValues(name, "FindMissing"),
	}
}

func (ba *metricsBlobAccess) Get(ctx context.Context, blobDigest digest.Digest) ([]byte, error) {
	ba.blobAccessOperationsStartedTotalGet.Inc()
	timeStart := time.Now()
	data, err := ba.blobAccess.Get(ctx, blobDigest)
	ba.blobAccessOperationsDurationSecondsGet.Observe(time.Since(timeStart).Seconds())
	return data, err
}

func (ba *metricsBlobAccess) Put(ctx context.Context, blobDigest digest.Digest, data []byte) error {
	ba.blobAccessOperationsStartedTotalPut.Inc()
	timeStart := time.Now()
	err := ba.blobAccess.Put(ctx, blobDigest, data)
	ba.blobAccessOperationsDurationSecondsPut.Observe(time.Since(timeStart).Seconds())
	return err
}

func (ba *metricsBlobAccess) FindMissing(ctx context.Context, digests digest.Set) (digest.Set, error) {
	ba.blobAccessOperationsStartedTotalFindMissing.Inc()
	timeStart := time.Now()
	missing, err := ba.blobAccess.FindMissing(ctx, digests)
	ba.blobAccessOperationsDurationSecondsFindMissing.Observe(time.Since(timeStart).Seconds())
	return missing, err
}
