package metric

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"contrib.go.opencensus.io/exporter/prometheus"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

//metric common tag key
var (
	MetricKeyHostname = NewMetricKey("hostname")
	MetricKeyChain    = NewMetricKey("chain")
	mKeys             = []tag.Key{MetricKeyHostname, MetricKeyChain}
	MetricTagHostname = tag.Insert(MetricKeyHostname, _resolveHostname())
	mTags             = make(map[*tag.Key]map[string]tag.Mutator)
	mtMtx             sync.Mutex
)

func NewMetricKey(k string) tag.Key {
	key, err := tag.NewKey(k)
	if err != nil {
		log.Fatalf("Fail tag.NewKey %s %+v", k, err)
	}

	mTags[&key] = make(map[string]tag.Mutator)
	return key
}

var aggTypeName = map[view.AggType]string{
	view.AggTypeNone:         "",
	view.AggTypeCount:        "_cnt",
	view.AggTypeSum:          "_sum",
	view.AggTypeDistribution: "_dist",
	view.AggTypeLastValue:    "",
}

func RegisterMetricView(m stats.Measure, a *view.Aggregation, tks []tag.Key) *view.View {
	v := &view.View{
		Name:        m.Name() + aggTypeName[a.Type],
		Description: m.Description() + " Aggregated " + a.Type.String(),
		Measure:     m,
		Aggregation: a,
		TagKeys:     append(mKeys, tks...),
	}
	if err := view.Register(v); err != nil {
		log.Fatalf("Fail view.Register %s %+v", v.Name, err)
	}
	return v
}

func GetMetricTag(mk *tag.Key, v string) tag.Mutator {
	defer mtMtx.Unlock()
	mtMtx.Lock()

	m, ok := mTags[mk]
	if !ok {
		m = make(map[string]tag.Mutator)
		mTags[mk] = m
	}

	mt, ok := m[v]
	if !ok {
		mt = tag.Upsert(*mk, v)
		m[v] = mt
	}
	return mt
}

func NewMetricContext(chain string, mts ...tag.Mutator) context.Context {
	if chain == "" {
		chain = "UNKNOWN"
	}
	mtChain := GetMetricTag(&MetricKeyChain, chain)
	ms := append([]tag.Mutator{MetricTagHostname, mtChain}, mts...)
	ctx, err := tag.New(context.Background(), ms...)
	if err != nil {
		log.Fatalf("Fail tag.New %+v", err)
	}
	return ctx
}

func _resolveHostname() string {
	nodeName := os.Getenv("NODE_NAME")
	if nodeName == "" {
		nodeName, _ = os.Hostname()
	}
	return nodeName
}

var (
	peOnce sync.Once
	pe     *prometheus.Exporter
)

// PrometheusExporter returns the process-wide exporter. Views register
// once; every server shares the same exporter.
func PrometheusExporter() *prometheus.Exporter {
	peOnce.Do(func() {
		var err error
		pe, err = prometheus.NewExporter(prometheus.Options{
			Namespace: "minthub",
		})
		if err != nil {
			log.Printf("Failed to create Prometheus exporter: %+v", err)
			return
		}

		view.RegisterExporter(pe)
		view.SetReportingPeriod(1000 * time.Millisecond)

		RegisterAttempts()
	})
	return pe
}
