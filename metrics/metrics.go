package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func initMetrics() {
	if !initialized {
		registerer = prometheus.DefaultRegisterer
		gauges = make(map[string]*prometheus.GaugeVec)
		counters = make(map[string]*prometheus.CounterVec)
		histograms = make(map[string]*prometheus.HistogramVec)
		initialized = true
	}

	registerCounter(prometheus.CounterOpts{Name: metricRequestCount}, labelMethod, labelIsSuccess)
	registerHistogram(prometheus.HistogramOpts{Name: metricRequestLatency}, labelMethod, labelIsSuccess)
	registerCounter(prometheus.CounterOpts{Name: metricSynchronizerEventCount}, labelNetworkID, labelEventType)
	registerGauge(prometheus.GaugeOpts{Name: metricLastSyncedBlockNum}, labelNetworkID)
	registerCounter(prometheus.CounterOpts{Name: metricMonitoredTxsResultCount}, labelStatus)
	registerCounter(prometheus.CounterOpts{Name: metricCollectionDeployCount}, labelNetworkID)
}

// RecordRequest increments the request count for the API method
func RecordRequest(method string, isSuccess bool) {
	counterInc(metricRequestCount, map[string]string{labelMethod: method, labelIsSuccess: strconv.FormatBool(isSuccess)})
}

// RecordRequestLatency records the latency histogram in milliseconds
func RecordRequestLatency(method string, latency time.Duration, isSuccess bool) {
	histogramObserve(metricRequestLatency, float64(latency.Milliseconds()), map[string]string{labelMethod: method, labelIsSuccess: strconv.FormatBool(isSuccess)})
}

// RecordSynchronizerEvent increments the event count for one decoded
// bridge event (request, withdrawal or deployment)
func RecordSynchronizerEvent(networkID uint, eventType string) {
	counterInc(metricSynchronizerEventCount, map[string]string{labelNetworkID: strconv.Itoa(int(networkID)), labelEventType: eventType})
}

// SetLastSyncedBlockNum reports how far the synchronizer got on a network
func SetLastSyncedBlockNum(networkID uint, blockNumber uint64) {
	gaugeSet(metricLastSyncedBlockNum, float64(blockNumber), map[string]string{labelNetworkID: strconv.Itoa(int(networkID))})
}

// RecordMonitoredTxResult counts one monitored tx reaching a final status
func RecordMonitoredTxResult(status string) {
	counterInc(metricMonitoredTxsResultCount, map[string]string{labelStatus: status})
}

// RecordCollectionDeployed counts one rollup collection deployment
func RecordCollectionDeployed(networkID uint) {
	counterInc(metricCollectionDeployCount, map[string]string{labelNetworkID: strconv.Itoa(int(networkID))})
}
