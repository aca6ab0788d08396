package metrics

const (
	endpointMetrics = "/metrics"
)

// Metric types
const (
	typeGauge     = "gauge"
	typeCounter   = "counter"
	typeHistogram = "histogram"
)

// Metric names and labels
const (
	prefix = "nftlane_bridge_"

	prefixRequest        = prefix + "request_"
	metricRequestCount   = prefixRequest + "count"
	metricRequestLatency = prefixRequest + "latency_ms"
	labelMethod          = "method"
	labelIsSuccess       = "is_success"

	prefixSynchronizer           = prefix + "synchronizer_"
	metricSynchronizerEventCount = prefixSynchronizer + "event_count"
	metricLastSyncedBlockNum     = prefixSynchronizer + "last_synced_block_num"
	labelNetworkID               = "network_id"
	labelEventType               = "type"

	prefixMonitoredTxs            = prefix + "monitored_txs_"
	metricMonitoredTxsResultCount = prefixMonitoredTxs + "result_count"
	labelStatus                   = "status"

	prefixCollection            = prefix + "collection_"
	metricCollectionDeployCount = prefixCollection + "deploy_count"
)
