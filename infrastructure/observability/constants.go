package observability

// Metric namespace and subsystems
const (
	Namespace = "megayield"

	SubsystemLottery = "lottery"
	SubsystemVesting = "vesting"
	SubsystemVault   = "vault"
	SubsystemOracle  = "oracle"
	SubsystemHTTP    = "http"
)

// Label keys
const (
	LabelEventType = "event_type"
	LabelResult    = "result"
	LabelMethod    = "method"
	LabelRoute     = "route"
	LabelStatus    = "status"
)

// Oracle callback results
const (
	ResultDelivered = "delivered"
	ResultRejected  = "rejected"
	ResultFailed    = "failed"
)
