package gateway

// 拒绝原因标签
const (
	RejectMissingParams = "missing_params"
	RejectInvalidParams = "invalid_params"
	RejectTokenInvalid  = "token_invalid"
	RejectNotMember     = "not_member"
	RejectTooMany       = "too_many_connections"
	RejectShuttingDown  = "shutting_down"
	RejectInternal      = "internal"
)

// 广播范围标签
const (
	ScopeGuild = "guild"
	ScopeAll   = "all"
)

// Metrics 监控接口
type Metrics interface {
	SetConnections(n int)
	SetCommunities(n int)
	IncRejections(reason string)
	IncHeartbeats()
	IncUnknownEvents()
	IncInvalidFrames()
	IncDelivered()
	IncDeliveryFailures()
	IncBroadcasts(scope string)
}

// NoopMetrics 空实现（默认）
type NoopMetrics struct{}

func (NoopMetrics) SetConnections(int)   {}
func (NoopMetrics) SetCommunities(int)   {}
func (NoopMetrics) IncRejections(string) {}
func (NoopMetrics) IncHeartbeats()       {}
func (NoopMetrics) IncUnknownEvents()    {}
func (NoopMetrics) IncInvalidFrames()    {}
func (NoopMetrics) IncDelivered()        {}
func (NoopMetrics) IncDeliveryFailures() {}
func (NoopMetrics) IncBroadcasts(string) {}
