// Package events 定义了上报给外部用量看板的事件结构。
package events

// QueryUsageEvent 在一次成功回答后发布，供外部看板聚合使用。
// 发布是尽力而为的，失败不会影响查询结果。
type QueryUsageEvent struct {
	Question   string   `json:"question"`
	Topic      string   `json:"topic"`
	PMCIDs     []string `json:"pmcids"`
	DurationMS int64    `json:"duration_ms"`
	Timestamp  int64    `json:"timestamp"`
}
