package model

import "time"

type RequestLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RequestID string    `gorm:"not null;size:36" json:"requestId"`
	Method    string    `gorm:"not null;size:10" json:"method"`
	Path      string    `gorm:"not null;size:255" json:"path"`
	Status    int       `gorm:"not null" json:"status"`
	LatencyMS int64     `gorm:"column:latency_ms;not null" json:"latencyMs"`
	ClientIP  string    `gorm:"size:45" json:"clientIp"`
	UserID    int64     `gorm:"index" json:"userId"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

func (RequestLog) TableName() string {
	return "request_logs"
}
