package dto

// SubmitJobResponse 提交任务响应
type SubmitJobResponse struct {
	JobID string `json:"job_id"`
}

// JobStatusResponse 任务状态
type JobStatusResponse struct {
	JobID       string  `json:"job_id"`
	Status      string  `json:"status"`
	Progress    float64 `json:"progress"`
	Filename    string  `json:"filename,omitempty"`
	Error       string  `json:"error,omitempty"`
	ProcessedAt string  `json:"processed_at,omitempty"`
}

// HealthResponse 心跳
type HealthResponse struct {
	Status string `json:"status"`
}
