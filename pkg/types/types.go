package types

// ProcessFrameRequest is the JSON body posted to /process_frame
type ProcessFrameRequest struct {
	Image  string `json:"image"` // data URL, e.g. data:image/jpeg;base64,...
	Prompt string `json:"prompt"`
	APIKey string `json:"api_key"`
}

// ProcessFrameResponse is the JSON body returned by /process_frame
type ProcessFrameResponse struct {
	Response string `json:"response"`
}

// ErrorResponse is returned by the backend when a frame cannot be processed
type ErrorResponse struct {
	Error string `json:"error"`
}

// VisionRequest is a single prompt+image query against a vision model
type VisionRequest struct {
	Model     string
	Prompt    string
	ImageB64  string // raw base64, no data URL prefix
	APIKey    string
	MaxTokens int
}

// HealthResponse is returned by /healthz
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
