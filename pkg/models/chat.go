package models

// ChatRequest is the /api/chat request body.
type ChatRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream,omitempty"`
}

// ChatResponse is the non-streaming /api/chat and /api/vision reply.
type ChatResponse struct {
	Model string `json:"model"`
	Reply string `json:"reply"`
	Usage *Usage `json:"usage,omitempty"`
}

// Usage holds token counts reported by the inference server.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
