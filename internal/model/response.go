package model

// Response is the minimal `{success, message}` envelope every endpoint
// speaks. Errors never carry stack traces or internal codes.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// CategoryPayload is the response shape for category reads. Forbidden reads
// return the same shape with empty slices (and HTTP 403) so the frontend has
// a single code path; the slices must be non-nil to serialize as `[]`.
type CategoryPayload struct {
	Success       bool       `json:"success"`
	Message       string     `json:"message,omitempty"`
	Filters       []Filter   `json:"filters"`
	TagDictionary []Filter   `json:"tagDictionary"`
	Resources     []Resource `json:"resources"`
}

// EmptyCategoryPayload returns the 403 payload for a gated category read.
func EmptyCategoryPayload(message string) CategoryPayload {
	return CategoryPayload{
		Success:       false,
		Message:       message,
		Filters:       []Filter{},
		TagDictionary: []Filter{},
		Resources:     []Resource{},
	}
}
