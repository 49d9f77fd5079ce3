package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the flat error body; every failure carries a message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// MessageResponse is returned by endpoints that only acknowledge an action.
type MessageResponse struct {
	Message string `json:"message"`
}
