package rtdb

type PushResp struct {
	Name string `json:"name"`
}

type ErrorResp struct {
	Error string `json:"error"`
}

// StreamEvent is the data of a put or patch event on a streaming GET.
type StreamEvent struct {
	Path string `json:"path"`
	Data any    `json:"data"`
}
