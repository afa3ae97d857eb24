package domain

// Prompt is a single request to the generation model.
type Prompt struct {
	// System is the fixed instruction for the call.
	System string

	// Messages are the conversational inputs, oldest first.
	Messages []Message

	// Temperature controls sampling. Structured and editing calls run low.
	Temperature float64

	// Schema optionally describes the JSON object the caller expects back.
	// The caller still validates the response itself.
	Schema string
}
