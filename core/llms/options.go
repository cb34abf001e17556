package llms

type StreamingPromptOptions struct {
	// Model overrides the provider's default model when set.
	Model        string
	Instructions string
}

type StreamingPromptOption interface {
	ApplyToStreaming(*StreamingPromptOptions)
}

type StreamingPromptOptionFunc func(*StreamingPromptOptions)

func (f StreamingPromptOptionFunc) ApplyToStreaming(o *StreamingPromptOptions) { f(o) }

// WithModel selects the model used for the prompt.
// Repeating this option will overwrite the previous model.
func WithModel(model string) StreamingPromptOption {
	return StreamingPromptOptionFunc(func(o *StreamingPromptOptions) {
		o.Model = model
	})
}

// WithInstructions sets the system prompt.
// Repeating this option will overwrite the previous system prompt.
func WithInstructions(instructions string) StreamingPromptOption {
	return StreamingPromptOptionFunc(func(o *StreamingPromptOptions) {
		o.Instructions = instructions
	})
}

func ApplyStreamingOptions(defaults StreamingPromptOptions, opts ...StreamingPromptOption) StreamingPromptOptions {
	options := defaults
	for _, opt := range opts {
		if opt != nil {
			opt.ApplyToStreaming(&options)
		}
	}
	return options
}
