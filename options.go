package converter

import (
	"go.uber.org/zap"

	"github.com/albertbuchard/one-more-epub-converter/progress"
)

// convertOptions holds configuration for a conversion.
type convertOptions struct {
	logger     *zap.Logger
	onProgress func(progress.Event)
	title      string // overrides publication metadata when set
}

// defaultOptions returns the default conversion options.
func defaultOptions() convertOptions {
	return convertOptions{
		logger:     nil, // nil means no-op
		onProgress: nil,
		title:      "",
	}
}

// clone creates a copy of convertOptions.
func (o convertOptions) clone() convertOptions {
	return convertOptions{
		logger:     o.logger,
		onProgress: o.onProgress,
		title:      o.title,
	}
}

// log returns the configured logger or a no-op one.
func (o convertOptions) log() *zap.Logger {
	if o.logger == nil {
		return zap.NewNop()
	}
	return o.logger
}
