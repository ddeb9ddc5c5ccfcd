package reads

import "go.uber.org/zap"

var sugar = zap.NewNop().Sugar()

// SetLogger routes the package's warnings through the given logger. The
// default logger discards everything.
func SetLogger(logger *zap.Logger) {
	sugar = logger.Sugar()
}
