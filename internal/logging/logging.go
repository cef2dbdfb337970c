package logging

import (
	"go.uber.org/zap"
)

// NewLogger 创建全局 zap.Logger。
// debug=true 时用开发版 (彩色、人类可读)，否则用生产版 (JSON)。
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", "news-pipeline")), nil
}
