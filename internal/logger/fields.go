package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Structured log field keys shared across packages.
const (
	FieldProvider   = "ai_provider"
	FieldModel      = "ai_model"
	FieldJob        = "job"
	FieldCandidates = "candidates"
	FieldStrategy   = "skill_strategy"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts key/value pairs into zap fields, trimming whitespace
// and skipping entries with an empty key or value.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		value := strings.TrimSpace(field.Value)
		if key == "" || value == "" {
			continue
		}
		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches fields to the logger. A nil logger becomes a no-op one.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// ProviderFields describes the similarity provider in use.
func ProviderFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// WithProvider attaches the provider fields to the logger.
func WithProvider(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, ProviderFields(provider, model)...)
}

// RankingFields describes a ranking run.
func RankingFields(job, strategy string, candidates int) []zap.Field {
	fields := StringFields(
		StringField{Key: FieldJob, Value: job},
		StringField{Key: FieldStrategy, Value: strategy},
	)
	return append(fields, zap.Int(FieldCandidates, candidates))
}
