package telemetry_test

import (
	"github.com/erp/returns/internal/application/returns"
	"github.com/erp/returns/internal/infrastructure/telemetry"
)

var _ returns.Metrics = (*telemetry.ReturnMetrics)(nil)
