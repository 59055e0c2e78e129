package observability

import (
	"testing"
	"time"

	"github.com/aegis-platform/aegis/internal/testutil/testlog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	ConnectionOpened()
	RecordFrame(DirectionInbound, 128)
	RecordFrame(DirectionOutbound, 64)
	RecordCodecDrop("decode")
	RecordAcceptError()
	RecordHTTPRequest("agent-a", "GET", "/health", 200, 12*time.Millisecond)
	ConnectionClosed()
}
