package util

import "github.com/influxdata/influxdb-client-go/api/write"

// MockWriteAPI discards every point. It stands in for InfluxDB when no host is
// configured so that components can write metrics unconditionally.
type MockWriteAPI struct{}

func (m *MockWriteAPI) WriteRecord(line string) {}

func (m *MockWriteAPI) WritePoint(point *write.Point) {}

func (m *MockWriteAPI) Flush() {}

func (m *MockWriteAPI) Close() {}

// Errors returns nil; nothing is ever sent.
func (m *MockWriteAPI) Errors() <-chan error { return nil }
