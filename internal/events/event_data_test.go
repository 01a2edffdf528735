package events

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEventManager() (*Manager, *Bus) {
	log := zerolog.Nop()
	bus := NewBus(log)
	return NewManager(bus, log), bus
}

func TestEmitTyped_RoundTripsTypedData(t *testing.T) {
	tests := []struct {
		name string
		data EventData
	}{
		{
			name: "navs imported",
			data: &NavsImportedData{ImportID: "abc", Source: "whale_navs.csv", Rows: 1055, Instruments: 17, FilledGaps: 3, DroppedRows: 2},
		},
		{
			name: "report generated",
			data: &ReportGeneratedData{RunID: "run-1", Fingerprint: "f00d", Instruments: 17, Rows: 1054, Cached: true, Recommendation: "BERKSHIRE HATHAWAY INC"},
		},
		{
			name: "report published",
			data: &ReportPublishedData{RunID: "run-1", Key: "reports/run-1.json", Location: "https://example.r2.dev/reports/run-1.json", Bytes: 2048},
		},
		{
			name: "error",
			data: &ErrorEventData{Error: "boom", Context: map[string]interface{}{"job": "import"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, bus := setupEventManager()

			var received *Event
			bus.Subscribe(tt.data.EventType(), func(e *Event) { received = e })

			manager.EmitTyped("analysis", tt.data)

			require.NotNil(t, received)
			assert.Equal(t, tt.data.EventType(), received.Type)
			assert.Equal(t, "analysis", received.Module)
			assert.False(t, received.Timestamp.IsZero())
			assert.Equal(t, tt.data, received.GetTypedData())
		})
	}
}

func TestEmitError(t *testing.T) {
	manager, bus := setupEventManager()

	var received *Event
	bus.Subscribe(ErrorOccurred, func(e *Event) { received = e })

	manager.EmitError("scheduler", errors.New("import failed"), map[string]interface{}{"job": "navs_import"})

	require.NotNil(t, received)
	data, ok := received.GetTypedData().(*ErrorEventData)
	require.True(t, ok)
	assert.Equal(t, "import failed", data.Error)
	assert.Equal(t, "navs_import", data.Context["job"])
}

func TestGetTypedData_Unknown(t *testing.T) {
	e := &Event{Type: EventType("SOMETHING_ELSE"), Data: map[string]interface{}{"x": 1}}
	assert.Nil(t, e.GetTypedData())
	assert.Nil(t, (&Event{Type: NavsImported}).GetTypedData())
}

func TestBus_OnlyMatchingTypeReceives(t *testing.T) {
	_, bus := setupEventManager()

	var imported, published int
	bus.Subscribe(NavsImported, func(*Event) { imported++ })
	bus.Subscribe(ReportPublished, func(*Event) { published++ })

	bus.Emit(NavsImported, "navs", nil)
	bus.Emit(NavsImported, "navs", nil)

	assert.Equal(t, 2, imported)
	assert.Equal(t, 0, published)
}

func TestBus_Unsubscribe(t *testing.T) {
	_, bus := setupEventManager()

	var calls int
	id := bus.Subscribe(ReportGenerated, func(*Event) { calls++ })
	other := bus.Subscribe(ReportGenerated, func(*Event) {})
	assert.Equal(t, 2, bus.Subscribers(ReportGenerated))

	bus.Unsubscribe(id)
	bus.Unsubscribe(id)
	bus.Emit(ReportGenerated, "analysis", nil)

	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, bus.Subscribers(ReportGenerated))

	bus.Unsubscribe(other)
	assert.Equal(t, 0, bus.Subscribers(ReportGenerated))
}

func TestBus_PanickingHandlerDoesNotStopDelivery(t *testing.T) {
	_, bus := setupEventManager()

	var delivered bool
	bus.Subscribe(ErrorOccurred, func(*Event) { panic("bad handler") })
	bus.Subscribe(ErrorOccurred, func(*Event) { delivered = true })

	assert.NotPanics(t, func() { bus.Emit(ErrorOccurred, "test", nil) })
	assert.True(t, delivered)
}

func TestBus_ConcurrentEmit(t *testing.T) {
	_, bus := setupEventManager()

	var mu sync.Mutex
	count := 0
	bus.Subscribe(NavsImported, func(*Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Emit(NavsImported, "navs", nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, count)
}
