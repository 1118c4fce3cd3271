package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TraceEvent captures one register transaction for post-mortem analysis
type TraceEvent struct {
	Kind  uint8  // Event kind code
	Addr  uint16 // Register command word
	Value uint16 // Raw value read back (0 on error)
}

// Trace event kinds
const (
	EvtRead     = 1 // Register read completed
	EvtSentinel = 2 // Read returned the 0xFFFF failure sentinel
	EvtError    = 3 // Transport or GPIO error during the transaction
)

const (
	TraceRingSize = 16 // Keep last 16 transactions
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Transaction ring buffer (non-blocking, for post-mortem)
	traceRing     [TraceRingSize]TraceEvent
	traceRingHead uint8
	traceEnabled  bool = true

	// Async debug output channel
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the async debug output goroutine
// Call this from main() after SetDebugWriter
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go debugOutputWorker()
}

func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer.
// Blocks while the writer runs; use DebugAsync from timing sensitive code.
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message for async output (non-blocking)
// Returns immediately even if channel is full (drops message)
func DebugAsync(msg string) {
	if !debugEnabled || debugChan == nil {
		return
	}
	select {
	case debugChan <- msg:
	default:
	}
}

// RecordTransaction captures a register transaction in the ring buffer
func RecordTransaction(kind uint8, addr, value uint16) {
	if !traceEnabled {
		return
	}
	idx := traceRingHead
	traceRing[idx] = TraceEvent{Kind: kind, Addr: addr, Value: value}
	traceRingHead = (idx + 1) % TraceRingSize
}

// RecentTransactions returns the recorded events, oldest first.
func RecentTransactions() []TraceEvent {
	events := make([]TraceEvent, 0, TraceRingSize)
	start := traceRingHead
	for i := uint8(0); i < TraceRingSize; i++ {
		evt := traceRing[(start+i)%TraceRingSize]
		if evt.Kind == 0 {
			continue
		}
		events = append(events, evt)
	}
	return events
}

// ResetTransactions clears the ring buffer.
func ResetTransactions() {
	traceRing = [TraceRingSize]TraceEvent{}
	traceRingHead = 0
}

// DumpTransactions writes the ring buffer through the debug writer
func DumpTransactions() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TRACE] === Transaction Dump ===")
	for _, evt := range RecentTransactions() {
		var name string
		switch evt.Kind {
		case EvtRead:
			name = "READ"
		case EvtSentinel:
			name = "SENTINEL!"
		case EvtError:
			name = "ERROR!"
		default:
			name = "UNKNOWN"
		}
		debugPrintln("[TRACE] " + name + " addr=" + Hex16(evt.Addr) + " value=" + Hex16(evt.Value))
	}
	debugPrintln("[TRACE] === End Dump ===")
}
