package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	RunStarted Type = iota + 1
	ModeSelected
	ScanProgress
	BlockChanged
	BlockFailed
	TableSaved
	RunCompleted
)

var typeNames = [...]string{
	RunStarted:   "RunStarted",
	ModeSelected: "ModeSelected",
	ScanProgress: "ScanProgress",
	BlockChanged: "BlockChanged",
	BlockFailed:  "BlockFailed",
	TableSaved:   "TableSaved",
	RunCompleted: "RunCompleted",
}

func (t Type) String() string {
	if int(t) < len(typeNames) && typeNames[t] != "" {
		return typeNames[t]
	}
	return "Unknown"
}

// Event represents a single progress event from the engine.
type Event struct {
	Type      Type
	Timestamp time.Time
	Mode      string        // "full" or "incremental" (ModeSelected, RunCompleted)
	Path      string        // device, image or table path depending on Type
	Index     int64         // block index (BlockChanged, BlockFailed)
	Size      int64         // block length, or bytes read so far (ScanProgress)
	Total     int64         // block count of the device
	TotalSize int64         // device size in bytes
	Elapsed   time.Duration // time since the scan started (ScanProgress)
	Error     error
}
