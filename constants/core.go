package constants

import "time"

// Loop Timing
const (
	// FrameUpdateInterval is the dashboard redraw interval
	FrameUpdateInterval = 50 * time.Millisecond

	// AnimationTickInterval is the network map simulation step
	AnimationTickInterval = 30 * time.Millisecond

	// RotationTickInterval is the countdown step of the rotation scheduler
	RotationTickInterval = time.Second

	// RotationInlineWait bounds how long a start or manual rotation is awaited by its caller
	// Probes slower than this finish in the background
	RotationInlineWait = 500 * time.Millisecond
)

// Network Map
const (
	// NetworkEntityCount is the number of simulated nodes on the map
	NetworkEntityCount = 30

	// LinkDistance is the proximity threshold for drawing an edge, in pixels
	LinkDistance = 100.0

	// MaxEntitySpeed bounds each velocity component to [-MaxEntitySpeed, MaxEntitySpeed)
	MaxEntitySpeed = 0.25

	// MinEntityRadius and EntityRadiusSpan give radius in [1, 3)
	MinEntityRadius  = 1.0
	EntityRadiusSpan = 2.0

	// LinkedProbability is the share of nodes flagged as linked
	LinkedProbability = 0.7

	// CellWidthPx and CellHeightPx map terminal cells to simulation pixels
	CellWidthPx  = 8
	CellHeightPx = 16
)

// Rotation
const (
	// MinIntervalSeconds and MaxIntervalSeconds bound the auto-rotation interval
	MinIntervalSeconds = 10
	MaxIntervalSeconds = 300

	// DefaultIntervalSeconds is the interval at startup
	DefaultIntervalSeconds = 60

	// IntervalStep is the change applied by the +/- keys
	IntervalStep = 10

	// ProgressFull is the elapsed fraction that fires a rotation
	ProgressFull = 100.0
)

// Log & Notifications
const (
	// LogCapacity is the maximum number of retained log lines
	LogCapacity = 500

	// LogPanelLines is the number of lines shown in the connection log card
	LogPanelLines = 8

	// ToastDuration is how long a notification stays on screen
	ToastDuration = 3 * time.Second

	// MaxToasts is the number of notifications stacked at once
	MaxToasts = 3
)

// Events
const (
	// EventQueueSize is the ring capacity of the event queue, must be a power of two
	EventQueueSize = 256

	// EventBufferMask maps a sequence number to a ring slot
	EventBufferMask = EventQueueSize - 1
)
