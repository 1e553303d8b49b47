package engine

// Level is one of the three progression tiers. It is derived from the current day
// and never stored independently of it.
type Level int

const (
	LevelAwareness Level = 1
	LevelControl   Level = 2
	LevelSwitching Level = 3
)

// Day on which each level begins.
const (
	controlStartDay   = 4
	switchingStartDay = 8
)

func (l Level) String() string {
	switch l {
	case LevelAwareness:
		return "Awareness"
	case LevelControl:
		return "Control"
	case LevelSwitching:
		return "Switching"
	default:
		return "Unknown"
	}
}

// Counter names the point counter a level awards on success.
func (l Level) Counter() string {
	switch l {
	case LevelAwareness:
		return "awareness"
	case LevelControl:
		return "control"
	case LevelSwitching:
		return "energy"
	default:
		return ""
	}
}

// Valid reports whether l is one of the three known tiers.
func (l Level) Valid() bool { return l >= LevelAwareness && l <= LevelSwitching }

// LevelFor maps a day to its level: 1-3 Awareness, 4-7 Control, 8+ Switching.
func LevelFor(day int) Level {
	switch {
	case day >= switchingStartDay:
		return LevelSwitching
	case day >= controlStartDay:
		return LevelControl
	default:
		return LevelAwareness
	}
}

// LevelFloor is the first day of a level. A failure never pushes the day below it.
func LevelFloor(l Level) int {
	switch l {
	case LevelSwitching:
		return switchingStartDay
	case LevelControl:
		return controlStartDay
	default:
		return 1
	}
}

// Outcome labels used in transcripts and history rows.
const (
	OutcomeResisted = "Resisted successfully."
	OutcomeGaveIn   = "Did not resist."
)
