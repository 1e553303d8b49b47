package engine

// DefaultCountdown is the length in seconds of the guided exercise before journaling.
const DefaultCountdown = 90

// Phase is one stage of the guided exercise.
type Phase struct {
	Name string
	Hint string
}

var (
	PhaseBreathe = Phase{Name: "Breathe deeply", Hint: "Slow inhale, slower exhale. Let the wave rise and fall."}
	PhaseMove    = Phase{Name: "Move a little", Hint: "Stand up, stretch, shake out your hands."}
	PhaseNotice  = Phase{Name: "Notice your surroundings", Hint: "Name five things you can see right now."}
)

// Phases lists the exercise stages in order.
var Phases = []Phase{PhaseBreathe, PhaseMove, PhaseNotice}

// PhaseFor returns the exercise phase for the seconds remaining on a countdown
// of total seconds. Each phase takes a third of the countdown.
func PhaseFor(remaining, total int) Phase {
	if total <= 0 {
		total = DefaultCountdown
	}
	switch {
	case remaining*3 > total*2:
		return PhaseBreathe
	case remaining*3 > total:
		return PhaseMove
	default:
		return PhaseNotice
	}
}

// PhaseSeconds is the length of one phase on a countdown of total seconds.
func PhaseSeconds(total int) int {
	if total <= 0 {
		total = DefaultCountdown
	}
	return (total + len(Phases) - 1) / len(Phases)
}

// Environment is the inner landscape shown at the Switching level.
type Environment struct {
	Emoji       string
	Name        string
	Description string
}

var environmentTiers = []struct {
	minEnergy int
	env       Environment
}{
	{100, Environment{"🏙️", "Thriving city", "You have built a new world. Your mind is your fortress."}},
	{50, Environment{"🏝️", "Green island", "Your new habits are creating an oasis of calm."}},
	{25, Environment{"🌳", "Garden", "Your strength grows with every right decision."}},
	{10, Environment{"🌱", "Young tree", "The seeds of change have sprouted. Keep tending them."}},
	{0, Environment{"✨", "Seed", "Every point of energy is the start of something great."}},
}

// EnvironmentFor maps accumulated energy to its landscape tier.
func EnvironmentFor(energy int) Environment {
	for _, t := range environmentTiers {
		if energy >= t.minEnergy {
			return t.env
		}
	}
	return environmentTiers[len(environmentTiers)-1].env
}
