package models

// ObservationType classifies what kind of knowledge an observation holds.
// The set is closed; it drives the display icon and the decay policy.
type ObservationType string

const (
	TypeSessionRequest  ObservationType = "session-request"
	TypeGotcha          ObservationType = "gotcha"
	TypeProblemSolution ObservationType = "problem-solution"
	TypeHowItWorks      ObservationType = "how-it-works"
	TypeWhatChanged     ObservationType = "what-changed"
	TypeDiscovery       ObservationType = "discovery"
	TypeWhyItExists     ObservationType = "why-it-exists"
	TypeDecision        ObservationType = "decision"
	TypeTradeOff        ObservationType = "trade-off"
)

var validTypes = map[ObservationType]bool{
	TypeSessionRequest:  true,
	TypeGotcha:          true,
	TypeProblemSolution: true,
	TypeHowItWorks:      true,
	TypeWhatChanged:     true,
	TypeDiscovery:       true,
	TypeWhyItExists:     true,
	TypeDecision:        true,
	TypeTradeOff:        true,
}

func (t ObservationType) IsValid() bool {
	return validTypes[t]
}

// Icons keep compact search results scannable in an editor pane.
var typeIcons = map[ObservationType]string{
	TypeSessionRequest:  "💬",
	TypeGotcha:          "⚠️",
	TypeProblemSolution: "🔧",
	TypeHowItWorks:      "⚙️",
	TypeWhatChanged:     "📝",
	TypeDiscovery:       "🔍",
	TypeWhyItExists:     "💡",
	TypeDecision:        "⚖️",
	TypeTradeOff:        "🔀",
}

// Icon returns the display icon for a type, or a neutral dot for anything
// outside the closed set (possible when another tool wrote the file).
func (t ObservationType) Icon() string {
	if icon, ok := typeIcons[t]; ok {
		return icon
	}
	return "•"
}

// InvalidProjectID is the sentinel id emitted when detection lands on a
// home or system directory. Callers refuse to initialize against it.
const InvalidProjectID = "__invalid__"
