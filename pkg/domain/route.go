package domain

// Route is the sub-workflow selected by the orchestrator for a turn.
type Route string

const (
	RouteQA        Route = "qa"
	RouteQuiz      Route = "quiz"
	RouteTerminate Route = "terminate" // answered directly, no sub-workflow
)

// ParseRoute maps a stored value onto the closed Route set.
// Unknown values fall back to RouteQA; ok reports whether the value was recognized.
func ParseRoute(s string) (route Route, ok bool) {
	switch Route(s) {
	case RouteQA, RouteQuiz, RouteTerminate:
		return Route(s), true
	default:
		return RouteQA, false
	}
}

// QuizAction tells the quiz workflow whether a turn starts a quiz or answers one.
type QuizAction string

const (
	QuizActionStart  QuizAction = "start"
	QuizActionAnswer QuizAction = "answer"
)
