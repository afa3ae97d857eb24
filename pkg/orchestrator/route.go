package orchestrator

import (
	"regexp"
	"slices"
	"strings"

	"github.com/aretw0/lectern/pkg/domain"
)

// StartQuizToken is the command a client sends to start a quiz.
const StartQuizToken = "/start_quiz"

var (
	cancelPhrases = []string{"cancel quiz", "stop quiz", "exit quiz", "end quiz"}
	startPhrases  = []string{"start quiz", "quiz me on", "begin quiz"}

	docRefPattern = regexp.MustCompile(`(?i)\bdoc(?:ument(?:_id)?)?\s*[:=]\s*([a-zA-Z0-9_-]+)`)
)

// Decision is the routing outcome for one turn.
type Decision struct {
	Route domain.Route

	// Action is set when Route is RouteQuiz.
	Action domain.QuizAction

	// DocumentRef is the turn's document, or the one named in its text.
	DocumentRef string

	// Reply is the direct answer when Route is RouteTerminate.
	Reply string

	CancelQuiz bool
}

// Route picks the sub-workflow for a turn. It does no I/O: a quiz start still
// has to be confirmed by resolving the document.
func Route(state domain.OrchestratorState, turn Turn) Decision {
	ref := strings.TrimSpace(turn.DocumentRef)
	if ref == "" {
		ref = ExtractDocumentRef(turn.Text)
	}

	if state.ActiveQuiz != nil {
		if IsCancel(turn.Text) {
			return Decision{Route: domain.RouteTerminate, Reply: CancelledReply, CancelQuiz: true, DocumentRef: ref}
		}
		return Decision{Route: domain.RouteQuiz, Action: domain.QuizActionAnswer, DocumentRef: state.ActiveQuiz.DocumentRef}
	}

	if IsQuizStart(turn.Text) && ref != "" {
		return Decision{Route: domain.RouteQuiz, Action: domain.QuizActionStart, DocumentRef: ref}
	}
	return Decision{Route: domain.RouteQA, DocumentRef: ref}
}

// IsCancel reports whether text asks to leave the running quiz.
func IsCancel(text string) bool {
	return slices.Contains(cancelPhrases, strings.ToLower(strings.TrimSpace(text)))
}

// IsQuizStart reports whether text asks for a new quiz.
func IsQuizStart(text string) bool {
	clean := strings.ToLower(strings.TrimSpace(text))
	clean = strings.NewReplacer(`'`, "", `"`, "").Replace(clean)

	if fields := strings.Fields(clean); len(fields) > 0 && fields[0] == StartQuizToken {
		return true
	}
	for _, phrase := range startPhrases {
		if strings.Contains(clean, phrase) {
			return true
		}
	}
	return false
}

// ExtractDocumentRef finds a "doc:<id>" or "document_id=<id>" reference in text.
func ExtractDocumentRef(text string) string {
	m := docRefPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}
