package usecase

import (
	"fmt"

	"SLRAutomation/internal/domain"
)

// FallbackQuestions synthesizes the single question used when question
// generation returns nothing usable.
func FallbackQuestions(topic string) domain.QuestionSet {
	return domain.QuestionSet{fmt.Sprintf("Fallback: What is the impact of %s?", topic)}
}
