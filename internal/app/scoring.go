package app

import "quizit-service/internal/domain"

// ComputeScore counts the submission's questions whose selected options match the answer key
// exactly. Questions missing from the quiz are skipped; there is no partial credit.
func ComputeScore(submission domain.Submission, quiz domain.Quiz) int {
	key := quiz.QuestionBySequence()
	score := 0
	for _, answered := range submission.Questions {
		question, ok := key[answered.SequenceNo]
		if !ok {
			continue
		}
		if sameOptionSet(answered.UserOptions, question.CorrectOptions) {
			score++
		}
	}
	return score
}

func sameOptionSet(selected, correct []int) bool {
	want := make(map[int]struct{}, len(correct))
	for _, idx := range correct {
		want[idx] = struct{}{}
	}
	got := make(map[int]struct{}, len(selected))
	for _, idx := range selected {
		if _, ok := want[idx]; !ok {
			return false
		}
		got[idx] = struct{}{}
	}
	return len(want) > 0 && len(got) == len(want)
}
