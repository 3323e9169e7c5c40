package sandbox

import "github.com/spigell/interview-runner/internal/interview"

// DefaultQuestions is used when an interview is created without questions.
func DefaultQuestions() []interview.Question {
	bank := []interview.Question{
		{Question: "Tell me about yourself and the work you are most proud of.", Category: "behavioral"},
		{Question: "Describe a system you designed. What trade-offs did you make?", Category: "technical"},
		{Question: "How do you find the cause of a production incident you have never seen before?", Category: "technical"},
		{Question: "Tell me about a disagreement with a colleague and how it was resolved.", Category: "behavioral"},
		{Question: "Explain a complex technical topic as you would to a non-technical stakeholder.", Category: "communication"},
	}
	for i := range bank {
		bank[i].Order = i + 1
	}
	return bank
}
