package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible
	// default or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptAnswerSystem is the system instruction for grounded answers.
	// This prompt has no format placeholders.
	PromptAnswerSystem = "answer_system"

	// PromptAnswerUser wraps the context block and question.
	// The template must contain PromptContextVar and PromptQuestionVar.
	PromptAnswerUser = "answer_user"
)

// Placeholders substituted into PromptAnswerUser.
const (
	PromptContextVar  = "{{context}}"
	PromptQuestionVar = "{{question}}"
)
