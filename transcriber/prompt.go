package transcriber

import "strings"

// DefaultKeywords bias recognition toward common engineering vocabulary.
var DefaultKeywords = []string{
	"Python", "SQL", "RAG", "LangGraph", "SDE", "API", "REST", "GraphQL",
	"Docker", "Kubernetes", "AWS", "React", "Vue", "TypeScript", "JavaScript",
	"FastAPI", "PostgreSQL", "MongoDB", "Redis", "Nginx", "Git", "CI/CD",
	"DevOps", "LLM", "GPT", "Claude", "OpenAI",
}

const promptTemplate = "This is a technical recording containing specialized terminology. " +
	"Common terms include: %s. Transcribe accurately with proper capitalization and punctuation."

// BuildPrompt renders the initial prompt for keywords. An empty list uses
// DefaultKeywords.
func BuildPrompt(keywords []string) string {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	return strings.Replace(promptTemplate, "%s", strings.Join(keywords, ", "), 1)
}
