package service

import (
	"strings"

	"saferag/internal/domain"
)

const (
	// FallbackAnswer is returned without calling the completion service when
	// retrieval finds nothing relevant enough.
	FallbackAnswer = "I don't know based on the available information."
	// NotConfiguredAnswer is returned when no completion service is set up.
	NotConfiguredAnswer = "LLM not configured."
)

const safeSystemPrompt = `You are a knowledgeable Yoga Wellness Assistant.
Answer the user's question using ONLY the provided context snippets.
If the answer is not in the context, say "I don't know based on the available information."
Do not make up information.
Keep the tone calm, helpful, and concise.`

const unsafeSystemPrompt = `You are a careful AI assistant. The user asked a query that was flagged as potentially unsafe (medical/pregnancy/injury).
Your goal is to gently validate the user's interest but strictly REFUSE to give medical advice or specific pose prescriptions for this condition.
1. Warn the user that you cannot provide medical advice.
2. Suggest they consult a doctor or certified yoga therapist.
3. Suggest a safe, general alternative if applicable (e.g. "focus on deep breathing") but do NOT prescribe specific poses.
4. Be brief and supportive.`

// SafeMessages builds the context-constrained prompt.
func SafeMessages(query string, results []domain.SearchResult) []domain.Message {
	return []domain.Message{
		{Role: domain.RoleSystem, Content: safeSystemPrompt},
		{Role: domain.RoleUser, Content: "Context:\n" + ContextText(results) + "\n\nUser Question: " + query},
	}
}

// UnsafeMessages builds the refusal prompt. Only the raw query is sent.
func UnsafeMessages(query string) []domain.Message {
	return []domain.Message{
		{Role: domain.RoleSystem, Content: unsafeSystemPrompt},
		{Role: domain.RoleUser, Content: query},
	}
}

// ContextText renders results as "[source]: text" blocks separated by a blank line.
func ContextText(results []domain.SearchResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = "[" + r.Source + "]: " + r.Text
	}
	return strings.Join(parts, "\n\n")
}
