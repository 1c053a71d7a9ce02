package llm

import "fmt"

// ExtractionPrompt generates the prompt for extracting memory drafts from
// one assistant interaction.
func ExtractionPrompt(interaction string) string {
	return fmt.Sprintf(`You are the memory layer of a personal assistant. Analyze this interaction and propose durable memories about the user.

INTERACTION:
%s

Memory types:
- preference: likes, dislikes, standing choices (e.g., "Prefers morning appointments")
- fact: stable facts about the user's life (e.g., "Allergic to penicillin")
- pattern: recurring behavior (e.g., "Reviews finances on the first of the month")
- event: dated occurrences (e.g., "Flying to Lisbon on March 12")
- habit: routines (e.g., "Runs every Tuesday and Thursday")
- goal: stated objectives (e.g., "Saving for a house deposit")

Rules:
- Only propose genuinely durable knowledge; skip small talk and one-off requests
- confidence is your certainty the statement is true and durable, 0.0 to 1.0
- base_importance is how much forgetting this would hurt the user, 0 to 10
- suggested_tags: up to 5 short lowercase tags
- category: one word for the life area (health, finance, family, work, travel, ...)
- Return ONLY a JSON array, no other text

Return a JSON array:
[{
  "content": "one or two sentences, third person",
  "confidence": 0.0,
  "suggested_tags": ["tag"],
  "memory_type": "preference|fact|pattern|event|habit|goal",
  "category": "word",
  "base_importance": 0
}]

If nothing is worth remembering, return: []`, interaction)
}
