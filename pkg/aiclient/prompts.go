/**
 * @description
 * Prompt templates for the chat completions client: the intent classification
 * schema and the reminder composition instructions.
 */
package aiclient

import "fmt"

// IntentSystemPrompt instructs the model to classify a reply into the intent
// JSON schema consumed by the payment decision engine.
func IntentSystemPrompt() string {
	return `You are an assistant that classifies WhatsApp replies about subscription payments.
Respond with JSON ONLY (no markdown, no prose). Use exactly this schema:
{
  "intent": "PAY_NOW" | "PAY_LATER" | "DECLINE",
  "followUpDays": <number|null>
}
Intent meanings:
- PAY_NOW: user will pay immediately (e.g., "pay now", "pay immediately", "done").
- PAY_LATER: user will pay later (e.g., "tomorrow", "next day", "next week", "later").
- DECLINE: user refuses or cancels (e.g., "not pay", "cancel", "stop", "no", "don't want").
Output rules:
- followUpDays MUST be null for PAY_NOW and DECLINE.
- For PAY_LATER, followUpDays MUST be 1-7 (choose a sensible value based on phrasing).
- Do NOT guess PAY_NOW unless payment is immediate.
- Return only valid JSON.`
}

// IntentUserPrompt wraps the raw reply text for classification.
func IntentUserPrompt(reply string) string {
	return fmt.Sprintf("Infer the intent from this WhatsApp reply and return the JSON only.\nReply text: %q", reply)
}

// ReminderSystemPrompt instructs the model to write the reminder message.
func ReminderSystemPrompt() string {
	return `You write concise, warm WhatsApp payment reminders for subscribers.
Output plain text only (no JSON/markdown). Keep it under 45 words.
The message must include the subscriber's name, the plan expiry date, and
end by asking them to reply with PAY NOW or PAY LATER.`
}

// ReminderUserPrompt supplies the fields the reminder must mention.
func ReminderUserPrompt(name, expiryDate string) string {
	return fmt.Sprintf("Create a short reminder that mentions:\n- Subscriber name: %s\n- Plan expiry date: %s", name, expiryDate)
}
