package summarize

import "fmt"

// promptTemplate captures the instructions sent to the model. Keep
// updates centralized here so length constraints stay in one place.
const promptTemplate = `You are an assistant that summarizes news articles.

Respond ONLY with a JSON object of this exact shape:
{"summary": "...", "hashtags": ["#tag1", "#tag2"], "tweet": "..."}

Rules:
- "summary": a concise summary of the article, at most %d characters.
- "hashtags": at most %d relevant hashtags, each starting with '#'.
- "tweet": a single engaging sentence about the article, at most %d characters.
- No markdown, no code fences, no text outside the JSON object.

Article text:

%s`

func buildPrompt(text string, charLimit, maxHashtags, tweetLimit int) string {
	return fmt.Sprintf(promptTemplate, charLimit, maxHashtags, tweetLimit, text)
}
