package extractor

import "fmt"

const repairPrompt = `The text below was supposed to be a single JSON object but it could not be parsed.

Rewrite it as valid JSON matching this schema:
%s

Text:
---
%s
---

Return ONLY the JSON object, no markdown fences, comments or other text.`

// BuildRepairPrompt embeds malformed output and a schema description into the repair prompt.
func BuildRepairPrompt(raw, schema string) string {
	return fmt.Sprintf(repairPrompt, schema, raw)
}
