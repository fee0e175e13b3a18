// AngelaMos | 2026
// prompts.go

package analysis

import (
	"strconv"
	"strings"
)

const chunkSystemPrompt = `You are a document analysis expert.

You will receive:
- A document.
- A set of numbered rules or questions.

Your job is to answer each rule clearly and accurately based only on the content of the document.

⚠️ Format your response **strictly** like this:

Rule 1:
[Matched | Not Matched]: [Explanation or direct quote from the document]

Rule 2:
[Matched | Not Matched]: [Explanation or direct quote from the document]

... and so on.

📝 Guidelines:
- If the document supports the rule clearly, mark it "Matched" and quote or summarize the evidence.
- If not, mark it "Not Matched" and explain what's missing.
- Be specific. Do NOT say both "Matched" and "Not Matched" for the same rule.
- Keep it concise and structured.`

const synthesisSystemPrompt = `You are a document analysis expert.

You will receive:
- Previous analyses of document chunks
- A set of numbered rules or questions.

Your job is to provide a final conclusion for each rule based on all analyses.

⚠️ Format your response **strictly** like this:

Rule 1:
[Matched | Not Matched]: [Final conclusion with supporting evidence]

Rule 2:
[Matched | Not Matched]: [Final conclusion with supporting evidence]

... and so on.

📝 Guidelines:
- Combine evidence from all chunks
- If any chunk supports the rule clearly, mark it "Matched"
- If no chunks support the rule, mark it "Not Matched"
- Be specific. Do NOT say both "Matched" and "Not Matched" for the same rule.
- Keep it concise and structured.`

// numberedRules renders every rule description as "1. ...", one per line.
func numberedRules(rules []Rule) string {
	var b strings.Builder
	for i, r := range rules {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(r.Description)
	}
	return b.String()
}

func chunkPrompt(chunk, ruleList string) string {
	return "Document:\n\"\"\"\n" + chunk + "\n\"\"\"\n\nRules:\n" + ruleList
}

func synthesisPrompt(chunkAnalyses []string, ruleList string) string {
	return "Previous Analyses:\n\"\"\"\n" +
		strings.Join(chunkAnalyses, "\n\n") +
		"\n\"\"\"\n\nRules:\n" + ruleList
}
