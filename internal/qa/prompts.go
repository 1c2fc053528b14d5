package qa

import "fmt"

const systemPrompt = `You are an expert software developer assistant helping users understand their codebase.
You have access to source code from the user's project. Answer questions based on the provided context.

Guidelines:
- Be concise and direct
- Reference specific files when relevant
- If the context doesn't contain enough information, say so
- Use code snippets when helpful
- Format responses with markdown`

func userPrompt(context, question string) string {
	return fmt.Sprintf(`## Context (Relevant Source Code)
%s

## User Question
%s

Please answer the question based on the context above.`, context, question)
}
