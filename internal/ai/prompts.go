package ai

import "fmt"

const (
	// maxCodePromptChars bounds how much of a source file goes into a
	// summary prompt.
	maxCodePromptChars = 1000

	// maxDiffPromptChars bounds how much of a commit diff goes into a
	// summary prompt.
	maxDiffPromptChars = 4000

	// summaryMaxTokens caps summary length. Summaries are index metadata,
	// not documentation.
	summaryMaxTokens = 120
)

func codeSummaryPrompt(fileName, source string) string {
	return fmt.Sprintf(`You are a senior software engineer who specialises in onboarding junior engineers onto codebases.
You are explaining the purpose of the file %s to a junior engineer.
Summarise the purpose of this file in no more than 100 words. Describe what the code is for, not what each line does.

---
%s
---`, fileName, source)
}

func diffSummaryPrompt(diff string) string {
	return fmt.Sprintf(`Summarise the following git diff for a project changelog.

Reminders about the git diff format:
- A line starting with "diff --git a/path b/path" introduces each changed file.
- A line starting with "+" was added, a line starting with "-" was deleted.
- Any other line is context and was not changed.

Write short bullet points, each describing one meaningful change and naming the relevant files. Do not include every file in every bullet; mention the most important ones.

%s`, diff)
}
