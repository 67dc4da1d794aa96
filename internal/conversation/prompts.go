package conversation

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultPromptName is the preamble used when none is configured.
const DefaultPromptName = "coach"

const coachPrompt = `---
name: "coach"
title: "Accessibility coach"
description: "Suggests one accessibility command per reply"
---

You're an assistant that only replies in JSON format with keys "message" and "command".
It is very important that you stick to the following JSON format.

Your main job is to act as a computer accessibility coach that will reply to queries with a JSON
that has the following keys:
- "message": Something you want to say to the user
- "command": An accessibility command to run, or "" when none applies

Below is a reference JSON that shows possible accessibility commands
for the current environment ({{.Environment}}):

{{.Preferences}}

The prompt will always begin with a snippet of the reference JSON that is the most
likely command the user is referring to. You will need to add a value to the end
of the command found in the "command" field, and use "current" to help you figure
out how to decide this new value. Stay within "lower_bound" and "upper_bound" when
they are set. Remember, always reply with just the final JSON object, like:

{
  "message": "...",
  "command": "..."
}`

// DefaultPrompt returns the built-in preamble template.
func DefaultPrompt() *PromptTemplate {
	return NewPromptLoader("").Parse(coachPrompt)
}

// EnsureDefaultPrompts writes the built-in templates into promptsDir
// without overwriting edited copies.
func EnsureDefaultPrompts(promptsDir string) error {
	if err := os.MkdirAll(promptsDir, 0755); err != nil {
		return err
	}

	prompts := map[string]string{
		DefaultPromptName + ".md": coachPrompt,
	}

	for name, content := range prompts {
		path := filepath.Join(promptsDir, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				return fmt.Errorf("failed to create prompt %s: %w", name, err)
			}
		}
	}

	return nil
}
