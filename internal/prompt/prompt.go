// Package prompt builds the instruction prompts sent to the completion model.
package prompt

import (
	"fmt"
	"strings"

	"devlog/internal/domain"
)

// TagMarker ends every tag line the model is asked to produce.
const TagMarker = "%"

const summarizeInstructions = `You are an assistant that reads markdown content and summarizes it as well-structured HTML for display in a web application.

Rules:
- Keep the summary concise and capture the main points.
- Use only these HTML tags: <h2>, <h3>, <p>, <ul>, <ol>, <li>, <strong>, <em>.
- Do not wrap the whole output in a single element such as <div> or <section>.
- Do not use <pre> or <code> tags.
- Do not return markdown. Output only clean, valid HTML.

Summarize the following markdown content:

`

const tagInstructions = `You are an expert in generating relevant tags for markdown content.

Rules:
- Analyze the content and extract its key themes, topics or concepts.
- Generate 4 to 6 concise, descriptive tags that accurately represent the content.
- Each tag is one, two or three words.
- Write each tag on its own line and end the line with '` + TagMarker + `'.
- Do not number the tags and do not introduce the list. Write only the tags.

Generate tags for the following markdown content:

`

// Summarize returns the summary prompt with markdown embedded verbatim.
func Summarize(markdown string) string {
	return build(summarizeInstructions, markdown)
}

// Tags returns the tagging prompt with markdown embedded verbatim.
func Tags(markdown string) string {
	return build(tagInstructions, markdown)
}

// Build returns the prompt for task, or an error for an unknown task.
func Build(task domain.Task, markdown string) (string, error) {
	switch task {
	case domain.TaskSummarize:
		return Summarize(markdown), nil
	case domain.TaskTag:
		return Tags(markdown), nil
	default:
		return "", fmt.Errorf("unknown task %q", task)
	}
}

func build(instructions string, markdown string) string {
	var b strings.Builder
	b.Grow(len(instructions) + len(markdown) + 1)
	b.WriteString(instructions)
	b.WriteString(markdown)
	b.WriteString("\n")

	return b.String()
}
