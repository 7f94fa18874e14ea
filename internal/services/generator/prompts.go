package generator

import (
	"fmt"
	"strings"
)

const (
	researchSystem = "You are a web researcher. Provide a concise analysis of the website and identify key topics and trends."
	blogSystem     = "You are a blog writer. Create a well-structured blog post with markdown formatting."

	maxResearchContext = 1500
	researchTokens     = 800
	researchTemp       = 0.3

	defaultTitle = "Generated Blog Post"
)

const blogInstructions = `Write a 1000-1500 word blog post with:
1. A compelling headline (format as # Headline)
2. Clear introduction
3. 3-4 main sections with ## subheadings
4. Conclusion with call-to-action
5. Use markdown formatting
6. Include relevant keywords naturally`

func researchPrompt(p Page) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research this website: %s.", p.URL)
	b.WriteString(" Identify: 1) Main purpose and topics 2) Target audience 3) Top 3 trending topics related to this site 4) 5 key keywords. Be concise.")
	writePageContext(&b, p)
	return b.String()
}

func blogPrompt(research string) string {
	if len(research) > maxResearchContext {
		research = strings.ToValidUTF8(research[:maxResearchContext], "") + "..."
	}
	return fmt.Sprintf("Based on this research: %q\n\n%s", research, blogInstructions)
}

// fallbackPrompt asks for the post in a single call when the research step
// fails.
func fallbackPrompt(p Page) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write an SEO blog post for the website %s.\n\n%s", p.URL, blogInstructions)
	writePageContext(&b, p)
	return b.String()
}

func writePageContext(b *strings.Builder, p Page) {
	if p.Title == "" && p.Description == "" && len(p.Headings) == 0 && p.Text == "" {
		return
	}
	b.WriteString("\n\nWhat the homepage says:")
	if p.Title != "" {
		fmt.Fprintf(b, "\nTitle: %s", p.Title)
	}
	if p.Description != "" {
		fmt.Fprintf(b, "\nDescription: %s", p.Description)
	}
	if len(p.Headings) > 0 {
		fmt.Fprintf(b, "\nHeadings: %s", strings.Join(p.Headings, "; "))
	}
	if p.Text != "" {
		fmt.Fprintf(b, "\nExcerpt:\n%s", p.Text)
	}
}
