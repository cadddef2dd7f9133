// Package contextopt reduces a large plan or source file to a focused
// excerpt before it is sent to the reviewers. Sections are recognized from
// function headers, class headers and markdown headings, scored against the
// focus-area keyword tables, and greedily selected into a bounded excerpt.
package contextopt

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// DefaultMaxLines is the default excerpt budget.
const DefaultMaxLines = 200

// FocusKeywords maps each focus area to its relevance keywords.
var FocusKeywords = map[string][]string{
	"refactoring": {"service", "transaction", "import", "test", "refactor"},
	"database":    {"model", "migration", "index", "foreign key", "schema"},
	"ui":          {"template", "form", "view", "permission", "html"},
	"bug":         {"race condition", "validation", "error", "exception"},
	"performance": {"query", "cache", "index", "optimization", "n+1"},
	"security":    {"authentication", "authorization", "permission", "csrf", "xss"},
}

// skipDescriptions names what a non-focused area covers, for the prompt's
// SKIP list.
var skipDescriptions = map[string]string{
	"refactoring": "Code organization details",
	"database":    "Database schema changes",
	"ui":          "UI/template changes",
	"bug":         "Bug fixes",
	"performance": "Performance optimizations",
	"security":    "Security enhancements",
}

// Section is one logical unit of the parsed file. StartLine and EndLine are
// zero-based; EndLine is exclusive.
type Section struct {
	Type      string
	Name      string
	Content   string
	StartLine int
	EndLine   int
	Docstring string
	Score     int
}

var (
	funcNameRe  = regexp.MustCompile(`def\s+(\w+)`)
	classNameRe = regexp.MustCompile(`class\s+(\w+)`)
)

// ExtractRelevantContext reads a file and returns a bounded excerpt. Files
// already within the budget are returned verbatim. Read failures produce an
// error marker rather than failing the debate.
func ExtractRelevantContext(filePath string, focusAreas []string, maxLines int) string {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Sprintf("[ERROR: Could not read file: %s]\n", err)
	}
	content := string(data)

	lines := strings.Split(content, "\n")
	if len(lines) <= maxLines {
		return content
	}

	sections := ExtractSections(content)
	ScoreSections(sections, focusAreas)
	selected := selectTopSections(sections, maxLines)
	return formatExcerpt(selected, filePath, len(lines))
}

// ExtractSections parses content into function, class and markdown-heading
// sections.
func ExtractSections(content string) []*Section {
	lines := strings.Split(content, "\n")
	var sections []*Section

	i := 0
	for i < len(lines) {
		trimmed := strings.TrimSpace(lines[i])
		switch {
		case strings.HasPrefix(trimmed, "class "):
			section := extractClassSection(lines, i)
			sections = append(sections, section)
			i = section.EndLine
		case strings.HasPrefix(trimmed, "def "):
			section := extractFunctionSection(lines, i)
			sections = append(sections, section)
			i = section.EndLine
		case strings.HasPrefix(trimmed, "#"):
			section := extractMarkdownSection(lines, i)
			sections = append(sections, section)
			i = section.EndLine
		default:
			i++
		}
	}
	return sections
}

// extractFunctionSection captures a function body: it ends at the next
// non-blank line indented at or above the header's level.
func extractFunctionSection(lines []string, start int) *Section {
	name := "unknown"
	if m := funcNameRe.FindStringSubmatch(lines[start]); m != nil {
		name = m[1]
	}

	indent := len(lines[start]) - len(strings.TrimLeft(lines[start], " "))
	end := start + 1

	docstring := ""
	if end < len(lines) && strings.Contains(lines[end], `"""`) {
		docStart := end
		for end < len(lines) && strings.Count(lines[end], `"""`) < 2 {
			end++
		}
		if end < len(lines) {
			docstring = strings.Join(lines[docStart:end+1], "\n")
			end++
		} else {
			docstring = strings.Join(lines[docStart:], "\n")
		}
	}

	bodyIndent := strings.Repeat(" ", indent+1)
	for end < len(lines) {
		line := lines[end]
		if strings.TrimSpace(line) != "" && !strings.HasPrefix(line, bodyIndent) {
			break
		}
		end++
	}

	return &Section{
		Type:      "function",
		Name:      name,
		Content:   strings.Join(lines[start:end], "\n"),
		StartLine: start,
		EndLine:   end,
		Docstring: docstring,
	}
}

// extractClassSection captures a class body: it ends at the next non-blank
// top-level line.
func extractClassSection(lines []string, start int) *Section {
	name := "unknown"
	if m := classNameRe.FindStringSubmatch(lines[start]); m != nil {
		name = m[1]
	}

	end := start + 1
	for end < len(lines) {
		line := lines[end]
		if strings.TrimSpace(line) != "" && !strings.HasPrefix(line, " ") {
			break
		}
		end++
	}

	return &Section{
		Type:      "class",
		Name:      name,
		Content:   strings.Join(lines[start:end], "\n"),
		StartLine: start,
		EndLine:   end,
	}
}

// extractMarkdownSection captures a heading's content up to the next
// heading of the same or higher level.
func extractMarkdownSection(lines []string, start int) *Section {
	heading := strings.TrimSpace(strings.TrimLeft(lines[start], "#"))
	level := 0
	for _, r := range lines[start] {
		if r != '#' {
			break
		}
		level++
	}

	end := start + 1
	boundary := strings.Repeat("#", level)
	for end < len(lines) {
		if strings.HasPrefix(lines[end], boundary) {
			break
		}
		end++
	}

	return &Section{
		Type:      "markdown",
		Name:      heading,
		Content:   strings.Join(lines[start:end], "\n"),
		StartLine: start,
		EndLine:   end,
	}
}

// ScoreSections attaches relevance scores in place and sorts sections by
// score descending. +10 for a keyword in the name, +5 in the docstring, +2
// per body occurrence.
func ScoreSections(sections []*Section, focusAreas []string) {
	var keywords []string
	for _, area := range focusAreas {
		if list, ok := FocusKeywords[area]; ok {
			keywords = append(keywords, list...)
		} else {
			keywords = append(keywords, area)
		}
	}

	for _, section := range sections {
		score := 0
		nameLower := strings.ToLower(section.Name)
		contentLower := strings.ToLower(section.Content)
		docLower := strings.ToLower(section.Docstring)

		for _, keyword := range keywords {
			kw := strings.ToLower(keyword)
			if strings.Contains(nameLower, kw) {
				score += 10
			}
			if strings.Contains(docLower, kw) {
				score += 5
			}
			score += strings.Count(contentLower, kw) * 2
		}
		section.Score = score
	}

	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].Score > sections[j].Score
	})
}

// selectTopSections greedily takes the highest-scored sections until the
// budget would be exceeded or 90% of it is filled, then restores source
// order.
func selectTopSections(scored []*Section, maxLines int) []*Section {
	var selected []*Section
	totalLines := 0

	for _, section := range scored {
		sectionLines := strings.Count(section.Content, "\n") + 1
		if totalLines+sectionLines > maxLines {
			continue
		}
		selected = append(selected, section)
		totalLines += sectionLines
		if float64(totalLines) >= float64(maxLines)*0.9 {
			break
		}
	}

	sort.Slice(selected, func(i, j int) bool {
		return selected[i].StartLine < selected[j].StartLine
	})
	return selected
}

// formatExcerpt renders selected sections with skip markers and line spans.
func formatExcerpt(sections []*Section, filePath string, totalLines int) string {
	var out []string
	out = append(out, fmt.Sprintf("[Excerpt from %s - %d lines total]", filepath.Base(filePath), totalLines))
	out = append(out, fmt.Sprintf("[Showing %d most relevant sections]\n", len(sections)))

	prevEnd := 0
	for _, section := range sections {
		if section.StartLine > prevEnd+1 {
			skipped := section.StartLine - prevEnd - 1
			out = append(out, fmt.Sprintf("\n[... skipped %d lines ...]\n", skipped))
		}
		out = append(out, fmt.Sprintf("[Lines %d-%d]", section.StartLine, section.EndLine))
		out = append(out, section.Content)
		prevEnd = section.EndLine
	}
	return strings.Join(out, "\n")
}

// CreateFocusedPrompt emits the structured analysis prompt: the focus list,
// the skipped-area list, the request and the excerpt.
func CreateFocusedPrompt(request, context string, focusAreas []string) string {
	skipAreas := determineSkipAreas(focusAreas)

	var focusLines []string
	for _, area := range focusAreas {
		focusLines = append(focusLines, "- "+titleCase(strings.ReplaceAll(area, "_", " ")))
	}
	var skipLines []string
	for _, area := range skipAreas {
		skipLines = append(skipLines, "- "+area)
	}

	return fmt.Sprintf(`Analyze the following plan/code focusing ONLY on these areas:

FOCUS ON:
%s

SKIP (mention only if critical issues found):
%s

USER REQUEST:
%s

RELEVANT CONTEXT (%d lines):
%s

Provide concise analysis focusing on critical issues in the focus areas.
`, strings.Join(focusLines, "\n"), strings.Join(skipLines, "\n"), request, strings.Count(context, "\n"), context)
}

// InferFocusAreas matches the request against the keyword tables, falling
// back to refactoring when nothing matches.
func InferFocusAreas(request string) []string {
	requestLower := strings.ToLower(request)
	var focusAreas []string

	for _, area := range orderedAreas() {
		for _, keyword := range FocusKeywords[area] {
			if strings.Contains(requestLower, keyword) {
				focusAreas = append(focusAreas, area)
				break
			}
		}
	}

	if len(focusAreas) == 0 {
		focusAreas = []string{"refactoring"}
	}
	return focusAreas
}

// determineSkipAreas describes the focus areas not selected.
func determineSkipAreas(focusAreas []string) []string {
	focused := make(map[string]bool, len(focusAreas))
	for _, area := range focusAreas {
		focused[area] = true
	}

	var skip []string
	for _, area := range orderedAreas() {
		if !focused[area] {
			skip = append(skip, skipDescriptions[area])
		}
	}
	return skip
}

// titleCase capitalizes the first letter of each space-separated word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// orderedAreas returns the focus areas in a stable order for deterministic
// prompts.
func orderedAreas() []string {
	areas := make([]string, 0, len(FocusKeywords))
	for area := range FocusKeywords {
		areas = append(areas, area)
	}
	sort.Strings(areas)
	return areas
}
