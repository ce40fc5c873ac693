package builtin

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const maxDiffBytes = 1 << 20

// changeSummary describes an edit for result metadata.
type changeSummary struct {
	Patch        string
	AddedLines   int
	DeletedLines int
}

func (s changeSummary) metadata() map[string]any {
	return map[string]any{
		"patch":         s.Patch,
		"added_lines":   s.AddedLines,
		"deleted_lines": s.DeletedLines,
	}
}

// summarizeChange builds a patch and line counts between two file versions.
// Identical or very large inputs yield an empty summary.
func summarizeChange(oldContent, newContent string) changeSummary {
	if oldContent == newContent || len(oldContent) > maxDiffBytes || len(newContent) > maxDiffBytes {
		return changeSummary{}
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(oldContent, newContent)
	lineDiffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var summary changeSummary
	for _, d := range lineDiffs {
		n := countLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			summary.AddedLines += n
		case diffmatchpatch.DiffDelete:
			summary.DeletedLines += n
		}
	}

	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(oldContent, newContent, false))
	summary.Patch = dmp.PatchToText(dmp.PatchMake(oldContent, diffs))
	return summary
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
