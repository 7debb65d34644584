package diff

import "strings"

type lineOp int

const (
	opEqual lineOp = iota
	opDelete
	opInsert
)

type editLine struct {
	op   lineOp
	text string
}

// unifiedLines computes a line-level diff of two text blobs via longest
// common subsequence and renders it unified-style: deletions prefixed
// "-", additions "+", and up to contextLines of surrounding context
// prefixed with a space. Unchanged regions beyond the context window are
// elided.
func unifiedLines(oldText, newText string, contextLines int) []string {
	oldLines := splitLines(oldText)
	newLines := splitLines(newText)

	edits := diffLines(oldLines, newLines)

	// Mark which edits to keep: every change plus context around it.
	keep := make([]bool, len(edits))
	for i, e := range edits {
		if e.op == opEqual {
			continue
		}
		lo := max(0, i-contextLines)
		hi := min(len(edits), i+contextLines+1)
		for j := lo; j < hi; j++ {
			keep[j] = true
		}
	}

	var out []string
	for i, e := range edits {
		if !keep[i] {
			continue
		}
		switch e.op {
		case opDelete:
			out = append(out, "-"+e.text)
		case opInsert:
			out = append(out, "+"+e.text)
		default:
			out = append(out, " "+e.text)
		}
	}
	return out
}

// diffLines backtracks an LCS matrix into an ordered edit list.
func diffLines(oldLines, newLines []string) []editLine {
	lcs := lcsMatrix(oldLines, newLines)

	var reversed []editLine
	i, j := len(oldLines), len(newLines)
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && oldLines[i-1] == newLines[j-1]:
			reversed = append(reversed, editLine{opEqual, oldLines[i-1]})
			i--
			j--
		case j > 0 && (i == 0 || lcs[i][j-1] >= lcs[i-1][j]):
			reversed = append(reversed, editLine{opInsert, newLines[j-1]})
			j--
		default:
			reversed = append(reversed, editLine{opDelete, oldLines[i-1]})
			i--
		}
	}

	edits := make([]editLine, len(reversed))
	for k, e := range reversed {
		edits[len(reversed)-1-k] = e
	}
	return edits
}

func lcsMatrix(oldLines, newLines []string) [][]int {
	matrix := make([][]int, len(oldLines)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(newLines)+1)
	}

	for i := 1; i <= len(oldLines); i++ {
		for j := 1; j <= len(newLines); j++ {
			if oldLines[i-1] == newLines[j-1] {
				matrix[i][j] = matrix[i-1][j-1] + 1
			} else {
				matrix[i][j] = max(matrix[i-1][j], matrix[i][j-1])
			}
		}
	}
	return matrix
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
