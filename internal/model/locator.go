package model

import "sort"

// ElementLocator indexes a tree's elements by source line so that
// getElementFromPosition can resolve an IDE source breakpoint or a
// getModelElementReferenceFromSource query to the containing element
// with the latest start line at or before the query line. Among
// containing elements that start on the same line, the one visited
// first in pre-order wins, so an ancestor is returned before its
// descendants.
type ElementLocator struct {
	// byLine maps a start line to every element whose Location begins on
	// that line. Query lines are scanned downward from the query line
	// over the descending-sorted key set.
	byLine    map[int][]*ModelElement
	lines     []int // sorted descending
	linesSeen bool
}

// NewElementLocator builds a line index over every element reachable
// from root that carries a Location.
func NewElementLocator(root *ModelElement) *ElementLocator {
	l := &ElementLocator{byLine: make(map[int][]*ModelElement)}
	Walk(root, func(e *ModelElement) {
		if e.Location != nil {
			l.byLine[e.Location.Line] = append(l.byLine[e.Location.Line], e)
		}
	})
	for line := range l.byLine {
		l.lines = append(l.lines, line)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(l.lines)))
	l.linesSeen = true
	return l
}

// contains reports whether (line, column) falls within loc under the
// multi-line-span containment rule.
func contains(loc Location, line, column int) bool {
	if line == loc.Line {
		if column < loc.Column {
			return false
		}
		if loc.Line == loc.EndLine && column > loc.EndColumn {
			return false
		}
		return true
	}
	if line == loc.EndLine {
		return column <= loc.EndColumn
	}
	return loc.Line <= line && line <= loc.EndLine
}

// GetElementFromPosition searches from line downward (over start lines
// sorted descending) for the first element whose Location contains
// (line, column). linesOffset/columnsOffset are applied additively to
// the query before searching (the IDE linesStartAt1/columnsStartAt1
// origin translation).
func (l *ElementLocator) GetElementFromPosition(line, column, linesOffset, columnsOffset int) (*ModelElement, bool) {
	line += linesOffset
	column += columnsOffset

	for _, startLine := range l.lines {
		if startLine > line {
			continue
		}
		for _, e := range l.byLine[startLine] {
			if contains(*e.Location, line, column) {
				return e, true
			}
		}
	}
	return nil, false
}
