package session

import "docassembly-sdk/pkg/template"

// WorkItem is one step of a session: either an interview to show or a
// document to assemble. The set of kinds is closed; switch on
// *InterviewWorkItem and *DocumentWorkItem.
type WorkItem interface {
	Template() *template.Template
	// IsCompleted never goes from true back to false.
	IsCompleted() bool
	Title() string

	markCompleted()
}

type itemBase struct {
	tpl       *template.Template
	completed bool
}

func (b *itemBase) Template() *template.Template { return b.tpl }
func (b *itemBase) IsCompleted() bool            { return b.completed }
func (b *itemBase) Title() string                { return b.tpl.Title() }
func (b *itemBase) markCompleted()               { b.completed = true }

// InterviewWorkItem asks the host to show the template's interview.
type InterviewWorkItem struct {
	itemBase
}

// DocumentWorkItem assembles the template's document.
type DocumentWorkItem struct {
	itemBase
	unanswered []string
}

// UnansweredVariables is empty until the item's assembly completes.
func (d *DocumentWorkItem) UnansweredVariables() []string {
	return append([]string(nil), d.unanswered...)
}

func newInterviewItem(tpl *template.Template) *InterviewWorkItem {
	return &InterviewWorkItem{itemBase{tpl: tpl}}
}

func newDocumentItem(tpl *template.Template) *DocumentWorkItem {
	return &DocumentWorkItem{itemBase: itemBase{tpl: tpl}}
}

// itemsFor returns the steps a template needs: its interview, then its
// document, either of which may be absent.
func itemsFor(tpl *template.Template) []WorkItem {
	var items []WorkItem
	if tpl.HasInterview() {
		items = append(items, newInterviewItem(tpl))
	}
	if tpl.GeneratesDocument() {
		items = append(items, newDocumentItem(tpl))
	}
	return items
}
