package models

import "fmt"

// RubricRef identifies the currently selected rubric together with the
// metadata the terminal needs to display it. Refs are immutable; a later
// selection supersedes the ref rather than mutating it.
type RubricRef struct {
	ID         string `json:"id"`
	Course     string `json:"course"`
	Assignment string `json:"assignment"`
	Version    string `json:"version"`
	ItemCount  int    `json:"item_count"`
}

// Label renders a one-line description for selection menus.
func (r RubricRef) Label() string {
	return fmt.Sprintf("%s / %s (v%s, %d items)", r.Course, r.Assignment, r.Version, r.ItemCount)
}

// QuestionRef identifies the currently selected assignment question.
// It may exist only while the rubric it was created under is still selected.
type QuestionRef struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	RubricID string `json:"rubric_id"`
}

// Label renders a one-line description for selection menus.
func (q QuestionRef) Label() string {
	if q.Title == "" {
		return q.ID
	}
	return q.Title
}

// SubmissionRef identifies the currently selected student submission.
// It may exist only while both its rubric and question are still selected.
type SubmissionRef struct {
	ID            string `json:"id"`
	RubricID      string `json:"rubric_id"`
	QuestionID    string `json:"question_id"`
	StudentHandle string `json:"student_handle"`
}

// Label renders a one-line description for selection menus.
func (s SubmissionRef) Label() string {
	if s.StudentHandle == "" {
		return s.ID
	}
	return fmt.Sprintf("%s (%s)", s.StudentHandle, s.ID)
}
