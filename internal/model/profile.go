// Package model defines data structures for the coaching platform.
package model

import (
	"time"
)

// CollegeYear is the student's academic standing.
type CollegeYear string

const (
	CollegeYearFirst    CollegeYear = "First Year"
	CollegeYearSecond   CollegeYear = "Second Year"
	CollegeYearThird    CollegeYear = "Third Year"
	CollegeYearFourth   CollegeYear = "Fourth Year"
	CollegeYearFifth    CollegeYear = "Fifth Year+"
	CollegeYearGraduate CollegeYear = "Graduate Student"
	CollegeYearOther    CollegeYear = "Other"
)

// CollegeYears lists the accepted college years in form order.
var CollegeYears = []CollegeYear{
	CollegeYearFirst,
	CollegeYearSecond,
	CollegeYearThird,
	CollegeYearFourth,
	CollegeYearFifth,
	CollegeYearGraduate,
	CollegeYearOther,
}

// Valid reports whether y is one of CollegeYears.
func (y CollegeYear) Valid() bool {
	for _, v := range CollegeYears {
		if y == v {
			return true
		}
	}
	return false
}

// UserProfile is the static profile a student fills in once.
// Stored at users/{user_id}/info.json.
type UserProfile struct {
	UserID       string      `json:"user_id"`
	FirstName    string      `json:"first_name"`
	LastName     string      `json:"last_name"`
	CollegeYear  CollegeYear `json:"college_year"`
	Major        string      `json:"major"`
	CourseNumber string      `json:"course_number"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// ProfileRequest is the profile form payload.
type ProfileRequest struct {
	FirstName    string `json:"first_name" validate:"required,max=100"`
	LastName     string `json:"last_name" validate:"required,max=100"`
	CollegeYear  string `json:"college_year" validate:"required,college_year"`
	Major        string `json:"major" validate:"required,max=200"`
	CourseNumber string `json:"course_number" validate:"required,max=50"`
}

// ConversationMetadata returns the profile fields copied onto new conversations.
func (p *UserProfile) ConversationMetadata() map[string]string {
	return map[string]string{
		"college_year":  string(p.CollegeYear),
		"major":         p.Major,
		"course_number": p.CourseNumber,
	}
}
