package model

import (
	"encoding/json"
	"time"
)

// Course 课程
type Course struct {
	ID          int64  `gorm:"primaryKey" json:"id"`
	Title       string `gorm:"size:255;not null" json:"title"`
	Category    string `gorm:"size:100" json:"category"`
	Icon        string `gorm:"size:255" json:"icon"`
	Description string `gorm:"type:text" json:"description"`
}

// TableName 指定表名
func (Course) TableName() string {
	return "courses"
}

// WeekwiseContent 课程周内容
type WeekwiseContent struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	CourseID   int64     `gorm:"not null;index:idx_week_course" json:"course_id"`
	WeekNo     int       `gorm:"not null;index:idx_week_course" json:"week_no"`
	Term       string    `gorm:"size:50" json:"term"`
	Title      string    `gorm:"size:255" json:"title"`
	UploadDate time.Time `json:"upload_date"`
}

// TableName 指定表名
func (WeekwiseContent) TableName() string {
	return "weekwise_content"
}

// VideoLecture 视频讲座
type VideoLecture struct {
	ID         int64  `gorm:"primaryKey" json:"id"`
	CourseID   int64  `gorm:"not null;index:idx_lecture_lookup" json:"course_id"`
	WeekNo     int    `gorm:"not null;index:idx_lecture_lookup" json:"week_no"`
	LectureNo  int    `gorm:"not null;index:idx_lecture_lookup" json:"lecture_no"`
	Title      string `gorm:"size:255" json:"title"`
	Transcript string `gorm:"type:text" json:"transcript"`
	Duration   string `gorm:"size:50" json:"duration"`
	VideoLink  string `gorm:"size:500" json:"video_link"`
}

// TableName 指定表名
func (VideoLecture) TableName() string {
	return "video_lectures"
}

// Assignment 作业公共字段
type Assignment struct {
	ID                 int64           `gorm:"primaryKey" json:"id"`
	CourseID           int64           `gorm:"not null;index" json:"course_id"`
	WeekNo             int             `json:"week_no"`
	Title              string          `gorm:"size:255" json:"title"`
	Description        string          `gorm:"type:text" json:"description"`
	AssignmentContent  json.RawMessage `gorm:"type:jsonb" json:"assignment_content"`
	IsCodingAssignment bool            `gorm:"default:false" json:"is_coding_assignment"`
	Deadline           *time.Time      `json:"deadline"`
}

// GradedAssignment 计分作业
type GradedAssignment struct {
	Assignment
}

// TableName 指定表名
func (GradedAssignment) TableName() string {
	return "graded_assignments"
}

// PracticeAssignment 练习作业
type PracticeAssignment struct {
	Assignment
}

// TableName 指定表名
func (PracticeAssignment) TableName() string {
	return "practice_assignments"
}
