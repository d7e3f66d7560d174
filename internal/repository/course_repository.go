package repository

import (
	"context"

	"github.com/ashwinyue/seek-portal/internal/model"
	"gorm.io/gorm"
)

// CourseRepository 课程内容数据访问
type CourseRepository struct {
	db *gorm.DB
}

// NewCourseRepository 创建课程仓库
func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// GetCourse 获取课程
func (r *CourseRepository) GetCourse(ctx context.Context, id int64) (*model.Course, error) {
	var course model.Course
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&course).Error; err != nil {
		return nil, translate(err)
	}
	return &course, nil
}

// GetWeekContent 获取某周内容
func (r *CourseRepository) GetWeekContent(ctx context.Context, courseID int64, weekNo int) (*model.WeekwiseContent, error) {
	var week model.WeekwiseContent
	err := r.db.WithContext(ctx).
		Where("course_id = ? AND week_no = ?", courseID, weekNo).
		First(&week).Error
	if err != nil {
		return nil, translate(err)
	}
	return &week, nil
}

// GetLecture 获取讲座
func (r *CourseRepository) GetLecture(ctx context.Context, courseID int64, weekNo, lectureNo int) (*model.VideoLecture, error) {
	var lecture model.VideoLecture
	err := r.db.WithContext(ctx).
		Where("course_id = ? AND week_no = ? AND lecture_no = ?", courseID, weekNo, lectureNo).
		First(&lecture).Error
	if err != nil {
		return nil, translate(err)
	}
	return &lecture, nil
}

// GetGradedAssignment 获取计分作业
func (r *CourseRepository) GetGradedAssignment(ctx context.Context, id, courseID int64) (*model.GradedAssignment, error) {
	var a model.GradedAssignment
	if err := r.db.WithContext(ctx).Where("id = ? AND course_id = ?", id, courseID).First(&a).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

// GetPracticeAssignment 获取练习作业
func (r *CourseRepository) GetPracticeAssignment(ctx context.Context, id, courseID int64) (*model.PracticeAssignment, error) {
	var a model.PracticeAssignment
	if err := r.db.WithContext(ctx).Where("id = ? AND course_id = ?", id, courseID).First(&a).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

// CountWeeks 统计课程周数
func (r *CourseRepository) CountWeeks(ctx context.Context, courseID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.WeekwiseContent{}).
		Where("course_id = ?", courseID).
		Count(&count).Error
	return count, err
}
