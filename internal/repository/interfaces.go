// Package repository 定义数据访问接口
// 接口抽象使依赖注入和单元测试成为可能
package repository

import (
	"context"

	"github.com/ashwinyue/seek-portal/internal/model"
)

// ========== CourseStore 接口 ==========

// CourseStore 课程内容只读访问接口
type CourseStore interface {
	GetCourse(ctx context.Context, id int64) (*model.Course, error)
	GetWeekContent(ctx context.Context, courseID int64, weekNo int) (*model.WeekwiseContent, error)
	GetLecture(ctx context.Context, courseID int64, weekNo, lectureNo int) (*model.VideoLecture, error)
	GetGradedAssignment(ctx context.Context, id, courseID int64) (*model.GradedAssignment, error)
	GetPracticeAssignment(ctx context.Context, id, courseID int64) (*model.PracticeAssignment, error)
	CountWeeks(ctx context.Context, courseID int64) (int64, error)
}

// 确保 CourseRepository 实现了接口
var _ CourseStore = (*CourseRepository)(nil)

// ========== AgentStore 接口 ==========

// AgentStore 智能体配置访问接口
type AgentStore interface {
	List(ctx context.Context) ([]*model.Agent, error)
	GetByID(ctx context.Context, id int64) (*model.Agent, error)
}

// 确保 AgentRepository 实现了接口
var _ AgentStore = (*AgentRepository)(nil)

// ========== ConversationStore 接口 ==========

// ConversationStore 会话存储接口
type ConversationStore interface {
	Create(ctx context.Context, conv *model.Conversation) (string, error)
	GetByID(ctx context.Context, id string) (*model.Conversation, error)
	UpdateTranscript(ctx context.Context, id string, transcript model.Transcript) (*model.Conversation, error)
	ListByUser(ctx context.Context, userID int64) ([]*model.Conversation, error)
}

// 确保 ConversationRepository 实现了接口
var _ ConversationStore = (*ConversationRepository)(nil)
