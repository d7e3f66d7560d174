// Package tool 提供智能体可调用的工具
package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/ashwinyue/seek-portal/internal/observability"
	"github.com/ashwinyue/seek-portal/internal/repository"
)

const (
	// CourseContentToolName 课程内容工具名
	CourseContentToolName = "get_course_content"

	// maxExactInteger float64 能精确表示的最大整数
	maxExactInteger = 1 << 53

	courseContentToolDesc = "Fetches course content details such as lectures, assignments, or week-wise schedules from the Seek Portal database."
)

// ErrMalformedArguments 工具参数无法解析
var ErrMalformedArguments = errors.New("malformed tool arguments")

// CourseContentArgs 工具参数
type CourseContentArgs struct {
	CourseID             int64  `json:"course_id"`
	WeekNo               *int   `json:"week_no,omitempty"`
	LectureNo            *int   `json:"lecture_no,omitempty"`
	IsTranscriptRequired bool   `json:"is_transcript_required,omitempty"`
	GradedAssignmentID   *int64 `json:"graded_assignment_id,omitempty"`
	PracticeAssignmentID *int64 `json:"practice_assignment_id,omitempty"`
}

// wireArgs 模型给出的原始参数，数字可能带引号或写成 2.0
type wireArgs struct {
	CourseID             json.RawMessage `json:"course_id"`
	WeekNo               json.RawMessage `json:"week_no"`
	LectureNo            json.RawMessage `json:"lecture_no"`
	IsTranscriptRequired json.RawMessage `json:"is_transcript_required"`
	GradedAssignmentID   json.RawMessage `json:"graded_assignment_id"`
	PracticeAssignmentID json.RawMessage `json:"practice_assignment_id"`
}

// ParseArgs 解析工具参数
//
// 未声明的字段忽略；整数接受整值数字和数字字符串。
// 非对象、缺少 course_id 或取值非数字时返回 ErrMalformedArguments。
func ParseArgs(raw string) (*CourseContentArgs, error) {
	var w wireArgs
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArguments, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedArguments)
	}

	courseID, err := integerArg("course_id", w.CourseID)
	if err != nil {
		return nil, err
	}
	if courseID == nil {
		return nil, fmt.Errorf("%w: course_id is required", ErrMalformedArguments)
	}

	args := &CourseContentArgs{CourseID: *courseID}
	if args.WeekNo, err = smallIntArg("week_no", w.WeekNo); err != nil {
		return nil, err
	}
	if args.LectureNo, err = smallIntArg("lecture_no", w.LectureNo); err != nil {
		return nil, err
	}
	if args.GradedAssignmentID, err = integerArg("graded_assignment_id", w.GradedAssignmentID); err != nil {
		return nil, err
	}
	if args.PracticeAssignmentID, err = integerArg("practice_assignment_id", w.PracticeAssignmentID); err != nil {
		return nil, err
	}
	if args.IsTranscriptRequired, err = boolArg("is_transcript_required", w.IsTranscriptRequired); err != nil {
		return nil, err
	}
	return args, nil
}

func absent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// integerArg 解析整数参数，缺省或 null 返回 nil
func integerArg(name string, raw json.RawMessage) (*int64, error) {
	if absent(raw) {
		return nil, nil
	}

	var n json.Number
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedArguments, name, err)
		}
		n = json.Number(strings.TrimSpace(s))
	} else if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedArguments, name, err)
	}

	if v, err := n.Int64(); err == nil {
		return &v, nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > maxExactInteger {
		return nil, fmt.Errorf("%w: %s: %q is not an integer", ErrMalformedArguments, name, string(n))
	}
	v := int64(f)
	return &v, nil
}

func smallIntArg(name string, raw json.RawMessage) (*int, error) {
	v, err := integerArg(name, raw)
	if err != nil || v == nil {
		return nil, err
	}
	if *v > math.MaxInt32 || *v < math.MinInt32 {
		return nil, fmt.Errorf("%w: %s out of range", ErrMalformedArguments, name)
	}
	i := int(*v)
	return &i, nil
}

func boolArg(name string, raw json.RawMessage) (bool, error) {
	if absent(raw) {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, nil
		}
	}
	return false, fmt.Errorf("%w: %s must be a boolean", ErrMalformedArguments, name)
}

// CourseContentResult 工具结果
type CourseContentResult struct {
	CourseID int64          `json:"course_id,omitempty"`
	Content  *CourseContent `json:"content,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// CourseContent 课程内容
type CourseContent struct {
	CourseTitle        string          `json:"course_title"`
	Description        string          `json:"description"`
	Week               *WeekInfo       `json:"week,omitempty"`
	Lecture            *LectureInfo    `json:"lecture,omitempty"`
	GradedAssignment   *AssignmentInfo `json:"graded_assignment,omitempty"`
	PracticeAssignment *AssignmentInfo `json:"practice_assignment,omitempty"`
	TotalWeeks         *int64          `json:"total_weeks,omitempty"`
}

// WeekInfo 周信息
type WeekInfo struct {
	WeekNo int    `json:"week_no"`
	Title  string `json:"title"`
	Term   string `json:"term"`
}

// LectureInfo 讲座信息
type LectureInfo struct {
	Title      string  `json:"title"`
	Duration   string  `json:"duration"`
	VideoLink  string  `json:"video_link"`
	Transcript *string `json:"transcript,omitempty"`
}

// AssignmentInfo 作业信息
type AssignmentInfo struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Deadline    *time.Time      `json:"deadline"`
	Content     json.RawMessage `json:"content,omitempty"`
}

// CourseContentTool 课程内容查询工具
type CourseContentTool struct {
	courses repository.CourseStore
	logger  zerolog.Logger
}

var _ tool.InvokableTool = (*CourseContentTool)(nil)

// NewCourseContentTool 创建课程内容工具
func NewCourseContentTool(courses repository.CourseStore) *CourseContentTool {
	return &CourseContentTool{
		courses: courses,
		logger:  observability.Component("tool"),
	}
}

// Info 工具声明
func (t *CourseContentTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: CourseContentToolName,
		Desc: courseContentToolDesc,
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"course_id": {
				Type:     schema.Integer,
				Desc:     "The ID of the course.",
				Required: true,
			},
			"week_no": {
				Type: schema.Integer,
				Desc: "The week number of the course content.",
			},
			"lecture_no": {
				Type: schema.Integer,
				Desc: "The lecture number within the week.",
			},
			"is_transcript_required": {
				Type: schema.Boolean,
				Desc: "Whether the lecture transcript should be included. Defaults to false.",
			},
			"graded_assignment_id": {
				Type: schema.Integer,
				Desc: "The ID of a graded assignment.",
			},
			"practice_assignment_id": {
				Type: schema.Integer,
				Desc: "The ID of a practice assignment.",
			},
		}),
	}, nil
}

// InvokableRun 执行工具，返回 JSON 字符串
// 查询失败也以 {"error": ...} 形式返回，交由模型向用户解释
func (t *CourseContentTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	args, err := ParseArgs(argumentsInJSON)
	if err != nil {
		observability.RecordToolCall("malformed")
		return "", err
	}

	result, err := t.Execute(ctx, args)
	if err != nil {
		t.logger.Error().Err(err).Int64("course_id", args.CourseID).Msg("course content lookup failed")
		observability.RecordToolCall("error")
		result = &CourseContentResult{Error: fmt.Sprintf("Failed to fetch content for course %d.", args.CourseID)}
	} else if result.Error != "" {
		observability.RecordToolCall("not_found")
	} else {
		observability.RecordToolCall("ok")
	}

	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal tool result: %w", err)
	}
	return string(out), nil
}

// Execute 按参数查询课程内容
// 各子查询相互独立，结果为所有命中项的并集
func (t *CourseContentTool) Execute(ctx context.Context, args *CourseContentArgs) (*CourseContentResult, error) {
	course, err := t.courses.GetCourse(ctx, args.CourseID)
	if errors.Is(err, repository.ErrNotFound) {
		return &CourseContentResult{Error: fmt.Sprintf("Course with ID %d not found.", args.CourseID)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}

	content := &CourseContent{
		CourseTitle: course.Title,
		Description: course.Description,
	}

	if weekNo, ok := intArg(args.WeekNo); ok {
		if err := t.fillWeek(ctx, args, weekNo, content); err != nil {
			return nil, err
		}
	}

	if id, ok := idArg(args.GradedAssignmentID); ok {
		a, err := t.courses.GetGradedAssignment(ctx, id, args.CourseID)
		if err := ignoreNotFound(err); err != nil {
			return nil, fmt.Errorf("get graded assignment: %w", err)
		}
		if a != nil {
			content.GradedAssignment = toAssignmentInfo(a.Title, a.Description, a.Deadline, a.AssignmentContent)
		}
	}

	if id, ok := idArg(args.PracticeAssignmentID); ok {
		a, err := t.courses.GetPracticeAssignment(ctx, id, args.CourseID)
		if err := ignoreNotFound(err); err != nil {
			return nil, fmt.Errorf("get practice assignment: %w", err)
		}
		if a != nil {
			content.PracticeAssignment = toAssignmentInfo(a.Title, a.Description, a.Deadline, a.AssignmentContent)
		}
	}

	if args.noFilters() {
		total, err := t.courses.CountWeeks(ctx, args.CourseID)
		if err != nil {
			return nil, fmt.Errorf("count weeks: %w", err)
		}
		content.TotalWeeks = &total
	}

	return &CourseContentResult{CourseID: args.CourseID, Content: content}, nil
}

// fillWeek 周内容，周存在时再查讲座
func (t *CourseContentTool) fillWeek(ctx context.Context, args *CourseContentArgs, weekNo int, content *CourseContent) error {
	week, err := t.courses.GetWeekContent(ctx, args.CourseID, weekNo)
	if err := ignoreNotFound(err); err != nil {
		return fmt.Errorf("get week content: %w", err)
	}
	if week == nil {
		return nil
	}
	content.Week = &WeekInfo{WeekNo: week.WeekNo, Title: week.Title, Term: week.Term}

	lectureNo, ok := intArg(args.LectureNo)
	if !ok {
		return nil
	}
	lecture, err := t.courses.GetLecture(ctx, args.CourseID, weekNo, lectureNo)
	if err := ignoreNotFound(err); err != nil {
		return fmt.Errorf("get lecture: %w", err)
	}
	if lecture == nil {
		return nil
	}
	info := &LectureInfo{
		Title:     lecture.Title,
		Duration:  lecture.Duration,
		VideoLink: lecture.VideoLink,
	}
	if args.IsTranscriptRequired {
		transcript := lecture.Transcript
		info.Transcript = &transcript
	}
	content.Lecture = info
	return nil
}

func (a *CourseContentArgs) noFilters() bool {
	_, week := intArg(a.WeekNo)
	_, lecture := intArg(a.LectureNo)
	_, graded := idArg(a.GradedAssignmentID)
	_, practice := idArg(a.PracticeAssignmentID)
	return !week && !lecture && !graded && !practice
}

// intArg 零值视为未提供
func intArg(v *int) (int, bool) {
	if v == nil || *v == 0 {
		return 0, false
	}
	return *v, true
}

func idArg(v *int64) (int64, bool) {
	if v == nil || *v == 0 {
		return 0, false
	}
	return *v, true
}

func ignoreNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}

func toAssignmentInfo(title, desc string, deadline *time.Time, content json.RawMessage) *AssignmentInfo {
	return &AssignmentInfo{
		Title:       title,
		Description: desc,
		Deadline:    deadline,
		Content:     content,
	}
}
