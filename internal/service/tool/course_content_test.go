package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinyue/seek-portal/internal/model"
	"github.com/ashwinyue/seek-portal/internal/repository"
)

// ========== Mock ==========

type mockCourseStore struct {
	courses   map[int64]*model.Course
	weeks     map[int64][]*model.WeekwiseContent
	lectures  []*model.VideoLecture
	graded    []*model.GradedAssignment
	practice  []*model.PracticeAssignment
	courseErr error
	calls     []string
}

func newMockCourseStore() *mockCourseStore {
	deadline := time.Date(2025, 3, 1, 23, 59, 0, 0, time.UTC)
	return &mockCourseStore{
		courses: map[int64]*model.Course{
			1: {ID: 1, Title: "Business Data Management", Description: "Data-driven decisions for managers."},
		},
		weeks: map[int64][]*model.WeekwiseContent{
			1: {
				{CourseID: 1, WeekNo: 1, Title: "Introduction", Term: "Jan 2025"},
				{CourseID: 1, WeekNo: 2, Title: "Descriptive Statistics", Term: "Jan 2025"},
				{CourseID: 1, WeekNo: 3, Title: "Inventory", Term: "Jan 2025"},
			},
		},
		lectures: []*model.VideoLecture{
			{CourseID: 1, WeekNo: 2, LectureNo: 1, Title: "Mean and Median", Duration: "14:05", VideoLink: "https://video/1", Transcript: "Today we look at averages."},
		},
		graded: []*model.GradedAssignment{
			{Assignment: model.Assignment{ID: 10, CourseID: 1, Title: "GA 1", Description: "Graded work", Deadline: &deadline, AssignmentContent: json.RawMessage(`{"questions":3}`)}},
		},
		practice: []*model.PracticeAssignment{
			{Assignment: model.Assignment{ID: 20, CourseID: 1, Title: "PA 1", Description: "Practice work"}},
		},
	}
}

func (m *mockCourseStore) GetCourse(_ context.Context, id int64) (*model.Course, error) {
	m.calls = append(m.calls, "course")
	if m.courseErr != nil {
		return nil, m.courseErr
	}
	if c, ok := m.courses[id]; ok {
		return c, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockCourseStore) GetWeekContent(_ context.Context, courseID int64, weekNo int) (*model.WeekwiseContent, error) {
	m.calls = append(m.calls, "week")
	for _, w := range m.weeks[courseID] {
		if w.WeekNo == weekNo {
			return w, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockCourseStore) GetLecture(_ context.Context, courseID int64, weekNo, lectureNo int) (*model.VideoLecture, error) {
	m.calls = append(m.calls, "lecture")
	for _, l := range m.lectures {
		if l.CourseID == courseID && l.WeekNo == weekNo && l.LectureNo == lectureNo {
			return l, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockCourseStore) GetGradedAssignment(_ context.Context, id, courseID int64) (*model.GradedAssignment, error) {
	m.calls = append(m.calls, "graded")
	for _, a := range m.graded {
		if a.ID == id && a.CourseID == courseID {
			return a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockCourseStore) GetPracticeAssignment(_ context.Context, id, courseID int64) (*model.PracticeAssignment, error) {
	m.calls = append(m.calls, "practice")
	for _, a := range m.practice {
		if a.ID == id && a.CourseID == courseID {
			return a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockCourseStore) CountWeeks(_ context.Context, courseID int64) (int64, error) {
	m.calls = append(m.calls, "count")
	return int64(len(m.weeks[courseID])), nil
}

func intPtr(v int) *int    { return &v }
func idPtr(v int64) *int64 { return &v }

// ========== ParseArgs 测试 ==========

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    *CourseContentArgs
		wantErr bool
	}{
		{
			name: "course only",
			raw:  `{"course_id": 1}`,
			want: &CourseContentArgs{CourseID: 1},
		},
		{
			name: "all fields",
			raw:  `{"course_id":1,"week_no":2,"lecture_no":1,"is_transcript_required":true,"graded_assignment_id":10,"practice_assignment_id":20}`,
			want: &CourseContentArgs{
				CourseID:             1,
				WeekNo:               intPtr(2),
				LectureNo:            intPtr(1),
				IsTranscriptRequired: true,
				GradedAssignmentID:   idPtr(10),
				PracticeAssignmentID: idPtr(20),
			},
		},
		{
			name: "extra fields ignored",
			raw:  `{"course_id":1,"course_name":"BDM"}`,
			want: &CourseContentArgs{CourseID: 1},
		},
		{
			name: "numeric string course id",
			raw:  `{"course_id":"1"}`,
			want: &CourseContentArgs{CourseID: 1},
		},
		{
			name: "integral float week",
			raw:  `{"course_id":1,"week_no":2.0}`,
			want: &CourseContentArgs{CourseID: 1, WeekNo: intPtr(2)},
		},
		{
			name: "string ids and flag",
			raw:  `{"course_id":" 3 ","lecture_no":"4","graded_assignment_id":"10","is_transcript_required":"true"}`,
			want: &CourseContentArgs{CourseID: 3, LectureNo: intPtr(4), GradedAssignmentID: idPtr(10), IsTranscriptRequired: true},
		},
		{
			name: "null optional fields",
			raw:  `{"course_id":1,"week_no":null,"practice_assignment_id":null}`,
			want: &CourseContentArgs{CourseID: 1},
		},
		{name: "missing course_id", raw: `{"week_no": 2}`, wantErr: true},
		{name: "null course_id", raw: `{"course_id": null}`, wantErr: true},
		{name: "truncated", raw: `{"course_id": 1`, wantErr: true},
		{name: "not an object", raw: `[1]`, wantErr: true},
		{name: "bare number", raw: `1`, wantErr: true},
		{name: "non-numeric course id", raw: `{"course_id": "BDM"}`, wantErr: true},
		{name: "fractional week", raw: `{"course_id": 1, "week_no": 2.5}`, wantErr: true},
		{name: "boolean id", raw: `{"course_id": true}`, wantErr: true},
		{name: "non-boolean flag", raw: `{"course_id": 1, "is_transcript_required": "maybe"}`, wantErr: true},
		{name: "trailing data", raw: `{"course_id": 1} {"course_id": 2}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseArgs(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformedArguments))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// ========== Execute 测试 ==========

func TestExecute_CourseOnlyIncludesTotalWeeks(t *testing.T) {
	store := newMockCourseStore()
	tl := NewCourseContentTool(store)

	res, err := tl.Execute(context.Background(), &CourseContentArgs{CourseID: 1})
	require.NoError(t, err)

	require.NotNil(t, res.Content)
	assert.Equal(t, int64(1), res.CourseID)
	assert.Equal(t, "Business Data Management", res.Content.CourseTitle)
	assert.Equal(t, "Data-driven decisions for managers.", res.Content.Description)
	require.NotNil(t, res.Content.TotalWeeks)
	assert.Equal(t, int64(3), *res.Content.TotalWeeks)
	assert.Nil(t, res.Content.Week)
}

func TestExecute_CourseNotFound(t *testing.T) {
	tl := NewCourseContentTool(newMockCourseStore())

	res, err := tl.Execute(context.Background(), &CourseContentArgs{CourseID: 99})
	require.NoError(t, err)

	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"Course with ID 99 not found."}`, string(out))
}

func TestExecute_WeekAndLecture(t *testing.T) {
	tests := []struct {
		name           string
		args           CourseContentArgs
		wantWeek       bool
		wantLecture    bool
		wantTranscript bool
	}{
		{
			name:     "week only",
			args:     CourseContentArgs{CourseID: 1, WeekNo: intPtr(2)},
			wantWeek: true,
		},
		{
			name:        "lecture without transcript",
			args:        CourseContentArgs{CourseID: 1, WeekNo: intPtr(2), LectureNo: intPtr(1)},
			wantWeek:    true,
			wantLecture: true,
		},
		{
			name:           "lecture with transcript",
			args:           CourseContentArgs{CourseID: 1, WeekNo: intPtr(2), LectureNo: intPtr(1), IsTranscriptRequired: true},
			wantWeek:       true,
			wantLecture:    true,
			wantTranscript: true,
		},
		{
			name: "missing week skips lecture",
			args: CourseContentArgs{CourseID: 1, WeekNo: intPtr(9), LectureNo: intPtr(1)},
		},
		{
			name: "lecture without week is ignored",
			args: CourseContentArgs{CourseID: 1, LectureNo: intPtr(1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := NewCourseContentTool(newMockCourseStore())
			res, err := tl.Execute(context.Background(), &tt.args)
			require.NoError(t, err)

			assert.Equal(t, tt.wantWeek, res.Content.Week != nil)
			assert.Equal(t, tt.wantLecture, res.Content.Lecture != nil)
			if tt.wantLecture {
				assert.Equal(t, "Mean and Median", res.Content.Lecture.Title)
				assert.Equal(t, tt.wantTranscript, res.Content.Lecture.Transcript != nil)
			}
			// 指定了任意过滤条件就不再统计周数
			assert.Nil(t, res.Content.TotalWeeks)
		})
	}
}

func TestExecute_AssignmentsAreIndependentOfWeek(t *testing.T) {
	store := newMockCourseStore()
	tl := NewCourseContentTool(store)

	res, err := tl.Execute(context.Background(), &CourseContentArgs{
		CourseID:             1,
		WeekNo:               intPtr(9),
		GradedAssignmentID:   idPtr(10),
		PracticeAssignmentID: idPtr(20),
	})
	require.NoError(t, err)

	assert.Nil(t, res.Content.Week)
	require.NotNil(t, res.Content.GradedAssignment)
	assert.Equal(t, "GA 1", res.Content.GradedAssignment.Title)
	assert.JSONEq(t, `{"questions":3}`, string(res.Content.GradedAssignment.Content))
	require.NotNil(t, res.Content.PracticeAssignment)
	assert.Equal(t, "PA 1", res.Content.PracticeAssignment.Title)
	assert.NotContains(t, store.calls, "count")
}

func TestExecute_ZeroIDsAreTreatedAsAbsent(t *testing.T) {
	store := newMockCourseStore()
	tl := NewCourseContentTool(store)

	res, err := tl.Execute(context.Background(), &CourseContentArgs{
		CourseID:           1,
		WeekNo:             intPtr(0),
		GradedAssignmentID: idPtr(0),
	})
	require.NoError(t, err)

	require.NotNil(t, res.Content.TotalWeeks)
	assert.Equal(t, []string{"course", "count"}, store.calls)
}

func TestExecute_InfrastructureError(t *testing.T) {
	store := newMockCourseStore()
	store.courseErr = errors.New("connection refused")
	tl := NewCourseContentTool(store)

	_, err := tl.Execute(context.Background(), &CourseContentArgs{CourseID: 1})
	require.Error(t, err)
}

// ========== InvokableRun 测试 ==========

func TestInvokableRun(t *testing.T) {
	tests := []struct {
		name     string
		store    func() *mockCourseStore
		args     string
		wantErr  bool
		contains string
	}{
		{
			name:     "success",
			store:    newMockCourseStore,
			args:     `{"course_id":1}`,
			contains: `"course_title":"Business Data Management"`,
		},
		{
			name:     "loose argument types",
			store:    newMockCourseStore,
			args:     `{"course_id":"1","course_name":"BDM"}`,
			contains: `"course_title":"Business Data Management"`,
		},
		{
			name:     "not found is a payload",
			store:    newMockCourseStore,
			args:     `{"course_id":404}`,
			contains: `"error":"Course with ID 404 not found."`,
		},
		{
			name: "repository failure is a payload",
			store: func() *mockCourseStore {
				s := newMockCourseStore()
				s.courseErr = errors.New("timeout")
				return s
			},
			args:     `{"course_id":1}`,
			contains: `"error":"Failed to fetch content for course 1."`,
		},
		{
			name:    "malformed arguments",
			store:   newMockCourseStore,
			args:    `{"course_id":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := NewCourseContentTool(tt.store())
			out, err := tl.InvokableRun(context.Background(), tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, tt.contains)
		})
	}
}

func TestInfo(t *testing.T) {
	tl := NewCourseContentTool(newMockCourseStore())
	info, err := tl.Info(context.Background())
	require.NoError(t, err)

	assert.Equal(t, CourseContentToolName, info.Name)
	assert.Contains(t, info.Desc, "Seek Portal")

	assert.NotNil(t, info.ParamsOneOf)
}
