// Package classroom fetches coursework from Google Classroom and filters
// it down to the assignments worth scheduling.
package classroom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const defaultBaseURL = "https://classroom.googleapis.com/v1"

// Course is a Classroom course.
type Course struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// WorkItem is a coursework entry that survived relevance filtering,
// annotated with its course name.
type WorkItem struct {
	ID          string
	Title       string
	Description string
	CourseID    string
	CourseName  string
	DueDate     *time.Time
}

// Config holds configuration for the Classroom client.
type Config struct {
	// AccessToken is a caller-supplied OAuth bearer token.
	AccessToken string
	BaseURL     string
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Client talks to the Google Classroom API.
type Client struct {
	config Config
}

// NewClient creates a Classroom client with the given config.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{config: cfg}
}

type rawDueDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// CourseWork is a single coursework entry as returned by the API.
type CourseWork struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	WorkType    string      `json:"workType"`
	MaxPoints   float64     `json:"maxPoints"`
	DueDate     *rawDueDate `json:"dueDate,omitempty"`
}

// Submission is the user's submission state for one coursework entry.
type Submission struct {
	State         string  `json:"state"`
	AssignedGrade float64 `json:"assignedGrade"`
}

// Courses lists the user's active courses.
func (c *Client) Courses(ctx context.Context) ([]Course, error) {
	var out struct {
		Courses []Course `json:"courses"`
	}
	if err := c.get(ctx, c.config.BaseURL+"/courses?courseStates=ACTIVE", &out); err != nil {
		return nil, err
	}
	return out.Courses, nil
}

// ListCourseWork lists published coursework for one course.
func (c *Client) ListCourseWork(ctx context.Context, courseID string) ([]CourseWork, error) {
	var out struct {
		CourseWork []CourseWork `json:"courseWork"`
	}
	endpoint := fmt.Sprintf("%s/courses/%s/courseWork?courseWorkStates=PUBLISHED", c.config.BaseURL, url.PathEscape(courseID))
	if err := c.get(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return out.CourseWork, nil
}

// MySubmission returns the user's own submission for one coursework
// item, or nil when none exists.
func (c *Client) MySubmission(ctx context.Context, courseID, workID string) (*Submission, error) {
	var out struct {
		StudentSubmissions []Submission `json:"studentSubmissions"`
	}
	endpoint := fmt.Sprintf("%s/courses/%s/courseWork/%s/studentSubmissions?userId=me",
		c.config.BaseURL, url.PathEscape(courseID), url.PathEscape(workID))
	if err := c.get(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	if len(out.StudentSubmissions) == 0 {
		return nil, nil
	}
	return &out.StudentSubmissions[0], nil
}

// Assignments fetches every course's open assignments. The course list is
// fetched first; coursework for distinct courses is then fetched
// concurrently, while each course's work -> submission sequence stays
// sequential. A failing course is logged and skipped so that one broken
// course never hides the others.
func (c *Client) Assignments(ctx context.Context) ([]WorkItem, error) {
	courses, err := c.Courses(ctx)
	if err != nil {
		return nil, fmt.Errorf("classroom: list courses: %w", err)
	}

	perCourse := make([][]WorkItem, len(courses))
	var wg sync.WaitGroup
	for i, course := range courses {
		wg.Add(1)
		go func(i int, course Course) {
			defer wg.Done()
			items, err := c.courseAssignments(ctx, course)
			if err != nil {
				c.config.Logger.Warn("classroom course fetch failed",
					"course", course.ID, "error", err)
				return
			}
			perCourse[i] = items
		}(i, course)
	}
	wg.Wait()

	var all []WorkItem
	for _, items := range perCourse {
		all = append(all, items...)
	}
	return all, nil
}

func (c *Client) courseAssignments(ctx context.Context, course Course) ([]WorkItem, error) {
	work, err := c.ListCourseWork(ctx, course.ID)
	if err != nil {
		return nil, err
	}

	var items []WorkItem
	for _, w := range work {
		if !relevant(w) {
			continue
		}
		sub, err := c.MySubmission(ctx, course.ID, w.ID)
		if err != nil {
			return nil, err
		}
		if sub != nil && graded(*sub) {
			continue
		}
		items = append(items, w.toWorkItem(course))
	}
	return items, nil
}

// relevant keeps gradeable assignments only: workType ASSIGNMENT with a
// positive point value.
func relevant(w CourseWork) bool {
	return w.WorkType == "ASSIGNMENT" && w.MaxPoints > 0
}

// graded reports whether the submission is returned with a grade, which
// means there is nothing left to schedule.
func graded(s Submission) bool {
	return s.State == "RETURNED" && s.AssignedGrade > 0
}

func (w CourseWork) toWorkItem(course Course) WorkItem {
	item := WorkItem{
		ID:          w.ID,
		Title:       w.Title,
		Description: w.Description,
		CourseID:    course.ID,
		CourseName:  course.Name,
	}
	if w.DueDate != nil {
		due := time.Date(w.DueDate.Year, time.Month(w.DueDate.Month), w.DueDate.Day, 0, 0, 0, 0, time.Local)
		item.DueDate = &due
	}
	return item
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("classroom: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("classroom: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("classroom: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("classroom: API error (status %d): %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("classroom: unmarshal response: %w", err)
	}
	return nil
}
