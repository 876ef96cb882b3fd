package entity

// Profile is the learner summary served by the upstream profile service.
type Profile struct {
	UserId           string   `json:"user_id"`
	Name             string   `json:"name"`
	Level            string   `json:"level,omitempty"`
	EnrolledCourses  []string `json:"enrolled_courses,omitempty"`
	CompletedCourses int      `json:"completed_courses"`
	InProgress       int      `json:"in_progress"`
	AverageProgress  float64  `json:"average_progress"`
}

func (p Profile) IsEmpty() bool {
	return p.Name == "" && len(p.EnrolledCourses) == 0 && p.CompletedCourses == 0 && p.InProgress == 0
}
