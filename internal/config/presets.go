package config

// ExamPreset describes one bookable mock exam. The presets replace per-topic
// code paths: an attempt is parameterized entirely by this data.
type ExamPreset struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Topic           string `json:"topic"`
	QuestionCount   int    `json:"question_count"`
	DurationMinutes int    `json:"duration_minutes"`
	// TrackQuestionTime enables per-question time accumulation.
	TrackQuestionTime bool `json:"track_question_time"`
}

// Presets lists the built-in mock exams.
var Presets = []ExamPreset{
	{ID: "aptitude", Title: "Aptitude Mock Test", Topic: "aptitude", QuestionCount: 20, DurationMinutes: 40},
	{ID: "technical", Title: "Technical Mock Test", Topic: "technical", QuestionCount: 20, DurationMinutes: 40, TrackQuestionTime: true},
	{ID: "verbal", Title: "Verbal Ability Mock Test", Topic: "verbal", QuestionCount: 20, DurationMinutes: 30},
	{ID: "aptitude-sprint", Title: "Aptitude Sprint", Topic: "aptitude", QuestionCount: 10, DurationMinutes: 15},
	{ID: "technical-sprint", Title: "Technical Sprint", Topic: "technical", QuestionCount: 10, DurationMinutes: 15},
}

// FindPreset looks a preset up by ID.
func FindPreset(id string) (ExamPreset, bool) {
	for _, p := range Presets {
		if p.ID == id {
			return p, true
		}
	}
	return ExamPreset{}, false
}
