package prompts

// PromptID identifies a prompt template. It is the template path under
// templates/ without the .tmpl suffix.
type PromptID string

const (
	// Planner pipeline.
	TaskAreasSystem PromptID = "planner/task_areas_system"
	TaskAreasUser   PromptID = "planner/task_areas_user"
	TodosSystem     PromptID = "planner/todos_system"
	TodosUser       PromptID = "planner/todos_user"
	ScheduleSystem  PromptID = "planner/schedule_system"
	ScheduleUser    PromptID = "planner/schedule_user"
	ReviewSystem    PromptID = "planner/review_system"
	ReviewUser      PromptID = "planner/review_user"

	// Spec pipeline.
	RequirementAnalysisSystem   PromptID = "spec/requirement_analysis_system"
	RequirementAnalysisUser     PromptID = "spec/requirement_analysis_user"
	RequirementValidationSystem PromptID = "spec/requirement_validation_system"
	RequirementValidationUser   PromptID = "spec/requirement_validation_user"
	ServiceFlowSystem           PromptID = "spec/service_flow_system"
	ServiceFlowUser             PromptID = "spec/service_flow_user"
	APISpecSystem               PromptID = "spec/api_spec_system"
	APISpecUser                 PromptID = "spec/api_spec_user"
	APIValidationSystem         PromptID = "spec/api_validation_system"
	APIValidationUser           PromptID = "spec/api_validation_user"

	// Document Q&A.
	AnswerSystem PromptID = "docqa/answer_system"
	AnswerUser   PromptID = "docqa/answer_user"
)

// GoalData feeds the task area prompt.
type GoalData struct {
	Goal string
	// History is the recent conversation, oldest first.
	History []HistoryLine
}

// HistoryLine is one rendered conversation entry.
type HistoryLine struct {
	Role    string
	Message string
}

// TodosData feeds the TODO generation prompt.
type TodosData struct {
	Goal      string
	TaskAreas []string
	History   []HistoryLine
}

// ScheduleData feeds the schedule recommendation prompt.
type ScheduleData struct {
	Goal         string
	DurationDays int
	TodosJSON    string
	Today        string
}

// ReviewData feeds the plan review prompt.
type ReviewData struct {
	Goal             string
	TodosMarkdown    string
	ScheduleMarkdown string
	History          []HistoryLine
}

// SpecData feeds the spec pipeline prompts. Only the fields a step needs
// are set.
type SpecData struct {
	Input              string
	RequirementSpec    string
	ValidationFeedback string
	ServiceFlow        string
	APISpec            string
}

// AnswerData feeds the document Q&A prompt.
type AnswerData struct {
	Question string
	Passages []Passage
}

// Passage is one retrieved chunk shown to the model.
type Passage struct {
	Source string
	Score  float64
	Text   string
}
