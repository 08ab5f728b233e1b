package gemini

import "github.com/phrazzld/topicgen/internal/domain"

// promptData represents the data passed to the prompt template
type promptData struct {
	TopicName  string
	Subject    string
	Language   string
	Difficulty domain.Difficulty
	Level      int
	Count      int
	Text       string
	Document   *domain.DocumentRef
}

// ResponseSchema is the JSON document the model is asked to return.
type ResponseSchema struct {
	Questions []QuestionSchema `json:"questions"`
}

// QuestionSchema is a single question in the model response.
type QuestionSchema struct {
	Question      string         `json:"question"`
	Options       []OptionSchema `json:"options"`
	CorrectAnswer string         `json:"correctAnswer"`
	Explanation   string         `json:"explanation,omitempty"`
}

// OptionSchema is one labelled answer choice.
type OptionSchema struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}
