package models

// Question input types
const (
	QuestionTypeText       = "text"
	QuestionTypeNumber     = "number"
	QuestionTypeBoolean    = "boolean"
	QuestionTypeFileUpload = "file_upload"
	QuestionTypeSelect     = "select"
	QuestionTypeDate       = "date"
)

// Conditional rule operators
const (
	OperatorEquals      = "equals"
	OperatorNotEquals   = "not_equals"
	OperatorGreaterThan = "greater_than"
	OperatorLessThan    = "less_than"
	OperatorTrue        = "true"
	OperatorFalse       = "false"
)

// ConditionalRule gates visibility on a canonical field or another question's
// answer. Value is a scalar (string, number or boolean) decoded from JSON.
type ConditionalRule struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value,omitempty"`
}

// SelectOption is one choice of a select question
type SelectOption struct {
	Label string      `json:"label"`
	Value interface{} `json:"value"`
}

// Question represents an atomic unit of data collection
type Question struct {
	ID               string           `json:"id"`
	Label            string           `json:"label"`
	Instructions     string           `json:"instructions,omitempty"`
	QuestionType     string           `json:"question_type"`
	DataType         string           `json:"data_type"`
	MappedField      *string          `json:"mapped_field,omitempty"`
	RequiresApproval bool             `json:"requires_approval"`
	ConditionalRule  *ConditionalRule `json:"conditional_rule,omitempty"`

	// File upload intake constraints (enforced at upload time, not by the engine)
	AllowedFileTypes []string `json:"allowed_file_types,omitempty"`
	MaxFileSizeMB    *int     `json:"max_file_size_mb,omitempty"`

	// Select options
	Options []SelectOption `json:"options,omitempty"`
}

// StorageDataType returns the canonical storage type for a question input type
func StorageDataType(questionType string) string {
	switch questionType {
	case QuestionTypeNumber:
		return "number"
	case QuestionTypeBoolean:
		return "boolean"
	case QuestionTypeDate:
		return "date"
	case QuestionTypeFileUpload:
		return "file_reference"
	default:
		return "string"
	}
}

// QuestionListResponse wraps a list of questions
type QuestionListResponse struct {
	Questions []Question `json:"questions"`
	Total     int        `json:"total"`
}
