package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"solarflow/lib/models"

	"github.com/sirupsen/logrus"
)

// ConfigRepository defines the interface for workflow configuration
// persistence. Entities are upserted by id; callers run the validator before
// persisting sections and stages.
type ConfigRepository interface {
	GetStages(ctx context.Context) ([]models.Stage, error)
	GetSections(ctx context.Context) ([]models.Section, error)
	GetQuestions(ctx context.Context) ([]models.Question, error)
	UpsertStage(ctx context.Context, stage *models.Stage) error
	UpsertSection(ctx context.Context, section *models.Section) error
	UpsertQuestion(ctx context.Context, question *models.Question) error
	DeleteStage(ctx context.Context, stageID string) error
	DeleteSection(ctx context.Context, sectionID string) error
	DeleteQuestion(ctx context.Context, questionID string) error
}

// ConfigDao implements ConfigRepository using PostgreSQL
type ConfigDao struct {
	DB     *sql.DB
	Logger *logrus.Logger
}

// NewConfigRepository creates a new ConfigRepository instance
func NewConfigRepository(db *sql.DB, logger *logrus.Logger) ConfigRepository {
	return &ConfigDao{
		DB:     db,
		Logger: logger,
	}
}

// GetStages returns all configured stages ordered by display order
func (dao *ConfigDao) GetStages(ctx context.Context) ([]models.Stage, error) {
	query := `
		SELECT id, name, description, activation_rules, section_ids,
		       stage_type, status, display_order, visible_to_installer
		FROM workflow.stages
		ORDER BY display_order, id`

	rows, err := dao.DB.QueryContext(ctx, query)
	if err != nil {
		dao.Logger.WithError(err).Error("Failed to query stages")
		return nil, fmt.Errorf("failed to get stages: %w", err)
	}
	defer rows.Close()

	var stages []models.Stage
	for rows.Next() {
		var stage models.Stage
		var activationRulesJSON, sectionIDsJSON []byte
		if err := rows.Scan(&stage.ID, &stage.Name, &stage.Description, &activationRulesJSON,
			&sectionIDsJSON, &stage.StageType, &stage.Status, &stage.Order, &stage.IsVisibleToInstaller); err != nil {
			return nil, fmt.Errorf("failed to scan stage: %w", err)
		}
		if len(activationRulesJSON) > 0 {
			if err := json.Unmarshal(activationRulesJSON, &stage.ActivationRules); err != nil {
				return nil, fmt.Errorf("failed to decode activation rules for stage %s: %w", stage.ID, err)
			}
		}
		if err := json.Unmarshal(sectionIDsJSON, &stage.SectionIDs); err != nil {
			return nil, fmt.Errorf("failed to decode section ids for stage %s: %w", stage.ID, err)
		}
		stages = append(stages, stage)
	}
	return stages, rows.Err()
}

// GetSections returns all configured sections
func (dao *ConfigDao) GetSections(ctx context.Context) ([]models.Section, error) {
	query := `
		SELECT id, name, description, required_question_ids, optional_question_ids,
		       question_order, depends_on_section_ids, conditional_rule, status
		FROM workflow.sections
		ORDER BY id`

	rows, err := dao.DB.QueryContext(ctx, query)
	if err != nil {
		dao.Logger.WithError(err).Error("Failed to query sections")
		return nil, fmt.Errorf("failed to get sections: %w", err)
	}
	defer rows.Close()

	var sections []models.Section
	for rows.Next() {
		var section models.Section
		var requiredJSON, optionalJSON, orderJSON, dependsJSON, ruleJSON []byte
		if err := rows.Scan(&section.ID, &section.Name, &section.Description, &requiredJSON,
			&optionalJSON, &orderJSON, &dependsJSON, &ruleJSON, &section.Status); err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		if err := json.Unmarshal(requiredJSON, &section.RequiredQuestionIDs); err != nil {
			return nil, fmt.Errorf("failed to decode required question ids for section %s: %w", section.ID, err)
		}
		if err := json.Unmarshal(optionalJSON, &section.OptionalQuestionIDs); err != nil {
			return nil, fmt.Errorf("failed to decode optional question ids for section %s: %w", section.ID, err)
		}
		if len(orderJSON) > 0 {
			if err := json.Unmarshal(orderJSON, &section.QuestionOrder); err != nil {
				return nil, fmt.Errorf("failed to decode question order for section %s: %w", section.ID, err)
			}
		}
		if len(dependsJSON) > 0 {
			if err := json.Unmarshal(dependsJSON, &section.DependsOnSectionIDs); err != nil {
				return nil, fmt.Errorf("failed to decode dependencies for section %s: %w", section.ID, err)
			}
		}
		if len(ruleJSON) > 0 {
			if err := json.Unmarshal(ruleJSON, &section.ConditionalRule); err != nil {
				return nil, fmt.Errorf("failed to decode conditional rule for section %s: %w", section.ID, err)
			}
		}
		sections = append(sections, section)
	}
	return sections, rows.Err()
}

// GetQuestions returns all configured questions
func (dao *ConfigDao) GetQuestions(ctx context.Context) ([]models.Question, error) {
	query := `
		SELECT id, label, instructions, question_type, data_type, mapped_field,
		       requires_approval, conditional_rule, allowed_file_types, max_file_size_mb, options
		FROM workflow.questions
		ORDER BY id`

	rows, err := dao.DB.QueryContext(ctx, query)
	if err != nil {
		dao.Logger.WithError(err).Error("Failed to query questions")
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		var question models.Question
		var mappedField sql.NullString
		var maxFileSize sql.NullInt64
		var ruleJSON, fileTypesJSON, optionsJSON []byte
		if err := rows.Scan(&question.ID, &question.Label, &question.Instructions, &question.QuestionType,
			&question.DataType, &mappedField, &question.RequiresApproval, &ruleJSON,
			&fileTypesJSON, &maxFileSize, &optionsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		if mappedField.Valid {
			question.MappedField = &mappedField.String
		}
		if maxFileSize.Valid {
			size := int(maxFileSize.Int64)
			question.MaxFileSizeMB = &size
		}
		if len(ruleJSON) > 0 {
			if err := json.Unmarshal(ruleJSON, &question.ConditionalRule); err != nil {
				return nil, fmt.Errorf("failed to decode conditional rule for question %s: %w", question.ID, err)
			}
		}
		if len(fileTypesJSON) > 0 {
			if err := json.Unmarshal(fileTypesJSON, &question.AllowedFileTypes); err != nil {
				return nil, fmt.Errorf("failed to decode allowed file types for question %s: %w", question.ID, err)
			}
		}
		if len(optionsJSON) > 0 {
			if err := json.Unmarshal(optionsJSON, &question.Options); err != nil {
				return nil, fmt.Errorf("failed to decode options for question %s: %w", question.ID, err)
			}
		}
		questions = append(questions, question)
	}
	return questions, rows.Err()
}

// UpsertStage inserts or replaces a stage by id
func (dao *ConfigDao) UpsertStage(ctx context.Context, stage *models.Stage) error {
	activationRulesJSON, _ := json.Marshal(stage.ActivationRules)
	sectionIDsJSON, _ := json.Marshal(stage.SectionIDs)

	query := `
		INSERT INTO workflow.stages (
			id, name, description, activation_rules, section_ids,
			stage_type, status, display_order, visible_to_installer, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			activation_rules = EXCLUDED.activation_rules,
			section_ids = EXCLUDED.section_ids,
			stage_type = EXCLUDED.stage_type,
			status = EXCLUDED.status,
			display_order = EXCLUDED.display_order,
			visible_to_installer = EXCLUDED.visible_to_installer,
			updated_at = NOW()`

	_, err := dao.DB.ExecContext(ctx, query,
		stage.ID, stage.Name, stage.Description, string(activationRulesJSON), string(sectionIDsJSON),
		stage.StageType, stage.Status, stage.Order, stage.IsVisibleToInstaller)
	if err != nil {
		dao.Logger.WithFields(logrus.Fields{
			"stage_id": stage.ID,
			"error":    err.Error(),
		}).Error("Failed to upsert stage")
		return fmt.Errorf("failed to upsert stage %s: %w", stage.ID, err)
	}
	return nil
}

// UpsertSection inserts or replaces a section by id
func (dao *ConfigDao) UpsertSection(ctx context.Context, section *models.Section) error {
	requiredJSON, _ := json.Marshal(section.RequiredQuestionIDs)
	optionalJSON, _ := json.Marshal(section.OptionalQuestionIDs)
	orderJSON, _ := json.Marshal(section.QuestionOrder)
	dependsJSON, _ := json.Marshal(section.DependsOnSectionIDs)
	ruleJSON, _ := json.Marshal(section.ConditionalRule)

	query := `
		INSERT INTO workflow.sections (
			id, name, description, required_question_ids, optional_question_ids,
			question_order, depends_on_section_ids, conditional_rule, status, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			required_question_ids = EXCLUDED.required_question_ids,
			optional_question_ids = EXCLUDED.optional_question_ids,
			question_order = EXCLUDED.question_order,
			depends_on_section_ids = EXCLUDED.depends_on_section_ids,
			conditional_rule = EXCLUDED.conditional_rule,
			status = EXCLUDED.status,
			updated_at = NOW()`

	_, err := dao.DB.ExecContext(ctx, query,
		section.ID, section.Name, section.Description, string(requiredJSON), string(optionalJSON),
		string(orderJSON), string(dependsJSON), string(ruleJSON), section.Status)
	if err != nil {
		dao.Logger.WithFields(logrus.Fields{
			"section_id": section.ID,
			"error":      err.Error(),
		}).Error("Failed to upsert section")
		return fmt.Errorf("failed to upsert section %s: %w", section.ID, err)
	}
	return nil
}

// UpsertQuestion inserts or replaces a question by id
func (dao *ConfigDao) UpsertQuestion(ctx context.Context, question *models.Question) error {
	ruleJSON, _ := json.Marshal(question.ConditionalRule)
	fileTypesJSON, _ := json.Marshal(question.AllowedFileTypes)
	optionsJSON, _ := json.Marshal(question.Options)

	var mappedField sql.NullString
	if question.MappedField != nil {
		mappedField = sql.NullString{String: *question.MappedField, Valid: true}
	}
	var maxFileSize sql.NullInt64
	if question.MaxFileSizeMB != nil {
		maxFileSize = sql.NullInt64{Int64: int64(*question.MaxFileSizeMB), Valid: true}
	}

	query := `
		INSERT INTO workflow.questions (
			id, label, instructions, question_type, data_type, mapped_field,
			requires_approval, conditional_rule, allowed_file_types, max_file_size_mb, options, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (id) DO UPDATE SET
			label = EXCLUDED.label,
			instructions = EXCLUDED.instructions,
			question_type = EXCLUDED.question_type,
			data_type = EXCLUDED.data_type,
			mapped_field = EXCLUDED.mapped_field,
			requires_approval = EXCLUDED.requires_approval,
			conditional_rule = EXCLUDED.conditional_rule,
			allowed_file_types = EXCLUDED.allowed_file_types,
			max_file_size_mb = EXCLUDED.max_file_size_mb,
			options = EXCLUDED.options,
			updated_at = NOW()`

	_, err := dao.DB.ExecContext(ctx, query,
		question.ID, question.Label, question.Instructions, question.QuestionType, question.DataType,
		mappedField, question.RequiresApproval, string(ruleJSON), string(fileTypesJSON), maxFileSize, string(optionsJSON))
	if err != nil {
		dao.Logger.WithFields(logrus.Fields{
			"question_id": question.ID,
			"error":       err.Error(),
		}).Error("Failed to upsert question")
		return fmt.Errorf("failed to upsert question %s: %w", question.ID, err)
	}
	return nil
}

// DeleteStage removes a stage by id
func (dao *ConfigDao) DeleteStage(ctx context.Context, stageID string) error {
	return dao.deleteByID(ctx, "workflow.stages", "stage", stageID)
}

// DeleteSection removes a section by id
func (dao *ConfigDao) DeleteSection(ctx context.Context, sectionID string) error {
	return dao.deleteByID(ctx, "workflow.sections", "section", sectionID)
}

// DeleteQuestion removes a question by id. The caller is responsible for the
// referential-integrity check against conditional rules before deleting.
func (dao *ConfigDao) DeleteQuestion(ctx context.Context, questionID string) error {
	return dao.deleteByID(ctx, "workflow.questions", "question", questionID)
}

func (dao *ConfigDao) deleteByID(ctx context.Context, table, kind, id string) error {
	result, err := dao.DB.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", table), id)
	if err != nil {
		dao.Logger.WithFields(logrus.Fields{
			"entity_id": id,
			"error":     err.Error(),
		}).Error("Failed to delete " + kind)
		return fmt.Errorf("failed to delete %s %s: %w", kind, id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", kind, id, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
