package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"solarflow/lib/api"
	"solarflow/lib/auth"
	"solarflow/lib/clients"
	"solarflow/lib/constants"
	"solarflow/lib/data"
	"solarflow/lib/models"
	"solarflow/lib/util"
	"solarflow/lib/validation"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	logger           *logrus.Logger
	isLocal          bool
	ssmRepository    data.SSMRepository
	ssmParams        map[string]string
	sqlDB            *sql.DB
	configRepository data.ConfigRepository
)

// Handler processes API Gateway requests for workflow configuration.
// All configuration endpoints are admin-only.
func Handler(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger.WithFields(logrus.Fields{
		"method":    request.HTTPMethod,
		"resource":  request.Resource,
		"operation": "Handler",
	}).Debug("Processing configuration request")

	claims, err := auth.ExtractClaimsFromRequest(request)
	if err != nil {
		logger.WithError(err).Error("Authentication failed")
		return api.ErrorResponse(http.StatusUnauthorized, "Authentication failed", logger), nil
	}

	if !claims.IsAdmin {
		logger.WithField("user_id", claims.UserID).Warn("Non-admin attempted configuration change")
		return api.ErrorResponse(http.StatusForbidden, "Configuration requires admin access", logger), nil
	}

	switch {
	case request.Resource == "/config/questions" && request.HTTPMethod == "GET":
		return handleGetQuestions(ctx)
	case request.Resource == "/config/questions" && request.HTTPMethod == "POST":
		return handleSaveQuestion(ctx, request)
	case request.Resource == "/config/questions/{questionId}" && request.HTTPMethod == "DELETE":
		return handleDeleteQuestion(ctx, request)

	case request.Resource == "/config/sections" && request.HTTPMethod == "GET":
		return handleGetSections(ctx)
	case request.Resource == "/config/sections" && request.HTTPMethod == "POST":
		return handleSaveSection(ctx, request)
	case request.Resource == "/config/sections/{sectionId}" && request.HTTPMethod == "DELETE":
		return handleDeleteSection(ctx, request)

	case request.Resource == "/config/stages" && request.HTTPMethod == "GET":
		return handleGetStages(ctx)
	case request.Resource == "/config/stages" && request.HTTPMethod == "POST":
		return handleSaveStage(ctx, request)
	case request.Resource == "/config/stages/{stageId}" && request.HTTPMethod == "DELETE":
		return handleDeleteStage(ctx, request)

	default:
		logger.WithFields(logrus.Fields{
			"method":    request.HTTPMethod,
			"resource":  request.Resource,
			"operation": "Handler",
		}).Warn("Endpoint not found")
		return api.ErrorResponse(http.StatusNotFound, "Endpoint not found", logger), nil
	}
}

func handleGetQuestions(ctx context.Context) (events.APIGatewayProxyResponse, error) {
	questions, err := configRepository.GetQuestions(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to get questions")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to get questions", logger), nil
	}
	return api.SuccessResponse(http.StatusOK, models.QuestionListResponse{Questions: questions, Total: len(questions)}, logger), nil
}

// handleSaveQuestion upserts a question. New questions get a generated id
// and a storage type derived from the input type.
func handleSaveQuestion(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var question models.Question
	if err := api.ParseJSONBody(request.Body, &question); err != nil {
		logger.WithError(err).Error("Invalid request body for save question")
		return api.ErrorResponse(http.StatusBadRequest, "Invalid request body", logger), nil
	}

	if question.Label == "" {
		return api.ValidationErrorResponse("Question is invalid", []string{"Label is required."}, logger), nil
	}
	if question.ID == "" {
		question.ID = "q_" + uuid.NewString()
	}
	question.DataType = models.StorageDataType(question.QuestionType)

	if err := configRepository.UpsertQuestion(ctx, &question); err != nil {
		logger.WithError(err).Error("Failed to save question")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to save question", logger), nil
	}
	return api.SuccessResponse(http.StatusOK, question, logger), nil
}

// handleDeleteQuestion refuses deletion while any question or section
// conditional rule still references the question.
func handleDeleteQuestion(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	questionID := request.PathParameters["questionId"]

	questions, err := configRepository.GetQuestions(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to load questions for delete check")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to delete question", logger), nil
	}
	sections, err := configRepository.GetSections(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to load sections for delete check")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to delete question", logger), nil
	}

	if refs := validation.QuestionReferences(questionID, questions, sections); len(refs) > 0 {
		message := fmt.Sprintf("Question is referenced by %s and cannot be deleted.", strings.Join(refs, ", "))
		return api.ValidationErrorResponse(message, refs, logger), nil
	}

	if err := configRepository.DeleteQuestion(ctx, questionID); err != nil {
		if err == sql.ErrNoRows {
			return api.ErrorResponse(http.StatusNotFound, "Question not found", logger), nil
		}
		logger.WithError(err).Error("Failed to delete question")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to delete question", logger), nil
	}
	return api.SuccessResponse(http.StatusOK, map[string]string{"deleted": questionID}, logger), nil
}

func handleGetSections(ctx context.Context) (events.APIGatewayProxyResponse, error) {
	sections, err := configRepository.GetSections(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to get sections")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to get sections", logger), nil
	}
	return api.SuccessResponse(http.StatusOK, models.SectionListResponse{Sections: sections, Total: len(sections)}, logger), nil
}

// handleSaveSection validates dependencies and question references against
// the prospective post-save graph before persisting.
func handleSaveSection(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var section models.Section
	if err := api.ParseJSONBody(request.Body, &section); err != nil {
		logger.WithError(err).Error("Invalid request body for save section")
		return api.ErrorResponse(http.StatusBadRequest, "Invalid request body", logger), nil
	}

	if section.ID == "" {
		section.ID = "sec_" + uuid.NewString()
	}
	if section.Status == "" {
		section.Status = models.StatusDraft
	}
	if section.RequiredQuestionIDs == nil {
		section.RequiredQuestionIDs = []string{}
	}
	if section.OptionalQuestionIDs == nil {
		section.OptionalQuestionIDs = []string{}
	}

	allSections, err := configRepository.GetSections(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to load sections for validation")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to save section", logger), nil
	}
	allQuestions, err := configRepository.GetQuestions(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to load questions for validation")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to save section", logger), nil
	}

	validationErrors := validation.ValidateSectionDependencies(&section, allSections)
	validationErrors = append(validationErrors, validation.ValidateSectionContent(&section, allQuestions)...)
	if len(validationErrors) > 0 {
		logger.WithFields(logrus.Fields{
			"section_id": section.ID,
			"errors":     validationErrors,
		}).Warn("Section failed validation")
		return api.ValidationErrorResponse("Section configuration is invalid", validationErrors, logger), nil
	}

	if err := configRepository.UpsertSection(ctx, &section); err != nil {
		logger.WithError(err).Error("Failed to save section")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to save section", logger), nil
	}
	return api.SuccessResponse(http.StatusOK, section, logger), nil
}

func handleDeleteSection(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	sectionID := request.PathParameters["sectionId"]
	if err := configRepository.DeleteSection(ctx, sectionID); err != nil {
		if err == sql.ErrNoRows {
			return api.ErrorResponse(http.StatusNotFound, "Section not found", logger), nil
		}
		logger.WithError(err).Error("Failed to delete section")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to delete section", logger), nil
	}
	return api.SuccessResponse(http.StatusOK, map[string]string{"deleted": sectionID}, logger), nil
}

func handleGetStages(ctx context.Context) (events.APIGatewayProxyResponse, error) {
	stages, err := configRepository.GetStages(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to get stages")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to get stages", logger), nil
	}
	return api.SuccessResponse(http.StatusOK, models.StageListResponse{Stages: stages, Total: len(stages)}, logger), nil
}

// handleSaveStage applies the same acyclic check to the stage activation graph
func handleSaveStage(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var stage models.Stage
	if err := api.ParseJSONBody(request.Body, &stage); err != nil {
		logger.WithError(err).Error("Invalid request body for save stage")
		return api.ErrorResponse(http.StatusBadRequest, "Invalid request body", logger), nil
	}

	if stage.ID == "" {
		stage.ID = "stg_" + uuid.NewString()
	}
	if stage.Status == "" {
		stage.Status = models.StatusDraft
	}
	if stage.StageType == "" {
		stage.StageType = models.StageTypeTerminal
	}
	if stage.SectionIDs == nil {
		stage.SectionIDs = []string{}
	}

	allStages, err := configRepository.GetStages(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to load stages for validation")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to save stage", logger), nil
	}

	if validationErrors := validation.ValidateStageDependencies(&stage, allStages); len(validationErrors) > 0 {
		logger.WithFields(logrus.Fields{
			"stage_id": stage.ID,
			"errors":   validationErrors,
		}).Warn("Stage failed validation")
		return api.ValidationErrorResponse("Stage configuration is invalid", validationErrors, logger), nil
	}

	if err := configRepository.UpsertStage(ctx, &stage); err != nil {
		logger.WithError(err).Error("Failed to save stage")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to save stage", logger), nil
	}
	return api.SuccessResponse(http.StatusOK, stage, logger), nil
}

func handleDeleteStage(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	stageID := request.PathParameters["stageId"]
	if err := configRepository.DeleteStage(ctx, stageID); err != nil {
		if err == sql.ErrNoRows {
			return api.ErrorResponse(http.StatusNotFound, "Stage not found", logger), nil
		}
		logger.WithError(err).Error("Failed to delete stage")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to delete stage", logger), nil
	}
	return api.SuccessResponse(http.StatusOK, map[string]string{"deleted": stageID}, logger), nil
}

func setupPostgresSQLClient(ssmParams map[string]string) error {
	var err error

	sqlDB, err = clients.NewPostgresSQLClient(
		ssmParams[constants.DATABASE_RDS_ENDPOINT],
		ssmParams[constants.DATABASE_PORT],
		ssmParams[constants.DATABASE_NAME],
		ssmParams[constants.DATABASE_USERNAME],
		ssmParams[constants.DATABASE_PASSWORD],
		ssmParams[constants.SSL_MODE],
	)
	if err != nil {
		return fmt.Errorf("error creating PostgreSQL client: %w", err)
	}
	return nil
}

// main is the Lambda function entry point
func main() {
	lambda.Start(Handler)
}

// init initializes the Lambda function during cold start
func init() {
	var err error

	isLocal, _ = strconv.ParseBool(os.Getenv("IS_LOCAL"))

	logger = logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	util.SetLogLevel(logger, os.Getenv("LOG_LEVEL"))

	ssmClient := clients.NewSSMClient(isLocal)
	ssmRepository = &data.SSMDao{
		SSM:    ssmClient,
		Logger: logger,
	}

	ssmParams, err = ssmRepository.GetParameters()
	if err != nil {
		logger.WithFields(logrus.Fields{
			"operation": "init",
			"error":     err.Error(),
		}).Fatal("Error while getting SSM params from parameter store")
	}

	if err = setupPostgresSQLClient(ssmParams); err != nil {
		logger.WithFields(logrus.Fields{
			"operation": "init",
			"error":     err.Error(),
		}).Fatal("Error setting up PostgreSQL client")
	}

	configRepository = data.NewConfigRepository(sqlDB, logger)
}
