package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"solarflow/lib/api"
	"solarflow/lib/auth"
	"solarflow/lib/clients"
	"solarflow/lib/constants"
	"solarflow/lib/data"
	"solarflow/lib/engine"
	"solarflow/lib/models"
	"solarflow/lib/util"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"
)

var (
	logger               *logrus.Logger
	isLocal              bool
	ssmRepository        data.SSMRepository
	ssmParams            map[string]string
	sqlDB                *sql.DB
	projectRepository    data.ProjectRepository
	configRepository     data.ConfigRepository
	submissionRepository data.SubmissionRepository
	snapshotLoader       *data.SnapshotLoader
)

// Handler processes evaluation requests. Derived state is recomputed from a
// fresh snapshot on every call; the active-stage cache written back to the
// project row exists only for list views.
func Handler(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger.WithFields(logrus.Fields{
		"method":    request.HTTPMethod,
		"resource":  request.Resource,
		"operation": "Handler",
	}).Debug("Processing evaluation request")

	claims, err := auth.ExtractClaimsFromRequest(request)
	if err != nil {
		logger.WithError(err).Error("Authentication failed")
		return api.ErrorResponse(http.StatusUnauthorized, "Authentication failed", logger), nil
	}

	switch {
	case request.Resource == "/projects/{projectId}/evaluation" && request.HTTPMethod == "GET":
		return handleEvaluateProject(ctx, request, claims)
	case request.Resource == "/evaluation/debug" && request.HTTPMethod == "POST":
		return handleEvaluateContext(request, claims)

	default:
		logger.WithFields(logrus.Fields{
			"method":    request.HTTPMethod,
			"resource":  request.Resource,
			"operation": "Handler",
		}).Warn("Endpoint not found")
		return api.ErrorResponse(http.StatusNotFound, "Endpoint not found", logger), nil
	}
}

func handleEvaluateProject(ctx context.Context, request events.APIGatewayProxyRequest, claims *auth.Claims) (events.APIGatewayProxyResponse, error) {
	projectID := request.PathParameters["projectId"]

	var project *models.Project
	var err error
	if claims.IsAdmin {
		project, err = projectRepository.GetProject(ctx, projectID)
	} else {
		project, err = projectRepository.GetProjectByID(ctx, projectID, claims.OrgID)
	}
	if err != nil {
		return api.ErrorResponse(http.StatusNotFound, "Project not found", logger), nil
	}

	snapshot, err := snapshotLoader.GetEvaluationContext(ctx, project.ID, project.OrganizationID)
	if err != nil {
		logger.WithError(err).Error("Failed to load evaluation snapshot")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to load evaluation snapshot", logger), nil
	}

	result, err := engine.Evaluate(snapshot)
	if err != nil {
		logger.WithError(err).Error("Evaluation rejected snapshot")
		return api.ErrorResponse(http.StatusUnprocessableEntity, err.Error(), logger), nil
	}

	// Write back the derived cache; a failure here does not invalidate the
	// freshly computed result.
	if err := projectRepository.UpdateActiveStages(ctx, project.ID, result.ActiveStages); err != nil {
		logger.WithFields(logrus.Fields{
			"project_id": project.ID,
			"error":      err.Error(),
		}).Warn("Failed to persist derived active stages")
	}

	logger.WithFields(logrus.Fields{
		"project_id":         project.ID,
		"is_eligible":        result.IsEligible,
		"active_stages":      len(result.ActiveStages),
		"completed_sections": len(result.CompletedSections),
		"required_actions":   len(result.RequiredActions),
		"operation":          "handleEvaluateProject",
	}).Info("Project evaluated")
	return api.SuccessResponse(http.StatusOK, result, logger), nil
}

// handleEvaluateContext runs the engine on a caller-supplied context without
// touching storage, backing the evaluation debugger that round-trips a
// context as JSON.
func handleEvaluateContext(request events.APIGatewayProxyRequest, claims *auth.Claims) (events.APIGatewayProxyResponse, error) {
	if !claims.IsAdmin {
		return api.ErrorResponse(http.StatusForbidden, "Evaluation debugging requires admin access", logger), nil
	}

	var snapshot models.EvaluationContext
	if err := api.ParseJSONBody(request.Body, &snapshot); err != nil {
		logger.WithError(err).Error("Invalid evaluation context payload")
		return api.ErrorResponse(http.StatusBadRequest, "Invalid evaluation context payload", logger), nil
	}

	result, err := engine.Evaluate(&snapshot)
	if err != nil {
		return api.ErrorResponse(http.StatusUnprocessableEntity, err.Error(), logger), nil
	}
	return api.SuccessResponse(http.StatusOK, result, logger), nil
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

	projectRepository = data.NewProjectRepository(sqlDB, logger)
	configRepository = data.NewConfigRepository(sqlDB, logger)
	submissionRepository = data.NewSubmissionRepository(sqlDB, logger)
	snapshotLoader = &data.SnapshotLoader{
		Config:      configRepository,
		Projects:    projectRepository,
		Submissions: submissionRepository,
	}
}
