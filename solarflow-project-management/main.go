package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"

	"solarflow/lib/api"
	"solarflow/lib/auth"
	"solarflow/lib/clients"
	"solarflow/lib/constants"
	"solarflow/lib/data"
	"solarflow/lib/models"
	"solarflow/lib/util"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"
)

var (
	logger            *logrus.Logger
	isLocal           bool
	ssmRepository     data.SSMRepository
	ssmParams         map[string]string
	sqlDB             *sql.DB
	projectRepository data.ProjectRepository
	configRepository  data.ConfigRepository
)

// Handler processes API Gateway requests for project management operations
func Handler(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger.WithFields(logrus.Fields{
		"method":    request.HTTPMethod,
		"resource":  request.Resource,
		"operation": "Handler",
	}).Debug("Processing project management request")

	claims, err := auth.ExtractClaimsFromRequest(request)
	if err != nil {
		logger.WithError(err).Error("Authentication failed")
		return api.ErrorResponse(http.StatusUnauthorized, "Authentication failed", logger), nil
	}

	switch {
	case request.Resource == "/credit-approvals" && request.HTTPMethod == "GET":
		return handleGetCreditApprovals(ctx, claims)
	case request.Resource == "/projects" && request.HTTPMethod == "POST":
		return handleCreateProject(ctx, request, claims)
	case request.Resource == "/projects" && request.HTTPMethod == "GET":
		return handleGetProjects(ctx, claims)
	case request.Resource == "/projects/{projectId}" && request.HTTPMethod == "GET":
		return handleGetProject(ctx, request, claims)

	default:
		logger.WithFields(logrus.Fields{
			"method":    request.HTTPMethod,
			"resource":  request.Resource,
			"operation": "Handler",
		}).Warn("Endpoint not found")
		return api.ErrorResponse(http.StatusNotFound, "Endpoint not found", logger), nil
	}
}

// handleGetCreditApprovals lists the approved credit approvals an installer
// can start a project from.
func handleGetCreditApprovals(ctx context.Context, claims *auth.Claims) (events.APIGatewayProxyResponse, error) {
	approvals, err := projectRepository.GetApprovedCreditApprovals(ctx, claims.OrgID)
	if err != nil {
		logger.WithError(err).Error("Failed to get credit approvals")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to get credit approvals", logger), nil
	}
	return api.SuccessResponse(http.StatusOK, map[string]interface{}{
		"credit_approvals": approvals,
		"total":            len(approvals),
	}, logger), nil
}

// handleCreateProject creates a customer and project from an approved credit
// approval. The initial active stage is the first installer-visible stage by
// display order; evaluation recomputes the set on every submission.
func handleCreateProject(ctx context.Context, request events.APIGatewayProxyRequest, claims *auth.Claims) (events.APIGatewayProxyResponse, error) {
	var createRequest models.CreateProjectRequest
	if err := api.ParseJSONBody(request.Body, &createRequest); err != nil {
		logger.WithError(err).Error("Invalid request body for create project")
		return api.ErrorResponse(http.StatusBadRequest, "Invalid request body", logger), nil
	}

	if createRequest.CreditApprovalID == "" {
		return api.ValidationErrorResponse("Project is invalid", []string{"credit_approval_id is required."}, logger), nil
	}

	approval, err := projectRepository.GetCreditApprovalByID(ctx, createRequest.CreditApprovalID)
	if err != nil {
		logger.WithError(err).Error("Credit approval lookup failed")
		return api.ErrorResponse(http.StatusNotFound, "Credit approval not found", logger), nil
	}
	if approval.OrganizationID != claims.OrgID && !claims.IsAdmin {
		return api.ErrorResponse(http.StatusForbidden, "Credit approval belongs to another organization", logger), nil
	}
	if approval.Status != models.CreditApprovalStatusApproved {
		return api.ErrorResponse(http.StatusConflict, "Credit approval is not approved", logger), nil
	}

	initialStages, err := initialActiveStages(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to derive initial stages")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to create project", logger), nil
	}

	project, err := projectRepository.CreateProject(ctx, approval.OrganizationID, &createRequest, approval, initialStages)
	if err != nil {
		logger.WithError(err).Error("Failed to create project")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to create project", logger), nil
	}

	return api.SuccessResponse(http.StatusCreated, project, logger), nil
}

// initialActiveStages seeds a new project with the first installer-visible
// stage by display order.
func initialActiveStages(ctx context.Context) ([]string, error) {
	stages, err := configRepository.GetStages(ctx)
	if err != nil {
		return nil, err
	}

	var visible []models.Stage
	for _, stage := range stages {
		if stage.IsVisibleToInstaller && stage.Status != models.StatusDraft {
			visible = append(visible, stage)
		}
	}
	if len(visible) == 0 {
		return []string{}, nil
	}
	sort.SliceStable(visible, func(i, j int) bool { return visible[i].Order < visible[j].Order })
	return []string{visible[0].ID}, nil
}

func handleGetProjects(ctx context.Context, claims *auth.Claims) (events.APIGatewayProxyResponse, error) {
	projects, err := projectRepository.GetProjectsByOrg(ctx, claims.OrgID)
	if err != nil {
		logger.WithError(err).Error("Failed to get projects")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to get projects", logger), nil
	}

	response := models.ProjectListResponse{
		Projects: projects,
		Total:    len(projects),
	}
	return api.SuccessResponse(http.StatusOK, response, logger), nil
}

func handleGetProject(ctx context.Context, request events.APIGatewayProxyRequest, claims *auth.Claims) (events.APIGatewayProxyResponse, error) {
	projectID := request.PathParameters["projectId"]

	project, err := projectRepository.GetProjectByID(ctx, projectID, claims.OrgID)
	if err != nil {
		logger.WithError(err).Error("Failed to get project")
		return api.ErrorResponse(http.StatusNotFound, "Project not found", logger), nil
	}
	return api.SuccessResponse(http.StatusOK, project, logger), nil
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
}
