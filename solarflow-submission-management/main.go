package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path"
	"strconv"
	"time"

	"solarflow/lib/api"
	"solarflow/lib/auth"
	"solarflow/lib/clients"
	"solarflow/lib/constants"
	"solarflow/lib/data"
	"solarflow/lib/models"
	"solarflow/lib/util"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const presignExpiry = 15 * time.Minute

var (
	logger               *logrus.Logger
	isLocal              bool
	ssmRepository        data.SSMRepository
	ssmParams            map[string]string
	sqlDB                *sql.DB
	s3Client             clients.S3ClientInterface
	projectRepository    data.ProjectRepository
	configRepository     data.ConfigRepository
	submissionRepository data.SubmissionRepository
)

// Handler processes API Gateway requests for submissions: installers write
// answers, admins review them, and file-upload questions exchange presigned
// URLs with S3.
func Handler(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger.WithFields(logrus.Fields{
		"method":    request.HTTPMethod,
		"resource":  request.Resource,
		"operation": "Handler",
	}).Debug("Processing submission request")

	claims, err := auth.ExtractClaimsFromRequest(request)
	if err != nil {
		logger.WithError(err).Error("Authentication failed")
		return api.ErrorResponse(http.StatusUnauthorized, "Authentication failed", logger), nil
	}

	switch {
	case request.Resource == "/projects/{projectId}/submissions" && request.HTTPMethod == "GET":
		return handleGetSubmissions(ctx, request, claims)
	case request.Resource == "/projects/{projectId}/submissions" && request.HTTPMethod == "POST":
		return handleSubmitAnswer(ctx, request, claims)
	case request.Resource == "/projects/{projectId}/submissions/pending" && request.HTTPMethod == "GET":
		return handleGetPendingSubmissions(ctx, request, claims)
	case request.Resource == "/projects/{projectId}/submissions/{questionId}/review" && request.HTTPMethod == "POST":
		return handleReviewSubmission(ctx, request, claims)
	case request.Resource == "/projects/{projectId}/uploads" && request.HTTPMethod == "POST":
		return handleCreateUploadURL(ctx, request, claims)
	case request.Resource == "/projects/{projectId}/submissions/{questionId}/download" && request.HTTPMethod == "GET":
		return handleCreateDownloadURL(ctx, request, claims)

	default:
		logger.WithFields(logrus.Fields{
			"method":    request.HTTPMethod,
			"resource":  request.Resource,
			"operation": "Handler",
		}).Warn("Endpoint not found")
		return api.ErrorResponse(http.StatusNotFound, "Endpoint not found", logger), nil
	}
}

// resolveProject scopes access: installers see only their organization's
// projects, admins see all.
func resolveProject(ctx context.Context, request events.APIGatewayProxyRequest, claims *auth.Claims) (*models.Project, error) {
	projectID := request.PathParameters["projectId"]
	if claims.IsAdmin {
		return projectRepository.GetProject(ctx, projectID)
	}
	return projectRepository.GetProjectByID(ctx, projectID, claims.OrgID)
}

func handleGetSubmissions(ctx context.Context, request events.APIGatewayProxyRequest, claims *auth.Claims) (events.APIGatewayProxyResponse, error) {
	project, err := resolveProject(ctx, request, claims)
	if err != nil {
		return api.ErrorResponse(http.StatusNotFound, "Project not found", logger), nil
	}

	submissions, err := submissionRepository.GetSubmissionsByProject(ctx, project.ID)
	if err != nil {
		logger.WithError(err).Error("Failed to get submissions")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to get submissions", logger), nil
	}
	return api.SuccessResponse(http.StatusOK, models.SubmissionListResponse{Submissions: submissions, Total: len(submissions)}, logger), nil
}

// handleSubmitAnswer writes one answer. File-upload questions must carry a
// file reference whose object already exists; intake constraints are checked
// here, never re-checked by the engine.
func handleSubmitAnswer(ctx context.Context, request events.APIGatewayProxyRequest, claims *auth.Claims) (events.APIGatewayProxyResponse, error) {
	project, err := resolveProject(ctx, request, claims)
	if err != nil {
		return api.ErrorResponse(http.StatusNotFound, "Project not found", logger), nil
	}

	var submitRequest models.SubmitAnswerRequest
	if err := api.ParseJSONBody(request.Body, &submitRequest); err != nil {
		logger.WithError(err).Error("Invalid request body for submit answer")
		return api.ErrorResponse(http.StatusBadRequest, "Invalid request body", logger), nil
	}
	if submitRequest.QuestionID == "" {
		return api.ValidationErrorResponse("Submission is invalid", []string{"question_id is required."}, logger), nil
	}

	question, err := findQuestion(ctx, submitRequest.QuestionID)
	if err != nil {
		return api.ErrorResponse(http.StatusNotFound, "Question not found", logger), nil
	}

	if question.QuestionType == models.QuestionTypeFileUpload {
		if validationErrors := validateFileIntake(question, submitRequest.File); len(validationErrors) > 0 {
			return api.ValidationErrorResponse("File upload is invalid", validationErrors, logger), nil
		}
	} else if submitRequest.Value == nil {
		return api.ValidationErrorResponse("Submission is invalid", []string{"value is required."}, logger), nil
	}

	submission, err := submissionRepository.SubmitAnswer(ctx, project.ID, claims.UserID, &submitRequest)
	if err != nil {
		logger.WithError(err).Error("Failed to submit answer")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to submit answer", logger), nil
	}

	logger.WithFields(logrus.Fields{
		"project_id":  project.ID,
		"question_id": submitRequest.QuestionID,
		"operation":   "handleSubmitAnswer",
	}).Info("Answer submitted")
	return api.SuccessResponse(http.StatusOK, submission, logger), nil
}

func handleGetPendingSubmissions(ctx context.Context, request events.APIGatewayProxyRequest, claims *auth.Claims) (events.APIGatewayProxyResponse, error) {
	if !claims.IsAdmin {
		return api.ErrorResponse(http.StatusForbidden, "Review requires admin access", logger), nil
	}

	projectID := request.PathParameters["projectId"]
	submissions, err := submissionRepository.GetPendingSubmissions(ctx, projectID)
	if err != nil {
		logger.WithError(err).Error("Failed to get pending submissions")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to get pending submissions", logger), nil
	}
	return api.SuccessResponse(http.StatusOK, models.SubmissionListResponse{Submissions: submissions, Total: len(submissions)}, logger), nil
}

func handleReviewSubmission(ctx context.Context, request events.APIGatewayProxyRequest, claims *auth.Claims) (events.APIGatewayProxyResponse, error) {
	if !claims.IsAdmin {
		return api.ErrorResponse(http.StatusForbidden, "Review requires admin access", logger), nil
	}

	projectID := request.PathParameters["projectId"]
	questionID := request.PathParameters["questionId"]

	var reviewRequest models.ReviewSubmissionRequest
	if err := api.ParseJSONBody(request.Body, &reviewRequest); err != nil {
		logger.WithError(err).Error("Invalid request body for review")
		return api.ErrorResponse(http.StatusBadRequest, "Invalid request body", logger), nil
	}

	submission, err := submissionRepository.ReviewSubmission(ctx, projectID, questionID, claims.UserID, &reviewRequest)
	if err != nil {
		logger.WithError(err).Error("Failed to review submission")
		return api.ErrorResponse(http.StatusConflict, err.Error(), logger), nil
	}

	logger.WithFields(logrus.Fields{
		"project_id":  projectID,
		"question_id": questionID,
		"decision":    reviewRequest.Decision,
		"operation":   "handleReviewSubmission",
	}).Info("Submission reviewed")
	return api.SuccessResponse(http.StatusOK, submission, logger), nil
}

// uploadURLRequest asks for a presigned PUT URL for a file-upload answer
type uploadURLRequest struct {
	QuestionID  string `json:"question_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

func handleCreateUploadURL(ctx context.Context, request events.APIGatewayProxyRequest, claims *auth.Claims) (events.APIGatewayProxyResponse, error) {
	project, err := resolveProject(ctx, request, claims)
	if err != nil {
		return api.ErrorResponse(http.StatusNotFound, "Project not found", logger), nil
	}

	var uploadRequest uploadURLRequest
	if err := api.ParseJSONBody(request.Body, &uploadRequest); err != nil {
		logger.WithError(err).Error("Invalid request body for upload URL")
		return api.ErrorResponse(http.StatusBadRequest, "Invalid request body", logger), nil
	}

	question, err := findQuestion(ctx, uploadRequest.QuestionID)
	if err != nil {
		return api.ErrorResponse(http.StatusNotFound, "Question not found", logger), nil
	}
	if question.QuestionType != models.QuestionTypeFileUpload {
		return api.ErrorResponse(http.StatusBadRequest, "Question does not accept file uploads", logger), nil
	}

	reference := &models.FileReference{
		StoragePath: path.Join("projects", project.ID, uploadRequest.QuestionID, uuid.NewString(), uploadRequest.Filename),
		Filename:    uploadRequest.Filename,
		ContentType: uploadRequest.ContentType,
		SizeBytes:   uploadRequest.SizeBytes,
	}
	if validationErrors := validateFileIntake(question, reference); len(validationErrors) > 0 {
		return api.ValidationErrorResponse("File upload is invalid", validationErrors, logger), nil
	}

	uploadURL, err := s3Client.GenerateUploadURL(reference.StoragePath, reference.ContentType, presignExpiry)
	if err != nil {
		logger.WithError(err).Error("Failed to generate upload URL")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to generate upload URL", logger), nil
	}

	return api.SuccessResponse(http.StatusOK, map[string]interface{}{
		"upload_url":     uploadURL,
		"file_reference": reference,
	}, logger), nil
}

func handleCreateDownloadURL(ctx context.Context, request events.APIGatewayProxyRequest, claims *auth.Claims) (events.APIGatewayProxyResponse, error) {
	project, err := resolveProject(ctx, request, claims)
	if err != nil {
		return api.ErrorResponse(http.StatusNotFound, "Project not found", logger), nil
	}

	questionID := request.PathParameters["questionId"]
	submissions, err := submissionRepository.GetSubmissionsByProject(ctx, project.ID)
	if err != nil {
		logger.WithError(err).Error("Failed to get submissions")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to get submission", logger), nil
	}

	for i := range submissions {
		if submissions[i].QuestionID == questionID && submissions[i].File != nil {
			downloadURL, err := s3Client.GenerateDownloadURL(submissions[i].File.StoragePath, presignExpiry)
			if err != nil {
				logger.WithError(err).Error("Failed to generate download URL")
				return api.ErrorResponse(http.StatusInternalServerError, "Failed to generate download URL", logger), nil
			}
			return api.SuccessResponse(http.StatusOK, map[string]string{"download_url": downloadURL}, logger), nil
		}
	}
	return api.ErrorResponse(http.StatusNotFound, "No file submission for question", logger), nil
}

func findQuestion(ctx context.Context, questionID string) (*models.Question, error) {
	questions, err := configRepository.GetQuestions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range questions {
		if questions[i].ID == questionID {
			return &questions[i], nil
		}
	}
	return nil, fmt.Errorf("question %s not found", questionID)
}

// validateFileIntake checks intake constraints for a file answer. These are
// enforced once here at submission time.
func validateFileIntake(question *models.Question, file *models.FileReference) []string {
	errors := []string{}
	if file == nil {
		return append(errors, "file reference is required for file upload questions.")
	}
	if file.StoragePath == "" || file.Filename == "" {
		errors = append(errors, "file reference must carry a storage path and filename.")
	}
	if question.MaxFileSizeMB != nil && file.SizeBytes > int64(*question.MaxFileSizeMB)*1024*1024 {
		errors = append(errors, fmt.Sprintf("file exceeds the %d MB limit.", *question.MaxFileSizeMB))
	}
	if len(question.AllowedFileTypes) > 0 {
		allowed := false
		for _, contentType := range question.AllowedFileTypes {
			if contentType == file.ContentType {
				allowed = true
				break
			}
		}
		if !allowed {
			errors = append(errors, fmt.Sprintf("content type %q is not allowed.", file.ContentType))
		}
	}
	return errors
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

	s3Client = clients.NewS3Client(isLocal, ssmParams[constants.UPLOADS_BUCKET])
	projectRepository = data.NewProjectRepository(sqlDB, logger)
	configRepository = data.NewConfigRepository(sqlDB, logger)
	submissionRepository = data.NewSubmissionRepository(sqlDB, logger)
}
