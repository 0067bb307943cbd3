package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"solarflow/lib/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// ProjectRepository defines the interface for project, customer and credit
// approval persistence.
type ProjectRepository interface {
	GetApprovedCreditApprovals(ctx context.Context, orgID string) ([]models.CreditApproval, error)
	GetCreditApprovalByID(ctx context.Context, approvalID string) (*models.CreditApproval, error)
	CreateProject(ctx context.Context, orgID string, req *models.CreateProjectRequest, approval *models.CreditApproval, initialStages []string) (*models.Project, error)
	GetProjectsByOrg(ctx context.Context, orgID string) ([]models.Project, error)
	GetProjectByID(ctx context.Context, projectID, orgID string) (*models.Project, error)
	GetProject(ctx context.Context, projectID string) (*models.Project, error)
	GetCustomerByID(ctx context.Context, customerID string) (*models.Customer, error)
	UpdateActiveStages(ctx context.Context, projectID string, activeStages []string) error
}

// ProjectDao implements ProjectRepository using PostgreSQL
type ProjectDao struct {
	DB     *sql.DB
	Logger *logrus.Logger
}

// NewProjectRepository creates a new ProjectRepository instance
func NewProjectRepository(db *sql.DB, logger *logrus.Logger) ProjectRepository {
	return &ProjectDao{
		DB:     db,
		Logger: logger,
	}
}

// GetApprovedCreditApprovals lists approved credit approvals for an
// organization, the starting point of the new-project flow.
func (dao *ProjectDao) GetApprovedCreditApprovals(ctx context.Context, orgID string) ([]models.CreditApproval, error) {
	query := `
		SELECT id, organization_id, status, approved_amount, customer_name,
		       customer_address, customer_phone, customer_email, source_system, created_at, expires_at
		FROM workflow.credit_approvals
		WHERE organization_id = $1 AND status = $2
		ORDER BY created_at DESC`

	rows, err := dao.DB.QueryContext(ctx, query, orgID, models.CreditApprovalStatusApproved)
	if err != nil {
		dao.Logger.WithError(err).Error("Failed to query credit approvals")
		return nil, fmt.Errorf("failed to get credit approvals: %w", err)
	}
	defer rows.Close()

	var approvals []models.CreditApproval
	for rows.Next() {
		approval, err := scanCreditApproval(rows)
		if err != nil {
			return nil, err
		}
		approvals = append(approvals, *approval)
	}
	return approvals, rows.Err()
}

// GetCreditApprovalByID fetches one credit approval
func (dao *ProjectDao) GetCreditApprovalByID(ctx context.Context, approvalID string) (*models.CreditApproval, error) {
	query := `
		SELECT id, organization_id, status, approved_amount, customer_name,
		       customer_address, customer_phone, customer_email, source_system, created_at, expires_at
		FROM workflow.credit_approvals
		WHERE id = $1`

	approval, err := scanCreditApproval(dao.DB.QueryRowContext(ctx, query, approvalID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("credit approval %s not found", approvalID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credit approval %s: %w", approvalID, err)
	}
	return approval, nil
}

// CreateProject creates the customer and project rows for an approved credit
// approval in one transaction.
func (dao *ProjectDao) CreateProject(ctx context.Context, orgID string, req *models.CreateProjectRequest, approval *models.CreditApproval, initialStages []string) (*models.Project, error) {
	tx, err := dao.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	customerName := req.CustomerName
	if customerName == "" {
		customerName = approval.CustomerName
	}
	customerAddress := req.CustomerAddress
	if customerAddress == "" {
		customerAddress = approval.CustomerAddress
	}
	contactInfoJSON, _ := json.Marshal(req.ContactInfo)

	customerID := "cust_" + uuid.NewString()
	customerQuery := `
		INSERT INTO workflow.customers (
			id, organization_id, credit_approval_id, name, address, contact_info, created_at, last_updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`
	if _, err := tx.ExecContext(ctx, customerQuery,
		customerID, orgID, approval.ID, customerName, customerAddress, string(contactInfoJSON), now); err != nil {
		dao.Logger.WithError(err).Error("Failed to create customer")
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	project := &models.Project{
		ID:               "proj_" + uuid.NewString(),
		OrganizationID:   orgID,
		CustomerID:       customerID,
		CreditApprovalID: approval.ID,
		Status:           "in_progress",
		SystemSize:       req.SystemSize,
		ActiveStages:     initialStages,
		CreatedAt:        now,
		LastUpdatedAt:    now,
	}
	projectQuery := `
		INSERT INTO workflow.projects (
			id, organization_id, customer_id, credit_approval_id, status,
			system_size, active_stages, created_at, last_updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`
	if _, err := tx.ExecContext(ctx, projectQuery,
		project.ID, orgID, customerID, approval.ID, project.Status,
		project.SystemSize, pq.Array(project.ActiveStages), now); err != nil {
		dao.Logger.WithError(err).Error("Failed to create project")
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit project creation: %w", err)
	}

	dao.Logger.WithFields(logrus.Fields{
		"project_id":  project.ID,
		"customer_id": customerID,
		"org_id":      orgID,
	}).Info("Project created")
	return project, nil
}

// GetProjectsByOrg returns all projects for an organization
func (dao *ProjectDao) GetProjectsByOrg(ctx context.Context, orgID string) ([]models.Project, error) {
	query := `
		SELECT id, organization_id, customer_id, credit_approval_id, status,
		       system_size, active_stages, created_at, last_updated_at
		FROM workflow.projects
		WHERE organization_id = $1
		ORDER BY created_at DESC`

	rows, err := dao.DB.QueryContext(ctx, query, orgID)
	if err != nil {
		dao.Logger.WithError(err).Error("Failed to query projects")
		return nil, fmt.Errorf("failed to get projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *project)
	}
	return projects, rows.Err()
}

// GetProjectByID fetches one project scoped to an organization
func (dao *ProjectDao) GetProjectByID(ctx context.Context, projectID, orgID string) (*models.Project, error) {
	query := `
		SELECT id, organization_id, customer_id, credit_approval_id, status,
		       system_size, active_stages, created_at, last_updated_at
		FROM workflow.projects
		WHERE id = $1 AND organization_id = $2`

	project, err := scanProject(dao.DB.QueryRowContext(ctx, query, projectID, orgID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %s not found", projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project %s: %w", projectID, err)
	}
	return project, nil
}

// GetProject fetches one project without organization scoping, for admin
// review and evaluation paths.
func (dao *ProjectDao) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	query := `
		SELECT id, organization_id, customer_id, credit_approval_id, status,
		       system_size, active_stages, created_at, last_updated_at
		FROM workflow.projects
		WHERE id = $1`

	project, err := scanProject(dao.DB.QueryRowContext(ctx, query, projectID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %s not found", projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project %s: %w", projectID, err)
	}
	return project, nil
}

// GetCustomerByID fetches one customer
func (dao *ProjectDao) GetCustomerByID(ctx context.Context, customerID string) (*models.Customer, error) {
	query := `
		SELECT id, organization_id, credit_approval_id, name, address, contact_info, created_at, last_updated_at
		FROM workflow.customers
		WHERE id = $1`

	var customer models.Customer
	var contactInfoJSON []byte
	err := dao.DB.QueryRowContext(ctx, query, customerID).Scan(
		&customer.ID, &customer.OrganizationID, &customer.CreditApprovalID,
		&customer.Name, &customer.Address, &contactInfoJSON, &customer.CreatedAt, &customer.LastUpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("customer %s not found", customerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer %s: %w", customerID, err)
	}
	if len(contactInfoJSON) > 0 {
		if err := json.Unmarshal(contactInfoJSON, &customer.ContactInfo); err != nil {
			return nil, fmt.Errorf("failed to decode contact info for customer %s: %w", customerID, err)
		}
	}
	return &customer, nil
}

// UpdateActiveStages writes back the derived active-stage cache after an
// evaluation. The stored value is never authoritative.
func (dao *ProjectDao) UpdateActiveStages(ctx context.Context, projectID string, activeStages []string) error {
	query := `
		UPDATE workflow.projects
		SET active_stages = $1, last_updated_at = NOW()
		WHERE id = $2`

	result, err := dao.DB.ExecContext(ctx, query, pq.Array(activeStages), projectID)
	if err != nil {
		dao.Logger.WithFields(logrus.Fields{
			"project_id": projectID,
			"error":      err.Error(),
		}).Error("Failed to update active stages")
		return fmt.Errorf("failed to update active stages for project %s: %w", projectID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update active stages for project %s: %w", projectID, err)
	}
	if affected == 0 {
		return fmt.Errorf("project %s not found", projectID)
	}
	return nil
}

func scanCreditApproval(row rowScanner) (*models.CreditApproval, error) {
	var approval models.CreditApproval
	var phone, email, source sql.NullString
	var expiresAt sql.NullTime
	err := row.Scan(&approval.ID, &approval.OrganizationID, &approval.Status, &approval.ApprovedAmount,
		&approval.CustomerName, &approval.CustomerAddress, &phone, &email, &source,
		&approval.CreatedAt, &expiresAt)
	if err != nil {
		return nil, err
	}
	approval.CustomerPhone = phone.String
	approval.CustomerEmail = email.String
	approval.SourceSystem = source.String
	if expiresAt.Valid {
		t := expiresAt.Time
		approval.ExpiresAt = &t
	}
	return &approval, nil
}

func scanProject(row rowScanner) (*models.Project, error) {
	var project models.Project
	var activeStages pq.StringArray
	err := row.Scan(&project.ID, &project.OrganizationID, &project.CustomerID, &project.CreditApprovalID,
		&project.Status, &project.SystemSize, &activeStages, &project.CreatedAt, &project.LastUpdatedAt)
	if err != nil {
		return nil, err
	}
	project.ActiveStages = activeStages
	return &project, nil
}
