package projects

import (
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/datatypes"
)

// Progress reporting modes
const (
	ProgressTaskBased = "task-based"
	ProgressManual    = "manual"
)

// Project is a submitted client project, stored in the Projects collection
type Project struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProjectName       string             `bson:"projectName" json:"projectName"`
	ClientID          string             `bson:"clientId" json:"clientId"`
	ClientName        string             `bson:"clientName" json:"clientName"`
	ClientEmail       string             `bson:"clientEmail" json:"clientEmail"`
	ClientPhoneNumber string             `bson:"clientPhoneNumber" json:"clientPhoneNumber"`

	ProjectBudget int64  `bson:"projectBudget" json:"projectBudget"`
	FinalCost     *int64 `bson:"finalCost,omitempty" json:"finalCost,omitempty"`
	Currency      string `bson:"currency" json:"currency"`

	Status      string     `bson:"status" json:"status"`
	SubmittedAt time.Time  `bson:"submittedAt" json:"submittedAt"`
	StartDate   *time.Time `bson:"startDate,omitempty" json:"startDate,omitempty"`
	EndDate     *time.Time `bson:"endDate,omitempty" json:"endDate,omitempty"`
	Deadline    *time.Time `bson:"deadline,omitempty" json:"deadline,omitempty"`

	ProjectOverview  string   `bson:"projectOverview" json:"projectOverview"`
	DevelopmentAreas []string `bson:"developmentAreas" json:"developmentAreas"`
	SeniorDevelopers int      `bson:"seniorDevelopers" json:"seniorDevelopers"`
	JuniorDevelopers int      `bson:"juniorDevelopers" json:"juniorDevelopers"`
	UIUXDesigners    int      `bson:"uiUxDesigners" json:"uiUxDesigners"`
	RejectionReason  string   `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`

	QuotationNumber  string `bson:"quotationNumber" json:"quotationNumber"`
	QuotationKey     string `bson:"quotationKey" json:"-"`
	DocumentationKey string `bson:"documentationKey" json:"-"`
	// presigned from the keys on every read, never stored
	QuotationURL     string `bson:"-" json:"quotationUrl,omitempty"`
	DocumentationURL string `bson:"-" json:"documentationUrl,omitempty"`

	Progress           int      `bson:"progress" json:"progress"`
	ProgressType       string   `bson:"progressType" json:"progressType"`
	AssignedDevelopers []string `bson:"assignedDevelopers" json:"assignedDevelopers"`
}

// StatusHistory tracks status changes
type StatusHistory struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProjectID  string    `gorm:"type:varchar(24);not null;index" json:"project_id"`
	FromStatus string    `gorm:"not null" json:"from_status"`
	ToStatus   string    `gorm:"not null" json:"to_status"`
	ChangedBy  string    `gorm:"not null" json:"changed_by"`
	ChangedAt  time.Time `json:"changed_at"`
	Note       string    `json:"note,omitempty"`

	// fields written alongside the status
	Changes datatypes.JSON `gorm:"type:jsonb" json:"changes,omitempty"`
}

func (StatusHistory) TableName() string {
	return "project_status_history"
}

// StatusChange is an admin status update
type StatusChange struct {
	Status string `json:"status" binding:"required"`
	// reason for rejection, or a free-form note otherwise
	Note string `json:"note"`
}

// ProgressReport is a developer progress update. Either Value (manual mode) or
// Done/Total (task-based mode) is set.
type ProgressReport struct {
	Value *int `json:"value"`
	Done  *int `json:"done"`
	Total *int `json:"total"`
}
