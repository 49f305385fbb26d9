package projects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"cehpoint/project-portal/project-portal-backend/pkg/metrics"
	"cehpoint/project-portal/project-portal-backend/pkg/workflows"
)

var (
	ErrProgressOutOfRange    = errors.New("Progress must be between 0 and 100!")
	ErrProgressNotIncreasing = errors.New("Progress must be greater than current value!")
	ErrInvalidTaskCount      = errors.New("completed tasks must be between 0 and the total task count")
	ErrNotAssigned           = errors.New("developer is not assigned to this project")
	ErrInvalidFinalCost      = errors.New("final cost must not be negative")
	ErrUnknownStatus         = errors.New("unknown project status")
)

// SystemActor is recorded for changes made by scheduled jobs
const SystemActor = "system"

// Indexer keeps the search index in step with the collection
type Indexer interface {
	Index(ctx context.Context, project *Project) error
	Search(ctx context.Context, query string) ([]string, error)
}

// Notifier is told about lifecycle events. Implementations must not block
// on delivery failures.
type Notifier interface {
	ProjectSubmitted(ctx context.Context, project *Project)
	StatusChanged(ctx context.Context, project *Project, from string)
}

type Service struct {
	repo         Repository
	history      HistoryRepository
	index        Indexer
	notifier     Notifier
	stateMachine *workflows.StateMachine
	logger       *zap.Logger
	now          func() time.Time
}

func NewService(repo Repository, history HistoryRepository, index Indexer, notifier Notifier, logger *zap.Logger) *Service {
	if history == nil {
		history = NewMemoryHistoryRepository()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:         repo,
		history:      history,
		index:        index,
		notifier:     notifier,
		stateMachine: workflows.NewProjectStateMachine(),
		logger:       logger,
		now:          time.Now,
	}
}

// Create stores a new client submission as pending
func (s *Service) Create(ctx context.Context, project *Project) error {
	project.Status = workflows.StatusPending
	project.SubmittedAt = s.now().UTC()
	project.Progress = 0
	if project.ProgressType == "" {
		project.ProgressType = ProgressManual
	}
	if project.AssignedDevelopers == nil {
		project.AssignedDevelopers = []string{}
	}
	if project.DevelopmentAreas == nil {
		project.DevelopmentAreas = []string{}
	}

	if err := s.repo.Create(ctx, project); err != nil {
		return err
	}

	id := project.ID.Hex()
	s.logger.Info("Project submitted",
		zap.String("project_id", id),
		zap.String("client_email", project.ClientEmail),
		zap.Int64("budget", project.ProjectBudget),
	)

	s.recordHistory(ctx, id, "", workflows.StatusPending, project.ClientID, "submitted", nil)
	s.reindex(ctx, project)
	if s.notifier != nil {
		s.notifier.ProjectSubmitted(ctx, project)
	}
	return nil
}

// ============================================================================
// Queries
// ============================================================================

func (s *Service) Get(ctx context.Context, id string) (*Project, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) ListAll(ctx context.Context) ([]*Project, error) {
	return s.repo.FindAll(ctx)
}

func (s *Service) ListByStatus(ctx context.Context, statuses ...string) ([]*Project, error) {
	for _, status := range statuses {
		if !s.stateMachine.IsKnown(status) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStatus, status)
		}
	}
	return s.repo.FindByStatus(ctx, statuses...)
}

// ListForClient returns a client's projects, optionally narrowed to one status
func (s *Service) ListForClient(ctx context.Context, email, status string) ([]*Project, error) {
	if status == "" {
		return s.repo.FindByClientEmail(ctx, email)
	}
	if !s.stateMachine.IsKnown(status) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStatus, status)
	}
	return s.repo.FindByClientAndStatus(ctx, email, status)
}

func (s *Service) Recent(ctx context.Context, email string, limit int64) ([]*Project, error) {
	return s.repo.FindRecent(ctx, email, limit)
}

func (s *Service) ListForDeveloper(ctx context.Context, developerID string) ([]*Project, error) {
	return s.repo.FindByDeveloper(ctx, developerID)
}

// GetForClient hides projects that belong to other clients
func (s *Service) GetForClient(ctx context.Context, id, email string) (*Project, error) {
	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(project.ClientEmail, email) {
		return nil, ErrProjectNotFound
	}
	return project, nil
}

// GetForDeveloper hides projects the developer is not assigned to
func (s *Service) GetForDeveloper(ctx context.Context, id, developerID string) (*Project, error) {
	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(project.AssignedDevelopers, developerID) {
		return nil, ErrProjectNotFound
	}
	return project, nil
}

// AllowedTransitions lists the statuses an admin may move the project to next
func (s *Service) AllowedTransitions(project *Project) []string {
	return s.stateMachine.GetAllowedTransitions(project.Status)
}

func (s *Service) History(ctx context.Context, id string) ([]StatusHistory, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.history.ListByProject(ctx, id)
}

// Search runs a full-text query against the index and loads the matches
func (s *Service) Search(ctx context.Context, query string) ([]*Project, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.repo.FindAll(ctx)
	}
	if s.index == nil {
		return []*Project{}, nil
	}

	ids, err := s.index.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search projects: %w", err)
	}

	results := make([]*Project, 0, len(ids))
	for _, id := range ids {
		project, err := s.repo.FindByID(ctx, id)
		if errors.Is(err, ErrProjectNotFound) {
			s.logger.Debug("Search hit missing from collection", zap.String("project_id", id))
			continue
		}
		if err != nil {
			return nil, err
		}
		results = append(results, project)
	}
	return results, nil
}

// Export writes every project to w as an XLSX workbook
func (s *Service) Export(ctx context.Context, w io.Writer) error {
	projects, err := s.repo.FindAll(ctx)
	if err != nil {
		return err
	}
	return WriteXLSX(w, projects)
}

// ============================================================================
// Admin actions
// ============================================================================

// UpdateStatus moves a project along the transition table and applies the
// date side effects of the target status.
func (s *Service) UpdateStatus(ctx context.Context, id string, change StatusChange, actor string) (*Project, error) {
	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, project, change.Status, actor, change.Note, nil)
}

func (s *Service) SetDeadline(ctx context.Context, id string, deadline time.Time) (*Project, error) {
	return s.update(ctx, id, bson.M{"deadline": deadline.UTC()})
}

func (s *Service) SetFinalCost(ctx context.Context, id string, cost int64) (*Project, error) {
	if cost < 0 {
		return nil, ErrInvalidFinalCost
	}
	return s.update(ctx, id, bson.M{"finalCost": cost})
}

func (s *Service) AssignDevelopers(ctx context.Context, id string, developerIDs []string) (*Project, error) {
	assigned := []string{}
	for _, dev := range developerIDs {
		dev = strings.TrimSpace(dev)
		if dev != "" && !slices.Contains(assigned, dev) {
			assigned = append(assigned, dev)
		}
	}
	return s.update(ctx, id, bson.M{"assignedDevelopers": assigned})
}

// ============================================================================
// Developer progress
// ============================================================================

// ReportProgress sets manual progress. Values only increase and 100 completes
// the project.
func (s *Service) ReportProgress(ctx context.Context, id, developerID string, value int) (*Project, error) {
	project, err := s.assignedProject(ctx, id, developerID)
	if err != nil {
		return nil, err
	}

	if value < 0 || value > 100 {
		return nil, ErrProgressOutOfRange
	}
	if value <= project.Progress {
		return nil, ErrProgressNotIncreasing
	}

	return s.applyProgress(ctx, project, developerID, value, ProgressManual)
}

// ReportTaskProgress derives progress from completed and total task counts
func (s *Service) ReportTaskProgress(ctx context.Context, id, developerID string, done, total int) (*Project, error) {
	project, err := s.assignedProject(ctx, id, developerID)
	if err != nil {
		return nil, err
	}

	if total <= 0 || done < 0 || done > total {
		return nil, ErrInvalidTaskCount
	}

	return s.applyProgress(ctx, project, developerID, TaskProgress(done, total), ProgressTaskBased)
}

// TaskProgress is round(done/total*100)
func TaskProgress(done, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}

func (s *Service) assignedProject(ctx context.Context, id, developerID string) (*Project, error) {
	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(project.AssignedDevelopers, developerID) {
		return nil, ErrNotAssigned
	}
	return project, nil
}

func (s *Service) applyProgress(ctx context.Context, project *Project, developerID string, value int, mode string) (*Project, error) {
	if value >= 100 {
		return s.transition(ctx, project, workflows.StatusCompleted, developerID, "progress reached 100%", bson.M{"progressType": mode})
	}
	return s.update(ctx, project.ID.Hex(), bson.M{"progress": value, "progressType": mode})
}

// ============================================================================
// Scheduled jobs
// ============================================================================

// MarkOverdue moves in-progress projects past their deadline to delayed
func (s *Service) MarkOverdue(ctx context.Context) (int, error) {
	overdue, err := s.repo.FindOverdue(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, project := range overdue {
		if _, err := s.transition(ctx, project, workflows.StatusDelayed, SystemActor, "deadline passed", nil); err != nil {
			s.logger.Error("Failed to mark project delayed",
				zap.String("project_id", project.ID.Hex()),
				zap.Error(err),
			)
			continue
		}
		marked++
	}
	return marked, nil
}

// ============================================================================
// Helpers
// ============================================================================

func (s *Service) transition(ctx context.Context, project *Project, to, actor, note string, extra bson.M) (*Project, error) {
	if !s.stateMachine.IsKnown(to) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStatus, to)
	}
	from := project.Status
	if err := s.stateMachine.Validate(from, to); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	fields := bson.M{"status": to}
	switch to {
	case workflows.StatusInProgress:
		if project.StartDate == nil {
			fields["startDate"] = now
		}
	case workflows.StatusCompleted:
		fields["endDate"] = now
		fields["progress"] = 100
	case workflows.StatusRejected:
		fields["rejectionReason"] = note
	case workflows.StatusPending:
		fields["rejectionReason"] = ""
	}
	for k, v := range extra {
		fields[k] = v
	}

	id := project.ID.Hex()
	if err := s.repo.Update(ctx, id, fields); err != nil {
		return nil, err
	}

	updated, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Project status changed",
		zap.String("project_id", id),
		zap.String("from", from),
		zap.String("to", to),
		zap.String("actor", actor),
	)
	metrics.IncrementStatusChange(to)
	s.recordHistory(ctx, id, from, to, actor, note, fields)
	s.reindex(ctx, updated)
	if s.notifier != nil {
		s.notifier.StatusChanged(ctx, updated, from)
	}
	return updated, nil
}

func (s *Service) update(ctx context.Context, id string, fields bson.M) (*Project, error) {
	if err := s.repo.Update(ctx, id, fields); err != nil {
		return nil, err
	}
	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.reindex(ctx, project)
	return project, nil
}

func (s *Service) recordHistory(ctx context.Context, id, from, to, actor, note string, fields bson.M) {
	entry := &StatusHistory{
		ProjectID:  id,
		FromStatus: from,
		ToStatus:   to,
		ChangedBy:  actor,
		ChangedAt:  s.now().UTC(),
		Note:       note,
	}
	if len(fields) > 0 {
		if data, err := json.Marshal(fields); err == nil {
			entry.Changes = datatypes.JSON(data)
		}
	}
	if err := s.history.Record(ctx, entry); err != nil {
		s.logger.Warn("Failed to record status history", zap.String("project_id", id), zap.Error(err))
	}
}

func (s *Service) reindex(ctx context.Context, project *Project) {
	if s.index == nil {
		return
	}
	if err := s.index.Index(ctx, project); err != nil {
		s.logger.Warn("Failed to index project", zap.String("project_id", project.ID.Hex()), zap.Error(err))
	}
}
