package database

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/teamclock/teamclock/internal/apperr"
	"github.com/teamclock/teamclock/internal/models"
)

func (r *Repository) CreateProject(ctx context.Context, p *models.Project) error {
	if err := r.conn(ctx).Create(p).Error; err != nil {
		return errors.Wrap(err, "failed to insert project")
	}
	return nil
}

func (r *Repository) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	if err := r.conn(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Project")
	}
	return &p, nil
}

// GetProjectsByIDs returns the projects keyed by id. Unknown ids are skipped.
func (r *Repository) GetProjectsByIDs(ctx context.Context, ids []string) (map[string]*models.Project, error) {
	out := make(map[string]*models.Project, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	projects := []*models.Project{}
	if err := r.conn(ctx).Where("id IN ?", ids).Find(&projects).Error; err != nil {
		return nil, errors.Wrap(err, "failed to query projects")
	}
	for _, p := range projects {
		out[p.ID] = p
	}
	return out, nil
}

func (r *Repository) ListProjects(ctx context.Context, filter models.ProjectFilter) ([]*models.Project, error) {
	q := r.conn(ctx).Model(&models.Project{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	projects := []*models.Project{}
	if err := q.Order("created_at DESC").Find(&projects).Error; err != nil {
		return nil, errors.Wrap(err, "failed to query projects")
	}

	// team_members is a JSON column, so membership is checked here.
	if filter.MemberID != "" {
		visible := projects[:0]
		for _, p := range projects {
			if p.HasMember(filter.MemberID) {
				visible = append(visible, p)
			}
		}
		projects = visible
	}

	return window(projects, filter.Offset, filter.Limit), nil
}

func (r *Repository) UpdateProject(ctx context.Context, id string, upd models.ProjectUpdate) (*models.Project, error) {
	p, err := r.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.Client != nil {
		p.Client = *upd.Client
	}
	if upd.Budget != nil {
		p.Budget = *upd.Budget
	}
	if upd.Spent != nil {
		p.Spent = *upd.Spent
	}
	if upd.Status != nil {
		p.Status = *upd.Status
	}
	if upd.Deadline != nil {
		p.Deadline = upd.Deadline
	}
	if upd.TeamMembers != nil {
		p.TeamMembers = *upd.TeamMembers
	}
	if err := r.conn(ctx).Save(p).Error; err != nil {
		return nil, errors.Wrap(err, "failed to update project")
	}
	return p, nil
}

// DeleteProject removes a project together with its tasks.
func (r *Repository) DeleteProject(ctx context.Context, id string) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Project{}, "id = ?", id)
		if res.Error != nil {
			return errors.Wrap(res.Error, "failed to delete project")
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("Project not found")
		}
		if err := tx.Delete(&models.Task{}, "project_id = ?", id).Error; err != nil {
			return errors.Wrap(err, "failed to delete project tasks")
		}
		return nil
	})
}

// AccrueProjectHours adds hours to the project's running total with a
// single UPDATE, so concurrent stops never lose an increment.
func (r *Repository) AccrueProjectHours(ctx context.Context, id string, hours float64) error {
	res := r.conn(ctx).Model(&models.Project{}).Where("id = ?", id).
		UpdateColumn("hours_tracked", gorm.Expr("hours_tracked + ?", hours))
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to accrue project hours")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Project not found")
	}
	return nil
}

// ProjectCounters counts projects by status and totals hours and money.
func (r *Repository) ProjectCounters(ctx context.Context) (*models.ProjectCounters, error) {
	var rows []struct {
		Status string
		Count  int64
		Hours  float64
		Budget float64
		Spent  float64
	}
	err := r.conn(ctx).Model(&models.Project{}).
		Select("status, COUNT(*) AS count, SUM(hours_tracked) AS hours, SUM(budget) AS budget, SUM(spent) AS spent").
		Group("status").Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to count projects")
	}

	out := &models.ProjectCounters{ByStatus: map[string]int64{}, TaskCounts: map[string]int64{}}
	for _, row := range rows {
		out.ByStatus[row.Status] = row.Count
		out.Total += row.Count
		out.TotalHours += row.Hours
		out.TotalBudget += row.Budget
		out.TotalSpent += row.Spent
	}

	var tasks []struct {
		Status string
		Count  int64
	}
	err = r.conn(ctx).Model(&models.Task{}).
		Select("status, COUNT(*) AS count").Group("status").Scan(&tasks).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to count tasks")
	}
	for _, t := range tasks {
		out.TaskCounts[t.Status] = t.Count
	}
	return out, nil
}

func (r *Repository) CreateTask(ctx context.Context, t *models.Task) error {
	if err := r.conn(ctx).Create(t).Error; err != nil {
		return errors.Wrap(err, "failed to insert task")
	}
	return nil
}

func (r *Repository) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var t models.Task
	if err := r.conn(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Task")
	}
	return &t, nil
}

func (r *Repository) ListTasks(ctx context.Context, projectID string) ([]*models.Task, error) {
	tasks := []*models.Task{}
	err := r.conn(ctx).Where("project_id = ?", projectID).Order("created_at ASC").Find(&tasks).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to query tasks")
	}
	return tasks, nil
}

func (r *Repository) UpdateTask(ctx context.Context, id string, upd models.TaskUpdate) (*models.Task, error) {
	t, err := r.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Title != nil {
		t.Title = *upd.Title
	}
	if upd.Description != nil {
		t.Description = *upd.Description
	}
	if upd.AssigneeID != nil {
		t.AssigneeID = *upd.AssigneeID
	}
	if upd.Status != nil {
		t.Status = *upd.Status
	}
	if upd.Priority != nil {
		t.Priority = *upd.Priority
	}
	if upd.EstimatedHours != nil {
		t.EstimatedHours = upd.EstimatedHours
	}
	if upd.DueDate != nil {
		t.DueDate = upd.DueDate
	}
	if err := r.conn(ctx).Save(t).Error; err != nil {
		return nil, errors.Wrap(err, "failed to update task")
	}
	return t, nil
}

// AccrueTaskHours adds hours to the task's actual_hours.
func (r *Repository) AccrueTaskHours(ctx context.Context, id string, hours float64) error {
	err := r.conn(ctx).Model(&models.Task{}).Where("id = ?", id).
		UpdateColumn("actual_hours", gorm.Expr("actual_hours + ?", hours)).Error
	return errors.Wrap(err, "failed to accrue task hours")
}

func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	res := r.conn(ctx).Delete(&models.Task{}, "id = ?", id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to delete task")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Task not found")
	}
	return nil
}

func window[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
