// Package reporter aggregates closed time entries into dashboards, team
// analytics and productivity reports. It only reads.
package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"cdr.dev/slog"
	"github.com/coder/quartz"
	"github.com/pkg/errors"

	"github.com/teamclock/teamclock/internal/apperr"
	"github.com/teamclock/teamclock/internal/database"
	"github.com/teamclock/teamclock/internal/models"
	"github.com/teamclock/teamclock/pkg/utils"
)

const (
	dayFormat  = "2006-01-02"
	hourFormat = "2006-01-02 15:00"

	// workdayHours is the nominal load of one bucket in the productivity score.
	workdayHours = 8
)

// Reporter handles report generation
type Reporter struct {
	repo  *database.Repository
	clock quartz.Clock
	loc   *time.Location
	log   slog.Logger
}

type Options struct {
	Clock    quartz.Clock
	Location *time.Location
	Logger   slog.Logger
}

// New creates a new reporter
func New(repo *database.Repository, opts Options) *Reporter {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Reporter{
		repo:  repo,
		clock: opts.Clock,
		loc:   opts.Location,
		log:   opts.Logger.Named("reporter"),
	}
}

// ProductivityScore blends average activity (70%) with how close the
// tracked hours come to a full workday per bucket (30%), capped at 100.
// No buckets means no score.
func ProductivityScore(totalHours, avgActivity float64, buckets int) float64 {
	if buckets == 0 {
		return 0
	}
	load := math.Min(100, 100*totalHours/(float64(buckets)*workdayHours))
	return math.Min(100, 0.7*avgActivity+0.3*load)
}

// getPeriod calculates the rolling window ending now for a period type
func (r *Reporter) getPeriod(periodType string) (*models.ReportPeriod, error) {
	end := r.clock.Now().In(r.loc)
	var start time.Time

	switch periodType {
	case "day", "today":
		periodType = "day"
		start = end.Add(-24 * time.Hour)
	case "week", "":
		periodType = "week"
		start = end.AddDate(0, 0, -7)
	case "month":
		start = end.AddDate(0, 0, -30)
	default:
		return nil, apperr.Invalid("invalid period type: %s (valid: day, week, month)", periodType)
	}

	return &models.ReportPeriod{
		Start: start,
		End:   end,
		Type:  periodType,
	}, nil
}

// DateRange turns inclusive calendar dates into a [from, to) window in the
// report time zone. Missing dates default to the last defaultDays days.
func (r *Reporter) DateRange(startDate, endDate *time.Time, defaultDays int) (time.Time, time.Time, error) {
	today := r.midnight(r.clock.Now())
	from := today.AddDate(0, 0, -defaultDays)
	to := today
	if startDate != nil {
		from = r.midnight(*startDate)
	}
	if endDate != nil {
		to = r.midnight(*endDate)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, apperr.InvalidRange("end_date must not be before start_date")
	}
	return from, to.AddDate(0, 0, 1), nil
}

func (r *Reporter) midnight(t time.Time) time.Time {
	t = t.In(r.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, r.loc)
}

// Dashboard summarizes the user's last 30 days.
func (r *Reporter) Dashboard(ctx context.Context, userID string) (*models.Dashboard, error) {
	now := r.clock.Now().In(r.loc)
	start := now.AddDate(0, 0, -30)

	entries, err := r.repo.ClosedEntriesBetween(ctx, start, now, []string{userID}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load entries")
	}

	var seconds int64
	projects := map[string]struct{}{}
	for _, e := range entries {
		seconds += seconds64(e)
		projects[e.ProjectID] = struct{}{}
	}
	stats := models.DashboardStats{
		TotalHours:    round2(hours(seconds)),
		TotalEntries:  int64(len(entries)),
		ProjectsCount: int64(len(projects)),
	}
	if len(entries) > 0 {
		stats.AvgSession = round2(hours(seconds) / float64(len(entries)))
	}

	weekAgo := now.AddDate(0, 0, -7)
	var recent []*models.TimeEntry
	for _, e := range entries {
		if !e.StartTime.Before(weekAgo) {
			recent = append(recent, e)
		}
	}
	trend := []models.DailyPoint{}
	for _, b := range r.group(recent, dayFormat, nil) {
		trend = append(trend, models.DailyPoint{
			Date:     b.key,
			Hours:    round2(hours(b.seconds)),
			Activity: round1(b.avgActivity()),
		})
	}

	breakdown, err := r.projectBreakdown(ctx, start, now, userID, 10)
	if err != nil {
		return nil, err
	}

	return &models.Dashboard{
		Period:           models.ReportPeriod{Start: start, End: now, Type: "month"},
		Stats:            stats,
		DailyActivity:    trend,
		ProjectBreakdown: breakdown,
		GeneratedAt:      now,
	}, nil
}

// projectBreakdown uses the SQL totals and resolves project names.
func (r *Reporter) projectBreakdown(ctx context.Context, from, to time.Time, userID string, limit int) ([]models.ProjectBreakdown, error) {
	totals, err := r.repo.ProjectTotalsBetween(ctx, from, to, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to total projects")
	}
	if limit > 0 && len(totals) > limit {
		totals = totals[:limit]
	}

	ids := make([]string, 0, len(totals))
	for _, t := range totals {
		ids = append(ids, t.ID)
	}
	names, err := r.repo.GetProjectsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.ProjectBreakdown, 0, len(totals))
	for _, t := range totals {
		name := "Unknown"
		if p, ok := names[t.ID]; ok {
			name = p.Name
		}
		out = append(out, models.ProjectBreakdown{
			ProjectID:   t.ID,
			ProjectName: name,
			Hours:       round2(hours(t.Seconds)),
			Entries:     t.Entries,
			AvgActivity: round1(t.AvgActivity),
		})
	}
	return out, nil
}

// Team builds the admin/manager view of everyone's work in [from, to).
func (r *Reporter) Team(ctx context.Context, from, to time.Time) (*models.TeamAnalytics, error) {
	totals, err := r.repo.UserTotalsBetween(ctx, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "failed to total users")
	}
	entries, err := r.repo.ClosedEntriesBetween(ctx, from, to, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load entries")
	}

	userIDs := make([]string, 0, len(totals))
	for _, t := range totals {
		userIDs = append(userIDs, t.ID)
	}
	users, err := r.repo.GetUsersByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	projectsByUser := map[string]map[string]struct{}{}
	for _, e := range entries {
		if projectsByUser[e.UserID] == nil {
			projectsByUser[e.UserID] = map[string]struct{}{}
		}
		projectsByUser[e.UserID][e.ProjectID] = struct{}{}
	}

	userStats := []models.UserStat{}
	for _, t := range totals {
		u, ok := users[t.ID]
		if !ok {
			continue
		}
		userStats = append(userStats, models.UserStat{
			UserID:        t.ID,
			Name:          u.Name,
			Role:          u.Role,
			TotalHours:    round2(hours(t.Seconds)),
			TotalEntries:  t.Entries,
			AvgActivity:   round1(t.AvgActivity),
			ProjectsCount: len(projectsByUser[t.ID]),
		})
	}
	sort.SliceStable(userStats, func(i, j int) bool {
		return userStats[i].TotalHours > userStats[j].TotalHours
	})

	daily := []models.TeamDay{}
	for _, b := range r.group(entries, dayFormat, func(e *models.TimeEntry) string { return e.UserID }) {
		daily = append(daily, models.TeamDay{
			Date:        b.key,
			TotalHours:  round2(hours(b.seconds)),
			AvgActivity: round1(b.avgActivity()),
			ActiveUsers: len(b.members),
		})
	}

	projectStats, err := r.projectStats(ctx, entries)
	if err != nil {
		return nil, err
	}

	summary := models.TeamSummary{
		ActiveProjects: len(projectStats),
		TeamSize:       len(userStats),
	}
	var activity float64
	for _, s := range userStats {
		summary.TotalTeamHours += s.TotalHours
		activity += s.AvgActivity
	}
	summary.TotalTeamHours = round2(summary.TotalTeamHours)
	if len(userStats) > 0 {
		summary.AvgTeamActivity = round1(activity / float64(len(userStats)))
	}

	return &models.TeamAnalytics{
		Period:           models.ReportPeriod{Start: from, End: to, Type: "custom"},
		UserStats:        userStats,
		TeamProductivity: daily,
		ProjectStats:     projectStats,
		Summary:          summary,
	}, nil
}

func (r *Reporter) projectStats(ctx context.Context, entries []*models.TimeEntry) ([]models.ProjectStat, error) {
	type acc struct {
		bucket
		id string
	}
	byProject := map[string]*acc{}
	for _, e := range entries {
		a, ok := byProject[e.ProjectID]
		if !ok {
			a = &acc{id: e.ProjectID, bucket: bucket{members: map[string]struct{}{}}}
			byProject[e.ProjectID] = a
		}
		a.add(e, e.UserID)
	}

	ids := make([]string, 0, len(byProject))
	for id := range byProject {
		ids = append(ids, id)
	}
	projects, err := r.repo.GetProjectsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := []models.ProjectStat{}
	for id, a := range byProject {
		p, ok := projects[id]
		if !ok {
			continue
		}
		out = append(out, models.ProjectStat{
			ProjectID:   id,
			Name:        p.Name,
			TotalHours:  round2(hours(a.seconds)),
			TeamMembers: len(a.members),
			AvgActivity: round1(a.avgActivity()),
			Budget:      p.Budget,
			Spent:       p.Spent,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalHours != out[j].TotalHours {
			return out[i].TotalHours > out[j].TotalHours
		}
		return out[i].ProjectID < out[j].ProjectID
	})
	return out, nil
}

// Productivity buckets the user's recent entries by hour (day) or by day
// (week, month) and scores them.
func (r *Reporter) Productivity(ctx context.Context, userID, periodType string) (*models.ProductivityReport, error) {
	period, err := r.getPeriod(periodType)
	if err != nil {
		return nil, err
	}

	// Get raw entries from database - runtime does the bucketing
	entries, err := r.repo.ClosedEntriesBetween(ctx, period.Start, period.End, []string{userID}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load entries")
	}

	format := dayFormat
	if period.Type == "day" {
		format = hourFormat
	}

	report := &models.ProductivityReport{
		Period:      *period,
		Buckets:     []models.ProductivityBucket{},
		GeneratedAt: r.clock.Now(),
	}
	var activity float64
	for _, b := range r.group(entries, format, nil) {
		pb := models.ProductivityBucket{
			Bucket:      b.key,
			Hours:       hours(b.seconds),
			AvgActivity: b.avgActivity(),
			Entries:     b.entries,
		}
		report.TotalHours += pb.Hours
		activity += pb.AvgActivity
		pb.Hours, pb.AvgActivity = round2(pb.Hours), round1(pb.AvgActivity)
		report.Buckets = append(report.Buckets, pb)
	}

	n := len(report.Buckets)
	if n > 0 {
		report.AvgActivity = activity / float64(n)
	}
	report.ProductivityScore = round1(ProductivityScore(report.TotalHours, report.AvgActivity, n))
	report.TotalHours = round2(report.TotalHours)
	report.AvgActivity = round1(report.AvgActivity)
	return report, nil
}

// CustomReport returns one row per (user, project, day) in [from, to).
// Empty id filters mean everyone / every project.
func (r *Reporter) CustomReport(ctx context.Context, from, to time.Time, userIDs, projectIDs []string) (*models.CustomReport, error) {
	entries, err := r.repo.ClosedEntriesBetween(ctx, from, to, userIDs, projectIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load entries")
	}

	type key struct{ user, project, date string }
	groups := map[key]*bucket{}
	var order []key
	for _, e := range entries {
		k := key{e.UserID, e.ProjectID, e.StartTime.In(r.loc).Format(dayFormat)}
		b, ok := groups[k]
		if !ok {
			b = &bucket{key: k.date}
			groups[k] = b
			order = append(order, k)
		}
		b.add(e, "")
	}

	var uids, pids []string
	for _, k := range order {
		uids = append(uids, k.user)
		pids = append(pids, k.project)
	}
	users, err := r.repo.GetUsersByIDs(ctx, uids)
	if err != nil {
		return nil, err
	}
	projects, err := r.repo.GetProjectsByIDs(ctx, pids)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.date != b.date {
			return a.date < b.date
		}
		if a.user != b.user {
			return a.user < b.user
		}
		return a.project < b.project
	})

	report := &models.CustomReport{
		Period:      models.ReportPeriod{Start: from, End: to, Type: "custom"},
		Rows:        []models.CustomRow{},
		GeneratedAt: r.clock.Now(),
	}
	uniqueUsers := map[string]struct{}{}
	uniqueProjects := map[string]struct{}{}
	var activity float64
	for _, k := range order {
		b := groups[k]
		row := models.CustomRow{
			UserID:      k.user,
			UserName:    "Unknown",
			ProjectID:   k.project,
			ProjectName: "Unknown",
			Date:        k.date,
			Hours:       round2(hours(b.seconds)),
			AvgActivity: round1(b.avgActivity()),
			Entries:     b.entries,
		}
		if u, ok := users[k.user]; ok {
			row.UserName = u.Name
		}
		if p, ok := projects[k.project]; ok {
			row.ProjectName = p.Name
		}
		report.Rows = append(report.Rows, row)

		report.Summary.TotalHours += row.Hours
		report.Summary.TotalEntries += row.Entries
		activity += row.AvgActivity
		uniqueUsers[k.user] = struct{}{}
		uniqueProjects[k.project] = struct{}{}
	}
	report.Summary.TotalHours = round2(report.Summary.TotalHours)
	report.Summary.UniqueUsers = len(uniqueUsers)
	report.Summary.UniqueProjects = len(uniqueProjects)
	if len(report.Rows) > 0 {
		report.Summary.AvgActivity = round1(activity / float64(len(report.Rows)))
	}
	return report, nil
}

// DailyReport lists one calendar day of the user's closed entries.
func (r *Reporter) DailyReport(ctx context.Context, userID string, day time.Time) (*models.DailyReport, error) {
	from := r.midnight(day)
	to := from.AddDate(0, 0, 1)

	entries, err := r.repo.ClosedEntriesBetween(ctx, from, to, []string{userID}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load entries")
	}

	report := &models.DailyReport{
		Date:    from.Format(dayFormat),
		Entries: make([]models.TimeEntry, 0, len(entries)),
	}
	all := bucket{}
	for _, e := range entries {
		report.Entries = append(report.Entries, *e)
		all.add(e, "")
	}
	report.TotalHours = round2(hours(all.seconds))
	report.AvgActivity = round1(all.avgActivity())

	report.ByProject, err = r.projectBreakdown(ctx, from, to, userID, 0)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// TeamTimeReport totals tracked time per member in [from, to).
func (r *Reporter) TeamTimeReport(ctx context.Context, from, to time.Time) (*models.TeamTimeReport, error) {
	totals, err := r.repo.UserTotalsBetween(ctx, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "failed to total users")
	}
	ids := make([]string, 0, len(totals))
	for _, t := range totals {
		ids = append(ids, t.ID)
	}
	users, err := r.repo.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	report := &models.TeamTimeReport{
		Period:  models.ReportPeriod{Start: from, End: to, Type: "custom"},
		Members: make([]models.MemberTime, 0, len(totals)),
	}
	var seconds int64
	for _, t := range totals {
		name := "Unknown"
		if u, ok := users[t.ID]; ok {
			name = u.Name
		}
		report.Members = append(report.Members, models.MemberTime{
			UserID:     t.ID,
			Name:       name,
			TotalHours: round2(hours(t.Seconds)),
			Entries:    t.Entries,
		})
		seconds += t.Seconds
	}
	report.TotalHours = round2(hours(seconds))
	return report, nil
}

// ProjectStats returns the project and task counters for the dashboard.
func (r *Reporter) ProjectStats(ctx context.Context) (*models.ProjectCounters, error) {
	return r.repo.ProjectCounters(ctx)
}

// TeamStats returns the user counters for the dashboard.
func (r *Reporter) TeamStats(ctx context.Context) (*models.TeamCounters, error) {
	return r.repo.TeamCounters(ctx)
}

// FormatReportText formats a productivity report as human-readable text
func (r *Reporter) FormatReportText(report *models.ProductivityReport) string {
	output := fmt.Sprintf("Productivity Report - %s\n", report.Period.Type)
	output += fmt.Sprintf("Period: %s to %s\n",
		report.Period.Start.Format("2006-01-02 15:04"),
		report.Period.End.Format("2006-01-02 15:04"))
	output += fmt.Sprintf("Total Time: %s  Avg Activity: %.1f  Score: %.1f\n\n",
		utils.FormatHours(report.TotalHours), report.AvgActivity, report.ProductivityScore)

	if len(report.Buckets) == 0 {
		output += "No activity recorded for this period.\n"
		return output
	}

	output += fmt.Sprintf("%-30s %10s %10s %10s\n", "Bucket", "Hours", "Activity", "Entries")
	output += fmt.Sprintf("%s\n", "--------------------------------------------------------------------------------")

	for _, b := range report.Buckets {
		output += fmt.Sprintf("%-30s %10.2f %10.1f %10d\n",
			truncate(b.Bucket, 30),
			b.Hours,
			b.AvgActivity,
			b.Entries)
	}

	return output
}

// FormatReportJSON formats the report as JSON
func (r *Reporter) FormatReportJSON(report any) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal JSON")
	}
	return string(data), nil
}

// truncate truncates a string to the specified length
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
