package models

import "time"

type ReportPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Type  string    `json:"type"` // "day", "week", "month"
}

type DashboardStats struct {
	TotalHours    float64 `json:"total_hours"`
	TotalEntries  int64   `json:"total_entries"`
	AvgSession    float64 `json:"avg_session"` // hours
	ProjectsCount int64   `json:"projects_count"`
}

type DailyPoint struct {
	Date     string  `json:"date"`
	Hours    float64 `json:"hours"`
	Activity float64 `json:"activity"`
}

type ProjectBreakdown struct {
	ProjectID   string  `json:"project_id"`
	ProjectName string  `json:"project_name"`
	Hours       float64 `json:"hours"`
	Entries     int64   `json:"entries"`
	AvgActivity float64 `json:"avg_activity"`
}

type Dashboard struct {
	Period           ReportPeriod       `json:"period"`
	Stats            DashboardStats     `json:"user_stats"`
	DailyActivity    []DailyPoint       `json:"productivity_trend"`
	ProjectBreakdown []ProjectBreakdown `json:"project_breakdown"`
	GeneratedAt      time.Time          `json:"generated_at"`
}

type UserStat struct {
	UserID        string  `json:"user_id"`
	Name          string  `json:"user_name"`
	Role          Role    `json:"user_role"`
	TotalHours    float64 `json:"total_hours"`
	TotalEntries  int64   `json:"total_entries"`
	AvgActivity   float64 `json:"avg_activity"`
	ProjectsCount int     `json:"projects_count"`
}

type TeamDay struct {
	Date        string  `json:"date"`
	TotalHours  float64 `json:"total_hours"`
	AvgActivity float64 `json:"avg_activity"`
	ActiveUsers int     `json:"active_users"`
}

type ProjectStat struct {
	ProjectID   string  `json:"project_id"`
	Name        string  `json:"project_name"`
	TotalHours  float64 `json:"total_hours"`
	TeamMembers int     `json:"team_members"`
	AvgActivity float64 `json:"avg_activity"`
	Budget      float64 `json:"budget"`
	Spent       float64 `json:"spent"`
}

type TeamSummary struct {
	TotalTeamHours  float64 `json:"total_team_hours"`
	AvgTeamActivity float64 `json:"avg_team_activity"`
	ActiveProjects  int     `json:"active_projects"`
	TeamSize        int     `json:"team_size"`
}

type TeamAnalytics struct {
	Period           ReportPeriod  `json:"period"`
	UserStats        []UserStat    `json:"team_stats"`
	TeamProductivity []TeamDay     `json:"daily_productivity"`
	ProjectStats     []ProjectStat `json:"project_stats"`
	Summary          TeamSummary   `json:"summary"`
}

type ProductivityBucket struct {
	Bucket      string  `json:"timestamp"`
	Hours       float64 `json:"hours"`
	AvgActivity float64 `json:"activity_level"`
	Entries     int     `json:"entries"`
}

type ProductivityReport struct {
	Period            ReportPeriod         `json:"period"`
	Buckets           []ProductivityBucket `json:"productivity_chart"`
	TotalHours        float64              `json:"total_hours"`
	AvgActivity       float64              `json:"avg_activity"`
	ProductivityScore float64              `json:"productivity_score"`
	GeneratedAt       time.Time            `json:"generated_at"`
}

type CustomRow struct {
	UserID      string  `json:"user_id"`
	UserName    string  `json:"user_name"`
	ProjectID   string  `json:"project_id"`
	ProjectName string  `json:"project_name"`
	Date        string  `json:"date"`
	Hours       float64 `json:"hours"`
	AvgActivity float64 `json:"avg_activity"`
	Entries     int     `json:"entries"`
}

type CustomSummary struct {
	TotalHours     float64 `json:"total_hours"`
	AvgActivity    float64 `json:"avg_activity"`
	TotalEntries   int     `json:"total_entries"`
	UniqueUsers    int     `json:"unique_users"`
	UniqueProjects int     `json:"unique_projects"`
}

type CustomReport struct {
	Period      ReportPeriod  `json:"period"`
	Rows        []CustomRow   `json:"report_data"`
	Summary     CustomSummary `json:"summary"`
	GeneratedAt time.Time     `json:"generated_at"`
}

type DailyReport struct {
	Date        string             `json:"date"`
	TotalHours  float64            `json:"total_hours"`
	Entries     []TimeEntry        `json:"entries"`
	ByProject   []ProjectBreakdown `json:"projects"`
	AvgActivity float64            `json:"avg_activity"`
}

type MemberTime struct {
	UserID     string  `json:"user_id"`
	Name       string  `json:"name"`
	TotalHours float64 `json:"total_hours"`
	Entries    int64   `json:"entries"`
}

type TeamTimeReport struct {
	Period     ReportPeriod `json:"period"`
	Members    []MemberTime `json:"members"`
	TotalHours float64      `json:"total_hours"`
}

type ProjectCounters struct {
	Total       int64            `json:"total"`
	ByStatus    map[string]int64 `json:"by_status"`
	TotalHours  float64          `json:"total_hours"`
	TotalBudget float64          `json:"total_budget"`
	TotalSpent  float64          `json:"total_spent"`
	TaskCounts  map[string]int64 `json:"task_stats"`
}

type TeamCounters struct {
	Total    int64            `json:"total"`
	ByRole   map[string]int64 `json:"by_role"`
	ByStatus map[string]int64 `json:"by_status"`
	Online   int64            `json:"online"`
}
