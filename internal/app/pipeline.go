package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"jobtrack-service/internal/schedule"
)

// defaultStages seeds a host's Kanban columns the first time the board loads.
var defaultStages = []Stage{
	{Key: "APPLIED", Label: "Applied", Order: 0, Enabled: true},
	{Key: "SCREENING", Label: "Screening", Order: 1, Enabled: true},
	{Key: "INTERVIEWING", Label: "Interviewing", Order: 2, Enabled: true},
	{Key: "OFFER", Label: "Offer", Order: 3, Enabled: true},
	{Key: "ACCEPTED", Label: "Accepted", Order: 4, Enabled: true},
	{Key: "REJECTED", Label: "Rejected", Order: 5, Enabled: true},
}

func (s *Store) ListStages(ctx context.Context, hostID string) ([]Stage, error) {
	q := `SELECT id, host_id, key, label, stage_order, enabled
	      FROM stages WHERE host_id=$1 ORDER BY stage_order`
	rows, err := s.DB.Query(ctx, q, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Stage
	for rows.Next() {
		var st Stage
		if err := rows.Scan(&st.ID, &st.HostID, &st.Key, &st.Label, &st.Order, &st.Enabled); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// SeedStages inserts the default columns for hosts without any. Concurrent
// first loads of an empty board race the inserts; ON CONFLICT makes the seed
// idempotent, and the re-list returns whichever writer's rows landed.
func (s *Store) SeedStages(ctx context.Context, hostID string) ([]Stage, error) {
	q := `INSERT INTO stages (id, host_id, key, label, stage_order, enabled)
	      VALUES ($1,$2,$3,$4,$5,$6)
	      ON CONFLICT (host_id, key) DO NOTHING`
	for _, st := range seedStageRows(hostID) {
		if _, err := s.DB.Exec(ctx, q, st.ID, hostID, st.Key, st.Label, st.Order, st.Enabled); err != nil {
			return nil, err
		}
	}
	return s.ListStages(ctx, hostID)
}

func seedStageRows(hostID string) []Stage {
	rows := make([]Stage, len(defaultStages))
	for i, st := range defaultStages {
		st.ID = uuid.NewString()
		st.HostID = hostID
		rows[i] = st
	}
	return rows
}

func (s *Store) UpdateStage(ctx context.Context, hostID, stageID string, order int, enabled bool) error {
	q := `UPDATE stages SET stage_order=$1, enabled=$2 WHERE id=$3 AND host_id=$4`
	tag, err := s.DB.Exec(ctx, q, order, enabled, stageID, hostID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

func (s *Store) ListCompanies(ctx context.Context, hostID string) ([]Company, error) {
	q := `SELECT id, host_id, name, COALESCE(industry,''), COALESCE(job_title,''), stage,
	             COALESCE(priority,''), COALESCE(salary_min,0), COALESCE(salary_max,0),
	             COALESCE(total_rounds,0), COALESCE(completed_rounds,0), COALESCE(applied_date,''),
	             created_at, updated_at
	      FROM companies WHERE host_id=$1 ORDER BY updated_at DESC`
	rows, err := s.DB.Query(ctx, q, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Company
	for rows.Next() {
		var co Company
		if err := rows.Scan(&co.ID, &co.HostID, &co.Name, &co.Industry, &co.JobTitle, &co.Stage,
			&co.Priority, &co.SalaryMin, &co.SalaryMax, &co.TotalRounds, &co.CompletedRounds,
			&co.AppliedDate, &co.CreatedAt, &co.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, co)
	}
	return out, rows.Err()
}

func (s *Store) InsertCompany(ctx context.Context, co *Company) error {
	co.ID = uuid.NewString()
	now := time.Now().UTC()
	co.CreatedAt = now
	co.UpdatedAt = now
	q := `INSERT INTO companies
	      (id, host_id, name, industry, job_title, stage, priority,
	       salary_min, salary_max, total_rounds, completed_rounds, applied_date, created_at, updated_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13)`
	_, err := s.DB.Exec(ctx, q, co.ID, co.HostID, co.Name, co.Industry, co.JobTitle, co.Stage,
		co.Priority, co.SalaryMin, co.SalaryMax, co.TotalRounds, co.CompletedRounds, co.AppliedDate, now)
	return err
}

func (s *Store) UpdateCompany(ctx context.Context, hostID string, co *Company) error {
	now := time.Now().UTC()
	q := `UPDATE companies
	      SET name=$1, industry=$2, job_title=$3, stage=$4, priority=$5,
	          salary_min=$6, salary_max=$7, total_rounds=$8, completed_rounds=$9,
	          applied_date=$10, updated_at=$11
	      WHERE id=$12 AND host_id=$13
	      RETURNING created_at`
	err := s.DB.QueryRow(ctx, q, co.Name, co.Industry, co.JobTitle, co.Stage, co.Priority,
		co.SalaryMin, co.SalaryMax, co.TotalRounds, co.CompletedRounds, co.AppliedDate,
		now, co.ID, hostID).Scan(&co.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return schedule.ErrNotFound
	}
	if err != nil {
		return err
	}
	co.HostID = hostID
	co.UpdatedAt = now
	return nil
}

func (s *Store) DeleteCompany(ctx context.Context, hostID, companyID string) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM companies WHERE id=$1 AND host_id=$2`, companyID, hostID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

// GET /api/hosts/:id/stages
func (a *App) ListStagesHandler(c *gin.Context) {
	hostID := c.Param("id")
	ctx := c.Request.Context()
	store := &Store{DB: a.DB}

	stages, err := store.ListStages(ctx, hostID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if len(stages) == 0 {
		stages, err = store.SeedStages(ctx, hostID)
		if err != nil {
			abortWithError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"stages": stages})
}

type updateStageReq struct {
	Order   *int  `json:"order" binding:"required"`
	Enabled *bool `json:"enabled" binding:"required"`
}

// PUT /api/hosts/:id/stages/:stage_id
func (a *App) UpdateStageHandler(c *gin.Context) {
	var req updateStageReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	store := &Store{DB: a.DB}
	if err := store.UpdateStage(c.Request.Context(), c.Param("id"), c.Param("stage_id"), *req.Order, *req.Enabled); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GET /api/hosts/:id/companies
func (a *App) ListCompaniesHandler(c *gin.Context) {
	store := &Store{DB: a.DB}
	companies, err := store.ListCompanies(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"companies": companies})
}

// POST /api/hosts/:id/companies
func (a *App) CreateCompanyHandler(c *gin.Context) {
	var co Company
	if err := c.BindJSON(&co); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if co.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if co.Stage == "" {
		co.Stage = "APPLIED"
	}
	co.HostID = c.Param("id")

	store := &Store{DB: a.DB}
	if err := store.InsertCompany(c.Request.Context(), &co); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"company": co})
}

// PUT /api/hosts/:id/companies/:company_id
// Stage moves from the board's drag-drop land here as plain updates.
func (a *App) UpdateCompanyHandler(c *gin.Context) {
	var co Company
	if err := c.BindJSON(&co); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	co.ID = c.Param("company_id")

	store := &Store{DB: a.DB}
	if err := store.UpdateCompany(c.Request.Context(), c.Param("id"), &co); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"company": co})
}

// DELETE /api/hosts/:id/companies/:company_id
func (a *App) DeleteCompanyHandler(c *gin.Context) {
	store := &Store{DB: a.DB}
	if err := store.DeleteCompany(c.Request.Context(), c.Param("id"), c.Param("company_id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
