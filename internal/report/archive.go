package report

import (
	"time"

	"main/internal/scenario"
	"main/pkg/conn"

	"github.com/yanun0323/errors"
)

// Record is one archived scenario run.
type Record struct {
	ID              uint      `gorm:"primaryKey"`
	RunID           string    `gorm:"size:64;uniqueIndex"`
	ScenarioName    string    `gorm:"size:255;index"`
	Status          string    `gorm:"size:16;index"`
	StartTime       time.Time `gorm:""`
	DurationSeconds float64   `gorm:""`
	TotalCycles     int       `gorm:""`
	FaultsInjected  int       `gorm:""`
	Payload         []byte    `gorm:"type:jsonb"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
}

// TableName pins the archive table.
func (Record) TableName() string { return "scenario_reports" }

// Archive persists execution reports to PostgreSQL so runs can be
// compared across sessions.
type Archive struct {
	client *conn.Client
}

// NewArchive creates an archive over an open connection and ensures
// the backing table exists.
func NewArchive(client *conn.Client) (*Archive, error) {
	if client == nil {
		return nil, errors.New("report archive needs a database client")
	}
	if err := client.Migrate(&Record{}); err != nil {
		return nil, errors.Wrap(err, "migrate report archive")
	}
	return &Archive{client: client}, nil
}

// Save stores one run's report under its registry run ID.
func (a *Archive) Save(runID string, r *scenario.Report) error {
	payload, err := r.JSON()
	if err != nil {
		return err
	}
	record := Record{
		RunID:           runID,
		ScenarioName:    r.ScenarioName,
		Status:          r.Status,
		StartTime:       r.StartTime,
		DurationSeconds: r.DurationSeconds,
		TotalCycles:     r.TotalCycles,
		FaultsInjected:  r.FaultsInjected,
		Payload:         payload,
	}
	if err := a.client.DB().Create(&record).Error; err != nil {
		return errors.Wrapf(err, "archive report for scenario %s", r.ScenarioName)
	}
	return nil
}

// Recent returns the newest archived runs, most recent first.
func (a *Archive) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []Record
	err := a.client.DB().
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "list archived reports")
	}
	return records, nil
}

// ByScenario returns archived runs of one scenario, most recent first.
func (a *Archive) ByScenario(name string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []Record
	err := a.client.DB().
		Where("scenario_name = ?", name).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrapf(err, "list archived reports for %s", name)
	}
	return records, nil
}
