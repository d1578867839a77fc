package attendance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gdg-garage/event-platform-api/internal/models"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const exportSheet = "Attendance"

var exportHeaders = []string{"Activity", "Schedule start", "Duration (min)", "Participant", "Email", "Present"}

type attendanceRow struct {
	ActivityTitle   string
	StartDate       time.Time
	DurationMinutes int
	UserName        string
	UserEmail       string
	Present         bool
}

// ExportXLSX renders every presence of the event as a spreadsheet.
func (s *Service) ExportXLSX(ctx context.Context, eventID uint) ([]byte, error) {
	var event models.Event
	if err := s.db.WithContext(ctx).First(&event, eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load event: %w", err)
	}

	var rows []attendanceRow
	err := s.db.WithContext(ctx).Model(&models.Presence{}).
		Select("activities.title AS activity_title, schedules.start_date, schedules.duration_minutes, users.name AS user_name, users.email AS user_email, presences.present").
		Joins("JOIN activity_registrations ON activity_registrations.id = presences.registration_id").
		Joins("JOIN activities ON activities.id = activity_registrations.activity_id AND activities.deleted_at IS NULL").
		Joins("JOIN schedules ON schedules.id = presences.schedule_id AND schedules.deleted_at IS NULL").
		Joins("JOIN users ON users.id = activity_registrations.user_id").
		Where("activities.event_id = ?", eventID).
		Order("activities.title, schedules.start_date, users.name").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load attendance: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(exportSheet, cell, header); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	for i, r := range rows {
		present := "no"
		if r.Present {
			present = "yes"
		}
		values := []any{r.ActivityTitle, r.StartDate.Format("2006-01-02 15:04"), r.DurationMinutes, r.UserName, r.UserEmail, present}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(exportSheet, cell, v); err != nil {
				return nil, fmt.Errorf("write row %d: %w", i, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
