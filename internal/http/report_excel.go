package httpapi

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/domain"
)

// OutageReportHeader is the column layout of the exported workbook.
var OutageReportHeader = []string{
	"Queue",
	"Name",
	"Power",
	"Last Change",
	"Last Change Source",
	"Total Outages",
	"Total Uptime (min)",
}

// GenerateOutageReport builds the per-queue outage statistics workbook.
func GenerateOutageReport(queues []*domain.Queue) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "Outages"
	f.SetSheetName("Sheet1", sheet)

	for col, header := range OutageReportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	for i, q := range queues {
		row := i + 2
		power := "OFF"
		if q.IsPowerOn {
			power = "ON"
		}
		lastChange := ""
		if q.LastChangeAt != nil {
			lastChange = q.LastChangeAt.Format(time.RFC3339)
		}
		source := ""
		if q.LastChangeSource != nil {
			source = *q.LastChangeSource
		}

		values := []any{q.QueueID, q.Name, power, lastChange, source, q.TotalOutages, q.TotalUptimeMinutes}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, fmt.Errorf("data cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
