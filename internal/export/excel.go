// Package export writes a day's bookings and seat load to an XLSX workbook.
package export

import (
	"fmt"
	"io"
	"time"

	"tablebook/internal/availability"
	"tablebook/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	BookingsSheet  = "Bookings"
	OccupancySheet = "Occupancy"
)

var (
	bookingColumns   = []string{"Time", "Name", "Phone", "Party", "Duration", "Status", "Booking ID", "Requests"}
	occupancyColumns = []string{"Time", "Peak", "Max Seats", "Available", "Booked"}
)

// Sheet accumulates rows across workbook sheets.
type Sheet struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
	headerStyle  int
}

func NewSheet() *Sheet {
	return &Sheet{file: excelize.NewFile()}
}

// AddSheet starts a new sheet; the first call renames the default one.
func (w *Sheet) AddSheet(name string) error {
	if len(name) > 31 {
		name = name[:31]
	}

	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

func (w *Sheet) WriteHeader(columns []string) error {
	if err := w.WriteRow(toRow(columns)); err != nil {
		return err
	}

	if w.headerStyle == 0 {
		style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return err
		}
		w.headerStyle = style
	}

	row := w.currentRow - 1
	start, _ := excelize.CoordinatesToCellName(1, row)
	end, _ := excelize.CoordinatesToCellName(len(columns), row)
	return w.file.SetCellStyle(w.currentSheet, start, end, w.headerStyle)
}

func (w *Sheet) WriteRow(row []any) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}

	cell, err := excelize.CoordinatesToCellName(1, w.currentRow)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.currentSheet, cell, &row); err != nil {
		return err
	}

	w.currentRow++
	return nil
}

func (w *Sheet) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

func (w *Sheet) SaveToFile(path string) error {
	return w.file.SaveAs(path)
}

func (w *Sheet) Close() error {
	return w.file.Close()
}

func toRow(values []string) []any {
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

// DaySheet builds the workbook for date: every booking in time order and,
// when load is given, the seat picture per slot.
func DaySheet(date time.Time, bookings []models.Booking, load []availability.SlotLoad) (*Sheet, error) {
	w := NewSheet()

	if err := w.AddSheet(BookingsSheet); err != nil {
		return nil, err
	}
	if err := w.WriteRow([]any{"Bookings for " + date.Format(models.DateLayout)}); err != nil {
		return nil, err
	}
	if err := w.WriteHeader(bookingColumns); err != nil {
		return nil, err
	}
	for _, b := range bookings {
		row := []any{
			b.BookingTime,
			b.CustomerName,
			b.Phone,
			b.PartySize,
			b.DiningDuration,
			string(b.Status),
			b.ID,
			b.SpecialRequests,
		}
		if err := w.WriteRow(row); err != nil {
			return nil, err
		}
	}

	if len(load) == 0 {
		return w, nil
	}

	if err := w.AddSheet(OccupancySheet); err != nil {
		return nil, err
	}
	if err := w.WriteHeader(occupancyColumns); err != nil {
		return nil, err
	}
	for _, l := range load {
		peak := ""
		if l.Peak {
			peak = "yes"
		}
		row := []any{l.Slot.Time.String(), peak, l.MaxCapacity, l.AvailableSeats, l.MaxCapacity - l.AvailableSeats}
		if err := w.WriteRow(row); err != nil {
			return nil, err
		}
	}

	return w, nil
}
