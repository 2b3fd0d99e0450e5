package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amount is a price that the backend sends either as a number or a numeric string.
type Amount float64

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*a = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("amount %q: %w", s, err)
		}
		*a = Amount(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*a = Amount(f)
	return nil
}

// Count is a whole number that the backend sends either as a number or a numeric string.
type Count int

func (c *Count) UnmarshalJSON(data []byte) error {
	var a Amount
	if err := a.UnmarshalJSON(data); err != nil {
		return err
	}
	if float64(a) != math.Trunc(float64(a)) {
		return fmt.Errorf("count %v is not a whole number", float64(a))
	}
	*c = Count(a)
	return nil
}

// TimeRange is a per-occurrence time window (HH:MM).
type TimeRange struct {
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

// Slot is a teacher-defined bookable window, live or in person.
// BookedCount <= MaxStudents is enforced by the backend.
type Slot struct {
	ID          int64       `json:"id"`
	TeacherID   int64       `json:"teacher_id"`
	Subject     string      `json:"subject"`
	StartDate   string      `json:"start_date"`
	EndDate     string      `json:"end_date"`
	StartTime   string      `json:"start_time,omitempty"`
	EndTime     string      `json:"end_time,omitempty"`
	Times       []TimeRange `json:"times,omitempty"`
	Location    string      `json:"location,omitempty"`
	Price       Amount      `json:"price"`
	MaxStudents int         `json:"max_students"`
	BookedCount int         `json:"booked_count"`
}

// SeatsLeft is informational; the backend decides availability.
func (s *Slot) SeatsLeft() int {
	left := s.MaxStudents - s.BookedCount
	if left < 0 {
		return 0
	}
	return left
}

// Course is a purchasable course.
type Course struct {
	ID          int64  `json:"id"`
	TeacherID   int64  `json:"teacher_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Price       Amount `json:"price"`
	PointsPrice int    `json:"points_price,omitempty"`
}
