package catalog

import (
	"encoding/json"
	"errors"
	"fmt"

	"brainbridge/internal/model"
)

var errUnknownShape = errors.New("unrecognized listing response shape")

// NormalizeSlots accepts every listing shape the backend produces for slots:
// a bare array, {data: [...]}, {slots: [...]}, {data: {data: [...]}} and
// {data: {slots: [...]}}.
func NormalizeSlots(raw []byte) ([]model.Slot, error) {
	var slots []model.Slot
	if err := decodeList(raw, "slots", &slots); err != nil {
		return nil, err
	}
	for i := range slots {
		foldTimes(&slots[i])
	}
	return slots, nil
}

// NormalizeCourses accepts a bare array, {data: [...]}, {courses: [...]} and
// {data: {data: [...]}}.
func NormalizeCourses(raw []byte) ([]model.Course, error) {
	var courses []model.Course
	if err := decodeList(raw, "courses", &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// NormalizeSlot accepts the slot object itself, {data: {...}} or {slot: {...}}.
func NormalizeSlot(raw []byte) (*model.Slot, error) {
	var slot model.Slot
	if err := decodeItem(raw, "slot", &slot); err != nil {
		return nil, err
	}
	foldTimes(&slot)
	return &slot, nil
}

// NormalizeCourse accepts the course object itself, {data: {...}} or {course: {...}}.
func NormalizeCourse(raw []byte) (*model.Course, error) {
	var course model.Course
	if err := decodeItem(raw, "course", &course); err != nil {
		return nil, err
	}
	return &course, nil
}

// foldTimes moves a single start_time/end_time pair into Times.
func foldTimes(s *model.Slot) {
	if len(s.Times) == 0 && (s.StartTime != "" || s.EndTime != "") {
		s.Times = []model.TimeRange{{Start: s.StartTime, End: s.EndTime}}
	}
	s.StartTime, s.EndTime = "", ""
}

func decodeList(raw []byte, key string, out any) error {
	list, err := findList(raw, key, 0)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(list, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func findList(raw json.RawMessage, key string, depth int) (json.RawMessage, error) {
	if depth > 2 {
		return nil, errUnknownShape
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		return raw, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", errUnknownShape, err)
	}
	for _, k := range []string{key, "data"} {
		if inner, ok := obj[k]; ok && !isNull(inner) {
			return findList(inner, key, depth+1)
		}
	}
	return nil, errUnknownShape
}

func decodeItem(raw []byte, key string, out any) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return fmt.Errorf("%w: %v", errUnknownShape, err)
	}
	for _, k := range []string{key, "data"} {
		if inner, ok := obj[k]; ok && isObject(inner) {
			raw = inner
			break
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func isObject(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}
