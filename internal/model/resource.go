package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Resource names a bookable resource type and where the backend serves it.
type Resource struct {
	Name     string
	BasePath string
	IDField  string
	// Dated resources are booked for a calendar date.
	Dated bool
}

var (
	LiveSession = Resource{
		Name:     "live_session",
		BasePath: "slots",
		IDField:  "slot_id",
		Dated:    true,
	}

	InPersonSession = Resource{
		Name:     "in_person_session",
		BasePath: "in-person-slot",
		IDField:  "slot_id",
		Dated:    true,
	}

	CourseResource = Resource{
		Name:     "course",
		BasePath: "courses",
		IDField:  "course_id",
		Dated:    false,
	}
)

// IntentPath is the endpoint that prices a booking.
func (r Resource) IntentPath() string {
	return r.BasePath + "/bookings/intent"
}

// ConfirmPath is the endpoint that finalizes a booking.
func (r Resource) ConfirmPath() string {
	return r.BasePath + "/bookings/confirm"
}

func (r Resource) ListPath() string {
	return r.BasePath
}

func (r Resource) ItemPath(id int64) string {
	return r.BasePath + "/" + strconv.FormatInt(id, 10)
}

// ItemRoute is ItemPath with the id elided, for use as a metrics label.
func (r Resource) ItemRoute() string {
	return r.BasePath + "/:id"
}

// ListCacheKey is the cache key of the general listing.
func (r Resource) ListCacheKey() string {
	return "listing:" + r.Name
}

// ItemCacheKey is the cache key of a single resource.
func (r Resource) ItemCacheKey(id int64) string {
	return fmt.Sprintf("listing:%s:%d", r.Name, id)
}

// ResourceByName resolves a resource from its name or a short alias.
func ResourceByName(name string) (Resource, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "live", "live_session", "slot", "slots":
		return LiveSession, nil
	case "in-person", "in_person", "in_person_session", "in-person-slot":
		return InPersonSession, nil
	case "course", "courses":
		return CourseResource, nil
	default:
		return Resource{}, fmt.Errorf("unknown resource %q", name)
	}
}
