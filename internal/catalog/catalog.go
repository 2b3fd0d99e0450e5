// Package catalog fetches course and slot listings from the backend, normalizing
// the response shapes each endpoint produces and caching the results.
package catalog

import (
	"context"
	"fmt"
	"net/http"

	"brainbridge/internal/apiclient"
	"brainbridge/internal/model"
)

// Cache is the read/write side of the listing cache.
type Cache interface {
	Get(ctx context.Context, key string, out any) bool
	Set(ctx context.Context, key string, val any)
}

// Catalog serves listings with a read-through cache keyed the same way booking
// confirmation invalidates them.
type Catalog struct {
	api   *apiclient.Client
	cache Cache
}

// New creates a catalog. cache may be nil.
func New(api *apiclient.Client, cache Cache) *Catalog {
	return &Catalog{api: api, cache: cache}
}

// ListSlots returns the slots of a live or in-person resource.
func (c *Catalog) ListSlots(ctx context.Context, creds *apiclient.Credentials, r model.Resource) ([]model.Slot, error) {
	if !r.Dated {
		return nil, fmt.Errorf("%s has no slots", r.Name)
	}
	var slots []model.Slot
	if c.read(ctx, r.ListCacheKey(), &slots) {
		return slots, nil
	}

	raw, err := c.get(ctx, creds, r.ListPath(), r.ListPath())
	if err != nil {
		return nil, err
	}
	slots, err = NormalizeSlots(raw)
	if err != nil {
		return nil, malformed(err)
	}
	c.write(ctx, r.ListCacheKey(), slots)
	return slots, nil
}

// GetSlot returns a single slot.
func (c *Catalog) GetSlot(ctx context.Context, creds *apiclient.Credentials, r model.Resource, id int64) (*model.Slot, error) {
	var slot model.Slot
	if c.read(ctx, r.ItemCacheKey(id), &slot) {
		return &slot, nil
	}

	raw, err := c.get(ctx, creds, r.ItemPath(id), r.ItemRoute())
	if err != nil {
		return nil, err
	}
	s, err := NormalizeSlot(raw)
	if err != nil {
		return nil, malformed(err)
	}
	c.write(ctx, r.ItemCacheKey(id), s)
	return s, nil
}

// ListCourses returns every course on offer.
func (c *Catalog) ListCourses(ctx context.Context, creds *apiclient.Credentials) ([]model.Course, error) {
	r := model.CourseResource
	var courses []model.Course
	if c.read(ctx, r.ListCacheKey(), &courses) {
		return courses, nil
	}

	raw, err := c.get(ctx, creds, r.ListPath(), r.ListPath())
	if err != nil {
		return nil, err
	}
	courses, err = NormalizeCourses(raw)
	if err != nil {
		return nil, malformed(err)
	}
	c.write(ctx, r.ListCacheKey(), courses)
	return courses, nil
}

// GetCourse returns a single course.
func (c *Catalog) GetCourse(ctx context.Context, creds *apiclient.Credentials, id int64) (*model.Course, error) {
	r := model.CourseResource
	var course model.Course
	if c.read(ctx, r.ItemCacheKey(id), &course) {
		return &course, nil
	}

	raw, err := c.get(ctx, creds, r.ItemPath(id), r.ItemRoute())
	if err != nil {
		return nil, err
	}
	out, err := NormalizeCourse(raw)
	if err != nil {
		return nil, malformed(err)
	}
	c.write(ctx, r.ItemCacheKey(id), out)
	return out, nil
}

func (c *Catalog) get(ctx context.Context, creds *apiclient.Credentials, path, route string) ([]byte, error) {
	resp, err := c.api.Do(ctx, apiclient.Request{
		Method:      http.MethodGet,
		Path:        path,
		Route:       route,
		Credentials: creds,
	})
	if err != nil {
		return nil, err
	}
	return resp.Raw, nil
}

func (c *Catalog) read(ctx context.Context, key string, out any) bool {
	if c.cache == nil {
		return false
	}
	return c.cache.Get(ctx, key, out)
}

func (c *Catalog) write(ctx context.Context, key string, val any) {
	if c.cache == nil {
		return
	}
	c.cache.Set(ctx, key, val)
}

func malformed(err error) error {
	return apiclient.NewError(apiclient.KindMalformed, http.StatusOK, "The server returned an invalid response.", err)
}
