package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-openapi/strfmt"

	"github.com/Andrew920528/vibe-30/internal/model"
)

const (
	maxNameLen        = 100
	maxTextLen        = 200
	maxDescriptionLen = 1000
)

func NonEmpty(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

// MaxLen counts runes, not bytes.
func MaxLen(field string, v *string, limit int) error {
	if v == nil {
		return nil
	}
	if utf8.RuneCountInString(*v) > limit {
		return fmt.Errorf("%s exceeds %d characters", field, limit)
	}
	return nil
}

// ID checks that a path identifier is a UUID, which every store assigns.
func ID(field, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required", field)
	}
	if !strfmt.IsUUID(v) {
		return fmt.Errorf("%s must be a UUID", field)
	}
	return nil
}

func BucketName(name string) error {
	if err := NonEmpty("name", name); err != nil {
		return err
	}
	return MaxLen("name", &name, maxNameLen)
}

func Activity(text string, description *string) error {
	if err := NonEmpty("text", text); err != nil {
		return err
	}
	if err := MaxLen("text", &text, maxTextLen); err != nil {
		return err
	}
	return MaxLen("description", description, maxDescriptionLen)
}

// -------- Request specific helpers ----------

func CreateBucket(req model.CreateBucketRequest) error {
	if err := BucketName(req.Name); err != nil {
		return err
	}
	if len(req.Activities) > model.MaxActivities {
		return fmt.Errorf("a bucket holds at most %d activities", model.MaxActivities)
	}
	for i, a := range req.Activities {
		if err := Activity(a.Text, a.Description); err != nil {
			return fmt.Errorf("activities[%d]: %w", i, err)
		}
	}
	return nil
}

func UpdateBucket(req model.UpdateBucketRequest) error {
	if req.Name != nil {
		if err := BucketName(*req.Name); err != nil {
			return err
		}
	}
	if len(req.Activities) > model.MaxActivities {
		return fmt.Errorf("a bucket holds at most %d activities", model.MaxActivities)
	}
	for i, a := range req.Activities {
		if err := Activity(a.Text, a.Description); err != nil {
			return fmt.Errorf("activities[%d]: %w", i, err)
		}
		if a.Position < 0 {
			return fmt.Errorf("activities[%d]: position must be non-negative", i)
		}
	}
	return nil
}
