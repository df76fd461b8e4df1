package taskstore

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tasktracker/internal/apperr"
	"github.com/starford/tasktracker/internal/models"
)

var (
	priorityMsg = fmt.Sprintf("must be between %d and %d", models.MinPriority, models.MaxPriority)
	statusMsg   = "must be one of OPEN, IN_PROGRESS, DONE"
)

func validateTitle(title string) error {
	return validation.Validate(strings.TrimSpace(title),
		validation.Required.Error("must not be blank"),
	)
}

// Required comes first because ozzo's threshold rules skip zero values.
func validatePriority(priority int) error {
	return validation.Validate(priority,
		validation.Required.Error(priorityMsg),
		validation.Min(models.MinPriority).Error(priorityMsg),
		validation.Max(models.MaxPriority).Error(priorityMsg),
	)
}

func validateStatus(status models.Status) error {
	allowed := make([]any, 0, 3)
	for _, s := range models.Statuses() {
		allowed = append(allowed, string(s))
	}
	return validation.Validate(string(status),
		validation.Required.Error(statusMsg),
		validation.In(allowed...).Error(statusMsg),
	)
}

// asValidationError converts the collected per-field results into the
// shared error kind, or returns nil when every field passed.
func asValidationError(errs validation.Errors) error {
	if errs.Filter() == nil {
		return nil
	}
	fields := make(map[string]string, len(errs))
	for name, err := range errs {
		if err != nil {
			fields[name] = err.Error()
		}
	}
	return &apperr.ValidationError{Fields: fields}
}
