package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServiceErrorMatchesKindAndCause(t *testing.T) {
	err := fmt.Errorf("bootstrap: %w", newServiceError("search", PhaseInstall, ErrExtraction, errBoom))

	assert.ErrorIs(t, err, ErrExtraction)
	assert.ErrorIs(t, err, errBoom)
	assert.NotErrorIs(t, err, ErrDownload)
	assert.Equal(t, "bootstrap: service 'search' install: extraction failed: boom", err.Error())

	var serr *ServiceError
	assert.True(t, errors.As(err, &serr))
	assert.Equal(t, "search", serr.Service)
	assert.Equal(t, PhaseInstall, serr.Phase)
}

func TestKindName(t *testing.T) {
	assert.Equal(t, "hook", kindName(newServiceError("x", PhaseHook, ErrHook, errBoom)))
	assert.Equal(t, "teardown", kindName(newServiceError("x", PhaseTeardown, ErrTeardownResolution, nil)))
	assert.Equal(t, "other", kindName(errBoom))
	assert.Equal(t, "service 'x' start: spawn failed", newServiceError("x", PhaseStart, ErrSpawn, nil).Error())
}
