package schemas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateJobs_Valid(t *testing.T) {
	data := []byte(`[
  {"title": "Accountant", "company": "Zesco", "location": "Lusaka", "description": "", "url": "https://gozambiajobs.com/jobs/1", "source": "gozambia"},
  {"title": "Driver", "company": "Unknown", "description": "Class C licence", "url": "https://greatzambiajobs.com/job/2", "source": "greatzambiajobs"}
]`)
	assert.NoError(t, ValidateJobs(data))
}

func TestValidateJobs_Empty(t *testing.T) {
	assert.NoError(t, ValidateJobs([]byte(`[]`)))
}

func TestValidateJobs_MissingField(t *testing.T) {
	err := ValidateJobs([]byte(`[{"title": "Accountant", "company": "Zesco", "description": "", "source": "gozambia"}]`))
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.NotEmpty(t, verr.Errors)
	assert.Contains(t, verr.Error(), "url")
}

func TestValidateJobs_BadValues(t *testing.T) {
	err := ValidateJobs([]byte(`[{"title": "", "company": "Zesco", "description": "", "url": "/jobs/1", "source": "linkedin"}]`))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Errors, 3)
}

func TestValidateJobs_NotJSON(t *testing.T) {
	err := ValidateJobs([]byte(`not json`))

	var lerr *SchemaLoadError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, "document", lerr.Name)
}
